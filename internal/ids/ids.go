// Package ids provides the 128-bit identifiers and opaque 32-byte keys used
// throughout duskbook in place of the host language's native u128/pubkey
// types.
package ids

import (
	"fmt"

	"github.com/holiman/uint256"
)

// ID128 is a 128-bit unsigned identifier (order_id, fill_id, total_volume).
type ID128 struct {
	v uint256.Int
}

// Zero reports whether the identifier is the zero value.
func (id ID128) Zero() bool {
	return id.v.IsZero()
}

// String renders the identifier in decimal.
func (id ID128) String() string {
	return id.v.Dec()
}

// Equal reports whether two identifiers are numerically equal.
func (id ID128) Equal(other ID128) bool {
	return id.v.Eq(&other.v)
}

// Cmp compares two identifiers; see uint256.Int.Cmp for the return contract.
func (id ID128) Cmp(other ID128) int {
	return id.v.Cmp(&other.v)
}

// FromUint64 builds an ID128 from a single uint64.
func FromUint64(v uint64) ID128 {
	var out ID128
	out.v.SetUint64(v)
	return out
}

// Add returns id+other, reporting overflow past 128 bits rather than
// wrapping silently.
func Add(a, b ID128) (ID128, bool) {
	var out ID128
	overflow := out.v.AddOverflow(&a.v, &b.v) || out.v[2] != 0 || out.v[3] != 0
	out.v[2], out.v[3] = 0, 0
	return out, overflow
}

// Mul returns a*b, reporting overflow past 128 bits.
func Mul(a, b ID128) (ID128, bool) {
	var out ID128
	overflow := out.v.MulOverflow(&a.v, &b.v) || out.v[2] != 0 || out.v[3] != 0
	out.v[2], out.v[3] = 0, 0
	return out, overflow
}

// DeriveFillID computes fill_id = timestamp*10^6 + slot*10^3 + iteration,
// per the matching engine's fill ID derivation rule. It reports overflow
// so callers can fail the enclosing operation with MathOverflow instead of
// reusing or wrapping an identifier.
func DeriveFillID(timestamp int64, slot uint64, iteration uint64) (ID128, bool) {
	if timestamp < 0 {
		return ID128{}, true
	}
	ts := FromUint64(uint64(timestamp))
	million := FromUint64(1_000_000)
	thousand := FromUint64(1_000)

	tsTerm, of1 := Mul(ts, million)
	slotTerm, of2 := Mul(FromUint64(slot), thousand)
	sum1, of3 := Add(tsTerm, slotTerm)
	result, of4 := Add(sum1, FromUint64(iteration))
	return result, of1 || of2 || of3 || of4
}

// SplitID128 returns the low and high 64-bit words of id, for wire
// encoding into a fixed 16-byte field.
func SplitID128(id ID128) (lo, hi uint64) {
	words := id.v.Bytes32()
	// Bytes32 is big-endian; low word is the last 8 bytes, high word the
	// 8 bytes before it (the remaining upper 16 bytes of a 128-bit value
	// are always zero since ID128 never exceeds 128 bits by construction).
	lo = binaryUint64BE(words[24:32])
	hi = binaryUint64BE(words[16:24])
	return lo, hi
}

// JoinID128 reconstructs an ID128 from its low and high 64-bit words.
func JoinID128(lo, hi uint64) ID128 {
	var out ID128
	var hiInt uint256.Int
	hiInt.SetUint64(hi)
	hiInt.Lsh(&hiInt, 64)
	var loInt uint256.Int
	loInt.SetUint64(lo)
	out.v.Add(&hiInt, &loInt)
	return out
}

func binaryUint64BE(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// Key32 is an opaque 32-byte identity: trader, market, or asset.
type Key32 [32]byte

// String renders the key as hex, truncated for log readability.
func (k Key32) String() string {
	return fmt.Sprintf("%x", k[:8])
}

// Zero reports whether the key is the zero value (unset).
func (k Key32) Zero() bool {
	return k == Key32{}
}

// KeyFromBytes copies up to 32 bytes of b into a Key32, zero-padding.
func KeyFromBytes(b []byte) Key32 {
	var k Key32
	copy(k[:], b)
	return k
}
