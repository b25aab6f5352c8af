package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitJoinRoundTrip(t *testing.T) {
	id, overflow := DeriveFillID(1_700_000_000, 42, 7)
	assert.False(t, overflow)

	lo, hi := SplitID128(id)
	back := JoinID128(lo, hi)
	assert.True(t, id.Equal(back))
}

func TestDeriveFillIDFormula(t *testing.T) {
	id, overflow := DeriveFillID(100, 2, 3)
	assert.False(t, overflow)
	want := FromUint64(100*1_000_000 + 2*1_000 + 3)
	assert.True(t, id.Equal(want))
}

func TestDeriveFillIDRejectsNegativeTimestamp(t *testing.T) {
	_, overflow := DeriveFillID(-1, 0, 0)
	assert.True(t, overflow)
}

func TestAddOverflowDetected(t *testing.T) {
	max := JoinID128(^uint64(0), ^uint64(0))
	_, overflow := Add(max, FromUint64(1))
	assert.True(t, overflow)
}

func TestCmpOrdering(t *testing.T) {
	a := FromUint64(5)
	b := FromUint64(9)
	assert.True(t, a.Cmp(b) < 0)
	assert.True(t, b.Cmp(a) > 0)
	assert.Equal(t, 0, a.Cmp(FromUint64(5)))
}

func TestKey32ZeroAndFromBytes(t *testing.T) {
	var z Key32
	assert.True(t, z.Zero())

	k := KeyFromBytes([]byte("abc"))
	assert.False(t, k.Zero())
}
