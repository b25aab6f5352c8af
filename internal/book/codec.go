package book

import (
	"encoding/binary"

	"duskbook/internal/ids"
)

// Byte layout constants, little-endian throughout, per the external
// interfaces section of the spec this package implements. These mirror
// the teacher's manual encoding/binary packing in its wire message codec,
// redirected at an in-memory byte region instead of a socket.
const (
	HeaderSize    = 136
	SlotSize      = 128
	headerReserve = 64
)

// EncodeHeader writes the orderbook header into buf[0:HeaderSize].
func EncodeHeader(buf []byte, discriminator uint64, marketID ids.Key32, bestBid, bestAsk, orderCount, freeListHead uint64) {
	_ = buf[:HeaderSize]
	binary.LittleEndian.PutUint64(buf[0:8], discriminator)
	copy(buf[8:40], marketID[:])
	binary.LittleEndian.PutUint64(buf[40:48], bestBid)
	binary.LittleEndian.PutUint64(buf[48:56], bestAsk)
	binary.LittleEndian.PutUint64(buf[56:64], orderCount)
	binary.LittleEndian.PutUint64(buf[64:72], freeListHead)
	for i := 72; i < 72+headerReserve; i++ {
		buf[i] = 0
	}
}

// DecodedHeader is the parsed form of an orderbook header.
type DecodedHeader struct {
	Discriminator uint64
	MarketID      ids.Key32
	BestBid       uint64
	BestAsk       uint64
	OrderCount    uint64
	FreeListHead  uint64
}

// DecodeHeader parses buf[0:HeaderSize] into a DecodedHeader.
func DecodeHeader(buf []byte) DecodedHeader {
	_ = buf[:HeaderSize]
	var h DecodedHeader
	h.Discriminator = binary.LittleEndian.Uint64(buf[0:8])
	h.MarketID = ids.KeyFromBytes(buf[8:40])
	h.BestBid = binary.LittleEndian.Uint64(buf[40:48])
	h.BestAsk = binary.LittleEndian.Uint64(buf[48:56])
	h.OrderCount = binary.LittleEndian.Uint64(buf[56:64])
	h.FreeListHead = binary.LittleEndian.Uint64(buf[64:72])
	return h
}

// EncodeSlot writes one order slot into buf[0:SlotSize]. A zeroed
// OrderSlot encodes to an all-zero slot, preserving the free-slot marker
// convention.
func EncodeSlot(buf []byte, o OrderSlot) {
	_ = buf[:SlotSize]
	// order_id (16 bytes): two big-endian-free uint64 halves via Cmp-free
	// decimal round trip is unnecessary here. ID128 stores a uint256.Int,
	// so we serialize its low/high 64-bit words directly.
	lo, hi := ids.SplitID128(o.OrderID)
	binary.LittleEndian.PutUint64(buf[0:8], lo)
	binary.LittleEndian.PutUint64(buf[8:16], hi)
	copy(buf[16:48], o.Trader[:])
	buf[48] = byte(o.Side)
	binary.LittleEndian.PutUint64(buf[49:57], o.Price)
	binary.LittleEndian.PutUint64(buf[57:65], o.Size)
	binary.LittleEndian.PutUint64(buf[65:73], o.RemainingSize)
	buf[73] = byte(o.TIF)
	binary.LittleEndian.PutUint64(buf[74:82], uint64(o.Timestamp))
	binary.LittleEndian.PutUint64(buf[82:90], o.NextAtPrice)
	binary.LittleEndian.PutUint64(buf[90:98], o.PrevAtPrice)
	binary.LittleEndian.PutUint64(buf[98:106], o.NextInBook)
	binary.LittleEndian.PutUint64(buf[106:114], o.PrevInBook)
	for i := 114; i < SlotSize; i++ {
		buf[i] = 0
	}
}

// DecodeSlot parses buf[0:SlotSize] into an OrderSlot.
func DecodeSlot(buf []byte) OrderSlot {
	_ = buf[:SlotSize]
	var o OrderSlot
	lo := binary.LittleEndian.Uint64(buf[0:8])
	hi := binary.LittleEndian.Uint64(buf[8:16])
	o.OrderID = ids.JoinID128(lo, hi)
	o.Trader = ids.KeyFromBytes(buf[16:48])
	o.Side = Side(buf[48])
	o.Price = binary.LittleEndian.Uint64(buf[49:57])
	o.Size = binary.LittleEndian.Uint64(buf[57:65])
	o.RemainingSize = binary.LittleEndian.Uint64(buf[65:73])
	o.TIF = TIF(buf[73])
	o.Timestamp = int64(binary.LittleEndian.Uint64(buf[74:82]))
	o.NextAtPrice = binary.LittleEndian.Uint64(buf[82:90])
	o.PrevAtPrice = binary.LittleEndian.Uint64(buf[90:98])
	o.NextInBook = binary.LittleEndian.Uint64(buf[98:106])
	o.PrevInBook = binary.LittleEndian.Uint64(buf[106:114])
	return o
}
