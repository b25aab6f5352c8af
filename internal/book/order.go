package book

import "duskbook/internal/ids"

// OrderSlot is the in-memory form of one slab slot: an order record plus
// its four intrusive links. Field order matches the wire layout in
// Encode/Decode, not necessarily struct declaration order.
type OrderSlot struct {
	OrderID       ids.ID128
	Trader        ids.Key32
	Side          Side
	Price         uint64
	Size          uint64
	RemainingSize uint64
	TIF           TIF
	Timestamp     int64

	// FIFO chain within this order's price level.
	NextAtPrice uint64
	PrevAtPrice uint64
	// Price-sorted chain across levels, spanning the whole side.
	NextInBook uint64
	PrevInBook uint64
}

// Live reports whether the slot holds a resting order (as opposed to a
// zeroed, free slot).
func (o *OrderSlot) Live() bool {
	return o.RemainingSize > 0
}
