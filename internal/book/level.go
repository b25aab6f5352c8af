package book

// priceLevel is a descriptor for one resting price on one side of the
// book. It never holds order data itself, only the head/tail slot
// indices of that level's FIFO chain, so the tree stays small
// regardless of how many orders rest at a price.
//
// Grounded on the teacher's internal/engine/orderbook.go PriceLevel type
// and its tidwall/btree.BTreeG[*PriceLevel] index, generalized from a
// []*Order slice per level (unbounded, not slab-backed) to a slab-FIFO
// head/tail pair (bounded, slab-backed), per the slab allocator design in
// §4.1/§9 of the spec this package implements.
type priceLevel struct {
	price uint64
	head  uint64
	tail  uint64
	count uint64
}
