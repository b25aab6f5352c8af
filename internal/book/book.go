// Package book implements the slab-allocated order store and per-side
// price-level index: the fixed-layout order record, the slab allocator
// with its free list (held as decoded records; the byte layout is
// produced on demand by Snapshot), and an efficient price-time priority
// traversal over it.
package book

import (
	"duskbook/internal/ids"
	"duskbook/internal/xerrors"

	"github.com/tidwall/btree"
)

// Book is one market's slab plus its two price-level indexes. It
// implements the behavioral contract of §4.1: O(log L) best-price lookup
// and O(1) FIFO push/pop per level, rather than the O(N) slab-scan the
// spec calls out as a non-conforming-in-practice fallback.
type Book struct {
	MarketID ids.Key32

	slab *Slab
	bids *btree.BTreeG[*priceLevel]
	asks *btree.BTreeG[*priceLevel]

	bestBid uint64
	bestAsk uint64
}

// NewBook constructs an empty book with room for capacity live orders.
func NewBook(marketID ids.Key32, capacity int) *Book {
	return &Book{
		MarketID: marketID,
		slab:     NewSlab(capacity),
		bids:     btree.NewBTreeG(func(a, b *priceLevel) bool { return a.price > b.price }),
		asks:     btree.NewBTreeG(func(a, b *priceLevel) bool { return a.price < b.price }),
	}
}

// BestBid returns the highest live bid price, or 0 if there are none.
func (b *Book) BestBid() uint64 { return b.bestBid }

// BestAsk returns the lowest live ask price, or 0 if there are none.
func (b *Book) BestAsk() uint64 { return b.bestAsk }

// OrderCount returns the number of live orders in the book.
func (b *Book) OrderCount() uint64 { return b.slab.OrderCount() }

// Capacity returns the slab's fixed capacity.
func (b *Book) Capacity() int { return b.slab.Capacity() }

func (b *Book) levels(side Side) *btree.BTreeG[*priceLevel] {
	if side == SideBid {
		return b.bids
	}
	return b.asks
}

// Order returns the slot for a resting order, or nil if the slot is free.
func (b *Book) Order(slot uint64) *OrderSlot {
	o := b.slab.Get(slot)
	if o == nil || !o.Live() {
		return nil
	}
	return o
}

// BestOrder returns the slot index of the order at the front of the best
// price level on side, or 0 if that side is empty.
func (b *Book) BestOrder(side Side) uint64 {
	levels := b.levels(side)
	lvl, ok := levels.Min()
	if !ok {
		return nilSlot
	}
	return lvl.head
}

// NextLevelHead returns the head slot of the next price level strictly
// beyond price on side (the next-worse level), or 0 if there is none.
// Used by FOK's liquidity probe to continue a walk across level
// boundaries without holding a live cursor into the tree.
func (b *Book) NextLevelHead(side Side, price uint64) uint64 {
	levels := b.levels(side)
	var next uint64
	passedPivot := false
	// Scan always walks in the side's priority order (best-to-worst), so
	// the level right after the one matching price is the next-worse one.
	levels.Scan(func(lvl *priceLevel) bool {
		if passedPivot {
			next = lvl.head
			return false
		}
		if lvl.price == price {
			passedPivot = true
		}
		return true
	})
	return next
}

// Insert places a new resting order into the book, appending it to the
// tail of its price level's FIFO. Returns the slot it was stored in.
func (b *Book) Insert(o OrderSlot) (uint64, *xerrors.Error) {
	slot, err := b.slab.Allocate()
	if err != nil {
		return 0, err
	}
	o.NextAtPrice = nilSlot
	o.PrevAtPrice = nilSlot
	o.NextInBook = nilSlot
	o.PrevInBook = nilSlot
	b.slab.Set(slot, o)

	levels := b.levels(o.Side)
	lvl, ok := levels.GetMut(&priceLevel{price: o.Price})
	if !ok {
		levels.Set(&priceLevel{price: o.Price, head: slot, tail: slot, count: 1})
	} else {
		tail := b.slab.Get(lvl.tail)
		tail.NextAtPrice = slot
		b.slab.Get(slot).PrevAtPrice = lvl.tail
		lvl.tail = slot
		lvl.count++
	}
	b.refreshBest(o.Side)
	return slot, nil
}

// Remove frees a resting order's slot and unlinks it from its price
// level's FIFO, deleting the level if it is now empty.
func (b *Book) Remove(slot uint64) {
	o := b.slab.Get(slot)
	if o == nil || !o.Live() {
		return
	}
	side, price := o.Side, o.Price
	levels := b.levels(side)
	lvl, ok := levels.GetMut(&priceLevel{price: price})
	if ok {
		switch {
		case lvl.head == slot && lvl.tail == slot:
			levels.Delete(&priceLevel{price: price})
		case lvl.head == slot:
			lvl.head = o.NextAtPrice
			b.slab.Get(lvl.head).PrevAtPrice = nilSlot
			lvl.count--
		case lvl.tail == slot:
			lvl.tail = o.PrevAtPrice
			b.slab.Get(lvl.tail).NextAtPrice = nilSlot
			lvl.count--
		default:
			prev, next := o.PrevAtPrice, o.NextAtPrice
			b.slab.Get(prev).NextAtPrice = next
			b.slab.Get(next).PrevAtPrice = prev
			lvl.count--
		}
	}
	b.slab.Free(slot)
	b.refreshBest(side)
}

func (b *Book) refreshBest(side Side) {
	levels := b.levels(side)
	lvl, ok := levels.Min()
	price := uint64(0)
	if ok {
		price = lvl.price
	}
	if side == SideBid {
		b.bestBid = price
	} else {
		b.bestAsk = price
	}
}

// Snapshot materializes the book into its byte layout (header + N order
// slots), resolving each order's NextInBook/PrevInBook to the price-sorted
// chain across levels on its side. This is computed on demand rather than
// maintained incrementally, since the book-wide chain is a secondary,
// wire-format-only view: matching and traversal use the price-level index
// directly.
func (b *Book) Snapshot(discriminator uint64) []byte {
	buf := make([]byte, HeaderSize+b.Capacity()*SlotSize)
	EncodeHeader(buf, discriminator, b.MarketID, b.bestBid, b.bestAsk, b.slab.OrderCount(), b.slab.freeListHead)

	links := make(map[uint64][2]uint64, b.slab.OrderCount()) // slot -> [prev,next]
	for _, side := range []Side{SideBid, SideAsk} {
		var prevSlot uint64
		b.levels(side).Scan(func(lvl *priceLevel) bool {
			slot := lvl.head
			for slot != nilSlot {
				entry := links[slot]
				entry[0] = prevSlot
				links[slot] = entry
				if prevSlot != nilSlot {
					pe := links[prevSlot]
					pe[1] = slot
					links[prevSlot] = pe
				}
				prevSlot = slot
				slot = b.slab.Get(slot).NextAtPrice
			}
			return true
		})
	}

	for slot := uint64(1); slot <= uint64(b.Capacity()); slot++ {
		o := *b.slab.Get(slot)
		if o.Live() {
			if l, ok := links[slot]; ok {
				o.PrevInBook, o.NextInBook = l[0], l[1]
			}
		}
		EncodeSlot(buf[HeaderSize+int(slot-1)*SlotSize:], o)
	}
	return buf
}
