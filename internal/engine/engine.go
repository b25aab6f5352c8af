// Package engine implements the crossing detection, price-time traversal,
// fill generation, and time-in-force enforcement described in §4.3 of the
// spec this package implements.
//
// Grounded on the teacher's internal/engine/engine.go (Trade) and
// internal/engine/orderbook.go (Match/handleLimit/handleMarket), rewritten
// against the slab + price-level index in internal/book instead of
// unbounded []*Order slices, and completed: the teacher's Trade was a stub
// with FIXME markers and never computed fees, maker/taker fees, or
// collateral movement.
package engine

import (
	"duskbook/internal/book"
	"duskbook/internal/clock"
	"duskbook/internal/ids"
	"duskbook/internal/ledger"
	"duskbook/internal/xerrors"

	"github.com/rs/zerolog/log"
)

// Params are the per-market parameters the matching loop needs: tick/lot
// sizing and the protocol fee schedule in effect when a fill is created.
type Params struct {
	TickSize    uint64
	LotSize     uint64
	MakerFeeBps uint64
	TakerFeeBps uint64
}

// Engine matches orders for one market's book against its ledger.
type Engine struct {
	MarketID ids.Key32
	Book     *book.Book
	Ledger   *ledger.Ledger
	Params   Params

	lastFillID          ids.ID128
	protocolFeesAccrued uint64
	orderSeq            uint64
	orderIndex          map[ids.ID128]uint64
}

// New constructs an Engine over an existing book and ledger.
func New(marketID ids.Key32, b *book.Book, l *ledger.Ledger, params Params) *Engine {
	return &Engine{MarketID: marketID, Book: b, Ledger: l, Params: params, orderIndex: make(map[ids.ID128]uint64)}
}

// SlotForOrder resolves a public order_id to its slab slot, for the
// market controller's cancel_order operation.
func (e *Engine) SlotForOrder(id ids.ID128) (uint64, bool) {
	slot, ok := e.orderIndex[id]
	return slot, ok
}

// ProtocolFeesAccrued returns the total maker+taker fee quote amount
// collected so far but not yet paid out to the fee recipient (payout is
// an external settlement concern).
func (e *Engine) ProtocolFeesAccrued() uint64 {
	return e.protocolFeesAccrued
}

// NewOrder describes an order about to be placed, before it has a slot or
// an order ID.
type NewOrder struct {
	Trader ids.Key32
	Side   book.Side
	Price  uint64
	Size   uint64
	TIF    book.TIF
}

// crosses reports whether an order on side at price would cross against a
// resting order at oppPrice.
func crosses(side book.Side, price, oppPrice uint64) bool {
	if side == book.SideBid {
		return price >= oppPrice
	}
	return price <= oppPrice
}

func (e *Engine) crossingNow(side book.Side, price uint64) bool {
	slot := e.Book.BestOrder(side.Opposite())
	if slot == 0 {
		return false
	}
	opp := e.Book.Order(slot)
	return crosses(side, price, opp.Price)
}

// PlaceOrder validates nothing beyond what the matching loop itself
// requires (tick/lot/size bounds are the market controller's job); it
// allocates an order ID and slot, matches inline per the TIF table, and
// rests any remainder when the TIF allows it.
func (e *Engine) PlaceOrder(src clock.Source, in NewOrder) (ids.ID128, uint64, []Fill, *xerrors.Error) {
	orderID, idErr := e.nextOrderID(src)
	if idErr != nil {
		return ids.ID128{}, 0, nil, idErr
	}

	incoming := book.OrderSlot{
		OrderID:       orderID,
		Trader:        in.Trader,
		Side:          in.Side,
		Price:         in.Price,
		Size:          in.Size,
		RemainingSize: in.Size,
		TIF:           in.TIF,
		Timestamp:     src.Timestamp,
	}

	if in.TIF == book.TIFPostOnly {
		if e.crossingNow(in.Side, in.Price) {
			return ids.ID128{}, 0, nil, xerrors.Statef(xerrors.PostOnlyWouldCross, "postonly order would cross at price %d", in.Price)
		}
		slot, err := e.Book.Insert(incoming)
		if err != nil {
			return ids.ID128{}, 0, nil, err
		}
		e.orderIndex[orderID] = slot
		return orderID, slot, nil, nil
	}

	if in.TIF == book.TIFFOK {
		available := e.simulateAvailable(in.Side, in.Trader, in.Price)
		if available < in.Size {
			return ids.ID128{}, 0, nil, xerrors.Statef(xerrors.InsufficientLiquidity, "FOK cannot fully fill: need %d, available %d", in.Size, available)
		}
	}

	fills, halted, err := e.matchAggressor(&incoming, src)
	if err != nil {
		return ids.ID128{}, 0, nil, err
	}

	var restingSlot uint64
	var resting bool
	switch {
	case incoming.RemainingSize == 0:
		// Fully filled, including a self-trade halt: matchAggressor
		// zeroes the remainder in that case too, so it is discarded
		// here exactly like a genuinely filled order.
	case in.TIF == book.TIFGTC && !halted:
		slot, err := e.Book.Insert(incoming)
		if err != nil {
			return ids.ID128{}, 0, nil, err
		}
		e.orderIndex[orderID] = slot
		restingSlot = slot
		resting = true
	default:
		// IOC discards its remainder; FOK never reaches here with
		// remaining > 0 given the probe above; a self-trade halt on a
		// GTC order discards its remainder per the self-trade
		// prevention rule (the passive side is left in place and the
		// aggressor's remainder is cancelled rather than rested).
	}

	if rerr := e.refundUnconsumedLock(in, incoming.RemainingSize, resting, fills); rerr != nil {
		return ids.ID128{}, 0, nil, rerr
	}

	log.Info().
		Str("market", e.MarketID.String()).
		Str("order_id", orderID.String()).
		Str("side", in.Side.String()).
		Uint64("price", in.Price).
		Uint64("size", in.Size).
		Int("fills", len(fills)).
		Msg("order placed")

	return orderID, restingSlot, fills, nil
}

// CancelOrder removes a resting order owned by trader and unlocks its
// remaining collateral. Idempotent per P9: cancelling an absent or
// already-filled order fails with OrderNotFound and changes nothing.
func (e *Engine) CancelOrder(trader ids.Key32, slot uint64) *xerrors.Error {
	o := e.Book.Order(slot)
	if o == nil || o.Trader != trader {
		return xerrors.Statef(xerrors.OrderNotFound, "no live order at slot %d for trader %s", slot, trader)
	}
	orderID := o.OrderID

	entry := e.Ledger.Entry(trader, e.MarketID)
	if o.Side == book.SideBid {
		quote, qerr := ledger.LockedQuoteForBid(o.Price, o.RemainingSize, e.Params.LotSize)
		if qerr != nil {
			return qerr
		}
		if err := entry.UnlockQuote(quote); err != nil {
			return err
		}
	} else {
		if err := entry.UnlockBase(o.RemainingSize); err != nil {
			return err
		}
	}
	entry.OpenOrderCount--
	e.Book.Remove(slot)
	delete(e.orderIndex, orderID)
	return nil
}

// refundUnconsumedLock releases whatever collateral was locked for in at
// placement but never consumed by matching: the unmatched remainder when
// it is discarded instead of rested (IOC, or a self-trade-halted
// aggressor, which reports remaining as 0 without actually consuming
// anything), and for a bid, any price-improvement overage left over
// after filling (fully or partially) at a better price than its own
// limit. remaining is incoming.RemainingSize after matching; resting
// reports whether that remainder was rested rather than discarded.
func (e *Engine) refundUnconsumedLock(in NewOrder, remaining uint64, resting bool, fills []Fill) *xerrors.Error {
	entry := e.Ledger.Entry(in.Trader, e.MarketID)

	if in.Side == book.SideAsk {
		var consumed uint64
		for _, f := range fills {
			consumed += f.Size
		}
		var shouldRemainLocked uint64
		if resting {
			shouldRemainLocked = remaining
		}
		if in.Size < shouldRemainLocked+consumed {
			return xerrors.Invariantf(xerrors.MathUnderflow, "ask locked %d less than remaining lock %d + consumed %d", in.Size, shouldRemainLocked, consumed)
		}
		refund := in.Size - shouldRemainLocked - consumed
		if refund == 0 {
			return nil
		}
		return entry.UnlockBase(refund)
	}

	originalLocked, lerr := ledger.LockedQuoteForBid(in.Price, in.Size, e.Params.LotSize)
	if lerr != nil {
		return lerr
	}
	var shouldRemainLocked uint64
	if resting {
		var rerr *xerrors.Error
		shouldRemainLocked, rerr = ledger.LockedQuoteForBid(in.Price, remaining, e.Params.LotSize)
		if rerr != nil {
			return rerr
		}
	}
	var consumed uint64
	for _, f := range fills {
		consumed += f.QuoteAmount
	}
	if originalLocked < shouldRemainLocked+consumed {
		return xerrors.Invariantf(xerrors.MathUnderflow, "bid locked %d less than remaining lock %d + consumed %d", originalLocked, shouldRemainLocked, consumed)
	}
	refund := originalLocked - shouldRemainLocked - consumed
	if refund == 0 {
		return nil
	}
	return entry.UnlockQuote(refund)
}

// MatchOrders is the explicit, budgeted batch matching entry point used
// for crank-style processing of resting crosses. It never partially
// corrupts the book on early termination: every iteration it performs is
// fully committed before the budget is checked again, so a subsequent
// call safely resumes from the new best bid/ask (matching is memoryless
// across iterations, per §5).
func (e *Engine) MatchOrders(src clock.Source, maxIterations int) ([]Fill, *xerrors.Error) {
	if maxIterations < 1 || maxIterations > 255 {
		return nil, xerrors.Validationf(xerrors.InvalidOrderParams, "max_iterations %d out of [1,255]", maxIterations)
	}
	var fills []Fill
	for i := 0; i < maxIterations; i++ {
		bidSlot := e.Book.BestOrder(book.SideBid)
		askSlot := e.Book.BestOrder(book.SideAsk)
		if bidSlot == 0 || askSlot == 0 {
			break
		}
		bid := e.Book.Order(bidSlot)
		ask := e.Book.Order(askSlot)
		if bid.Price < ask.Price {
			break
		}
		if bid.Trader == ask.Trader {
			if e.haltSelfTrade(bid, ask, bidSlot, askSlot) {
				continue
			}
			break
		}
		fill, err := e.settleMatch(bidSlot, askSlot, src, len(fills))
		if err != nil {
			return fills, err
		}
		fills = append(fills, fill)
	}
	return fills, nil
}
