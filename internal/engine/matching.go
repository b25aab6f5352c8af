package engine

import (
	"math/bits"

	"duskbook/internal/book"
	"duskbook/internal/clock"
	"duskbook/internal/ids"
	"duskbook/internal/ledger"
	"duskbook/internal/xerrors"
)

// nextOrderID derives a fresh order_id from the host clock plus a
// per-market sequence counter, using the same timestamp*10^6 +
// slot*10^3 + n construction the spec mandates for fill_id. order_id
// has no separate derivation rule in the spec, so this package reuses the
// fill_id formula for consistency, and fails with MathOverflow rather
// than reusing an ID that a live order already holds.
func (e *Engine) nextOrderID(src clock.Source) (ids.ID128, *xerrors.Error) {
	id, overflow := ids.DeriveFillID(src.Timestamp, src.Slot, e.orderSeq)
	e.orderSeq++
	if overflow {
		return ids.ID128{}, xerrors.Invariantf(xerrors.MathOverflow, "order_id derivation overflowed 128 bits")
	}
	if _, taken := e.orderIndex[id]; taken {
		return ids.ID128{}, xerrors.Invariantf(xerrors.MathOverflow, "order_id %s collides with a live order", id)
	}
	return id, nil
}

// nextFillID derives the next fill_id per §4.3: timestamp*10^6 +
// slot*10^3 + intra-batch iteration, failing atomically on collision with
// the market's last-issued fill_id rather than reusing it.
func (e *Engine) nextFillID(src clock.Source, iteration int) (ids.ID128, *xerrors.Error) {
	id, overflow := ids.DeriveFillID(src.Timestamp, src.Slot, uint64(iteration))
	if overflow {
		return ids.ID128{}, xerrors.Invariantf(xerrors.MathOverflow, "fill_id derivation overflowed 128 bits")
	}
	if !e.lastFillID.Zero() && id.Cmp(e.lastFillID) <= 0 {
		return ids.ID128{}, xerrors.Invariantf(xerrors.MathOverflow, "fill_id %s collides with or precedes last-issued %s", id, e.lastFillID)
	}
	e.lastFillID = id
	return id, nil
}

// simulateAvailable sums the opposite side's resting liquidity that would
// be eligible to match against an order on side at price, excluding any
// orders owned by trader (self-trade prevention), stopping at the first
// price level that no longer crosses. It never mutates the book; this is
// the FOK "probe" step of §4.3's TIF table.
func (e *Engine) simulateAvailable(side book.Side, trader ids.Key32, price uint64) uint64 {
	oppSide := side.Opposite()
	var total uint64
	slot := e.Book.BestOrder(oppSide)
	for slot != 0 {
		o := e.Book.Order(slot)
		if o == nil || !crosses(side, price, o.Price) {
			break
		}
		if o.Trader != trader {
			total += o.RemainingSize
		}
		slot = o.NextAtPrice
		if slot == 0 {
			// Walked off the end of this price level; look up the next
			// level's head via a fresh BestOrder probe is not available
			// mid-level, so simulateAvailable relies on the book
			// exposing a full-side walk instead.
			slot = e.Book.NextLevelHead(oppSide, o.Price)
		}
	}
	return total
}

// matchAggressor runs the matching loop with incoming as the aggressor:
// it repeatedly crosses against the opposite side's best order until
// either incoming is exhausted, no further crossing exists, or a
// self-trade is encountered. At that point, per the minimum correct
// self-trade behaviour in §4.3 step 3 and the literal scenario in §8
// ("the incoming aggressor's remainder is cancelled, the passive side is
// left in place"), matching halts immediately without consuming the
// resting counterparty.
func (e *Engine) matchAggressor(incoming *book.OrderSlot, src clock.Source) ([]Fill, bool, *xerrors.Error) {
	var fills []Fill
	oppSide := incoming.Side.Opposite()
	for incoming.RemainingSize > 0 {
		oppSlot := e.Book.BestOrder(oppSide)
		if oppSlot == 0 {
			return fills, false, nil
		}
		opp := e.Book.Order(oppSlot)
		if !crosses(incoming.Side, incoming.Price, opp.Price) {
			return fills, false, nil
		}
		if opp.Trader == incoming.Trader {
			incoming.RemainingSize = 0
			return fills, true, nil
		}

		fill, err := e.executeMatch(incoming, opp, oppSlot, src, len(fills))
		if err != nil {
			return fills, false, err
		}
		fills = append(fills, fill)
	}
	return fills, false, nil
}

// haltSelfTrade resolves a same-trader crossing pair encountered during
// explicit MatchOrders: since neither side is a freshly "incoming"
// aggressor in that context, the generalisation of the self-trade rule
// cancels whichever of the pair has the later timestamp (lower time
// priority) and leaves the earlier one resting, then reports whether
// progress was made so the caller can keep iterating.
func (e *Engine) haltSelfTrade(bid, ask *book.OrderSlot, bidSlot, askSlot uint64) bool {
	later, laterSlot := bid, bidSlot
	if ask.Timestamp > bid.Timestamp || (ask.Timestamp == bid.Timestamp && ask.OrderID.Cmp(bid.OrderID) > 0) {
		later, laterSlot = ask, askSlot
	}
	if err := e.CancelOrder(later.Trader, laterSlot); err != nil {
		return false
	}
	return true
}

// executeMatch commits one fill between a (possibly not-yet-resting)
// incoming order and a resting opposite order, applying fees and
// collateral movement, and returns the fill.
func (e *Engine) executeMatch(incoming, opp *book.OrderSlot, oppSlot uint64, src clock.Source, iteration int) (Fill, *xerrors.Error) {
	var bid, ask *book.OrderSlot
	var bidResting, askResting bool
	if incoming.Side == book.SideBid {
		bid, ask = incoming, opp
		askResting = true
	} else {
		bid, ask = opp, incoming
		bidResting = true
	}

	fillSize := min(bid.RemainingSize, ask.RemainingSize)

	// Maker is whichever order was resting first: earlier timestamp, tie
	// broken by lower order_id. Match price is the maker's price, the
	// canonical "price improvement to taker" rule (spec §9), which
	// supersedes the original source's min(bid.price, ask.price).
	bidIsMaker := bidResting && !askResting
	if bidResting == askResting {
		bidIsMaker = bid.Timestamp < ask.Timestamp || (bid.Timestamp == ask.Timestamp && bid.OrderID.Cmp(ask.OrderID) < 0)
	}
	matchPrice := ask.Price
	if bidIsMaker {
		matchPrice = bid.Price
	}

	quoteAmount, qerr := ledger.LockedQuoteForBid(matchPrice, fillSize, e.Params.LotSize)
	if qerr != nil {
		return Fill{}, qerr
	}
	makerFee := floorBps(quoteAmount, e.Params.MakerFeeBps)
	takerFee := floorBps(quoteAmount, e.Params.TakerFeeBps)
	bidFee, askFee := takerFee, makerFee
	if bidIsMaker {
		bidFee, askFee = makerFee, takerFee
	}

	fillID, ferr := e.nextFillID(src, iteration)
	if ferr != nil {
		return Fill{}, ferr
	}

	bidEntry := e.Ledger.Entry(bid.Trader, e.MarketID)
	askEntry := e.Ledger.Entry(ask.Trader, e.MarketID)
	// Only the notional was ever reserved in quote_locked at placement
	// (no fee headroom); the bid's fee comes out of quote_available
	// instead, mirroring how the ask's fee comes out of the quote it
	// receives.
	if err := bidEntry.ConsumeQuoteLocked(quoteAmount); err != nil {
		return Fill{}, err
	}
	if err := bidEntry.ConsumeQuoteAvailable(bidFee); err != nil {
		return Fill{}, err
	}
	if err := askEntry.ConsumeBaseLocked(fillSize); err != nil {
		return Fill{}, err
	}
	if err := bidEntry.DepositBase(fillSize); err != nil {
		return Fill{}, err
	}
	if err := askEntry.DepositQuote(quoteAmount - askFee); err != nil {
		return Fill{}, err
	}
	e.protocolFeesAccrued += bidFee + askFee

	// Capture identifying fields before any Remove, which zeroes the
	// underlying slab slot (and therefore the memory bid/ask point into).
	result := Fill{
		FillID:      fillID,
		BidOrderID:  bid.OrderID,
		AskOrderID:  ask.OrderID,
		BidTrader:   bid.Trader,
		AskTrader:   ask.Trader,
		Price:       matchPrice,
		Size:        fillSize,
		QuoteAmount: quoteAmount,
		MakerFee:    makerFee,
		TakerFee:    takerFee,
		Timestamp:   src.Timestamp,
	}
	oppOrderID := opp.OrderID

	bid.RemainingSize -= fillSize
	ask.RemainingSize -= fillSize

	if bidResting && bid.RemainingSize == 0 {
		bidEntry.OpenOrderCount--
		e.Book.Remove(oppSlot)
		delete(e.orderIndex, oppOrderID)
	}
	if askResting && ask.RemainingSize == 0 {
		askEntry.OpenOrderCount--
		e.Book.Remove(oppSlot)
		delete(e.orderIndex, oppOrderID)
	}

	return result, nil
}

// settleMatch commits one fill between two already-resting orders
// (explicit MatchOrders path): neither side is "incoming", so both slots
// are live book entries throughout.
func (e *Engine) settleMatch(bidSlot, askSlot uint64, src clock.Source, iteration int) (Fill, *xerrors.Error) {
	bid := e.Book.Order(bidSlot)
	ask := e.Book.Order(askSlot)
	fillSize := min(bid.RemainingSize, ask.RemainingSize)

	bidIsMaker := bid.Timestamp < ask.Timestamp || (bid.Timestamp == ask.Timestamp && bid.OrderID.Cmp(ask.OrderID) < 0)
	matchPrice := ask.Price
	if bidIsMaker {
		matchPrice = bid.Price
	}

	quoteAmount, qerr := ledger.LockedQuoteForBid(matchPrice, fillSize, e.Params.LotSize)
	if qerr != nil {
		return Fill{}, qerr
	}
	makerFee := floorBps(quoteAmount, e.Params.MakerFeeBps)
	takerFee := floorBps(quoteAmount, e.Params.TakerFeeBps)
	bidFee, askFee := takerFee, makerFee
	if bidIsMaker {
		bidFee, askFee = makerFee, takerFee
	}

	fillID, ferr := e.nextFillID(src, iteration)
	if ferr != nil {
		return Fill{}, ferr
	}

	bidEntry := e.Ledger.Entry(bid.Trader, e.MarketID)
	askEntry := e.Ledger.Entry(ask.Trader, e.MarketID)
	if err := bidEntry.ConsumeQuoteLocked(quoteAmount); err != nil {
		return Fill{}, err
	}
	if err := bidEntry.ConsumeQuoteAvailable(bidFee); err != nil {
		return Fill{}, err
	}
	if err := askEntry.ConsumeBaseLocked(fillSize); err != nil {
		return Fill{}, err
	}
	if err := bidEntry.DepositBase(fillSize); err != nil {
		return Fill{}, err
	}
	if err := askEntry.DepositQuote(quoteAmount - askFee); err != nil {
		return Fill{}, err
	}
	e.protocolFeesAccrued += bidFee + askFee

	result := Fill{
		FillID:      fillID,
		BidOrderID:  bid.OrderID,
		AskOrderID:  ask.OrderID,
		BidTrader:   bid.Trader,
		AskTrader:   ask.Trader,
		Price:       matchPrice,
		Size:        fillSize,
		QuoteAmount: quoteAmount,
		MakerFee:    makerFee,
		TakerFee:    takerFee,
		Timestamp:   src.Timestamp,
	}
	bidOrderID, askOrderID := bid.OrderID, ask.OrderID

	bid.RemainingSize -= fillSize
	ask.RemainingSize -= fillSize
	if bid.RemainingSize == 0 {
		bidEntry.OpenOrderCount--
		e.Book.Remove(bidSlot)
		delete(e.orderIndex, bidOrderID)
	}
	if ask.RemainingSize == 0 {
		askEntry.OpenOrderCount--
		e.Book.Remove(askSlot)
		delete(e.orderIndex, askOrderID)
	}

	return result, nil
}

// floorBps computes floor(amount*bps/10000), fixing the fee rounding
// direction per spec §9(c) without losing precision for large amounts.
// bps is bounded to [0,1000] by market-controller validation, so the
// 128-bit product's high word (always below bps) never reaches the 10000
// divisor in practice; for a corrupt bps the check returns a zero fee
// instead of letting bits.Div64 panic.
func floorBps(amount, bps uint64) uint64 {
	hi, lo := bits.Mul64(amount, bps)
	if hi >= 10000 {
		return 0
	}
	q, _ := bits.Div64(hi, lo, 10000)
	return q
}
