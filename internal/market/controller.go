package market

import (
	"duskbook/internal/book"
	"duskbook/internal/clock"
	"duskbook/internal/engine"
	"duskbook/internal/ids"
	"duskbook/internal/ledger"
	"duskbook/internal/metrics"
	"duskbook/internal/xerrors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type marketState struct {
	meta   Market
	book   *book.Book
	engine *engine.Engine
}

// Controller is the public operation surface: create/place/cancel/match,
// deposit/withdraw, pause, and parameter/fee updates, across every market
// it owns. A Controller is not safe for concurrent use: all of its markets
// share one ledger and one fill queue, so the caller must serialize every
// call on a Controller, not only the calls that touch the same market.
type Controller struct {
	Config GlobalConfig

	ledger       *ledger.Ledger
	markets      map[ids.Key32]*marketState
	fillQueue    *FillQueue
	slabCapacity int
	metrics      *metrics.Metrics
}

// New constructs a Controller. metrics may be nil to disable
// instrumentation (e.g. in unit tests that don't want a Prometheus
// registry).
func New(cfg GlobalConfig, slabCapacity, fillQueueDepth int, m *metrics.Metrics) *Controller {
	return &Controller{
		Config:       cfg,
		ledger:       ledger.New(),
		markets:      make(map[ids.Key32]*marketState),
		fillQueue:    NewFillQueue(fillQueueDepth),
		slabCapacity: slabCapacity,
		metrics:      m,
	}
}

func (c *Controller) market(id ids.Key32) (*marketState, *xerrors.Error) {
	m, ok := c.markets[id]
	if !ok {
		return nil, xerrors.Statef(xerrors.OrderNotFound, "market %s does not exist", id)
	}
	return m, nil
}

// CreateMarket registers a new market, idempotent per id.
func (c *Controller) CreateMarket(id, base, quote, baseVault, quoteVault, authority ids.Key32, tick, lot uint64) (*MarketCreatedEvent, *xerrors.Error) {
	if _, exists := c.markets[id]; exists {
		return nil, xerrors.Statef(xerrors.MarketAlreadyExists, "market %s already exists", id)
	}
	if tick == 0 || tick > maxTickSize {
		return nil, xerrors.Validationf(xerrors.InvalidMarketParams, "tick_size %d out of (0,%d]", tick, maxTickSize)
	}
	if lot == 0 || lot > maxLotSize {
		return nil, xerrors.Validationf(xerrors.InvalidMarketParams, "lot_size %d out of (0,%d]", lot, maxLotSize)
	}

	meta := Market{
		ID: id, BaseAsset: base, QuoteAsset: quote,
		BaseVault: baseVault, QuoteVault: quoteVault, Authority: authority,
		TickSize: tick, LotSize: lot,
	}
	eng := engine.New(id, book.NewBook(id, c.slabCapacity), c.ledger, engine.Params{
		TickSize: tick, LotSize: lot,
		MakerFeeBps: c.Config.MakerFeeBps, TakerFeeBps: c.Config.TakerFeeBps,
	})
	c.markets[id] = &marketState{meta: meta, book: eng.Book, engine: eng}

	log.Info().Str("market", id.String()).Uint64("tick", tick).Uint64("lot", lot).Msg("market created")
	return &MarketCreatedEvent{MarketID: id}, nil
}

func requireAuthority(caller ids.Key32, allowed ...ids.Key32) *xerrors.Error {
	for _, a := range allowed {
		if caller == a {
			return nil
		}
	}
	return xerrors.Authf(xerrors.Unauthorized, "caller %s is not an authorized authority", caller)
}

func validateOrderParams(ms *marketState, price, size uint64) *xerrors.Error {
	if price == 0 || price%ms.meta.TickSize != 0 {
		return xerrors.Validationf(xerrors.PriceNotOnTick, "price %d not a multiple of tick_size %d", price, ms.meta.TickSize)
	}
	if size < ms.meta.LotSize || size%ms.meta.LotSize != 0 {
		return xerrors.Validationf(xerrors.OrderSizeTooSmall, "size %d must be a multiple of lot_size %d, >= lot_size", size, ms.meta.LotSize)
	}
	if size > maxOrderQty {
		return xerrors.Validationf(xerrors.OrderSizeTooLarge, "size %d exceeds %d", size, maxOrderQty)
	}
	return nil
}

// PlaceOrder locks collateral, then matches/rests the order. Any failure
// after the lock unwinds it before returning, so no partial state is
// ever visible to the caller (§4.5).
func (c *Controller) PlaceOrder(src clock.Source, marketID, trader ids.Key32, side book.Side, price, size uint64, tif book.TIF) (ids.ID128, []engine.Fill, *xerrors.Error) {
	ms, err := c.market(marketID)
	if err != nil {
		return ids.ID128{}, nil, err
	}
	if ms.meta.Paused {
		return ids.ID128{}, nil, xerrors.Statef(xerrors.MarketPaused, "market %s is paused", marketID)
	}
	if err := validateOrderParams(ms, price, size); err != nil {
		return ids.ID128{}, nil, err
	}

	entry := c.ledger.Entry(trader, marketID)
	var lockedQuote, lockedBase uint64
	if side == book.SideBid {
		lockedQuote, err = ledger.LockedQuoteForBid(price, size, ms.meta.LotSize)
		if err != nil {
			return ids.ID128{}, nil, err
		}
		if err := entry.LockQuote(lockedQuote); err != nil {
			return ids.ID128{}, nil, err
		}
	} else {
		lockedBase = size
		if err := entry.LockBase(lockedBase); err != nil {
			return ids.ID128{}, nil, err
		}
	}

	orderID, restingSlot, fills, perr := ms.engine.PlaceOrder(src, engine.NewOrder{
		Trader: trader, Side: side, Price: price, Size: size, TIF: tif,
	})
	if perr != nil {
		// Unwind the lock: nothing else mutated yet on this path.
		if side == book.SideBid {
			_ = entry.UnlockQuote(lockedQuote)
		} else {
			_ = entry.UnlockBase(lockedBase)
		}
		if c.metrics != nil && perr.Code == xerrors.OrderbookFull {
			c.metrics.OrderbookFull.WithLabelValues(marketID.String()).Inc()
		}
		return ids.ID128{}, nil, perr
	}

	if restingSlot != 0 {
		entry.OpenOrderCount++
	}
	for _, f := range fills {
		if sum, overflow := ids.Add(ms.meta.TotalVolume, ids.FromUint64(f.QuoteAmount)); !overflow {
			ms.meta.TotalVolume = sum
		}
	}
	if len(fills) > 0 {
		if err := c.fillQueue.Enqueue(fills...); err != nil {
			return orderID, fills, err
		}
	}
	ms.meta.ProtocolFeesAccrued = ms.engine.ProtocolFeesAccrued()

	if c.metrics != nil {
		c.metrics.OrdersPlaced.WithLabelValues(marketID.String(), side.String()).Inc()
		c.metrics.FillsEmitted.WithLabelValues(marketID.String()).Add(float64(len(fills)))
	}
	return orderID, fills, nil
}

// CancelOrder unlocks a resting order's collateral and removes it.
func (c *Controller) CancelOrder(trader, marketID ids.Key32, orderID ids.ID128) (*OrderCancelledEvent, *xerrors.Error) {
	ms, err := c.market(marketID)
	if err != nil {
		return nil, err
	}
	slot, ok := ms.engine.SlotForOrder(orderID)
	if !ok {
		return nil, xerrors.Statef(xerrors.OrderNotFound, "order %s not found", orderID)
	}
	if err := ms.engine.CancelOrder(trader, slot); err != nil {
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.OrdersCancelled.WithLabelValues(marketID.String()).Inc()
	}
	return &OrderCancelledEvent{MarketID: marketID, OrderID: orderID}, nil
}

// MatchOrders runs a bounded batch of crossing matches for marketID.
func (c *Controller) MatchOrders(src clock.Source, marketID ids.Key32, maxIterations int) ([]engine.Fill, *xerrors.Error) {
	ms, err := c.market(marketID)
	if err != nil {
		return nil, err
	}
	if ms.meta.Paused {
		return nil, xerrors.Statef(xerrors.MarketPaused, "market %s is paused", marketID)
	}
	fills, merr := ms.engine.MatchOrders(src, maxIterations)
	if merr != nil {
		return fills, merr
	}
	for _, f := range fills {
		if sum, overflow := ids.Add(ms.meta.TotalVolume, ids.FromUint64(f.QuoteAmount)); !overflow {
			ms.meta.TotalVolume = sum
		}
	}
	if len(fills) > 0 {
		if err := c.fillQueue.Enqueue(fills...); err != nil {
			return fills, err
		}
	}
	ms.meta.ProtocolFeesAccrued = ms.engine.ProtocolFeesAccrued()
	if c.metrics != nil {
		c.metrics.MatchIterations.Observe(float64(len(fills)))
		c.metrics.FillsEmitted.WithLabelValues(marketID.String()).Add(float64(len(fills)))
	}
	return fills, nil
}

// Deposit credits a trader's available balance for mint (base or quote
// asset of marketID).
func (c *Controller) Deposit(marketID, trader, mint ids.Key32, amount uint64) (*DepositEvent, *xerrors.Error) {
	ms, err := c.market(marketID)
	if err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, xerrors.Validationf(xerrors.InvalidOrderParams, "deposit amount must be > 0")
	}
	entry := c.ledger.Entry(trader, marketID)
	switch mint {
	case ms.meta.BaseAsset:
		if err := entry.DepositBase(amount); err != nil {
			return nil, err
		}
	case ms.meta.QuoteAsset:
		if err := entry.DepositQuote(amount); err != nil {
			return nil, err
		}
	default:
		return nil, xerrors.Validationf(xerrors.InvalidMint, "mint %s is neither market asset", mint)
	}
	return &DepositEvent{MarketID: marketID, Trader: trader, Mint: mint, Amount: amount}, nil
}

// Withdraw debits a trader's available balance iff sufficient.
func (c *Controller) Withdraw(marketID, trader, mint ids.Key32, amount uint64) (*WithdrawEvent, *xerrors.Error) {
	ms, err := c.market(marketID)
	if err != nil {
		return nil, err
	}
	entry := c.ledger.Entry(trader, marketID)
	switch mint {
	case ms.meta.BaseAsset:
		if err := entry.WithdrawBase(amount); err != nil {
			return nil, err
		}
	case ms.meta.QuoteAsset:
		if err := entry.WithdrawQuote(amount); err != nil {
			return nil, err
		}
	default:
		return nil, xerrors.Validationf(xerrors.InvalidMint, "mint %s is neither market asset", mint)
	}
	return &WithdrawEvent{MarketID: marketID, Trader: trader, Mint: mint, Amount: amount}, nil
}

// PauseMarket toggles the paused flag; only the market or global
// authority may do so. Cancel remains allowed while paused.
func (c *Controller) PauseMarket(caller, marketID ids.Key32, paused bool) (*MarketPauseUpdatedEvent, *xerrors.Error) {
	ms, err := c.market(marketID)
	if err != nil {
		return nil, err
	}
	if err := requireAuthority(caller, ms.meta.Authority, c.Config.Authority); err != nil {
		return nil, err
	}
	ms.meta.Paused = paused
	return &MarketPauseUpdatedEvent{MarketID: marketID, Paused: paused}, nil
}

// UpdateMarketParams changes tick/lot for new orders; existing resting
// orders are grandfathered at their original tick/lot compliance.
func (c *Controller) UpdateMarketParams(caller, marketID ids.Key32, tick, lot *uint64) (*MarketParamsUpdatedEvent, *xerrors.Error) {
	ms, err := c.market(marketID)
	if err != nil {
		return nil, err
	}
	if err := requireAuthority(caller, ms.meta.Authority, c.Config.Authority); err != nil {
		return nil, err
	}
	if tick != nil {
		if *tick == 0 || *tick > maxTickSize {
			return nil, xerrors.Validationf(xerrors.InvalidMarketParams, "tick_size %d out of (0,%d]", *tick, maxTickSize)
		}
		ms.meta.TickSize = *tick
		ms.engine.Params.TickSize = *tick
	}
	if lot != nil {
		if *lot == 0 || *lot > maxLotSize {
			return nil, xerrors.Validationf(xerrors.InvalidMarketParams, "lot_size %d out of (0,%d]", *lot, maxLotSize)
		}
		ms.meta.LotSize = *lot
		ms.engine.Params.LotSize = *lot
	}
	return &MarketParamsUpdatedEvent{MarketID: marketID, TickSize: ms.meta.TickSize, LotSize: ms.meta.LotSize}, nil
}

// UpdateProtocolFees changes maker/taker fee bps for fills created after
// this call; only the global authority may do so.
func (c *Controller) UpdateProtocolFees(caller ids.Key32, maker, taker *uint64) *xerrors.Error {
	if err := requireAuthority(caller, c.Config.Authority); err != nil {
		return err
	}
	if maker != nil {
		if *maker > maxFeeBps {
			return xerrors.Validationf(xerrors.InvalidMarketParams, "maker_fee_bps %d exceeds %d", *maker, maxFeeBps)
		}
		c.Config.MakerFeeBps = *maker
	}
	if taker != nil {
		if *taker > maxFeeBps {
			return xerrors.Validationf(xerrors.InvalidMarketParams, "taker_fee_bps %d exceeds %d", *taker, maxFeeBps)
		}
		c.Config.TakerFeeBps = *taker
	}
	for _, ms := range c.markets {
		if maker != nil {
			ms.engine.Params.MakerFeeBps = *maker
		}
		if taker != nil {
			ms.engine.Params.TakerFeeBps = *taker
		}
	}
	return nil
}

// DrainFills hands up to n pending fills to external settlement, marking
// them settled exactly once. The returned batch ID is a fresh random
// correlation token for this drain call: external settlement can log or
// retry against it without colliding with any other drain, the same role
// the teacher's internal/net/messages.go gives a uuid to each outbound
// order report.
func (c *Controller) DrainFills(n int) (batchID string, fills []engine.Fill) {
	return uuid.New().String(), c.fillQueue.Drain(n)
}

// MarketSnapshot returns a copy of a market's current metadata, including
// the book-mirrored best_bid/best_ask/order_count per §3's invariant that
// these fields track the live book.
func (c *Controller) MarketSnapshot(marketID ids.Key32) (Market, uint64, uint64, uint64, *xerrors.Error) {
	ms, err := c.market(marketID)
	if err != nil {
		return Market{}, 0, 0, 0, err
	}
	return ms.meta, ms.book.BestBid(), ms.book.BestAsk(), ms.book.OrderCount(), nil
}

// LedgerEntry exposes a trader's collateral position for diagnostics and
// tests.
func (c *Controller) LedgerEntry(trader, marketID ids.Key32) *ledger.Entry {
	return c.ledger.Entry(trader, marketID)
}
