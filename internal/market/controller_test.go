package market

import (
	"testing"

	"duskbook/internal/book"
	"duskbook/internal/clock"
	"duskbook/internal/ids"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key32(s string) ids.Key32 { return ids.KeyFromBytes([]byte(s)) }

func newTestController(t *testing.T) (*Controller, ids.Key32) {
	t.Helper()
	gc := GlobalConfig{MakerFeeBps: 10, TakerFeeBps: 10, Authority: key32("authority")}
	ctrl := New(gc, 64, 256, nil)
	mkt := key32("market")
	base, quote := key32("base"), key32("quote")
	_, err := ctrl.CreateMarket(mkt, base, quote, key32("vault-base"), key32("vault-quote"), key32("authority"), 100, 1000)
	require.Nil(t, err)
	return ctrl, mkt
}

func deposit(t *testing.T, ctrl *Controller, mkt ids.Key32, trader ids.Key32, mint ids.Key32, amount uint64) {
	t.Helper()
	_, err := ctrl.Deposit(mkt, trader, mint, amount)
	require.Nil(t, err)
}

// Scenario 1: simple cross, tick=100, lot=1000, fees=10bps.
func TestScenarioSimpleCross(t *testing.T) {
	ctrl, mkt := newTestController(t)
	base, quote := key32("base"), key32("quote")
	t1, t2 := key32("t1"), key32("t2")

	deposit(t, ctrl, mkt, t1, quote, 1_000_000)
	deposit(t, ctrl, mkt, t2, base, 10_000)

	_, _, err := ctrl.PlaceOrder(clock.Source{Timestamp: 1}, mkt, t1, book.SideBid, 10_000, 5_000, book.TIFGTC)
	require.Nil(t, err)

	_, fills, err := ctrl.PlaceOrder(clock.Source{Timestamp: 2}, mkt, t2, book.SideAsk, 10_000, 5_000, book.TIFGTC)
	require.Nil(t, err)
	require.Len(t, fills, 1)

	f := fills[0]
	assert.EqualValues(t, 10_000, f.Price)
	assert.EqualValues(t, 5_000, f.Size)
	assert.EqualValues(t, 50_000, f.QuoteAmount)
	assert.EqualValues(t, 50, f.MakerFee)
	assert.EqualValues(t, 50, f.TakerFee)
	assert.True(t, f.BidTrader == t1 && f.AskTrader == t2)

	_, bestBid, bestAsk, orderCount, err := ctrl.MarketSnapshot(mkt)
	require.Nil(t, err)
	assert.EqualValues(t, 0, bestBid)
	assert.EqualValues(t, 0, bestAsk)
	assert.EqualValues(t, 0, orderCount)
}

// Scenario 2: partial fill leaves the bid resting with a reduced size.
func TestScenarioPartialFill(t *testing.T) {
	ctrl, mkt := newTestController(t)
	base, quote := key32("base"), key32("quote")
	t1, t3 := key32("t1"), key32("t3")

	deposit(t, ctrl, mkt, t1, quote, 1_000_000)
	deposit(t, ctrl, mkt, t3, base, 10_000)

	_, _, err := ctrl.PlaceOrder(clock.Source{Timestamp: 1}, mkt, t1, book.SideBid, 10_000, 5_000, book.TIFGTC)
	require.Nil(t, err)

	_, fills, err := ctrl.PlaceOrder(clock.Source{Timestamp: 2}, mkt, t3, book.SideAsk, 10_000, 3_000, book.TIFGTC)
	require.Nil(t, err)
	require.Len(t, fills, 1)
	assert.EqualValues(t, 3_000, fills[0].Size)

	_, bestBid, bestAsk, _, err := ctrl.MarketSnapshot(mkt)
	require.Nil(t, err)
	assert.EqualValues(t, 10_000, bestBid)
	assert.EqualValues(t, 0, bestAsk)
}

// Scenario 3: PostOnly bid that would cross is rejected unchanged.
func TestScenarioPostOnlyRejection(t *testing.T) {
	ctrl, mkt := newTestController(t)
	base, quote := key32("base"), key32("quote")
	t2, t4 := key32("t2"), key32("t4")

	deposit(t, ctrl, mkt, t2, base, 10_000)
	deposit(t, ctrl, mkt, t4, quote, 1_000_000)

	_, _, err := ctrl.PlaceOrder(clock.Source{Timestamp: 1}, mkt, t2, book.SideAsk, 10_100, 1_000, book.TIFGTC)
	require.Nil(t, err)

	before := ctrl.LedgerEntry(t4, mkt).QuoteAvailable
	_, _, err = ctrl.PlaceOrder(clock.Source{Timestamp: 2}, mkt, t4, book.SideBid, 10_200, 1_000, book.TIFPostOnly)
	require.NotNil(t, err)
	assert.Equal(t, before, ctrl.LedgerEntry(t4, mkt).QuoteAvailable)
}

// Scenario 4: FOK rejected for insufficient resting liquidity, no state change.
func TestScenarioFOKInsufficientLiquidity(t *testing.T) {
	ctrl, mkt := newTestController(t)
	base, quote := key32("base"), key32("quote")
	t2, t5 := key32("t2"), key32("t5")

	deposit(t, ctrl, mkt, t2, base, 10_000)
	deposit(t, ctrl, mkt, t5, quote, 1_000_000)

	_, _, err := ctrl.PlaceOrder(clock.Source{Timestamp: 1}, mkt, t2, book.SideAsk, 10_100, 2_000, book.TIFGTC)
	require.Nil(t, err)

	before := ctrl.LedgerEntry(t5, mkt).QuoteAvailable
	_, _, err = ctrl.PlaceOrder(clock.Source{Timestamp: 2}, mkt, t5, book.SideBid, 10_100, 5_000, book.TIFFOK)
	require.NotNil(t, err)
	assert.Equal(t, before, ctrl.LedgerEntry(t5, mkt).QuoteAvailable)
}

// Scenario 5: IOC partial fill discards the unfilled remainder.
func TestScenarioIOCPartialDiscard(t *testing.T) {
	ctrl, mkt := newTestController(t)
	base, quote := key32("base"), key32("quote")
	t2, t3, t6 := key32("t2"), key32("t3"), key32("t6")

	deposit(t, ctrl, mkt, t2, base, 10_000)
	deposit(t, ctrl, mkt, t3, base, 10_000)
	deposit(t, ctrl, mkt, t6, quote, 1_000_000)

	_, _, err := ctrl.PlaceOrder(clock.Source{Timestamp: 1}, mkt, t2, book.SideAsk, 10_000, 2_000, book.TIFGTC)
	require.Nil(t, err)
	_, _, err = ctrl.PlaceOrder(clock.Source{Timestamp: 2}, mkt, t3, book.SideAsk, 10_100, 3_000, book.TIFGTC)
	require.Nil(t, err)

	_, fills, err := ctrl.PlaceOrder(clock.Source{Timestamp: 3}, mkt, t6, book.SideBid, 10_000, 5_000, book.TIFIOC)
	require.Nil(t, err)
	require.Len(t, fills, 1)
	assert.EqualValues(t, 2_000, fills[0].Size)

	entry := ctrl.LedgerEntry(t6, mkt)
	assert.EqualValues(t, 0, entry.QuoteLocked)
	assert.EqualValues(t, 0, entry.OpenOrderCount)
}

// Scenario 6: self-trade prevention leaves the resting bid untouched and
// emits no fill.
func TestScenarioSelfTradePrevention(t *testing.T) {
	ctrl, mkt := newTestController(t)
	base, quote := key32("base"), key32("quote")
	t7 := key32("t7")

	deposit(t, ctrl, mkt, t7, quote, 1_000_000)
	deposit(t, ctrl, mkt, t7, base, 10_000)

	_, _, err := ctrl.PlaceOrder(clock.Source{Timestamp: 1}, mkt, t7, book.SideBid, 10_000, 1_000, book.TIFGTC)
	require.Nil(t, err)

	_, fills, err := ctrl.PlaceOrder(clock.Source{Timestamp: 2}, mkt, t7, book.SideAsk, 10_000, 1_000, book.TIFGTC)
	require.Nil(t, err)
	assert.Empty(t, fills)

	_, bestBid, _, orderCount, err := ctrl.MarketSnapshot(mkt)
	require.Nil(t, err)
	assert.EqualValues(t, 10_000, bestBid)
	assert.EqualValues(t, 1, orderCount)
}

func TestCreateMarketRejectsDuplicateAndBadParams(t *testing.T) {
	gc := GlobalConfig{MakerFeeBps: 10, TakerFeeBps: 10, Authority: key32("authority")}
	ctrl := New(gc, 64, 256, nil)
	mkt := key32("market")
	_, err := ctrl.CreateMarket(mkt, key32("base"), key32("quote"), key32("vb"), key32("vq"), key32("authority"), 100, 1000)
	require.Nil(t, err)

	_, err = ctrl.CreateMarket(mkt, key32("base"), key32("quote"), key32("vb"), key32("vq"), key32("authority"), 100, 1000)
	require.NotNil(t, err)

	_, err = ctrl.CreateMarket(key32("m2"), key32("base"), key32("quote"), key32("vb"), key32("vq"), key32("authority"), 0, 1000)
	require.NotNil(t, err)
}

func TestPlaceOrderRejectsOffTickPriceWithoutLocking(t *testing.T) {
	ctrl, mkt := newTestController(t)
	quote := key32("quote")
	trader := key32("trader")
	deposit(t, ctrl, mkt, trader, quote, 1_000_000)

	before := ctrl.LedgerEntry(trader, mkt).QuoteAvailable
	_, _, err := ctrl.PlaceOrder(clock.Source{Timestamp: 1}, mkt, trader, book.SideBid, 10_050, 1_000, book.TIFGTC)
	require.NotNil(t, err)
	assert.Equal(t, before, ctrl.LedgerEntry(trader, mkt).QuoteAvailable)
}

// PlaceOrder's engine-level rejection path (here, PostOnly crossing) must
// unwind the collateral lock taken before the engine call, not just the
// up-front validation failures that never lock anything.
func TestPlaceOrderUnwindsLockOnEngineRejection(t *testing.T) {
	ctrl, mkt := newTestController(t)
	base, quote := key32("base"), key32("quote")
	resting := key32("resting")
	trader := key32("trader")
	deposit(t, ctrl, mkt, resting, base, 10_000)
	deposit(t, ctrl, mkt, trader, quote, 1_000_000)

	_, _, err := ctrl.PlaceOrder(clock.Source{Timestamp: 1}, mkt, resting, book.SideAsk, 10_000, 1_000, book.TIFGTC)
	require.Nil(t, err)

	before := ctrl.LedgerEntry(trader, mkt).QuoteAvailable
	_, _, err = ctrl.PlaceOrder(clock.Source{Timestamp: 2}, mkt, trader, book.SideBid, 10_000, 1_000, book.TIFPostOnly)
	require.NotNil(t, err)
	assert.Equal(t, before, ctrl.LedgerEntry(trader, mkt).QuoteAvailable, "a rejected order must never leave a residual lock")
}

func TestPauseMarketBlocksNewOrders(t *testing.T) {
	ctrl, mkt := newTestController(t)
	quote := key32("quote")
	trader := key32("trader")
	deposit(t, ctrl, mkt, trader, quote, 1_000_000)

	_, err := ctrl.PauseMarket(key32("authority"), mkt, true)
	require.Nil(t, err)

	_, _, err = ctrl.PlaceOrder(clock.Source{Timestamp: 1}, mkt, trader, book.SideBid, 10_000, 1_000, book.TIFGTC)
	require.NotNil(t, err)
}

func TestPauseMarketRequiresAuthority(t *testing.T) {
	ctrl, mkt := newTestController(t)
	_, err := ctrl.PauseMarket(key32("impostor"), mkt, true)
	require.NotNil(t, err)
}

func TestWithdrawRequiresSufficientAvailable(t *testing.T) {
	ctrl, mkt := newTestController(t)
	quote := key32("quote")
	trader := key32("trader")
	deposit(t, ctrl, mkt, trader, quote, 100)

	_, err := ctrl.Withdraw(mkt, trader, quote, 50)
	require.Nil(t, err)
	assert.EqualValues(t, 50, ctrl.LedgerEntry(trader, mkt).QuoteAvailable)

	_, err = ctrl.Withdraw(mkt, trader, quote, 1000)
	require.NotNil(t, err)
}
