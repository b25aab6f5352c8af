// Command duskbookd wires up a Controller over one demo market and walks
// it through a short scripted sequence of orders, then idles supervising a
// periodic stats logger until signalled to stop. It is a demonstration
// harness, not a network service: transport is out of scope (§1).
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"duskbook/internal/book"
	"duskbook/internal/clock"
	"duskbook/internal/config"
	"duskbook/internal/ids"
	"duskbook/internal/market"
	"duskbook/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("loading config")
	}
	if lvl, perr := zerolog.ParseLevel(cfg.LogLevel); perr == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	gc := market.GlobalConfig{
		MakerFeeBps: cfg.DefaultMakerFee,
		TakerFeeBps: cfg.DefaultTakerFee,
		Authority:   ids.KeyFromBytes([]byte("protocol-authority")),
	}
	ctrl := market.New(gc, cfg.SlabCapacity, cfg.FillQueueDepth, m)

	marketID := ids.KeyFromBytes([]byte("duskbook/demo-market"))
	base := ids.KeyFromBytes([]byte("demo-base"))
	quote := ids.KeyFromBytes([]byte("demo-quote"))
	vaultBase := ids.KeyFromBytes([]byte("demo-base-vault"))
	vaultQuote := ids.KeyFromBytes([]byte("demo-quote-vault"))

	if _, xerr := ctrl.CreateMarket(marketID, base, quote, vaultBase, vaultQuote, gc.Authority, cfg.DefaultTickSize, cfg.DefaultLotSize); xerr != nil {
		log.Fatal().Err(xerr).Msg("creating demo market")
	}

	clk := &clock.SystemClock{}
	alice := ids.KeyFromBytes([]byte("alice"))
	bob := ids.KeyFromBytes([]byte("bob"))

	fund := func(trader ids.Key32, baseAmt, quoteAmt uint64) {
		if baseAmt > 0 {
			if _, xerr := ctrl.Deposit(marketID, trader, base, baseAmt); xerr != nil {
				log.Fatal().Err(xerr).Msg("deposit base")
			}
		}
		if quoteAmt > 0 {
			if _, xerr := ctrl.Deposit(marketID, trader, quote, quoteAmt); xerr != nil {
				log.Fatal().Err(xerr).Msg("deposit quote")
			}
		}
	}
	fund(alice, 0, 1_000_000_000)
	fund(bob, 1_000_000_000, 0)

	runScenarios(ctrl, clk, marketID, alice, bob)

	var t tomb.Tomb
	t.Go(func() error {
		return statsLoop(&t, ctrl, marketID, 10*time.Second)
	})

	<-ctx.Done()
	t.Kill(nil)
	if err := t.Wait(); err != nil {
		log.Error().Err(err).Msg("stats loop exited with error")
	}
}

// runScenarios places a small scripted sequence of orders that exercises
// resting, crossing, post-only rejection, IOC, and batch matching,
// logging each step's outcome. FOK and self-trade prevention are not
// exercised here.
func runScenarios(ctrl *market.Controller, clk *clock.SystemClock, marketID, alice, bob ids.Key32) {
	place := func(who string, trader ids.Key32, side book.Side, price, size uint64, tif book.TIF) {
		orderID, fills, xerr := ctrl.PlaceOrder(clk.Now(), marketID, trader, side, price, size, tif)
		if xerr != nil {
			log.Warn().Str("who", who).Err(xerr).Msg("order rejected")
			return
		}
		log.Info().Str("who", who).Str("order_id", orderID.String()).Int("fills", len(fills)).Msg("order placed")
	}

	// Bob rests an ask; Alice crosses it with a larger marketable GTC
	// bid, whose unfilled remainder rests.
	place("bob", bob, book.SideAsk, 100_00, 1000, book.TIFGTC)
	place("alice", alice, book.SideBid, 100_00, 2000, book.TIFGTC)

	// Bob posts a passive ask that would cross; PostOnly rejects it.
	place("bob-postonly", bob, book.SideAsk, 99_00, 1000, book.TIFPostOnly)

	// Alice sends an IOC bid with no resting liquidity to hit; it
	// vanishes without resting.
	place("alice-ioc", alice, book.SideBid, 98_00, 1000, book.TIFIOC)

	if fills, xerr := ctrl.MatchOrders(clk.Now(), marketID, 16); xerr != nil {
		log.Warn().Err(xerr).Msg("match_orders failed")
	} else {
		log.Info().Int("fills", len(fills)).Msg("match_orders drained crossing book")
	}

	batchID, drained := ctrl.DrainFills(100)
	for _, f := range drained {
		log.Info().Str("batch_id", batchID).Str("fill_id", f.FillID.String()).Uint64("price", f.Price).Uint64("size", f.Size).Msg("fill settled")
	}
}

func statsLoop(t *tomb.Tomb, ctrl *market.Controller, marketID ids.Key32, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.Dying():
			return nil
		case <-ticker.C:
			meta, bestBid, bestAsk, orderCount, xerr := ctrl.MarketSnapshot(marketID)
			if xerr != nil {
				log.Error().Err(xerr).Msg("snapshot failed")
				continue
			}
			log.Info().
				Uint64("best_bid", bestBid).
				Uint64("best_ask", bestAsk).
				Uint64("order_count", orderCount).
				Str("total_volume", meta.TotalVolume.String()).
				Uint64("protocol_fees_accrued", meta.ProtocolFeesAccrued).
				Msg("market stats")
		}
	}
}
