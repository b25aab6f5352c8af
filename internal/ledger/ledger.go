// Package ledger implements the per-(trader,market) collateral ledger:
// available/locked balances with checked lock/unlock/deposit/withdraw
// arithmetic, per §4.2 of the spec this package implements.
package ledger

import (
	"math"
	"math/bits"

	"duskbook/internal/ids"
	"duskbook/internal/xerrors"
)

// Entry is one trader's collateral position in one market.
type Entry struct {
	BaseAvailable  uint64
	QuoteAvailable uint64
	BaseLocked     uint64
	QuoteLocked    uint64
	OpenOrderCount uint16
}

type key struct {
	trader ids.Key32
	market ids.Key32
}

// Ledger holds every trader's Entry, keyed by (trader, market).
type Ledger struct {
	entries map[key]*Entry
}

// New constructs an empty Ledger.
func New() *Ledger {
	return &Ledger{entries: make(map[key]*Entry)}
}

// Entry returns the trader's entry for market, creating a zeroed one if
// absent.
func (l *Ledger) Entry(trader, market ids.Key32) *Entry {
	k := key{trader, market}
	e, ok := l.entries[k]
	if !ok {
		e = &Entry{}
		l.entries[k] = e
	}
	return e
}

// Deposit credits base or quote available balance. amount must be nonzero;
// callers validate that at the market-controller boundary.
func (e *Entry) DepositBase(amount uint64) *xerrors.Error {
	sum, ok := addU64(e.BaseAvailable, amount)
	if !ok {
		return xerrors.Invariantf(xerrors.MathOverflow, "base_available overflow on deposit")
	}
	e.BaseAvailable = sum
	return nil
}

func (e *Entry) DepositQuote(amount uint64) *xerrors.Error {
	sum, ok := addU64(e.QuoteAvailable, amount)
	if !ok {
		return xerrors.Invariantf(xerrors.MathOverflow, "quote_available overflow on deposit")
	}
	e.QuoteAvailable = sum
	return nil
}

// WithdrawBase debits base available iff sufficient.
func (e *Entry) WithdrawBase(amount uint64) *xerrors.Error {
	if e.BaseAvailable < amount {
		return xerrors.Statef(xerrors.InsufficientFunds, "base_available %d < withdraw %d", e.BaseAvailable, amount)
	}
	e.BaseAvailable -= amount
	return nil
}

func (e *Entry) WithdrawQuote(amount uint64) *xerrors.Error {
	if e.QuoteAvailable < amount {
		return xerrors.Statef(xerrors.InsufficientFunds, "quote_available %d < withdraw %d", e.QuoteAvailable, amount)
	}
	e.QuoteAvailable -= amount
	return nil
}

// LockBase moves n from base_available to base_locked.
func (e *Entry) LockBase(n uint64) *xerrors.Error {
	if e.BaseAvailable < n {
		return xerrors.Statef(xerrors.InsufficientFunds, "base_available %d < lock %d", e.BaseAvailable, n)
	}
	sum, ok := addU64(e.BaseLocked, n)
	if !ok {
		return xerrors.Invariantf(xerrors.MathOverflow, "base_locked overflow")
	}
	e.BaseAvailable -= n
	e.BaseLocked = sum
	return nil
}

// LockQuote moves n from quote_available to quote_locked.
func (e *Entry) LockQuote(n uint64) *xerrors.Error {
	if e.QuoteAvailable < n {
		return xerrors.Statef(xerrors.InsufficientFunds, "quote_available %d < lock %d", e.QuoteAvailable, n)
	}
	sum, ok := addU64(e.QuoteLocked, n)
	if !ok {
		return xerrors.Invariantf(xerrors.MathOverflow, "quote_locked overflow")
	}
	e.QuoteAvailable -= n
	e.QuoteLocked = sum
	return nil
}

// UnlockBase moves n from base_locked back to base_available.
func (e *Entry) UnlockBase(n uint64) *xerrors.Error {
	if e.BaseLocked < n {
		return xerrors.Invariantf(xerrors.MathUnderflow, "base_locked %d < unlock %d", e.BaseLocked, n)
	}
	sum, ok := addU64(e.BaseAvailable, n)
	if !ok {
		return xerrors.Invariantf(xerrors.MathOverflow, "base_available overflow on unlock")
	}
	e.BaseLocked -= n
	e.BaseAvailable = sum
	return nil
}

// UnlockQuote moves n from quote_locked back to quote_available.
func (e *Entry) UnlockQuote(n uint64) *xerrors.Error {
	if e.QuoteLocked < n {
		return xerrors.Invariantf(xerrors.MathUnderflow, "quote_locked %d < unlock %d", e.QuoteLocked, n)
	}
	sum, ok := addU64(e.QuoteAvailable, n)
	if !ok {
		return xerrors.Invariantf(xerrors.MathOverflow, "quote_available overflow on unlock")
	}
	e.QuoteLocked -= n
	e.QuoteAvailable = sum
	return nil
}

// ConsumeBaseLocked removes n directly from base_locked on a fill (the
// counterparty's available balance is credited separately by the caller).
func (e *Entry) ConsumeBaseLocked(n uint64) *xerrors.Error {
	if e.BaseLocked < n {
		return xerrors.Invariantf(xerrors.MathUnderflow, "base_locked %d < consume %d", e.BaseLocked, n)
	}
	e.BaseLocked -= n
	return nil
}

// ConsumeQuoteLocked removes n directly from quote_locked on a fill.
func (e *Entry) ConsumeQuoteLocked(n uint64) *xerrors.Error {
	if e.QuoteLocked < n {
		return xerrors.Invariantf(xerrors.MathUnderflow, "quote_locked %d < consume %d", e.QuoteLocked, n)
	}
	e.QuoteLocked -= n
	return nil
}

// ConsumeQuoteAvailable removes n directly from quote_available to pay a
// bid's fee on a fill; the notional itself is removed separately via
// ConsumeQuoteLocked, since only the notional was ever reserved at lock
// time.
func (e *Entry) ConsumeQuoteAvailable(n uint64) *xerrors.Error {
	if e.QuoteAvailable < n {
		return xerrors.Invariantf(xerrors.MathUnderflow, "quote_available %d < consume %d", e.QuoteAvailable, n)
	}
	e.QuoteAvailable -= n
	return nil
}

// TotalBase returns available+locked, saturating rather than overflowing.
// It is a read-only diagnostic accessor, not used on any mutating path.
func (e *Entry) TotalBase() uint64 {
	if sum, ok := addU64(e.BaseAvailable, e.BaseLocked); ok {
		return sum
	}
	return math.MaxUint64
}

// TotalQuote returns available+locked, saturating rather than overflowing.
func (e *Entry) TotalQuote() uint64 {
	if sum, ok := addU64(e.QuoteAvailable, e.QuoteLocked); ok {
		return sum
	}
	return math.MaxUint64
}

func addU64(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum >= a
}

// LockedQuoteForBid computes floor(price*size/lotSize), the collateral
// formula used consistently at place, cancel, and settlement per §4.4.
func LockedQuoteForBid(price, size, lotSize uint64) (uint64, *xerrors.Error) {
	if lotSize == 0 {
		return 0, xerrors.Invariantf(xerrors.DivisionByZero, "lot_size is zero")
	}
	// math/bits' 64x64->128 multiply and 128/64->64 divide give an exact
	// floor(price*size/lot) without losing precision for large
	// price*size products, per the spec's "exact integer arithmetic with
	// no precision loss" requirement (§1).
	hi, lo := bits.Mul64(price, size)
	if hi >= lotSize {
		return 0, xerrors.Invariantf(xerrors.MathOverflow, "price*size overflow computing locked quote")
	}
	q, _ := bits.Div64(hi, lo, lotSize)
	return q, nil
}
