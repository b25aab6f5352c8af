// Package xerrors implements the typed, kind-classified error taxonomy the
// matching engine reports through: validation errors a caller can retry
// differently, state errors that reflect infeasibility right now,
// authorization errors, and invariant errors that indicate corruption and
// should abort the enclosing transaction.
package xerrors

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// Kind classifies an Error for callers that want to branch without string
// matching.
type Kind int

const (
	Validation Kind = iota
	State
	Authorization
	Invariant
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case State:
		return "state"
	case Authorization:
		return "authorization"
	case Invariant:
		return "invariant"
	default:
		return "unknown"
	}
}

// Code is the numeric error code, grouped by 0x100 ranges per family.
type Code uint32

const (
	groupMarket    Code = 0x1000
	groupOrder     Code = 0x1100
	groupBook      Code = 0x1200
	groupMatching  Code = 0x1300
	groupSettle    Code = 0x1400
	groupAccount   Code = 0x1500
	groupAuthority Code = 0x1600
	groupMath      Code = 0x1700
	groupOracle    Code = 0x1800
	groupGeneral   Code = 0x1900
)

// Named codes, grouped per §6 of the spec this package implements. Each
// group resets its own iota so the numeric codes stay within their 0x100
// range regardless of how many names precede them.
const (
	MarketAlreadyExists Code = groupMarket + iota
	InvalidMarketParams
	MarketPaused
)

const (
	InvalidOrderParams Code = groupOrder + iota
	PriceNotOnTick
	OrderSizeTooSmall
	OrderSizeTooLarge
	InvalidTimeInForce
	OrderNotFound
	OrderAlreadyFilled
)

const (
	OrderbookFull Code = groupBook + iota
	OrderbookEmpty
	InvalidOrderbookState
)

const (
	InsufficientLiquidity Code = groupMatching + iota
	PostOnlyWouldCross
	SelfTradePrevention
)

const (
	SettlementAlreadyConsumed Code = groupSettle + iota
)

const (
	InsufficientFunds Code = groupAccount + iota
	InvalidAccountState
	InvalidMint
)

const (
	Unauthorized Code = groupAuthority + iota
	MarketCreationNotAllowed
)

const (
	MathOverflow Code = groupMath + iota
	MathUnderflow
	DivisionByZero
)

// groupOracle (0x1800) is reserved and unused: oracle integration is an
// external collaborator, out of scope for this module.

const (
	InvalidGeneralState Code = groupGeneral + iota
)

// Error is the typed error every duskbook operation returns on failure.
type Error struct {
	Code Code
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (code=0x%x): %s", e.Kind, e.Code, e.Msg)
}

// New builds an Error and, for Invariant-kind errors, logs it immediately
// at Error level with a caller marker. Invariant violations indicate
// corruption the host should treat as fatal for the affected market and
// must never pass silently.
func New(kind Kind, code Code, msg string) *Error {
	e := &Error{Code: code, Kind: kind, Msg: msg}
	if kind == Invariant {
		log.Error().Caller(1).Str("code", fmt.Sprintf("0x%x", code)).Msg(e.Msg)
	}
	return e
}

func Validationf(code Code, format string, args ...any) *Error {
	return New(Validation, code, fmt.Sprintf(format, args...))
}

func Statef(code Code, format string, args ...any) *Error {
	return New(State, code, fmt.Sprintf(format, args...))
}

func Authf(code Code, format string, args ...any) *Error {
	return New(Authorization, code, fmt.Sprintf(format, args...))
}

func Invariantf(code Code, format string, args ...any) *Error {
	return New(Invariant, code, fmt.Sprintf(format, args...))
}
