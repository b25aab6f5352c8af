package xerrors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorGroupsDoNotOverlap(t *testing.T) {
	codes := []Code{
		MarketAlreadyExists, InvalidMarketParams, MarketPaused,
		InvalidOrderParams, PriceNotOnTick, OrderSizeTooSmall, OrderSizeTooLarge, InvalidTimeInForce, OrderNotFound, OrderAlreadyFilled,
		OrderbookFull, OrderbookEmpty, InvalidOrderbookState,
		InsufficientLiquidity, PostOnlyWouldCross, SelfTradePrevention,
		SettlementAlreadyConsumed,
		InsufficientFunds, InvalidAccountState, InvalidMint,
		Unauthorized, MarketCreationNotAllowed,
		MathOverflow, MathUnderflow, DivisionByZero,
		InvalidGeneralState,
	}
	seen := make(map[Code]bool, len(codes))
	for _, c := range codes {
		assert.False(t, seen[c], "duplicate error code 0x%x", c)
		seen[c] = true
	}
}

func TestConvenienceConstructorsSetKind(t *testing.T) {
	assert.Equal(t, Validation, Validationf(InvalidOrderParams, "x").Kind)
	assert.Equal(t, State, Statef(MarketPaused, "x").Kind)
	assert.Equal(t, Authorization, Authf(Unauthorized, "x").Kind)
	assert.Equal(t, Invariant, Invariantf(MathOverflow, "x").Kind)
}

func TestErrorMessageIncludesCodeAndKind(t *testing.T) {
	err := Statef(OrderNotFound, "order %d missing", 7)
	msg := err.Error()
	assert.Contains(t, msg, "order 7 missing")
	assert.Contains(t, msg, "code=0x1105")
	assert.Contains(t, msg, "state")
}
