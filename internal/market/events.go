package market

import "duskbook/internal/ids"

// The event shapes below are the minimum field sets required for
// off-chain indexing per §6; duskbook does not transport them anywhere
// (event transport is out of scope, §1). Controller methods return some of
// them (MarketCreated, OrderCancelled, Deposit, Withdraw,
// MarketParamsUpdated, MarketPauseUpdated) and log none of them;
// OrderPlaced, OrderMatched and FillSettled are not produced by any
// Controller call. A host wires its own transport on top.

type MarketCreatedEvent struct {
	MarketID ids.Key32
}

type OrderPlacedEvent struct {
	MarketID ids.Key32
	OrderID  ids.ID128
	Trader   ids.Key32
}

type OrderCancelledEvent struct {
	MarketID ids.Key32
	OrderID  ids.ID128
}

type OrderMatchedEvent struct {
	BidID      ids.ID128
	AskID      ids.ID128
	Price      uint64
	Size       uint64
	BidTrader  ids.Key32
	AskTrader  ids.Key32
	FillID     ids.ID128
	Timestamp  int64
}

type FillSettledEvent struct {
	FillID ids.ID128
}

type DepositEvent struct {
	MarketID ids.Key32
	Trader   ids.Key32
	Mint     ids.Key32
	Amount   uint64
}

type WithdrawEvent struct {
	MarketID ids.Key32
	Trader   ids.Key32
	Mint     ids.Key32
	Amount   uint64
}

type MarketParamsUpdatedEvent struct {
	MarketID ids.Key32
	TickSize uint64
	LotSize  uint64
}

type MarketPauseUpdatedEvent struct {
	MarketID ids.Key32
	Paused   bool
}
