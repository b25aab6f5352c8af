package engine

import "duskbook/internal/ids"

// Fill is the immutable record of one match, queued for external
// settlement. Created by the matching engine, consumed exactly once by
// settlement (see internal/market.FillQueue).
type Fill struct {
	FillID      ids.ID128
	BidOrderID  ids.ID128
	AskOrderID  ids.ID128
	BidTrader   ids.Key32
	AskTrader   ids.Key32
	Price       uint64
	Size        uint64
	QuoteAmount uint64
	MakerFee    uint64
	TakerFee    uint64
	Timestamp   int64
	Settled     bool
}
