// Package market implements the public operation surface a host binds
// to: market lifecycle, tick/lot validation, fee computation, and the
// fill queue external settlement drains, per §4.4 of the spec this package
// implements.
//
// Grounded on the original Rust instruction handlers
// (create_market.rs, place_order.rs, cancel_order.rs, match_orders.rs,
// deposit.rs, withdraw.rs, pause_market.rs, update_market_params.rs,
// update_protocol_fees.rs), minus the SPL-token CPI calls those handlers
// make. Token movement is the external vault's job (spec §1).
package market

import "duskbook/internal/ids"

const (
	maxTickSize = 1_000_000_000
	maxLotSize  = 1_000_000_000_000
	maxOrderQty = 1_000_000_000_000
	maxFeeBps   = 1000
	maxIter     = 255
)

// Market is the per-market metadata record mirrored alongside the book.
type Market struct {
	ID         ids.Key32
	BaseAsset  ids.Key32
	QuoteAsset ids.Key32
	BaseVault  ids.Key32
	QuoteVault ids.Key32
	Authority  ids.Key32

	TickSize uint64
	LotSize  uint64
	Paused   bool

	TotalVolume         ids.ID128
	ProtocolFeesAccrued uint64
}

// GlobalConfig is the protocol-wide fee and permissioning configuration.
type GlobalConfig struct {
	MakerFeeBps           uint64
	TakerFeeBps           uint64
	FeeRecipient          ids.Key32
	Authority             ids.Key32
	PermissionlessMarkets bool
}
