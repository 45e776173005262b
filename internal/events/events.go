// Package events defines the decoded event envelope consumed by the indexer
// and the accessors used by handlers to read its named fields.
package events

import "perp-indexer/internal/ids"

// Event names routed by the dispatcher.
const (
	NameOraclePriceUpdate             = "OraclePriceUpdate"
	NameClaimableFundingUpdated       = "ClaimableFundingUpdated"
	NameOrderCreated                  = "OrderCreated"
	NameOrderCancelled                = "OrderCancelled"
	NameOrderExecuted                 = "OrderExecuted"
	NameFundingFeesClaimed            = "FundingFeesClaimed"
	NameCollateralClaimed             = "CollateralClaimed"
	NamePositionImpactPoolDistributed = "PositionImpactPoolDistributed"
)

// Event is one decoded log together with its block and transaction context.
// Events for a chain are processed in (BlockNumber, TxIndex, LogIndex) order.
type Event struct {
	Name           string `json:"name"`
	BlockNumber    uint64 `json:"blockNumber"`
	BlockTimestamp int64  `json:"blockTimestamp"`
	TxHash         string `json:"txHash"`
	TxIndex        uint64 `json:"txIndex"`
	LogIndex       uint64 `json:"logIndex"`
	From           string `json:"from"`
	To             string `json:"to,omitempty"`
	Data           Data   `json:"data"`
}

// ID returns the unique log id tx:logIndex.
func (e *Event) ID() string {
	return ids.Event(e.TxHash, e.LogIndex)
}

// Reader returns a fail-fast field reader over the event data.
func (e *Event) Reader() *Reader {
	return NewReader(e.Name, &e.Data)
}
