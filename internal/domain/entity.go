package domain

// Kind names an entity table in the store.
type Kind string

// Entity kinds persisted by the indexer.
const (
	KindTransaction                    Kind = "Transaction"
	KindTokenPrice                     Kind = "TokenPrice"
	KindCandle                         Kind = "Candle"
	KindClaimableFundingFeeInfo        Kind = "ClaimableFundingFeeInfo"
	KindClaimAction                    Kind = "ClaimAction"
	KindClaimCollateralAction          Kind = "ClaimCollateralAction"
	KindClaimRef                       Kind = "ClaimRef"
	KindOrder                          Kind = "Order"
	KindPositionImpactPoolDistribution Kind = "PositionImpactPoolDistribution"
	KindAppliedEvent                   Kind = "AppliedEvent"
)

// Kinds lists every entity kind in a stable order.
var Kinds = []Kind{
	KindTransaction,
	KindTokenPrice,
	KindCandle,
	KindClaimableFundingFeeInfo,
	KindClaimAction,
	KindClaimCollateralAction,
	KindClaimRef,
	KindOrder,
	KindPositionImpactPoolDistribution,
	KindAppliedEvent,
}

// Entity is a record addressable by (kind, id).
type Entity interface {
	EntityKind() Kind
	EntityID() string
}
