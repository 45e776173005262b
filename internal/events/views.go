package events

import (
	"fmt"
	"math/big"

	"perp-indexer/internal/domain"
)

// OraclePriceUpdate is a price tick for one token.
type OraclePriceUpdate struct {
	Token     string
	MinPrice  *big.Int
	MaxPrice  *big.Int
	Timestamp int64
}

// ParseOraclePriceUpdate reads an OraclePriceUpdate event.
func ParseOraclePriceUpdate(e *Event) (*OraclePriceUpdate, error) {
	r := e.Reader()
	v := &OraclePriceUpdate{
		Token:    r.Address("token"),
		MinPrice: r.Uint("minPrice"),
		MaxPrice: r.Uint("maxPrice"),
	}
	ts := r.Uint("timestamp")
	if err := r.Err(); err != nil {
		return nil, err
	}
	if !ts.IsInt64() {
		return nil, fmt.Errorf("%w: %s timestamp %s out of range", ErrInvalidEvent, e.Name, ts)
	}
	v.Timestamp = ts.Int64()
	return v, nil
}

// ClaimableFundingUpdated carries a pending funding-fee delta.
type ClaimableFundingUpdated struct {
	Account string
	Market  string
	Token   string
	Delta   *big.Int
}

// ParseClaimableFundingUpdated reads a ClaimableFundingUpdated event.
func ParseClaimableFundingUpdated(e *Event) (*ClaimableFundingUpdated, error) {
	r := e.Reader()
	v := &ClaimableFundingUpdated{
		Account: r.Address("account"),
		Market:  r.Address("market"),
		Token:   r.Address("token"),
		Delta:   r.Amount("delta"),
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return v, nil
}

// OrderCreated describes a newly placed order.
type OrderCreated struct {
	Key                          string
	Account                      string
	Market                       string
	IsLong                       bool
	InitialCollateralDeltaAmount *big.Int
	SizeDeltaUsd                 *big.Int
	OrderType                    domain.OrderType
}

// ParseOrderCreated reads an OrderCreated event.
func ParseOrderCreated(e *Event) (*OrderCreated, error) {
	r := e.Reader()
	v := &OrderCreated{
		Key:                          r.Bytes32("key"),
		Account:                      r.Address("account"),
		Market:                       r.Address("market"),
		IsLong:                       r.Bool("isLong"),
		InitialCollateralDeltaAmount: r.Uint("initialCollateralDeltaAmount"),
		SizeDeltaUsd:                 r.Uint("sizeDeltaUsd"),
	}
	rawType := r.Uint("orderType")
	if err := r.Err(); err != nil {
		return nil, err
	}
	orderType, err := domain.ParseOrderType(rawType)
	if err != nil {
		return nil, err
	}
	v.OrderType = orderType
	return v, nil
}

// Order converts the event into a freshly created Order record.
func (o *OrderCreated) Order(txID string) *domain.Order {
	return &domain.Order{
		ID:                           o.Key,
		Account:                      o.Account,
		Market:                       o.Market,
		IsLong:                       o.IsLong,
		InitialCollateralDeltaAmount: new(big.Int).Set(o.InitialCollateralDeltaAmount),
		SizeDeltaUsd:                 new(big.Int).Set(o.SizeDeltaUsd),
		OrderType:                    o.OrderType,
		Status:                       domain.OrderStatusCreated,
		CreatedTxn:                   txID,
	}
}

// OrderUpdate is an OrderCancelled or OrderExecuted event.
type OrderUpdate struct {
	Key     string
	Account string
}

// ParseOrderUpdate reads an OrderCancelled or OrderExecuted event.
func ParseOrderUpdate(e *Event) (*OrderUpdate, error) {
	r := e.Reader()
	v := &OrderUpdate{
		Key:     r.Bytes32("key"),
		Account: r.Address("account"),
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return v, nil
}

// CollateralClaim is a FundingFeesClaimed or CollateralClaimed event.
type CollateralClaim struct {
	Account string
	Market  string
	Token   string
	Amount  *big.Int
}

// ParseCollateralClaim reads a FundingFeesClaimed or CollateralClaimed event.
func ParseCollateralClaim(e *Event) (*CollateralClaim, error) {
	r := e.Reader()
	v := &CollateralClaim{
		Account: r.Address("account"),
		Market:  r.Address("market"),
		Token:   r.Address("token"),
		Amount:  r.Uint("amount"),
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return v, nil
}

// PositionImpactPoolDistributed reports a distribution from a market's impact pool.
type PositionImpactPoolDistributed struct {
	Market                       string
	DistributionAmount           *big.Int
	NextPositionImpactPoolAmount *big.Int
}

// ParsePositionImpactPoolDistributed reads a PositionImpactPoolDistributed event.
func ParsePositionImpactPoolDistributed(e *Event) (*PositionImpactPoolDistributed, error) {
	r := e.Reader()
	v := &PositionImpactPoolDistributed{
		Market:                       r.Address("market"),
		DistributionAmount:           r.Uint("distributionAmount"),
		NextPositionImpactPoolAmount: r.Uint("nextPositionImpactPoolAmount"),
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return v, nil
}
