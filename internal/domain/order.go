package domain

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrUnknownOrderType is returned when an order type value is outside the known set.
var ErrUnknownOrderType = errors.New("unknown order type")

// OrderType classifies an order. Values match the on-chain enum.
type OrderType uint8

// Order types.
const (
	OrderTypeMarketSwap OrderType = iota
	OrderTypeLimitSwap
	OrderTypeMarketIncrease
	OrderTypeLimitIncrease
	OrderTypeMarketDecrease
	OrderTypeLimitDecrease
	OrderTypeStopLossDecrease
	OrderTypeLiquidation
	OrderTypeStopIncrease
)

// String returns the on-chain name of the order type.
func (t OrderType) String() string {
	switch t {
	case OrderTypeMarketSwap:
		return "MarketSwap"
	case OrderTypeLimitSwap:
		return "LimitSwap"
	case OrderTypeMarketIncrease:
		return "MarketIncrease"
	case OrderTypeLimitIncrease:
		return "LimitIncrease"
	case OrderTypeMarketDecrease:
		return "MarketDecrease"
	case OrderTypeLimitDecrease:
		return "LimitDecrease"
	case OrderTypeStopLossDecrease:
		return "StopLossDecrease"
	case OrderTypeLiquidation:
		return "Liquidation"
	case OrderTypeStopIncrease:
		return "StopIncrease"
	default:
		return fmt.Sprintf("OrderType(%d)", uint8(t))
	}
}

// IsValid reports whether t is a known order type.
func (t OrderType) IsValid() bool {
	return t <= OrderTypeStopIncrease
}

// IsDecrease reports whether t reduces a position.
func (t OrderType) IsDecrease() bool {
	switch t {
	case OrderTypeMarketDecrease, OrderTypeLimitDecrease, OrderTypeStopLossDecrease, OrderTypeLiquidation:
		return true
	default:
		return false
	}
}

// ParseOrderType converts the raw event value into an OrderType.
func ParseOrderType(v *big.Int) (OrderType, error) {
	if v == nil || v.Sign() < 0 || !v.IsUint64() || v.Uint64() > uint64(OrderTypeStopIncrease) {
		return 0, fmt.Errorf("%w: %v", ErrUnknownOrderType, v)
	}
	return OrderType(v.Uint64()), nil
}

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

// Order statuses.
const (
	OrderStatusCreated   OrderStatus = "Created"
	OrderStatusCancelled OrderStatus = "Cancelled"
	OrderStatusExecuted  OrderStatus = "Executed"
)

// Order is the order record keyed by the order key hex.
type Order struct {
	ID                           string      `json:"id"` // order key hex
	Account                      string      `json:"account"`
	Market                       string      `json:"market"`
	IsLong                       bool        `json:"isLong"`
	InitialCollateralDeltaAmount *big.Int    `json:"initialCollateralDeltaAmount"`
	SizeDeltaUsd                 *big.Int    `json:"sizeDeltaUsd"`
	OrderType                    OrderType   `json:"orderType"`
	Status                       OrderStatus `json:"status"`
	CreatedTxn                   string      `json:"createdTxn"`
	CancelledTxn                 string      `json:"cancelledTxn,omitempty"`
	ExecutedTxn                  string      `json:"executedTxn,omitempty"`
}

func (o *Order) EntityKind() Kind { return KindOrder }
func (o *Order) EntityID() string { return o.ID }

// PositionImpactPoolDistribution records one impact pool distribution event.
type PositionImpactPoolDistribution struct {
	ID                           string   `json:"id"` // tx:logIndex
	Market                       string   `json:"market"`
	DistributionAmount           *big.Int `json:"distributionAmount"`
	NextPositionImpactPoolAmount *big.Int `json:"nextPositionImpactPoolAmount"`
	Transaction                  string   `json:"transaction"`
	Timestamp                    int64    `json:"timestamp"`
}

func (d *PositionImpactPoolDistribution) EntityKind() Kind {
	return KindPositionImpactPoolDistribution
}
func (d *PositionImpactPoolDistribution) EntityID() string { return d.ID }
