// Package eventtest builds events for tests and fixtures.
package eventtest

import (
	"math/big"
	"strings"

	"perp-indexer/internal/events"
)

// Builder assembles an events.Event field by field.
type Builder struct {
	e events.Event
}

// New starts an event with the given name and transaction hash.
func New(name, txHash string) *Builder {
	return &Builder{e: events.Event{
		Name:   name,
		TxHash: strings.ToLower(txHash),
		From:   "0x0000000000000000000000000000000000000001",
	}}
}

// Block sets block number and timestamp.
func (b *Builder) Block(number uint64, timestamp int64) *Builder {
	b.e.BlockNumber = number
	b.e.BlockTimestamp = timestamp
	return b
}

// Log sets the transaction index and log index.
func (b *Builder) Log(txIndex, logIndex uint64) *Builder {
	b.e.TxIndex = txIndex
	b.e.LogIndex = logIndex
	return b
}

// Address sets an address item.
func (b *Builder) Address(name, v string) *Builder {
	if b.e.Data.AddressItems == nil {
		b.e.Data.AddressItems = make(map[string]string)
	}
	b.e.Data.AddressItems[name] = strings.ToLower(v)
	return b
}

// Uint sets an unsigned integer item.
func (b *Builder) Uint(name string, v int64) *Builder {
	return b.BigUint(name, big.NewInt(v))
}

// BigUint sets an unsigned integer item from a big.Int.
func (b *Builder) BigUint(name string, v *big.Int) *Builder {
	if b.e.Data.UintItems == nil {
		b.e.Data.UintItems = make(map[string]*big.Int)
	}
	b.e.Data.UintItems[name] = new(big.Int).Set(v)
	return b
}

// Int sets a signed integer item.
func (b *Builder) Int(name string, v int64) *Builder {
	if b.e.Data.IntItems == nil {
		b.e.Data.IntItems = make(map[string]*big.Int)
	}
	b.e.Data.IntItems[name] = big.NewInt(v)
	return b
}

// Bool sets a boolean item.
func (b *Builder) Bool(name string, v bool) *Builder {
	if b.e.Data.BoolItems == nil {
		b.e.Data.BoolItems = make(map[string]bool)
	}
	b.e.Data.BoolItems[name] = v
	return b
}

// Bytes32 sets a bytes32 item.
func (b *Builder) Bytes32(name, v string) *Builder {
	if b.e.Data.Bytes32Items == nil {
		b.e.Data.Bytes32Items = make(map[string]string)
	}
	b.e.Data.Bytes32Items[name] = strings.ToLower(v)
	return b
}

// Build returns a copy of the assembled event.
func (b *Builder) Build() *events.Event {
	e := b.e
	return &e
}

// PriceTick builds an OraclePriceUpdate event.
func PriceTick(txHash string, logIndex uint64, token string, minPrice, maxPrice, timestamp int64) *events.Event {
	return New(events.NameOraclePriceUpdate, txHash).
		Block(uint64(timestamp), timestamp).
		Log(0, logIndex).
		Address("token", token).
		Uint("minPrice", minPrice).
		Uint("maxPrice", maxPrice).
		Uint("timestamp", timestamp).
		Build()
}

// OrderCreated builds an OrderCreated event.
func OrderCreated(txHash string, logIndex uint64, key, account, market string, isLong bool, collateralDelta, sizeDeltaUsd int64, orderType uint8) *events.Event {
	return New(events.NameOrderCreated, txHash).
		Log(0, logIndex).
		Bytes32("key", key).
		Address("account", account).
		Address("market", market).
		Bool("isLong", isLong).
		Uint("initialCollateralDeltaAmount", collateralDelta).
		Uint("sizeDeltaUsd", sizeDeltaUsd).
		Uint("orderType", int64(orderType)).
		Build()
}

// OrderUpdate builds an OrderCancelled or OrderExecuted event.
func OrderUpdate(name, txHash string, logIndex uint64, key, account string) *events.Event {
	return New(name, txHash).
		Log(0, logIndex).
		Bytes32("key", key).
		Address("account", account).
		Build()
}

// FundingUpdated builds a ClaimableFundingUpdated event.
func FundingUpdated(txHash string, logIndex uint64, account, market, token string, delta int64) *events.Event {
	return New(events.NameClaimableFundingUpdated, txHash).
		Log(0, logIndex).
		Address("account", account).
		Address("market", market).
		Address("token", token).
		Uint("delta", delta).
		Build()
}

// CollateralClaim builds a FundingFeesClaimed or CollateralClaimed event.
func CollateralClaim(name, txHash string, logIndex uint64, account, market, token string, amount int64) *events.Event {
	return New(name, txHash).
		Log(0, logIndex).
		Address("account", account).
		Address("market", market).
		Address("token", token).
		Uint("amount", amount).
		Build()
}
