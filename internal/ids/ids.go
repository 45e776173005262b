// Package ids composes the deterministic entity identifiers.
// Concatenation order is part of the storage contract: re-deriving an id from
// the same inputs must always address the same record.
package ids

import (
	"strconv"
	"strings"

	"perp-indexer/internal/domain"
)

const sep = ":"

// Transaction returns the Transaction id for a tx hash.
func Transaction(txHash string) string {
	return strings.ToLower(txHash)
}

// Event returns the id of a single log: tx:logIndex.
func Event(txHash string, logIndex uint64) string {
	return Transaction(txHash) + sep + strconv.FormatUint(logIndex, 10)
}

// FundingFeeInfo returns the ClaimableFundingFeeInfo id: tx:account.
func FundingFeeInfo(txID, account string) string {
	return txID + sep + account
}

// ClaimAction returns the ClaimAction / ClaimCollateralAction id: tx:account:eventName.
func ClaimAction(txID, account, eventName string) string {
	return txID + sep + account + sep + eventName
}

// Candle returns the Candle id: token:resolution:bucketStart.
func Candle(token string, res domain.Resolution, bucketStart int64) string {
	return token + sep + string(res) + sep + strconv.FormatInt(bucketStart, 10)
}

// ClaimRef returns the ClaimRef id for an order key.
func ClaimRef(orderKey string) string {
	return strings.ToLower(orderKey)
}

// Order returns the Order id for an order key.
func Order(orderKey string) string {
	return strings.ToLower(orderKey)
}
