package domain

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrUnsupportedResolution is returned for a candle resolution outside the fixed set.
var ErrUnsupportedResolution = errors.New("unsupported candle resolution")

// TokenPrice holds the last observed bid/ask for a token.
// Prices are 30-decimal fixed point per unit of token.
type TokenPrice struct {
	ID        string   `json:"id"` // token address
	MinPrice  *big.Int `json:"minPrice"`
	MaxPrice  *big.Int `json:"maxPrice"`
	UpdatedAt int64    `json:"updatedAt"`
}

func (p *TokenPrice) EntityKind() Kind { return KindTokenPrice }
func (p *TokenPrice) EntityID() string { return p.ID }

// Resolution is a candle bucket width tag.
type Resolution string

// Supported candle resolutions.
const (
	Resolution1m  Resolution = "1m"
	Resolution5m  Resolution = "5m"
	Resolution15m Resolution = "15m"
	Resolution1h  Resolution = "1h"
	Resolution4h  Resolution = "4h"
	Resolution1d  Resolution = "1d"
)

// Resolutions lists all supported resolutions, finest first.
var Resolutions = []Resolution{
	Resolution1m,
	Resolution5m,
	Resolution15m,
	Resolution1h,
	Resolution4h,
	Resolution1d,
}

// Seconds returns the bucket width.
func (r Resolution) Seconds() (int64, error) {
	switch r {
	case Resolution1m:
		return 60, nil
	case Resolution5m:
		return 5 * 60, nil
	case Resolution15m:
		return 15 * 60, nil
	case Resolution1h:
		return 60 * 60, nil
	case Resolution4h:
		return 4 * 60 * 60, nil
	case Resolution1d:
		return 24 * 60 * 60, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedResolution, string(r))
	}
}

// BucketStart floors ts to the start of its bucket.
func (r Resolution) BucketStart(ts int64) (int64, error) {
	secs, err := r.Seconds()
	if err != nil {
		return 0, err
	}
	return (ts / secs) * secs, nil
}

// ParseResolution validates a resolution tag.
func ParseResolution(s string) (Resolution, error) {
	r := Resolution(s)
	if _, err := r.Seconds(); err != nil {
		return "", err
	}
	return r, nil
}

// Candle is an OHLC bar for one (token, resolution, bucket).
type Candle struct {
	ID        string     `json:"id"` // token:period:timestamp
	Token     string     `json:"token"`
	Period    Resolution `json:"period"`
	Timestamp int64      `json:"timestamp"` // bucket start, unix seconds
	Open      *big.Int   `json:"open"`
	High      *big.Int   `json:"high"`
	Low       *big.Int   `json:"low"`
	Close     *big.Int   `json:"close"`
}

func (c *Candle) EntityKind() Kind { return KindCandle }
func (c *Candle) EntityID() string { return c.ID }
