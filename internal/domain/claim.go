package domain

import "math/big"

// Claim action event names.
const (
	ClaimEventSettleFundingFeeCreated   = "SettleFundingFeeCreated"
	ClaimEventSettleFundingFeeCancelled = "SettleFundingFeeCancelled"
	ClaimEventSettleFundingFeeExecuted  = "SettleFundingFeeExecuted"
	ClaimEventClaimFunding              = "ClaimFunding"
	ClaimEventClaimPriceImpact          = "ClaimPriceImpact"
)

// FundingFeeEntry is one pending funding-fee delta.
type FundingFeeEntry struct {
	Market string   `json:"market"`
	Token  string   `json:"token"`
	Amount *big.Int `json:"amount"`
}

// ClaimableFundingFeeInfo buffers funding-fee deltas emitted for an account
// within one transaction, in emission order.
type ClaimableFundingFeeInfo struct {
	ID      string            `json:"id"` // tx:account
	Entries []FundingFeeEntry `json:"entries"`
}

func (f *ClaimableFundingFeeInfo) EntityKind() Kind { return KindClaimableFundingFeeInfo }
func (f *ClaimableFundingFeeInfo) EntityID() string { return f.ID }

// ClaimEntry is one element of a claim record. Token, Amount and IsLong are
// optional: "", nil and nil mean the field does not apply to the event that
// appended the entry.
type ClaimEntry struct {
	Market string   `json:"market"`
	Token  string   `json:"token,omitempty"`
	Amount *big.Int `json:"amount,omitempty"`
	IsLong *bool    `json:"isLong,omitempty"`
}

type claimEntries []ClaimEntry

func (e claimEntries) markets() []string {
	out := make([]string, 0, len(e))
	for _, c := range e {
		out = append(out, c.Market)
	}
	return out
}

func (e claimEntries) tokens() []string {
	out := make([]string, 0, len(e))
	for _, c := range e {
		if c.Token != "" {
			out = append(out, c.Token)
		}
	}
	return out
}

func (e claimEntries) amounts() []*big.Int {
	out := make([]*big.Int, 0, len(e))
	for _, c := range e {
		if c.Amount != nil {
			out = append(out, new(big.Int).Set(c.Amount))
		}
	}
	return out
}

func (e claimEntries) isLongs() []bool {
	out := make([]bool, 0, len(e))
	for _, c := range e {
		if c.IsLong != nil {
			out = append(out, *c.IsLong)
		}
	}
	return out
}

// ClaimAction is the claim record for (tx, account, eventName).
type ClaimAction struct {
	ID          string       `json:"id"` // tx:account:eventName
	Account     string       `json:"account"`
	EventName   string       `json:"eventName"`
	Transaction string       `json:"transaction"`
	Entries     []ClaimEntry `json:"entries"`
}

func (a *ClaimAction) EntityKind() Kind { return KindClaimAction }
func (a *ClaimAction) EntityID() string { return a.ID }

// MarketAddresses returns the market of every entry in order.
func (a *ClaimAction) MarketAddresses() []string { return claimEntries(a.Entries).markets() }

// TokenAddresses returns the populated tokens in order.
func (a *ClaimAction) TokenAddresses() []string { return claimEntries(a.Entries).tokens() }

// Amounts returns the populated amounts in order.
func (a *ClaimAction) Amounts() []*big.Int { return claimEntries(a.Entries).amounts() }

// IsLongOrders returns the populated long/short flags in order.
func (a *ClaimAction) IsLongOrders() []bool { return claimEntries(a.Entries).isLongs() }

// ClaimCollateralAction records collateral claims for (tx, account, eventName).
type ClaimCollateralAction struct {
	ID          string       `json:"id"` // tx:account:eventName
	Account     string       `json:"account"`
	EventName   string       `json:"eventName"`
	Transaction string       `json:"transaction"`
	Entries     []ClaimEntry `json:"entries"`
}

func (a *ClaimCollateralAction) EntityKind() Kind { return KindClaimCollateralAction }
func (a *ClaimCollateralAction) EntityID() string { return a.ID }

// MarketAddresses returns the market of every entry in order.
func (a *ClaimCollateralAction) MarketAddresses() []string {
	return claimEntries(a.Entries).markets()
}

// TokenAddresses returns the populated tokens in order.
func (a *ClaimCollateralAction) TokenAddresses() []string {
	return claimEntries(a.Entries).tokens()
}

// Amounts returns the populated amounts in order.
func (a *ClaimCollateralAction) Amounts() []*big.Int {
	return claimEntries(a.Entries).amounts()
}

// ClaimRef marks an order key as a funding-fee settlement order.
// Existence is the whole payload.
type ClaimRef struct {
	ID string `json:"id"` // order key hex
}

func (r *ClaimRef) EntityKind() Kind { return KindClaimRef }
func (r *ClaimRef) EntityID() string { return r.ID }

// Bool returns a pointer to v.
func Bool(v bool) *bool {
	return &v
}
