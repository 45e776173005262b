package domain

// Transaction represents one chain transaction referenced by indexed events.
// Created once on first reference and never updated.
type Transaction struct {
	ID               string `json:"id"` // tx hash hex
	Hash             string `json:"hash"`
	Timestamp        int64  `json:"timestamp"` // block timestamp, unix seconds
	BlockNumber      uint64 `json:"blockNumber"`
	TransactionIndex uint64 `json:"transactionIndex"`
	From             string `json:"from"`
	To               string `json:"to"` // "" for contract creation
}

func (t *Transaction) EntityKind() Kind { return KindTransaction }
func (t *Transaction) EntityID() string { return t.ID }

// AppliedEvent marks an event (tx:logIndex) as already applied to the store.
type AppliedEvent struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	BlockNumber uint64 `json:"blockNumber"`
}

func (a *AppliedEvent) EntityKind() Kind { return KindAppliedEvent }
func (a *AppliedEvent) EntityID() string { return a.ID }
