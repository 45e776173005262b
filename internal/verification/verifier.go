// Package verification checks that indexing an event log is deterministic and
// that a persisted store matches a fresh replay of its log.
package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"perp-indexer/internal/domain"
	"perp-indexer/internal/events"
	"perp-indexer/internal/indexer"
	"perp-indexer/internal/storage"
	"perp-indexer/internal/storage/memory"
)

// RecordDivergence is a record that differs between two stores.
// A nil Expected or Actual means the record is missing on that side.
type RecordDivergence struct {
	Kind     domain.Kind
	ID       string
	Expected []byte
	Actual   []byte
}

func (d RecordDivergence) String() string {
	switch {
	case d.Expected == nil:
		return fmt.Sprintf("%s %s: unexpected record", d.Kind, d.ID)
	case d.Actual == nil:
		return fmt.Sprintf("%s %s: missing record", d.Kind, d.ID)
	default:
		return fmt.Sprintf("%s %s: content differs", d.Kind, d.ID)
	}
}

// VerificationReport contains the outcome of a comparison.
type VerificationReport struct {
	Events      int                // events replayed
	Records     int                // records in the expected store
	Divergences []RecordDivergence // sorted by (kind, id)
}

// Match reports whether both stores hold the same records.
func (r *VerificationReport) Match() bool {
	return len(r.Divergences) == 0
}

// VerifyDeterminism indexes evs twice over fresh memory stores and compares
// the resulting snapshots byte for byte.
func VerifyDeterminism(ctx context.Context, evs []*events.Event, opts indexer.Options) (*VerificationReport, error) {
	first, err := Replay(ctx, evs, opts)
	if err != nil {
		return nil, fmt.Errorf("first replay: %w", err)
	}
	second, err := Replay(ctx, evs, opts)
	if err != nil {
		return nil, fmt.Errorf("second replay: %w", err)
	}

	return &VerificationReport{
		Events:      len(evs),
		Records:     first.Count(),
		Divergences: CompareSnapshots(first, second, bytes.Equal),
	}, nil
}

// VerifyStore replays evs into a fresh memory store and compares the result
// with the records held by stored. Records are compared as decoded JSON so
// that backends which normalize JSON (such as jsonb) still match.
func VerifyStore(ctx context.Context, evs []*events.Event, stored storage.Snapshotter, opts indexer.Options) (*VerificationReport, error) {
	expected, err := Replay(ctx, evs, opts)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	actual, err := stored.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot store: %w", err)
	}

	return &VerificationReport{
		Events:      len(evs),
		Records:     expected.Count(),
		Divergences: CompareSnapshots(expected, actual, JSONEqual),
	}, nil
}

// Replay indexes evs into a fresh memory store and returns its snapshot.
func Replay(ctx context.Context, evs []*events.Event, opts indexer.Options) (storage.Snapshot, error) {
	store := memory.NewEntityStore()
	d, err := indexer.NewDispatcher(store, opts)
	if err != nil {
		return nil, err
	}
	if err := d.HandleAll(ctx, evs); err != nil {
		return nil, err
	}
	return store.Snapshot(ctx)
}

// CompareSnapshots returns every record that is missing on one side or whose
// content differs according to equal.
func CompareSnapshots(expected, actual storage.Snapshot, equal func(a, b []byte) bool) []RecordDivergence {
	var out []RecordDivergence

	for kind, byID := range expected {
		for id, want := range byID {
			got, ok := actual[kind][id]
			if !ok {
				out = append(out, RecordDivergence{Kind: kind, ID: id, Expected: want})
				continue
			}
			if !equal(want, got) {
				out = append(out, RecordDivergence{Kind: kind, ID: id, Expected: want, Actual: got})
			}
		}
	}
	for kind, byID := range actual {
		for id, got := range byID {
			if _, ok := expected[kind][id]; !ok {
				out = append(out, RecordDivergence{Kind: kind, ID: id, Actual: got})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// JSONEqual reports whether a and b encode the same JSON value.
// Numbers are compared by their literal text, so big integers stay exact.
func JSONEqual(a, b []byte) bool {
	va, err := decodeJSON(a)
	if err != nil {
		return false
	}
	vb, err := decodeJSON(b)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(va, vb)
}

func decodeJSON(b []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
