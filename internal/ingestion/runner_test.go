package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perp-indexer/internal/domain"
	"perp-indexer/internal/events"
	"perp-indexer/internal/events/eventtest"
	"perp-indexer/internal/indexer"
	"perp-indexer/internal/logging"
	"perp-indexer/internal/storage/memory"
)

type recordingHandler struct {
	mu     sync.Mutex
	seen   []string
	failOn string
}

func (h *recordingHandler) Handle(_ context.Context, e *events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e.ID() == h.failOn {
		return errors.New("boom")
	}
	h.seen = append(h.seen, e.ID())
	return nil
}

func writeLog(t *testing.T, evs ...*events.Event) string {
	t.Helper()
	var b strings.Builder
	for _, e := range evs {
		line, err := events.Encode(e)
		require.NoError(t, err)
		b.Write(line)
		b.WriteString("\n\n")
	}
	path := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

func TestFileSource_SortsEvents(t *testing.T) {
	path := writeLog(t,
		eventtest.New("A", "0xb").Block(2, 20).Log(0, 0).Build(),
		eventtest.New("A", "0xa").Block(1, 10).Log(0, 1).Build(),
		eventtest.New("A", "0xa").Block(1, 10).Log(0, 0).Build(),
	)

	evs, err := NewFileSource(path).Load()
	require.NoError(t, err)
	require.Len(t, evs, 3)
	assert.Equal(t, "0xa:0", evs[0].ID())
	assert.Equal(t, "0xa:1", evs[1].ID())
	assert.Equal(t, "0xb:0", evs[2].ID())
}

func TestFileSource_RejectsRepeatedPosition(t *testing.T) {
	path := writeLog(t,
		eventtest.New("A", "0xa").Block(1, 10).Log(0, 0).Build(),
		eventtest.New("B", "0xa").Block(1, 10).Log(0, 0).Build(),
	)

	_, err := NewFileSource(path).Load()
	assert.ErrorIs(t, err, ErrInvalidOrdering)
}

func TestFileSource_MissingFile(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "absent.jsonl")).Subscribe(context.Background())
	assert.Error(t, err)
}

func TestRunner_DeliversInOrder(t *testing.T) {
	h := &recordingHandler{}
	r := NewRunner(RunnerOptions{
		Chain: "test",
		Source: NewSliceSource([]*events.Event{
			eventtest.New("A", "0xa").Log(0, 0).Build(),
			eventtest.New("A", "0xa").Log(0, 1).Build(),
		}),
		Handler: h,
		Logger:  logging.Discard(),
	})

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, []string{"0xa:0", "0xa:1"}, h.seen)
	assert.Equal(t, int64(2), r.Processed())
}

func TestRunner_StopsOnHandlerError(t *testing.T) {
	h := &recordingHandler{failOn: "0xa:1"}
	r := NewRunner(RunnerOptions{
		Source: NewSliceSource([]*events.Event{
			eventtest.New("A", "0xa").Log(0, 0).Build(),
			eventtest.New("A", "0xa").Log(0, 1).Build(),
			eventtest.New("A", "0xa").Log(0, 2).Build(),
		}),
		Handler: h,
		Logger:  logging.Discard(),
	})

	err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, []string{"0xa:0"}, h.seen)
}

func TestRunner_RequiresSourceAndHandler(t *testing.T) {
	assert.Error(t, NewRunner(RunnerOptions{}).Run(context.Background()))
}

func TestRunChains_IndependentStores(t *testing.T) {
	newChain := func(name string, evs []*events.Event) (*Runner, *memory.EntityStore) {
		store := memory.NewEntityStore()
		d, err := indexer.NewDispatcher(store, indexer.Options{Chain: name, Dedupe: true, Logger: logging.Discard()})
		require.NoError(t, err)
		return NewRunner(RunnerOptions{Chain: name, Source: NewSliceSource(evs), Handler: d, Logger: logging.Discard()}), store
	}

	arb, arbStore := newChain("arbitrum", []*events.Event{
		eventtest.PriceTick("0x1", 0, "0xtoken", 1, 2, 60),
	})
	avax, avaxStore := newChain("avalanche", []*events.Event{
		eventtest.PriceTick("0x1", 0, "0xtoken", 1, 2, 60),
		eventtest.PriceTick("0x2", 0, "0xother", 1, 2, 60),
	})

	require.NoError(t, RunChains(context.Background(), []*Runner{arb, avax}))
	assert.Equal(t, 1, arbStore.Count(domain.KindTokenPrice))
	assert.Equal(t, 2, avaxStore.Count(domain.KindTokenPrice))
}

func TestRunChains_FirstErrorWins(t *testing.T) {
	ok := NewRunner(RunnerOptions{Source: NewSliceSource(nil), Handler: &recordingHandler{}, Logger: logging.Discard()})
	bad := NewRunner(RunnerOptions{
		Chain:   "bad",
		Source:  NewSliceSource([]*events.Event{eventtest.New("A", "0xa").Build()}),
		Handler: &recordingHandler{failOn: "0xa:0"},
		Logger:  logging.Discard(),
	})

	err := RunChains(context.Background(), []*Runner{ok, bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain bad")
}
