package ingestion

import (
	"context"
	"fmt"
	"os"

	"perp-indexer/internal/events"
)

// EventSource provides decoded events for one chain.
type EventSource interface {
	// Name labels the source in logs and metrics.
	Name() string
	// Subscribe starts delivery. Events arrive in chain order; the channel is
	// closed when the source is exhausted or closed.
	Subscribe(ctx context.Context) (<-chan *events.Event, error)
}

// FileSource replays a JSON-lines event log.
// Events are sorted by (block, tx_index, log_index) before delivery.
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource reading path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Name implements EventSource.
func (s *FileSource) Name() string { return "file" }

// Load reads, sorts and validates the whole log.
func (s *FileSource) Load() ([]*events.Event, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	evs, err := events.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read event log %s: %w", s.path, err)
	}
	SortEvents(evs)
	if err := ValidateOrdering(evs); err != nil {
		return nil, fmt.Errorf("event log %s: %w", s.path, err)
	}
	return evs, nil
}

// Subscribe implements EventSource.
func (s *FileSource) Subscribe(ctx context.Context) (<-chan *events.Event, error) {
	evs, err := s.Load()
	if err != nil {
		return nil, err
	}
	return sliceChannel(ctx, evs), nil
}

// SliceSource delivers an in-memory event list as-is.
type SliceSource struct {
	events []*events.Event
}

// NewSliceSource creates a source over evs, which must already be ordered.
func NewSliceSource(evs []*events.Event) *SliceSource {
	return &SliceSource{events: evs}
}

// Name implements EventSource.
func (s *SliceSource) Name() string { return "slice" }

// Subscribe implements EventSource.
func (s *SliceSource) Subscribe(ctx context.Context) (<-chan *events.Event, error) {
	return sliceChannel(ctx, s.events), nil
}

func sliceChannel(ctx context.Context, evs []*events.Event) <-chan *events.Event {
	ch := make(chan *events.Event)
	go func() {
		defer close(ch)
		for _, e := range evs {
			select {
			case ch <- e:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
