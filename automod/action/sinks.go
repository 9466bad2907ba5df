package action

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/guildwarden/warden/automod/countstore"
)

// LogSink only logs dispatches. Used for dry runs.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Execute(ctx context.Context, d *Dispatch) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("dispatching action", "kind", d.Action.Kind(), "key", d.Key, "guild", d.GuildID, "rule", d.RuleName, "action", d.Action)
	return nil
}

// MultiSink executes each dispatch with every sink in order. All sinks run even if one fails; errors are joined.
type MultiSink []Sink

func (m MultiSink) Execute(ctx context.Context, d *Dispatch) error {
	var errs []error
	for _, s := range m {
		if err := s.Execute(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

const dedupeCounter = "dispatch"

// DedupeSink passes each dispatch key to Inner at most once per day, claiming keys in a CountStore.
//
// A key is claimed before Inner runs, so concurrent redeliveries of one event reach Inner once. The claim is released when Inner fails, so a failed dispatch can be retried.
type DedupeSink struct {
	Inner  Sink
	Counts countstore.CountStore
	Logger *slog.Logger
}

func (s *DedupeSink) Execute(ctx context.Context, d *Dispatch) error {
	if d.Key == "" {
		return s.Inner.Execute(ctx, d)
	}
	claimed, err := s.Counts.Claim(ctx, dedupeCounter, d.Key)
	if err != nil {
		return err
	}
	if !claimed {
		if s.Logger != nil {
			s.Logger.Debug("skipping duplicate action dispatch", "key", d.Key, "kind", d.Action.Kind())
		}
		actionsDeduped.WithLabelValues(d.Action.Kind()).Inc()
		return nil
	}
	if err := s.Inner.Execute(ctx, d); err != nil {
		if rerr := s.Counts.Release(ctx, dedupeCounter, d.Key); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	return nil
}

// RecordingSink keeps every dispatch in memory, for tests.
type RecordingSink struct {
	mu         sync.Mutex
	dispatches []*Dispatch
	// returned from Execute when set; the dispatch is still recorded
	Err error
}

func (s *RecordingSink) Execute(ctx context.Context, d *Dispatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatches = append(s.dispatches, d)
	return s.Err
}

func (s *RecordingSink) Dispatches() []*Dispatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Dispatch, len(s.dispatches))
	copy(out, s.dispatches)
	return out
}

// Actions returns every recorded action of type T.
func Actions[T Action](s *RecordingSink) []T {
	var out []T
	for _, d := range s.Dispatches() {
		if a, ok := d.Action.(T); ok {
			out = append(out, a)
		}
	}
	return out
}
