package countstore

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
)

// MemCountStore is an in-process CountStore. Day and hour buckets are never expired.
type MemCountStore struct {
	Counts *xsync.MapOf[string, int]
}

var _ CountStore = (*MemCountStore)(nil)

func NewMemCountStore() *MemCountStore {
	return &MemCountStore{
		Counts: xsync.NewMapOf[string, int](),
	}
}

func (s *MemCountStore) GetCount(ctx context.Context, name, val, period string) (int, error) {
	v, ok := s.Counts.Load(periodBucket(name, val, period))
	if !ok {
		return 0, nil
	}
	return v, nil
}

func (s *MemCountStore) add(k string, delta int) {
	s.Counts.Compute(k, func(old int, loaded bool) (int, bool) {
		return old + delta, false
	})
}

func (s *MemCountStore) Increment(ctx context.Context, name, val string) error {
	for _, p := range Periods {
		s.add(periodBucket(name, val, p), 1)
	}
	return nil
}

func (s *MemCountStore) Decrement(ctx context.Context, name, val string) error {
	s.add(periodBucket(name, val, PeriodTotal), -1)
	return nil
}

func (s *MemCountStore) Reset(ctx context.Context, name, val string) error {
	for _, p := range Periods {
		s.Counts.Delete(periodBucket(name, val, p))
	}
	return nil
}

func (s *MemCountStore) Claim(ctx context.Context, name, val string) (bool, error) {
	claimed := false
	s.Counts.Compute(claimBucket(name, val), func(old int, loaded bool) (int, bool) {
		claimed = old == 0
		return 1, false
	})
	return claimed, nil
}

func (s *MemCountStore) Release(ctx context.Context, name, val string) error {
	s.Counts.Delete(claimBucket(name, val))
	return nil
}
