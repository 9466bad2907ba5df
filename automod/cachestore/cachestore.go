package cachestore

import (
	"context"
	"encoding/json"
)

// CacheStore maps (name, key) pairs to strings. A miss is an empty string with no error.
type CacheStore interface {
	Get(ctx context.Context, name, key string) (string, error)
	Set(ctx context.Context, name, key string, val string) error
	Purge(ctx context.Context, name, key string) error
}

func getJSON[T any](ctx context.Context, cs CacheStore, name, key string) (T, bool, error) {
	var out T
	raw, err := cs.Get(ctx, name, key)
	if err != nil || raw == "" {
		return out, false, err
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, false, err
	}
	return out, true, nil
}

func setJSON(ctx context.Context, cs CacheStore, name, key string, val any) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return cs.Set(ctx, name, key, string(b))
}
