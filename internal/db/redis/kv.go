package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/hareshsuppiah/sport-science-ai-chat/internal/db"
)

// Get retrieves a value by key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpGet, Key: key, Err: err}
	}
	return data, nil
}

// GetMulti pipelines one GET per key so keys may live on different cluster slots.
func (s *Store) GetMulti(ctx context.Context, keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make([]rueidis.Completed, len(keys))
	for i, key := range keys {
		cmds[i] = s.client.B().Get().Key(key).Build()
	}

	out := make([][]byte, len(keys))
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		data, err := res.AsBytes()
		if err != nil {
			if rueidis.IsRedisNil(err) {
				continue
			}
			return nil, &db.Error{Op: db.OpGet, Key: keys[i], Err: err}
		}
		out[i] = data
	}
	return out, nil
}

// SetWithTTL stores a value, with an expiry when ttl is positive.
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Do(ctx, s.setCmd(key, value, ttl)).Error(); err != nil {
		return &db.Error{Op: db.OpSet, Key: key, Err: err}
	}
	return nil
}

// SetMultiWithTTL stores every entry in one DoMulti round-trip and reports the first failure.
func (s *Store) SetMultiWithTTL(ctx context.Context, entries []db.Entry, ttl time.Duration) error {
	if len(entries) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, len(entries))
	for i, e := range entries {
		cmds[i] = s.setCmd(e.Key, e.Value, ttl)
	}

	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpSet, Key: entries[i].Key, Err: err}
		}
	}
	return nil
}

func (s *Store) setCmd(key string, value []byte, ttl time.Duration) rueidis.Completed {
	set := s.client.B().Set().Key(key).Value(rueidis.BinaryString(value))
	if ttl > 0 {
		return set.Ex(ttl).Build()
	}
	return set.Build()
}
