// Package redisstore is a citation.Store backed by Redis, for
// deployments where multiple orchestrator instances may serve
// different sessions and need a shared citation cache.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/CuriosityQuantified/tandemai/internal/citation"
	"github.com/CuriosityQuantified/tandemai/pkg/types"
)

// Store is a citation.Store backed by a Redis client. Each record is
// stored as a single JSON value under key "citation:{sessionID}:{url}";
// Redis's per-key command serialization makes concurrent upserts to the
// same key safe without any additional locking.
type Store struct {
	client *redis.Client
}

// New creates a new Redis-backed citation store.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

func key(sessionID, url string) string {
	return fmt.Sprintf("citation:%s:%s", sessionID, url)
}

func (s *Store) Upsert(ctx context.Context, sessionID, url string, rec types.CitationRecord) error {
	rec.URL = url
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal citation record: %w", err)
	}
	return s.client.Set(ctx, key(sessionID, url), data, 0).Err()
}

func (s *Store) Get(ctx context.Context, sessionID, url string) (types.CitationRecord, bool, error) {
	data, err := s.client.Get(ctx, key(sessionID, url)).Bytes()
	if err == redis.Nil {
		return types.CitationRecord{}, false, nil
	}
	if err != nil {
		return types.CitationRecord{}, false, fmt.Errorf("get citation record: %w", err)
	}
	var rec types.CitationRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return types.CitationRecord{}, false, fmt.Errorf("unmarshal citation record: %w", err)
	}
	return rec, true, nil
}

func (s *Store) ContainsQuote(ctx context.Context, sessionID, url, quote string) (bool, error) {
	rec, ok, err := s.Get(ctx, sessionID, url)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return citation.ContainsNormalized(rec.Content, quote), nil
}

func (s *Store) List(ctx context.Context, sessionID string) ([]string, error) {
	keys, err := s.client.Keys(ctx, fmt.Sprintf("citation:%s:*", sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list citation keys: %w", err)
	}
	urls := make([]string, 0, len(keys))
	for _, k := range keys {
		data, err := s.client.Get(ctx, k).Bytes()
		if err != nil {
			continue
		}
		var rec types.CitationRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		urls = append(urls, rec.URL)
	}
	return urls, nil
}
