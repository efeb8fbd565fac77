// Package filestore is the default citation.Store implementation,
// backed by internal/storage's atomic file-based JSON persistence.
package filestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/CuriosityQuantified/tandemai/internal/citation"
	"github.com/CuriosityQuantified/tandemai/internal/storage"
	"github.com/CuriosityQuantified/tandemai/pkg/types"
)

// Store is a citation.Store backed by a *storage.Storage, keyed by
// []string{"citation", sessionID, urlHash(url)} — the same
// key-path-as-slice idiom storage.Storage already uses for sessions,
// messages, and parts.
type Store struct {
	storage *storage.Storage
}

// New creates a new file-backed citation store on top of s.
func New(s *storage.Storage) *Store {
	return &Store{storage: s}
}

func urlHash(url string) string {
	h := sha256.Sum256([]byte(url))
	return hex.EncodeToString(h[:])[:24]
}

func (s *Store) Upsert(ctx context.Context, sessionID, url string, rec types.CitationRecord) error {
	rec.URL = url
	return s.storage.Put(ctx, []string{"citation", sessionID, urlHash(url)}, &rec)
}

func (s *Store) Get(ctx context.Context, sessionID, url string) (types.CitationRecord, bool, error) {
	var rec types.CitationRecord
	err := s.storage.Get(ctx, []string{"citation", sessionID, urlHash(url)}, &rec)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return types.CitationRecord{}, false, nil
		}
		return types.CitationRecord{}, false, err
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
	keys, err := s.storage.List(ctx, []string{"citation", sessionID})
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(keys))
	for _, key := range keys {
		var rec types.CitationRecord
		if err := s.storage.Get(ctx, []string{"citation", sessionID, key}, &rec); err != nil {
			continue
		}
		urls = append(urls, rec.URL)
	}
	return urls, nil
}
