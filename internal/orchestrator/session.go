// Package orchestrator implements the supervisor/worker reasoning loop
// (C3, C5) and the checkpointed graph interpreter (C6) that ties the
// role registry, delegation router, tool registry, and approval gate
// into one run.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/CuriosityQuantified/tandemai/internal/storage"
	"github.com/CuriosityQuantified/tandemai/pkg/types"
)

// SessionStore persists sessions, their message transcript, and each
// message's parts. Unlike the teacher's nested project/session
// key scheme (built for a multi-project IDE backend), a TandemAI
// session is a single orchestration run, so messages are stored
// directly under the session id.
type SessionStore struct {
	storage *storage.Storage
}

// NewSessionStore creates a SessionStore backed by store.
func NewSessionStore(store *storage.Storage) *SessionStore {
	return &SessionStore{storage: store}
}

func generateID() string {
	return ulid.Make().String()
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func hashDirectory(directory string) string {
	h := sha256.Sum256([]byte(directory))
	return hex.EncodeToString(h[:])[:16]
}

// Create starts a new session rooted at directory (the sandbox root for
// its file tools). If parentID is non-empty, the session is a delegated
// child run (a worker invocation).
func (s *SessionStore) Create(ctx context.Context, directory, title, parentID string) (*types.Session, error) {
	now := time.Now().UnixMilli()
	sess := &types.Session{
		ID:        generateID(),
		ProjectID: hashDirectory(directory),
		Directory: directory,
		Title:     title,
		Version:   "1",
		Time:      types.SessionTime{Created: now, Updated: now},
	}
	if parentID != "" {
		sess.ParentID = &parentID
	}
	if err := s.storage.Put(ctx, []string{"session", sess.ID}, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, nil
}

// GetOrCreate returns the existing session for sessionID, or creates one
// with that exact id rooted at directory if none exists yet — the chat
// endpoint's entry point, since a client picks the session_id itself and
// expects the same id to keep working across calls (spec.md §8 S2).
func (s *SessionStore) GetOrCreate(ctx context.Context, sessionID, directory string) (*types.Session, error) {
	sess, err := s.Get(ctx, sessionID)
	if err == nil {
		return sess, nil
	}
	now := time.Now().UnixMilli()
	sess = &types.Session{
		ID:        sessionID,
		ProjectID: hashDirectory(directory),
		Directory: directory,
		Version:   "1",
		Time:      types.SessionTime{Created: now, Updated: now},
	}
	if err := s.storage.Put(ctx, []string{"session", sess.ID}, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, nil
}

// Get retrieves a session by id.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (*types.Session, error) {
	var sess types.Session
	if err := s.storage.Get(ctx, []string{"session", sessionID}, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// List returns every known session, newest first.
func (s *SessionStore) List(ctx context.Context) ([]*types.Session, error) {
	var sessions []*types.Session
	err := s.storage.Scan(ctx, []string{"session"}, func(key string, data json.RawMessage) error {
		var sess types.Session
		if err := json.Unmarshal(data, &sess); err != nil {
			return err
		}
		sessions = append(sessions, &sess)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Time.Created > sessions[j].Time.Created })
	return sessions, nil
}

// Delete removes a session and its transcript.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	messages, err := s.GetMessages(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load messages for delete: %w", err)
	}
	for _, msg := range messages {
		parts, err := s.GetParts(ctx, msg.ID)
		if err != nil {
			return fmt.Errorf("failed to load parts for message %s: %w", msg.ID, err)
		}
		for _, part := range parts {
			if err := s.storage.Delete(ctx, []string{"part", part.PartMessageID(), part.PartID()}); err != nil {
				return fmt.Errorf("failed to delete part %s: %w", part.PartID(), err)
			}
		}
		if err := s.storage.Delete(ctx, []string{"message", sessionID, msg.ID}); err != nil {
			return fmt.Errorf("failed to delete message %s: %w", msg.ID, err)
		}
	}
	return s.storage.Delete(ctx, []string{"session", sessionID})
}

// GetMessage retrieves a single message from a session's transcript.
func (s *SessionStore) GetMessage(ctx context.Context, sessionID, messageID string) (*types.Message, error) {
	var msg types.Message
	if err := s.storage.Get(ctx, []string{"message", sessionID, messageID}, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Touch refreshes a session's updated timestamp.
func (s *SessionStore) Touch(ctx context.Context, sess *types.Session) error {
	sess.Time.Updated = time.Now().UnixMilli()
	return s.storage.Put(ctx, []string{"session", sess.ID}, sess)
}

// SetTitle persists a new title for sess, mutating it in place.
func (s *SessionStore) SetTitle(ctx context.Context, sess *types.Session, title string) error {
	sess.Title = title
	sess.Time.Updated = time.Now().UnixMilli()
	return s.storage.Put(ctx, []string{"session", sess.ID}, sess)
}

// AddMessage persists a message in a session's transcript.
func (s *SessionStore) AddMessage(ctx context.Context, msg *types.Message) error {
	return s.storage.Put(ctx, []string{"message", msg.SessionID, msg.ID}, msg)
}

// GetMessages returns every message for a session, ordered by creation time.
func (s *SessionStore) GetMessages(ctx context.Context, sessionID string) ([]*types.Message, error) {
	var messages []*types.Message
	err := s.storage.Scan(ctx, []string{"message", sessionID}, func(key string, data json.RawMessage) error {
		var msg types.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}
		messages = append(messages, &msg)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(messages, func(i, j int) bool { return messages[i].Time.Created < messages[j].Time.Created })
	return messages, nil
}

// AddPart persists one part of a message.
func (s *SessionStore) AddPart(ctx context.Context, part types.Part) error {
	return s.storage.Put(ctx, []string{"part", part.PartMessageID(), part.PartID()}, part)
}

// GetParts returns every part of a message.
func (s *SessionStore) GetParts(ctx context.Context, messageID string) ([]types.Part, error) {
	var parts []types.Part
	err := s.storage.Scan(ctx, []string{"part", messageID}, func(key string, data json.RawMessage) error {
		part, err := types.UnmarshalPart(data)
		if err != nil {
			return err
		}
		parts = append(parts, part)
		return nil
	})
	return parts, err
}

// PartsByMessage loads parts for every message in messages, keyed by
// message ID, the shape provider.ConvertToEinoMessages expects.
func (s *SessionStore) PartsByMessage(ctx context.Context, messages []*types.Message) (map[string][]types.Part, error) {
	result := make(map[string][]types.Part, len(messages))
	for _, msg := range messages {
		parts, err := s.GetParts(ctx, msg.ID)
		if err != nil {
			return nil, err
		}
		result[msg.ID] = parts
	}
	return result, nil
}
