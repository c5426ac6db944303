package database

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memoryStore is a map-backed Store implementation. It backs the usage
// tracker in tests and anywhere a throwaway datastore is acceptable; the
// SQLite store is the production implementation.
type memoryStore struct {
	mu       sync.RWMutex
	groups   map[int64]Group
	messages map[int64][]Message
	nextID   uint
}

// NewMemoryStore creates an in-memory Store. It is safe for concurrent use.
func NewMemoryStore() Store {
	return &memoryStore{
		groups:   make(map[int64]Group),
		messages: make(map[int64][]Message),
		nextID:   1,
	}
}

func (s *memoryStore) Ping(_ context.Context) error {
	return nil
}

func (s *memoryStore) GetGroup(ctx context.Context, chatID int64) (*Group, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	group, ok := s.groups[chatID]
	if !ok {
		return nil, nil
	}
	copied := group
	return &copied, nil
}

func (s *memoryStore) SaveGroup(ctx context.Context, group *Group) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	group.UpdatedAt = now
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}
	s.groups[group.ChatID] = *group
	return nil
}

func (s *memoryStore) ListGroups(ctx context.Context) ([]*Group, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	groups := make([]*Group, 0, len(s.groups))
	for _, group := range s.groups {
		copied := group
		groups = append(groups, &copied)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ChatID < groups[j].ChatID })
	return groups, nil
}

func (s *memoryStore) SaveMessage(ctx context.Context, message *Message, keep int) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if message.Timestamp.IsZero() {
		message.Timestamp = now
	}
	message.CreatedAt = now
	message.ID = s.nextID
	s.nextID++

	history := append(s.messages[message.ChatID], *message)
	if len(history) > keep {
		history = history[len(history)-keep:]
	}
	s.messages[message.ChatID] = history
	return nil
}

func (s *memoryStore) GetRecentMessagesInChat(ctx context.Context, chatID int64, limit int) ([]Message, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.messages[chatID]
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	out := make([]Message, len(history))
	copy(out, history)
	return out, nil
}

func (s *memoryStore) PruneMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var pruned int64
	for chatID, history := range s.messages {
		kept := history[:0]
		for _, msg := range history {
			if msg.Timestamp.Before(cutoff) {
				pruned++
				continue
			}
			kept = append(kept, msg)
		}
		s.messages[chatID] = kept
	}
	return pruned, nil
}

func (s *memoryStore) RunSQLMaintenance(_ context.Context) error {
	return nil
}
