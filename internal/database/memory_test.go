package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/noologic/gendolf/internal/database"
)

func TestMemoryStoreGroups(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := database.NewMemoryStore()

	t.Run("missing group is nil without error", func(t *testing.T) {
		group, err := store.GetGroup(ctx, 12345)
		if err != nil {
			t.Fatalf("GetGroup() error = %v", err)
		}
		if group != nil {
			t.Errorf("GetGroup() = %+v, expected nil for unknown chat", group)
		}
	})

	t.Run("save then read back", func(t *testing.T) {
		saved := &database.Group{ChatID: -100, Tier: database.TierFree, UsageCount: 7, UsageDate: "2025-06-15"}
		if err := store.SaveGroup(ctx, saved); err != nil {
			t.Fatalf("SaveGroup() error = %v", err)
		}

		got, err := store.GetGroup(ctx, -100)
		if err != nil {
			t.Fatalf("GetGroup() error = %v", err)
		}
		if got == nil || got.UsageCount != 7 || got.Tier != database.TierFree {
			t.Errorf("GetGroup() = %+v", got)
		}
	})

	t.Run("upsert overwrites", func(t *testing.T) {
		if err := store.SaveGroup(ctx, &database.Group{ChatID: -100, Tier: database.TierPro, UsageCount: 8, UsageDate: "2025-06-15"}); err != nil {
			t.Fatalf("SaveGroup() error = %v", err)
		}
		got, err := store.GetGroup(ctx, -100)
		if err != nil {
			t.Fatalf("GetGroup() error = %v", err)
		}
		if got.Tier != database.TierPro || got.UsageCount != 8 {
			t.Errorf("GetGroup() after upsert = %+v", got)
		}
	})

	t.Run("list is ordered by chat id", func(t *testing.T) {
		if err := store.SaveGroup(ctx, &database.Group{ChatID: -200, Tier: database.TierFree}); err != nil {
			t.Fatalf("SaveGroup() error = %v", err)
		}
		groups, err := store.ListGroups(ctx)
		if err != nil {
			t.Fatalf("ListGroups() error = %v", err)
		}
		if len(groups) != 2 || groups[0].ChatID != -200 || groups[1].ChatID != -100 {
			t.Errorf("ListGroups() = %+v", groups)
		}
	})
}

func TestMemoryStoreMessageTrimming(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := database.NewMemoryStore()
	const keep = 3

	for i := range 5 {
		msg := &database.Message{
			ChatID:  -1,
			UserID:  int64(i + 1),
			Role:    database.RoleUser,
			Content: string(rune('a' + i)),
		}
		if err := store.SaveMessage(ctx, msg, keep); err != nil {
			t.Fatalf("SaveMessage() error = %v", err)
		}
	}

	history, err := store.GetRecentMessagesInChat(ctx, -1, keep)
	if err != nil {
		t.Fatalf("GetRecentMessagesInChat() error = %v", err)
	}
	if len(history) != keep {
		t.Fatalf("history length = %d, expected %d", len(history), keep)
	}
	for i, want := range []string{"c", "d", "e"} {
		if history[i].Content != want {
			t.Errorf("history[%d].Content = %q, expected %q", i, history[i].Content, want)
		}
	}

	// Other chats must be untouched by the trim.
	other, err := store.GetRecentMessagesInChat(ctx, -2, keep)
	if err != nil {
		t.Fatalf("GetRecentMessagesInChat() error = %v", err)
	}
	if len(other) != 0 {
		t.Errorf("unrelated chat history length = %d, expected 0", len(other))
	}
}

func TestMemoryStorePruneMessagesBefore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := database.NewMemoryStore()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := range 4 {
		msg := &database.Message{
			ChatID:    -1,
			UserID:    1,
			Role:      database.RoleUser,
			Content:   "m",
			Timestamp: base.Add(time.Duration(i) * 24 * time.Hour),
		}
		if err := store.SaveMessage(ctx, msg, 100); err != nil {
			t.Fatalf("SaveMessage() error = %v", err)
		}
	}

	pruned, err := store.PruneMessagesBefore(ctx, base.Add(2*24*time.Hour))
	if err != nil {
		t.Fatalf("PruneMessagesBefore() error = %v", err)
	}
	if pruned != 2 {
		t.Errorf("PruneMessagesBefore() = %d, expected 2", pruned)
	}

	history, err := store.GetRecentMessagesInChat(ctx, -1, 100)
	if err != nil {
		t.Fatalf("GetRecentMessagesInChat() error = %v", err)
	}
	if len(history) != 2 {
		t.Errorf("history length after prune = %d, expected 2", len(history))
	}
}

func TestMemoryStoreRespectsCancelledContext(t *testing.T) {
	t.Parallel()

	store := database.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.GetGroup(ctx, 1); err == nil {
		t.Error("GetGroup() with cancelled context succeeded, expected an error")
	}
	if err := store.SaveMessage(ctx, &database.Message{ChatID: 1}, 5); err == nil {
		t.Error("SaveMessage() with cancelled context succeeded, expected an error")
	}
}
