package usage_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/noologic/gendolf/internal/database"
	"github.com/noologic/gendolf/internal/usage"
)

const (
	testFreeLimit   = 50
	testHistorySize = 20
)

// newTestTracker builds a tracker over the in-memory store with a fake clock
// pinned to mid-day UTC, so tests control day boundaries explicitly.
func newTestTracker(t *testing.T) (*usage.Tracker, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
	tracker := usage.NewTracker(database.NewMemoryStore(), clock, nil, testFreeLimit, testHistorySize)
	return tracker, clock
}

func mustRecord(t *testing.T, tracker *usage.Tracker, chatID int64, text string, role database.Role) usage.Decision {
	t.Helper()
	decision, err := tracker.RecordAndCheck(context.Background(), chatID, 100, text, role)
	if err != nil {
		t.Fatalf("RecordAndCheck(%d, %q, %s) failed: %v", chatID, text, role, err)
	}
	return decision
}

func TestFreeQuotaCeiling(t *testing.T) {
	t.Parallel()

	tracker, _ := newTestTracker(t)
	const chatID = int64(1001)

	for i := 0; i < testFreeLimit; i++ {
		decision := mustRecord(t, tracker, chatID, fmt.Sprintf("question %d", i+1), database.RoleUser)
		if decision != usage.DecisionAllowed {
			t.Fatalf("message %d: got %s, want allowed", i+1, decision)
		}
	}

	decision := mustRecord(t, tracker, chatID, "one too many", database.RoleUser)
	if decision != usage.DecisionQuotaExceeded {
		t.Errorf("message %d: got %s, want quota_exceeded", testFreeLimit+1, decision)
	}

	stats, err := tracker.Stats(context.Background(), chatID)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.UsageCount != testFreeLimit {
		t.Errorf("usage count after rejection: got %d, want %d", stats.UsageCount, testFreeLimit)
	}
	if stats.Remaining != 0 {
		t.Errorf("remaining after rejection: got %d, want 0", stats.Remaining)
	}
}

func TestProTierUnlimited(t *testing.T) {
	t.Parallel()

	tracker, _ := newTestTracker(t)
	const chatID = int64(1002)

	if err := tracker.SetTier(context.Background(), chatID, database.TierPro); err != nil {
		t.Fatalf("SetTier failed: %v", err)
	}

	for i := 0; i < 200; i++ {
		decision := mustRecord(t, tracker, chatID, fmt.Sprintf("pro question %d", i+1), database.RoleUser)
		if decision != usage.DecisionAllowed {
			t.Fatalf("pro message %d: got %s, want allowed", i+1, decision)
		}
	}

	stats, err := tracker.Stats(context.Background(), chatID)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	// The counter keeps recording for statistics even though it never blocks.
	if stats.UsageCount != 200 {
		t.Errorf("pro usage count: got %d, want 200", stats.UsageCount)
	}
}

func TestDailyResetAtDayBoundary(t *testing.T) {
	t.Parallel()

	tracker, clock := newTestTracker(t)
	const chatID = int64(1003)

	for i := 0; i < testFreeLimit; i++ {
		mustRecord(t, tracker, chatID, "exhaust", database.RoleUser)
	}
	if decision := mustRecord(t, tracker, chatID, "blocked", database.RoleUser); decision != usage.DecisionQuotaExceeded {
		t.Fatalf("expected quota_exceeded before midnight, got %s", decision)
	}

	clock.Advance(24 * time.Hour)

	decision := mustRecord(t, tracker, chatID, "new day", database.RoleUser)
	if decision != usage.DecisionAllowed {
		t.Errorf("first message after day boundary: got %s, want allowed", decision)
	}

	stats, err := tracker.Stats(context.Background(), chatID)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.UsageCount != 1 {
		t.Errorf("usage count after reset: got %d, want 1", stats.UsageCount)
	}
}

func TestStatsReportsResetViewWithoutWrite(t *testing.T) {
	t.Parallel()

	tracker, clock := newTestTracker(t)
	const chatID = int64(1004)

	for i := 0; i < 10; i++ {
		mustRecord(t, tracker, chatID, "msg", database.RoleUser)
	}

	clock.Advance(24 * time.Hour)

	stats, err := tracker.Stats(context.Background(), chatID)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.UsageCount != 0 {
		t.Errorf("usage count read after boundary: got %d, want 0", stats.UsageCount)
	}
	if stats.Remaining != testFreeLimit {
		t.Errorf("remaining read after boundary: got %d, want %d", stats.Remaining, testFreeLimit)
	}
}

func TestHistoryBoundAndOrder(t *testing.T) {
	t.Parallel()

	tracker, _ := newTestTracker(t)
	const chatID = int64(1005)

	for i := 1; i <= testHistorySize+1; i++ {
		mustRecord(t, tracker, chatID, fmt.Sprintf("m%d", i), database.RoleUser)
	}

	history, err := tracker.Context(context.Background(), chatID)
	if err != nil {
		t.Fatalf("Context failed: %v", err)
	}
	if len(history) != testHistorySize {
		t.Fatalf("history length: got %d, want %d", len(history), testHistorySize)
	}
	// Oldest entry (m1) evicted; the newest 20 remain in original order.
	for i, msg := range history {
		want := fmt.Sprintf("m%d", i+2)
		if msg.Content != want {
			t.Errorf("history[%d]: got %q, want %q", i, msg.Content, want)
		}
	}
}

func TestAlternatingRolesContext(t *testing.T) {
	t.Parallel()

	tracker, _ := newTestTracker(t)
	const chatID = int64(1006)

	for i := 1; i <= 25; i++ {
		role := database.RoleUser
		if i%2 == 0 {
			role = database.RoleBot
		}
		mustRecord(t, tracker, chatID, fmt.Sprintf("turn%d", i), role)
	}

	history, err := tracker.Context(context.Background(), chatID)
	if err != nil {
		t.Fatalf("Context failed: %v", err)
	}
	if len(history) != testHistorySize {
		t.Fatalf("history length: got %d, want %d", len(history), testHistorySize)
	}
	for i, msg := range history {
		turn := i + 6 // turns 6..25 survive
		wantRole := database.RoleUser
		if turn%2 == 0 {
			wantRole = database.RoleBot
		}
		if msg.Content != fmt.Sprintf("turn%d", turn) {
			t.Errorf("history[%d]: got %q, want %q", i, msg.Content, fmt.Sprintf("turn%d", turn))
		}
		if msg.Role != wantRole {
			t.Errorf("history[%d] role: got %s, want %s", i, msg.Role, wantRole)
		}
	}

	// 13 user turns were recorded, none rejected at this volume.
	stats, err := tracker.Stats(context.Background(), chatID)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.UsageCount != 13 {
		t.Errorf("usage count: got %d, want 13 (bot turns must not consume quota)", stats.UsageCount)
	}
}

func TestBotTurnsNeverCharged(t *testing.T) {
	t.Parallel()

	tracker, _ := newTestTracker(t)
	const chatID = int64(1007)

	for i := 0; i < testFreeLimit+30; i++ {
		decision := mustRecord(t, tracker, chatID, "context from the bot", database.RoleBot)
		if decision != usage.DecisionAllowed {
			t.Fatalf("bot turn %d: got %s, want allowed", i+1, decision)
		}
	}

	stats, err := tracker.Stats(context.Background(), chatID)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.UsageCount != 0 {
		t.Errorf("usage count after bot turns: got %d, want 0", stats.UsageCount)
	}
}

func TestSetTier(t *testing.T) {
	t.Parallel()

	t.Run("idempotent", func(t *testing.T) {
		t.Parallel()

		tracker, _ := newTestTracker(t)
		const chatID = int64(1008)
		ctx := context.Background()

		mustRecord(t, tracker, chatID, "hello", database.RoleUser)

		if err := tracker.SetTier(ctx, chatID, database.TierPro); err != nil {
			t.Fatalf("first SetTier failed: %v", err)
		}
		first, err := tracker.Stats(ctx, chatID)
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}

		if err := tracker.SetTier(ctx, chatID, database.TierPro); err != nil {
			t.Fatalf("second SetTier failed: %v", err)
		}
		second, err := tracker.Stats(ctx, chatID)
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}

		if first != second {
			t.Errorf("SetTier not idempotent: first %+v, second %+v", first, second)
		}
		if second.Tier != database.TierPro {
			t.Errorf("tier: got %s, want pro", second.Tier)
		}
		if second.UsageCount != 1 || second.HistoryLength != 1 {
			t.Errorf("SetTier must not touch usage or history: %+v", second)
		}
	})

	t.Run("unknown tier rejected", func(t *testing.T) {
		t.Parallel()

		tracker, _ := newTestTracker(t)
		err := tracker.SetTier(context.Background(), 1009, database.Tier("platinum"))
		if err == nil {
			t.Fatal("expected error for unknown tier, got nil")
		}
	})

	t.Run("creates record for unseen group", func(t *testing.T) {
		t.Parallel()

		tracker, _ := newTestTracker(t)
		const chatID = int64(1010)
		if err := tracker.SetTier(context.Background(), chatID, database.TierPro); err != nil {
			t.Fatalf("SetTier failed: %v", err)
		}
		stats, err := tracker.Stats(context.Background(), chatID)
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}
		if stats.Tier != database.TierPro {
			t.Errorf("tier: got %s, want pro", stats.Tier)
		}
	})
}

func TestExhaustUpgradeContinue(t *testing.T) {
	t.Parallel()

	tracker, _ := newTestTracker(t)
	const chatID = int64(1011)
	ctx := context.Background()

	stats, err := tracker.Stats(ctx, chatID)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Tier != database.TierFree {
		t.Fatalf("fresh group tier: got %s, want free", stats.Tier)
	}

	for i := 0; i < testFreeLimit; i++ {
		if decision := mustRecord(t, tracker, chatID, "q", database.RoleUser); decision != usage.DecisionAllowed {
			t.Fatalf("message %d: got %s, want allowed", i+1, decision)
		}
	}
	if decision := mustRecord(t, tracker, chatID, "over", database.RoleUser); decision != usage.DecisionQuotaExceeded {
		t.Fatalf("over-limit message: got %s, want quota_exceeded", decision)
	}

	if err := tracker.SetTier(ctx, chatID, database.TierPro); err != nil {
		t.Fatalf("SetTier failed: %v", err)
	}

	if decision := mustRecord(t, tracker, chatID, "after upgrade", database.RoleUser); decision != usage.DecisionAllowed {
		t.Errorf("post-upgrade message: got %s, want allowed", decision)
	}
}

func TestConcurrentSameGroupCounting(t *testing.T) {
	t.Parallel()

	tracker, _ := newTestTracker(t)
	const chatID = int64(1012)
	const attempts = testFreeLimit + 25

	var wg sync.WaitGroup
	var allowed, rejected atomic.Int64

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			decision, err := tracker.RecordAndCheck(context.Background(), chatID, int64(n), "racing", database.RoleUser)
			if err != nil {
				t.Errorf("RecordAndCheck failed: %v", err)
				return
			}
			if decision == usage.DecisionAllowed {
				allowed.Add(1)
			} else {
				rejected.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if got := allowed.Load(); got != testFreeLimit {
		t.Errorf("allowed decisions: got %d, want %d", got, testFreeLimit)
	}
	if got := rejected.Load(); got != attempts-testFreeLimit {
		t.Errorf("rejected decisions: got %d, want %d", got, attempts-testFreeLimit)
	}

	stats, err := tracker.Stats(context.Background(), chatID)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.UsageCount != testFreeLimit {
		t.Errorf("usage count under contention: got %d, want %d", stats.UsageCount, testFreeLimit)
	}
}

func TestAggregateStats(t *testing.T) {
	t.Parallel()

	tracker, clock := newTestTracker(t)
	ctx := context.Background()

	// Group A: free, active yesterday only.
	mustRecord(t, tracker, 2001, "old", database.RoleUser)
	clock.Advance(24 * time.Hour)

	// Group B: free, three messages today.
	for i := 0; i < 3; i++ {
		mustRecord(t, tracker, 2002, "today", database.RoleUser)
	}

	// Group C: pro, two messages today.
	if err := tracker.SetTier(ctx, 2003, database.TierPro); err != nil {
		t.Fatalf("SetTier failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		mustRecord(t, tracker, 2003, "pro today", database.RoleUser)
	}

	agg, err := tracker.AggregateStats(ctx)
	if err != nil {
		t.Fatalf("AggregateStats failed: %v", err)
	}

	if agg.TotalGroups != 3 {
		t.Errorf("total groups: got %d, want 3", agg.TotalGroups)
	}
	if agg.ProGroups != 1 {
		t.Errorf("pro groups: got %d, want 1", agg.ProGroups)
	}
	if agg.MessagesToday != 5 {
		t.Errorf("messages today: got %d, want 5", agg.MessagesToday)
	}
	if agg.ActiveGroupsToday != 2 {
		t.Errorf("active groups today: got %d, want 2", agg.ActiveGroupsToday)
	}
}

func TestRecordAndCheckRejectsEmptyText(t *testing.T) {
	t.Parallel()

	tracker, _ := newTestTracker(t)
	if _, err := tracker.RecordAndCheck(context.Background(), 3001, 1, "", database.RoleUser); err == nil {
		t.Fatal("expected error for empty message text, got nil")
	}
}
