// Package usage implements the per-group quota and rolling conversation
// memory bookkeeping behind the bot's freemium model. Free groups get a
// fixed number of AI-backed replies per UTC calendar day; pro groups are
// unlimited. Every group also carries a bounded history of recent turns
// used as conversational context for the AI backend.
package usage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/noologic/gendolf/internal/database"
)

// usageDateLayout is the UTC calendar date a usage counter applies to.
// The day boundary is midnight UTC, matching the counter reset.
const usageDateLayout = "2006-01-02"

// ErrUnknownTier is returned by SetTier for tiers other than free and pro.
var ErrUnknownTier = errors.New("unknown tier")

// Decision is the outcome of a quota check for an inbound user message.
type Decision int

const (
	// DecisionAllowed means the caller may invoke the AI backend; the
	// group's daily counter has already been charged.
	DecisionAllowed Decision = iota

	// DecisionQuotaExceeded means the group's free daily quota is spent.
	// The caller must reply with the upgrade prompt and must not invoke
	// the AI backend; the counter was not charged.
	DecisionQuotaExceeded
)

func (d Decision) String() string {
	switch d {
	case DecisionAllowed:
		return "allowed"
	case DecisionQuotaExceeded:
		return "quota_exceeded"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Stats is a read-only snapshot of one group's quota state. UsageCount and
// Remaining reflect the lazy daily reset: after a day boundary they report
// the fresh day's values even before the next write.
type Stats struct {
	Tier          database.Tier
	UsageCount    int
	UsageDate     string
	Remaining     int
	HistoryLength int
}

// AggregateStats summarizes all known groups for the admin surface.
type AggregateStats struct {
	TotalGroups       int
	ProGroups         int
	MessagesToday     int
	ActiveGroupsToday int
}

// Tracker owns per-group quota state and rolling history. Access to a single
// group is serialized with a per-group mutex so concurrent messages from the
// same chat cannot lose counter updates; different groups never block each
// other.
type Tracker struct {
	store       database.Store
	clock       clockwork.Clock
	logger      *slog.Logger
	freeLimit   int
	historySize int

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewTracker creates a Tracker over the given store. The clock is injected so
// tests can drive day-boundary crossings deterministically.
func NewTracker(store database.Store, clock clockwork.Clock, logger *slog.Logger, freeLimit, historySize int) *Tracker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if freeLimit <= 0 {
		freeLimit = 50
	}
	if historySize <= 0 {
		historySize = 20
	}
	return &Tracker{
		store:       store,
		clock:       clock,
		logger:      logger.With("component", "usage_tracker"),
		freeLimit:   freeLimit,
		historySize: historySize,
		locks:       make(map[int64]*sync.Mutex),
	}
}

// FreeLimit returns the configured daily ceiling for free groups.
func (t *Tracker) FreeLimit() int {
	return t.freeLimit
}

// lockFor returns the mutex serializing access to one group's record,
// creating it on first use. Group records are never destroyed, so neither
// are their locks.
func (t *Tracker) lockFor(chatID int64) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()

	lock, ok := t.locks[chatID]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[chatID] = lock
	}
	return lock
}

// today returns the current UTC calendar date.
func (t *Tracker) today() string {
	return t.clock.Now().UTC().Format(usageDateLayout)
}

// rollover resets the counter when the record's usage date has fallen behind
// the current day. No background timer drives this; it runs on access.
func (t *Tracker) rollover(group *database.Group, today string) {
	if group.UsageDate == today {
		return
	}
	group.UsageCount = 0
	group.UsageDate = today
}

// RecordAndCheck appends one turn to a group's rolling history and, for user
// turns, decides whether an AI-backed reply is permitted. The group record is
// created lazily on first contact (free tier, empty history, zero usage).
//
// On DecisionAllowed for a user turn the daily counter is charged by exactly
// one; bot turns only extend the history and never touch the counter. Pro
// groups are always allowed; their counter is still recorded for statistics.
func (t *Tracker) RecordAndCheck(ctx context.Context, chatID, userID int64, text string, role database.Role) (Decision, error) {
	if text == "" {
		return DecisionAllowed, fmt.Errorf("message text cannot be empty")
	}

	lock := t.lockFor(chatID)
	lock.Lock()
	defer lock.Unlock()

	group, err := t.store.GetGroup(ctx, chatID)
	if err != nil {
		return DecisionAllowed, fmt.Errorf("failed to load group %d: %w", chatID, err)
	}

	today := t.today()
	if group == nil {
		group = &database.Group{ChatID: chatID, Tier: database.TierFree, UsageDate: today}
		t.logger.InfoContext(ctx, "Tracking new group", "chat_id", chatID)
	}

	decision := DecisionAllowed
	if role == database.RoleUser {
		t.rollover(group, today)
		if group.Tier != database.TierPro && group.UsageCount >= t.freeLimit {
			decision = DecisionQuotaExceeded
		} else {
			group.UsageCount++
		}
	}

	if err := t.store.SaveGroup(ctx, group); err != nil {
		return DecisionAllowed, fmt.Errorf("failed to save group %d: %w", chatID, err)
	}

	msg := &database.Message{
		ChatID:    chatID,
		UserID:    userID,
		Role:      role,
		Content:   text,
		Timestamp: t.clock.Now().UTC(),
	}
	if err := t.store.SaveMessage(ctx, msg, t.historySize); err != nil {
		return DecisionAllowed, fmt.Errorf("failed to record history for chat %d: %w", chatID, err)
	}

	t.logger.DebugContext(ctx, "Recorded turn",
		"chat_id", chatID, "role", role, "decision", decision.String(),
		"usage_count", group.UsageCount, "tier", group.Tier)
	return decision, nil
}

// SetTier overwrites a group's tier. It is idempotent and leaves the history
// and usage counter untouched. The record is created if the group has not
// been seen yet, so admins can upgrade a chat before its first message.
func (t *Tracker) SetTier(ctx context.Context, chatID int64, tier database.Tier) error {
	if tier != database.TierFree && tier != database.TierPro {
		return fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}

	lock := t.lockFor(chatID)
	lock.Lock()
	defer lock.Unlock()

	group, err := t.store.GetGroup(ctx, chatID)
	if err != nil {
		return fmt.Errorf("failed to load group %d: %w", chatID, err)
	}
	if group == nil {
		group = &database.Group{ChatID: chatID, Tier: database.TierFree, UsageDate: t.today()}
	}

	group.Tier = tier
	if err := t.store.SaveGroup(ctx, group); err != nil {
		return fmt.Errorf("failed to save group %d: %w", chatID, err)
	}

	t.logger.InfoContext(ctx, "Group tier updated", "chat_id", chatID, "tier", tier)
	return nil
}

// Stats returns a snapshot of one group's quota state. Unknown groups report
// free-tier defaults so the /stats command works before the first tracked
// message.
func (t *Tracker) Stats(ctx context.Context, chatID int64) (Stats, error) {
	lock := t.lockFor(chatID)
	lock.Lock()
	defer lock.Unlock()

	group, err := t.store.GetGroup(ctx, chatID)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to load group %d: %w", chatID, err)
	}

	today := t.today()
	if group == nil {
		group = &database.Group{ChatID: chatID, Tier: database.TierFree, UsageDate: today}
	}
	// Present the post-reset view without persisting it; the next write
	// performs the actual rollover.
	t.rollover(group, today)

	history, err := t.store.GetRecentMessagesInChat(ctx, chatID, t.historySize)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to load history for chat %d: %w", chatID, err)
	}

	remaining := t.freeLimit - group.UsageCount
	if remaining < 0 {
		remaining = 0
	}

	return Stats{
		Tier:          group.Tier,
		UsageCount:    group.UsageCount,
		UsageDate:     group.UsageDate,
		Remaining:     remaining,
		HistoryLength: len(history),
	}, nil
}

// Context returns the group's rolling history, oldest first, for use as
// conversational context. It does not mutate any state.
func (t *Tracker) Context(ctx context.Context, chatID int64) ([]database.Message, error) {
	history, err := t.store.GetRecentMessagesInChat(ctx, chatID, t.historySize)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for chat %d: %w", chatID, err)
	}
	return history, nil
}

// AggregateStats summarizes every known group for the admin stats surface.
func (t *Tracker) AggregateStats(ctx context.Context) (AggregateStats, error) {
	groups, err := t.store.ListGroups(ctx)
	if err != nil {
		return AggregateStats{}, fmt.Errorf("failed to list groups: %w", err)
	}

	today := t.today()
	agg := AggregateStats{TotalGroups: len(groups)}
	for _, group := range groups {
		if group.Tier == database.TierPro {
			agg.ProGroups++
		}
		if group.UsageDate == today {
			agg.MessagesToday += group.UsageCount
			if group.UsageCount > 0 {
				agg.ActiveGroupsToday++
			}
		}
	}
	return agg, nil
}
