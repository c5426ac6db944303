package database

import "time"

// Tier is the subscription level of a group. Free groups are limited to a
// daily number of AI-backed replies; pro groups are unlimited.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

// Role identifies who authored a history entry.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Group holds the per-chat quota state. UsageDate is the UTC calendar date
// ("2006-01-02") that UsageCount applies to; the counter is lazily reset when
// the current date moves past it.
type Group struct {
	ChatID     int64     `db:"chat_id"`
	Tier       Tier      `db:"tier"`
	UsageCount int       `db:"usage_count"`
	UsageDate  string    `db:"usage_date"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Message is one entry of a group's rolling conversation history.
type Message struct {
	ID        uint      `db:"id"`
	ChatID    int64     `db:"chat_id"`
	UserID    int64     `db:"user_id"`
	Role      Role      `db:"role"`
	Content   string    `db:"content"`
	Timestamp time.Time `db:"timestamp"`
	CreatedAt time.Time `db:"created_at"`
}
