package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the interface for database operations. Methods accept
// context.Context for cancellation and timeouts. The usage tracker depends
// only on this interface, so tests can swap in the in-memory implementation.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// GetGroup retrieves the quota record for a chat. Returns nil, nil if
	// the group has never been seen.
	GetGroup(ctx context.Context, chatID int64) (*Group, error)

	// SaveGroup inserts or updates a group's quota record.
	SaveGroup(ctx context.Context, group *Group) error

	// ListGroups retrieves all known group records.
	ListGroups(ctx context.Context) ([]*Group, error)

	// SaveMessage appends a history entry and evicts the oldest entries so
	// that at most 'keep' messages remain for the chat.
	SaveMessage(ctx context.Context, message *Message, keep int) error

	// GetRecentMessagesInChat retrieves up to 'limit' most recent messages
	// for a chat, oldest first.
	GetRecentMessagesInChat(ctx context.Context, chatID int64, limit int) ([]Message, error)

	// PruneMessagesBefore deletes history entries older than the cutoff,
	// returning the number of rows removed.
	PruneMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetGroup retrieves the quota record for a chat. Returns nil, nil if absent.
func (s *sqlxStore) GetGroup(ctx context.Context, chatID int64) (*Group, error) {
	if chatID == 0 {
		return nil, fmt.Errorf("chat_id cannot be zero")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var group Group
	query := `SELECT chat_id, tier, usage_count, usage_date, created_at, updated_at
	          FROM groups WHERE chat_id = ?`

	err := s.db.GetContext(ctx, &group, query, chatID)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.DebugContext(ctx, "No group record found", "chat_id", chatID)
		return nil, nil

	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching group",
			"chat_id", chatID, "error", err)
		return nil, err

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting group", "chat_id", chatID, "error", err)
		return nil, fmt.Errorf("failed to get group %d: %w", chatID, err)
	}

	return &group, nil
}

// SaveGroup inserts or updates a group's quota record keyed by chat ID.
func (s *sqlxStore) SaveGroup(ctx context.Context, group *Group) error {
	if group == nil {
		return fmt.Errorf("cannot save nil group")
	}
	if group.ChatID == 0 {
		return fmt.Errorf("group must have a non-zero chat_id")
	}

	now := time.Now().UTC()
	group.UpdatedAt = now
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}

	query := `
        INSERT INTO groups (chat_id, tier, usage_count, usage_date, created_at, updated_at)
        VALUES (:chat_id, :tier, :usage_count, :usage_date, :created_at, :updated_at)
        ON CONFLICT(chat_id) DO UPDATE SET
            tier        = excluded.tier,
            usage_count = excluded.usage_count,
            usage_date  = excluded.usage_date,
            updated_at  = excluded.updated_at;
    `

	if _, err := s.db.NamedExecContext(ctx, query, group); err != nil {
		s.logger.ErrorContext(ctx, "Error saving group", "chat_id", group.ChatID, "error", err)
		return fmt.Errorf("failed to save group %d: %w", group.ChatID, err)
	}

	s.logger.DebugContext(ctx, "Group saved successfully",
		"chat_id", group.ChatID, "tier", group.Tier, "usage_count", group.UsageCount)
	return nil
}

// ListGroups retrieves all known group records.
func (s *sqlxStore) ListGroups(ctx context.Context) ([]*Group, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var groups []*Group
	query := `SELECT chat_id, tier, usage_count, usage_date, created_at, updated_at
	          FROM groups ORDER BY chat_id`

	err := s.db.SelectContext(ctx, &groups, query)

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while listing groups", "error", err)
		return nil, err

	case err != nil:
		s.logger.ErrorContext(ctx, "Error listing groups", "error", err)
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	s.logger.DebugContext(ctx, "Listed groups successfully", "count", len(groups))
	return groups, nil
}

// SaveMessage appends a history entry and trims the chat's history to the
// newest 'keep' entries in the same transaction, so the rolling window
// invariant holds even if the process dies between calls.
func (s *sqlxStore) SaveMessage(ctx context.Context, message *Message, keep int) error {
	if message == nil {
		return fmt.Errorf("cannot save nil message")
	}
	if message.ChatID == 0 {
		return fmt.Errorf("message must have a non-zero chat_id")
	}
	if message.Content == "" {
		return fmt.Errorf("message must have non-empty content")
	}
	if keep <= 0 {
		return fmt.Errorf("history bound must be positive, got %d", keep)
	}

	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}
	message.CreatedAt = time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for saving message",
			"chat_id", message.ChatID, "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				if !errors.Is(rollbackErr, sql.ErrTxDone) {
					s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
				}
			}
		}
	}()

	insert := `
        INSERT INTO messages (chat_id, user_id, role, content, timestamp, created_at)
        VALUES (:chat_id, :user_id, :role, :content, :timestamp, :created_at);
    `

	result, err := tx.NamedExecContext(ctx, insert, message)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving message", "chat_id", message.ChatID, "error", err)
		return fmt.Errorf("failed to save message for chat %d: %w", message.ChatID, err)
	}

	if id, idErr := result.LastInsertId(); idErr == nil {
		//nolint:gosec // integer overflow conversion is acceptable here
		message.ID = uint(id)
	} else {
		s.logger.WarnContext(ctx, "Could not retrieve last insert ID after saving message",
			"chat_id", message.ChatID, "error", idErr)
	}

	trim := `
        DELETE FROM messages
        WHERE chat_id = ? AND id NOT IN (
            SELECT id FROM messages WHERE chat_id = ? ORDER BY id DESC LIMIT ?
        );
    `

	if _, err := tx.ExecContext(ctx, trim, message.ChatID, message.ChatID, keep); err != nil {
		s.logger.ErrorContext(ctx, "Error trimming message history", "chat_id", message.ChatID, "error", err)
		return fmt.Errorf("failed to trim history for chat %d: %w", message.ChatID, err)
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction",
			"chat_id", message.ChatID, "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Message saved successfully",
		"chat_id", message.ChatID, "role", message.Role, "message_id", message.ID)
	return nil
}

// GetRecentMessagesInChat retrieves up to 'limit' most recent messages for a
// chat, oldest first.
func (s *sqlxStore) GetRecentMessagesInChat(ctx context.Context, chatID int64, limit int) ([]Message, error) {
	if chatID == 0 {
		return nil, fmt.Errorf("chat_id cannot be zero")
	}
	if limit <= 0 {
		limit = 20
		s.logger.DebugContext(ctx, "Invalid limit provided, using default", "chat_id", chatID, "default_limit", limit)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var messages []Message
	query := `
        SELECT id, chat_id, user_id, role, content, timestamp, created_at
        FROM (
            SELECT id, chat_id, user_id, role, content, timestamp, created_at
            FROM messages
            WHERE chat_id = ?
            ORDER BY id DESC
            LIMIT ?
        )
        ORDER BY id ASC;
    `

	err := s.db.SelectContext(ctx, &messages, query, chatID, limit)

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching messages",
			"chat_id", chatID, "error", err)
		return nil, err

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting recent messages", "chat_id", chatID, "limit", limit, "error", err)
		return nil, fmt.Errorf("failed to get recent messages for chat %d: %w", chatID, err)
	}

	s.logger.DebugContext(ctx, "Fetched recent messages successfully", "chat_id", chatID, "count", len(messages))
	return messages, nil
}

// PruneMessagesBefore deletes history entries older than the cutoff.
func (s *sqlxStore) PruneMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE timestamp < ?`, cutoff)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error pruning old messages", "cutoff", cutoff, "error", err)
		return 0, fmt.Errorf("failed to prune messages before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	count, _ := result.RowsAffected()
	s.logger.InfoContext(ctx, "Pruned old messages", "cutoff", cutoff, "count", count)
	return count, nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite
	_, err := s.db.ExecContext(ctx, "VACUUM;")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)

	default:
		s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	}

	return nil
}
