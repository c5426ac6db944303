package ai_test

import (
	"strings"
	"testing"
	"time"

	"github.com/noologic/gendolf/internal/ai"
	"github.com/noologic/gendolf/internal/database"
)

func TestSystemPrompt(t *testing.T) {
	t.Parallel()

	t.Run("includes group name", func(t *testing.T) {
		t.Parallel()

		got := ai.SystemPrompt("Go Nuts")
		if !strings.Contains(got, "'Go Nuts'") {
			t.Errorf("SystemPrompt() = %q, expected it to contain the group name", got)
		}
	})

	t.Run("falls back to generic title", func(t *testing.T) {
		t.Parallel()

		got := ai.SystemPrompt("")
		if !strings.Contains(got, "'Chat'") {
			t.Errorf("SystemPrompt() = %q, expected the fallback title", got)
		}
	})
}

func TestBuildTurns(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	history := []database.Message{
		{ChatID: 1, UserID: 100, Role: database.RoleUser, Content: "first", Timestamp: now},
		{ChatID: 1, UserID: 0, Role: database.RoleBot, Content: "reply one", Timestamp: now},
		{ChatID: 1, UserID: 200, Role: database.RoleUser, Content: "second", Timestamp: now},
		{ChatID: 1, UserID: 0, Role: database.RoleBot, Content: "reply two", Timestamp: now},
	}

	t.Run("maps roles and tags senders", func(t *testing.T) {
		t.Parallel()

		turns := ai.BuildTurns(history, 10)
		if len(turns) != 4 {
			t.Fatalf("BuildTurns() returned %d turns, expected 4", len(turns))
		}
		if turns[0].Role != ai.TurnRoleUser || turns[0].Content != "[UID 100]: first" {
			t.Errorf("turn 0 = %+v, expected tagged user turn", turns[0])
		}
		if turns[1].Role != ai.TurnRoleAssistant || turns[1].Content != "reply one" {
			t.Errorf("turn 1 = %+v, expected untagged assistant turn", turns[1])
		}
		if turns[2].Content != "[UID 200]: second" {
			t.Errorf("turn 2 content = %q, expected the second sender's ID", turns[2].Content)
		}
	})

	t.Run("keeps only the most recent turns", func(t *testing.T) {
		t.Parallel()

		turns := ai.BuildTurns(history, 2)
		if len(turns) != 2 {
			t.Fatalf("BuildTurns() returned %d turns, expected 2", len(turns))
		}
		if turns[0].Content != "[UID 200]: second" {
			t.Errorf("first kept turn = %q, expected the third history entry", turns[0].Content)
		}
		if turns[1].Content != "reply two" {
			t.Errorf("second kept turn = %q, expected the final history entry", turns[1].Content)
		}
	})

	t.Run("zero limit keeps everything", func(t *testing.T) {
		t.Parallel()

		if got := len(ai.BuildTurns(history, 0)); got != 4 {
			t.Errorf("BuildTurns() returned %d turns, expected all 4", got)
		}
	})
}
