package simulator

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"shopping-assistant/internal/domain"
)

func TestSimulator_RunCompletesOnFirstPoll(t *testing.T) {
	ctx := context.Background()
	s := New()

	threadID, err := s.CreateThread(ctx)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(threadID, "thread_"))

	_, err = s.AppendTurn(ctx, threadID, domain.RoleAssistant, "seed")
	require.NoError(t, err)
	_, err = s.AppendTurn(ctx, threadID, domain.RoleUser, "wireless please")
	require.NoError(t, err)

	run, err := s.StartRun(ctx, threadID, "asst_chat")
	require.NoError(t, err)
	require.Equal(t, domain.RunQueued, run.Status)

	run, err = s.GetRun(ctx, threadID, run.ID)
	require.NoError(t, err)
	require.Equal(t, domain.RunCompleted, run.Status)

	turns, err := s.ListTurns(ctx, threadID)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	require.Equal(t, domain.RoleAssistant, turns[0].Role)
	require.Contains(t, turns[0].Text(), "wireless please")
	require.Equal(t, "seed", turns[2].Text())

	// Polling a finished run does not add more replies.
	_, err = s.GetRun(ctx, threadID, run.ID)
	require.NoError(t, err)
	turns, err = s.ListTurns(ctx, threadID)
	require.NoError(t, err)
	require.Len(t, turns, 3)
}

func TestSimulator_ReplyTruncatesOnRuneBoundary(t *testing.T) {
	ctx := context.Background()
	s := New()
	threadID, err := s.CreateThread(ctx)
	require.NoError(t, err)

	// One ASCII byte first so byte offset 200 falls inside a two-byte rune.
	long := "x" + strings.Repeat("é", 250)
	_, err = s.AppendTurn(ctx, threadID, domain.RoleUser, long)
	require.NoError(t, err)
	run, err := s.StartRun(ctx, threadID, "asst_chat")
	require.NoError(t, err)
	_, err = s.GetRun(ctx, threadID, run.ID)
	require.NoError(t, err)

	turns, err := s.ListTurns(ctx, threadID)
	require.NoError(t, err)
	reply := turns[0].Text()
	require.True(t, utf8.ValidString(reply))
	require.Contains(t, reply, "x"+strings.Repeat("é", 199)+"...")
	require.NotContains(t, reply, strings.Repeat("é", 200))
}

func TestSimulator_UnknownThread(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.AppendTurn(ctx, "thread_missing", domain.RoleUser, "x")
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.StartRun(ctx, "thread_missing", "a")
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.GetRun(ctx, "thread_missing", "run_missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.ListTurns(ctx, "thread_missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSimulator_StructuredExtractParsesKeyValueLines(t *testing.T) {
	var out struct {
		Preferences []domain.PreferenceUpdate `json:"preferences"`
	}
	err := New().StructuredExtract(context.Background(), []domain.ChatMessage{
		{Role: "system", Content: "Career: ignored system text"},
		{Role: "user", Content: "hello there\nbudget: $150\n  Favorite Brand: Acme \nnot a pair"},
	}, "preference_extraction", &out)
	require.NoError(t, err)
	require.Equal(t, []domain.PreferenceUpdate{
		{Key: "budget", Value: "$150"},
		{Key: "Favorite Brand", Value: "Acme"},
	}, out.Preferences)
}

func TestSimulator_StructuredExtractEmpty(t *testing.T) {
	var out struct {
		Preferences []domain.PreferenceUpdate `json:"preferences"`
	}
	err := New().StructuredExtract(context.Background(), []domain.ChatMessage{{Role: "user", Content: "just browsing"}}, "x", &out)
	require.NoError(t, err)
	require.Empty(t, out.Preferences)
}
