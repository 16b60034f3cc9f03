package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"shopping-assistant/internal/domain"
)

func newTestOrchestrator(t *testing.T, rs *fakeReasoning) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(rs, newTestRunner(t, rs), "asst_chat")
	require.NoError(t, err)
	return o
}

func TestNewOrchestrator_ValidatesDependencies(t *testing.T) {
	rs := newFakeReasoning()
	runner := newTestRunner(t, rs)

	_, err := NewOrchestrator(nil, runner, "asst")
	require.Error(t, err)
	_, err = NewOrchestrator(rs, nil, "asst")
	require.Error(t, err)
	_, err = NewOrchestrator(rs, runner, " ")
	require.Error(t, err)
}

func TestOpen_SeedsTwoAssistantTurns(t *testing.T) {
	rs := newFakeReasoning()
	o := newTestOrchestrator(t, rs)

	prefs := []domain.Preference{
		{ID: 1, UserID: 1, Key: "budget", Value: "$100"},
		{ID: 2, UserID: 1, Key: "brand", Value: "Sony"},
	}
	out, err := o.Open(context.Background(), prefs, "buy headphones")
	require.NoError(t, err)
	require.NotEmpty(t, out.ThreadID)
	require.Len(t, out.SeedTurns, 2)

	require.Equal(t, domain.RoleAssistant, out.SeedTurns[0].Role)
	require.Equal(t, "User Preferences:\nbudget: $100\nbrand: Sony\n\nUser Intent: buy headphones", out.SeedTurns[0].Content)
	require.Equal(t, domain.RoleAssistant, out.SeedTurns[1].Role)
	require.Equal(t, clarifyingQuestions, out.SeedTurns[1].Content)
	require.Len(t, rs.threads[out.ThreadID], 2)
}

func TestOpen_WithoutPreferences(t *testing.T) {
	o := newTestOrchestrator(t, newFakeReasoning())
	out, err := o.Open(context.Background(), nil, "a tent")
	require.NoError(t, err)
	require.Equal(t, "User Preferences:\n\n\nUser Intent: a tent", out.SeedTurns[0].Content)
}

func TestOpen_UpstreamErrors(t *testing.T) {
	rs := newFakeReasoning()
	rs.createErr = errors.New("down")
	_, err := newTestOrchestrator(t, rs).Open(context.Background(), nil, "x")
	expectError(t, err, ErrorUpstream, "create_thread_error")

	rs = newFakeReasoning()
	rs.appendErr = errors.New("down")
	_, err = newTestOrchestrator(t, rs).Open(context.Background(), nil, "x")
	expectError(t, err, ErrorUpstream, "append_turn_error")
}

func TestAdvance_ReturnsNormalizedTranscript(t *testing.T) {
	rs := newFakeReasoning()
	rs.reply = "Noise cancelling?"
	o := newTestOrchestrator(t, rs)
	opened, err := o.Open(context.Background(), nil, "headphones")
	require.NoError(t, err)

	res, err := o.Advance(context.Background(), opened.ThreadID, "Under $200")
	require.NoError(t, err)
	require.True(t, res.Completed())
	contents := make([]string, 0, len(res.Turns))
	for _, turn := range res.Turns {
		contents = append(contents, turn.Content)
	}
	require.Equal(t, []string{"Noise cancelling?", "Under $200", clarifyingQuestions, opened.SeedTurns[0].Content}, contents)
}

func TestAdvance_RejectsEmptyMessage(t *testing.T) {
	rs := newFakeReasoning()
	_, err := newTestOrchestrator(t, rs).Advance(context.Background(), "thread_1", "  ")
	expectError(t, err, ErrorInvalidInput, "empty_message")
	require.Zero(t, rs.callCount())
}

func TestAdvance_FailedRunIsReportedAsStatus(t *testing.T) {
	rs := newFakeReasoning()
	rs.startStatus = domain.RunFailed
	res, err := newTestOrchestrator(t, rs).Advance(context.Background(), rs.seedThread(), "hello")
	require.NoError(t, err)
	require.Equal(t, RunResult{Status: domain.RunFailed}, res)
}
