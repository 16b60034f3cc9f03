package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"shopping-assistant/internal/domain"
	"shopping-assistant/internal/repository"
)

// fakeReasoning keeps threads in chronological order and serves them newest
// first, like the hosted service.
type fakeReasoning struct {
	mu      sync.Mutex
	threads map[string][]domain.Turn
	seq     int

	startStatus domain.RunStatus
	polls       []domain.RunStatus
	reply       string
	extractJSON string

	createErr  error
	appendErr  error
	startErr   error
	getErr     error
	listErr    error
	extractErr error

	calls       []string
	runThreads  map[string]string
	lastExtract []domain.ChatMessage
}

func newFakeReasoning() *fakeReasoning {
	return &fakeReasoning{
		threads:     map[string][]domain.Turn{},
		runThreads:  map[string]string{},
		startStatus: domain.RunCompleted,
		reply:       "Here you go.",
		extractJSON: `{"preferences":[]}`,
	}
}

func (f *fakeReasoning) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeReasoning) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s_%d", prefix, f.seq)
}

func (f *fakeReasoning) CreateThread(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateThread")
	if f.createErr != nil {
		return "", f.createErr
	}
	id := f.nextID("thread")
	f.threads[id] = nil
	return id, nil
}

func (f *fakeReasoning) AppendTurn(_ context.Context, threadID string, role domain.Role, content string) (domain.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("AppendTurn")
	if f.appendErr != nil {
		return domain.Turn{}, f.appendErr
	}
	return f.appendLocked(threadID, role, content), nil
}

func (f *fakeReasoning) appendLocked(threadID string, role domain.Role, content string) domain.Turn {
	turn := domain.Turn{
		ID:        f.nextID("msg"),
		Role:      role,
		CreatedAt: int64(f.seq),
		Fragments: []domain.Fragment{{Type: domain.FragmentText, Text: content}},
	}
	f.threads[threadID] = append(f.threads[threadID], turn)
	return turn
}

func (f *fakeReasoning) StartRun(_ context.Context, threadID, _ string) (domain.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("StartRun")
	if f.startErr != nil {
		return domain.Run{}, f.startErr
	}
	run := domain.Run{ID: f.nextID("run"), ThreadID: threadID, Status: f.startStatus}
	f.runThreads[run.ID] = threadID
	if run.Status == domain.RunCompleted {
		f.appendLocked(threadID, domain.RoleAssistant, f.reply)
	}
	return run, nil
}

func (f *fakeReasoning) GetRun(_ context.Context, threadID, runID string) (domain.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetRun")
	if f.getErr != nil {
		return domain.Run{}, f.getErr
	}
	status := domain.RunInProgress
	if len(f.polls) > 0 {
		status, f.polls = f.polls[0], f.polls[1:]
	}
	if status == domain.RunCompleted {
		f.appendLocked(threadID, domain.RoleAssistant, f.reply)
	}
	return domain.Run{ID: runID, ThreadID: threadID, Status: status}, nil
}

func (f *fakeReasoning) ListTurns(_ context.Context, threadID string) ([]domain.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListTurns")
	if f.listErr != nil {
		return nil, f.listErr
	}
	turns := f.threads[threadID]
	out := make([]domain.Turn, 0, len(turns))
	for i := len(turns) - 1; i >= 0; i-- {
		out = append(out, turns[i])
	}
	return out, nil
}

func (f *fakeReasoning) StructuredExtract(_ context.Context, messages []domain.ChatMessage, _ string, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("StructuredExtract")
	f.lastExtract = messages
	if f.extractErr != nil {
		return f.extractErr
	}
	if err := json.Unmarshal([]byte(f.extractJSON), out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedOutput, err)
	}
	return nil
}

func (f *fakeReasoning) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeReasoning) seedThread(turns ...domain.Turn) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID("thread")
	f.threads[id] = turns
	return id
}

func textTurn(id string, role domain.Role, text string) domain.Turn {
	return domain.Turn{ID: id, Role: role, Fragments: []domain.Fragment{{Type: domain.FragmentText, Text: text}}}
}

func newTestStore(t *testing.T) *repository.Store {
	t.Helper()
	s, err := repository.New(repository.NewMemoryBackend())
	require.NoError(t, err)
	return s
}

func newTestRunner(t *testing.T, rs ReasoningService) *Runner {
	t.Helper()
	r, err := NewRunner(rs, RunnerOptions{PollInterval: time.Millisecond, MaxWait: time.Second})
	require.NoError(t, err)
	return r
}

func expectError(t *testing.T, err error, code ErrorCode, reason string) {
	t.Helper()
	var usecaseErr *Error
	require.ErrorAs(t, err, &usecaseErr)
	require.Equal(t, code, usecaseErr.Code)
	require.Equal(t, reason, usecaseErr.Reason)
}
