// Package simulator is an in-process stand-in for the hosted reasoning
// service, used for local runs without credentials and in handler tests.
package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/lithammer/shortuuid/v4"

	"shopping-assistant/internal/domain"
)

const maxExcerptRunes = 200

var preferenceLine = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9 _-]{0,39}):\s*(\S.*)$`)

type run struct {
	threadID    string
	assistantID string
	status      domain.RunStatus
}

// Service keeps threads in memory. Runs are queued on start and complete on
// the first poll with a canned assistant reply.
type Service struct {
	mu      sync.Mutex
	threads map[string][]domain.Turn
	runs    map[string]*run
	now     func() time.Time
}

func New() *Service {
	return &Service{
		threads: make(map[string][]domain.Turn),
		runs:    make(map[string]*run),
		now:     time.Now,
	}
}

func (s *Service) CreateThread(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := "thread_" + shortuuid.New()
	s.threads[id] = nil
	return id, nil
}

func (s *Service) AppendTurn(_ context.Context, threadID string, role domain.Role, content string) (domain.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[threadID]; !ok {
		return domain.Turn{}, fmt.Errorf("simulator: thread %q: %w", threadID, domain.ErrNotFound)
	}
	return s.appendLocked(threadID, role, content), nil
}

func (s *Service) appendLocked(threadID string, role domain.Role, content string) domain.Turn {
	turn := domain.Turn{
		ID:        "msg_" + shortuuid.New(),
		Role:      role,
		CreatedAt: s.now().Unix(),
		Fragments: []domain.Fragment{{Type: domain.FragmentText, Text: content}},
	}
	s.threads[threadID] = append(s.threads[threadID], turn)
	return turn
}

func (s *Service) StartRun(_ context.Context, threadID, assistantID string) (domain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[threadID]; !ok {
		return domain.Run{}, fmt.Errorf("simulator: thread %q: %w", threadID, domain.ErrNotFound)
	}
	id := "run_" + shortuuid.New()
	s.runs[id] = &run{threadID: threadID, assistantID: assistantID, status: domain.RunQueued}
	return domain.Run{ID: id, ThreadID: threadID, Status: domain.RunQueued}, nil
}

func (s *Service) GetRun(_ context.Context, threadID, runID string) (domain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[runID]
	if !ok || r.threadID != threadID {
		return domain.Run{}, fmt.Errorf("simulator: run %q: %w", runID, domain.ErrNotFound)
	}
	if r.status.Pending() {
		s.appendLocked(threadID, domain.RoleAssistant, s.replyLocked(threadID, r.assistantID))
		r.status = domain.RunCompleted
	}
	return domain.Run{ID: runID, ThreadID: threadID, Status: r.status}, nil
}

func (s *Service) replyLocked(threadID, assistantID string) string {
	turns := s.threads[threadID]
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == domain.RoleUser {
			return fmt.Sprintf("(%s) Noted: %q. Tell me a bit more about what matters to you.", assistantID, excerpt(turns[i].Text()))
		}
	}
	return fmt.Sprintf("(%s) How can I help you shop today?", assistantID)
}

// excerpt shortens text to maxExcerptRunes runes.
func excerpt(text string) string {
	if utf8.RuneCountInString(text) <= maxExcerptRunes {
		return text
	}
	return string([]rune(text)[:maxExcerptRunes]) + "..."
}

// ListTurns returns the thread newest first.
func (s *Service) ListTurns(_ context.Context, threadID string) ([]domain.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns, ok := s.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("simulator: thread %q: %w", threadID, domain.ErrNotFound)
	}
	out := make([]domain.Turn, 0, len(turns))
	for i := len(turns) - 1; i >= 0; i-- {
		out = append(out, turns[i])
	}
	return out, nil
}

// StructuredExtract treats every "key: value" line in the user messages as a
// preference and decodes {"preferences": [...]} into out.
func (s *Service) StructuredExtract(_ context.Context, messages []domain.ChatMessage, _ string, out any) error {
	type pref struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	prefs := make([]pref, 0)
	for _, m := range messages {
		if m.Role != domain.RoleUser {
			continue
		}
		for _, line := range strings.Split(m.Content, "\n") {
			match := preferenceLine.FindStringSubmatch(strings.TrimSpace(line))
			if match == nil {
				continue
			}
			prefs = append(prefs, pref{Key: strings.TrimSpace(match[1]), Value: strings.TrimSpace(match[2])})
		}
	}

	body, err := json.Marshal(map[string]any{"preferences": prefs})
	if err != nil {
		return fmt.Errorf("simulator: encode extraction: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedOutput, err)
	}
	return nil
}
