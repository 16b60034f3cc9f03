package usecase

import (
	"context"
	"errors"
	"strings"

	"shopping-assistant/internal/domain"
)

// Orchestrator owns a session's primary thread: seeding it and advancing it
// one user turn at a time.
type Orchestrator struct {
	reasoning   ReasoningService
	runner      *Runner
	assistantID string
}

// OpenResult carries the new thread and the two scaffolding turns written to it.
type OpenResult struct {
	ThreadID  string
	SeedTurns []domain.Message
}

func NewOrchestrator(rs ReasoningService, runner *Runner, chatAssistantID string) (*Orchestrator, error) {
	if rs == nil {
		return nil, errors.New("usecase: reasoning service must not be nil")
	}
	if runner == nil {
		return nil, errors.New("usecase: runner must not be nil")
	}
	if strings.TrimSpace(chatAssistantID) == "" {
		return nil, errors.New("usecase: chat assistant id must not be empty")
	}
	return &Orchestrator{reasoning: rs, runner: runner, assistantID: chatAssistantID}, nil
}

// Open creates a thread seeded with the user's preferences and intent
// followed by the clarifying questions.
func (o *Orchestrator) Open(ctx context.Context, prefs []domain.Preference, intent string) (OpenResult, error) {
	threadID, err := o.reasoning.CreateThread(ctx)
	if err != nil {
		return OpenResult{}, callError(ctx, "create_thread_error", err)
	}

	seeds := []string{buildPreferenceSeed(prefs, intent), clarifyingQuestions}
	out := OpenResult{ThreadID: threadID, SeedTurns: make([]domain.Message, 0, len(seeds))}
	for _, content := range seeds {
		turn, err := o.reasoning.AppendTurn(ctx, threadID, domain.RoleAssistant, content)
		if err != nil {
			return OpenResult{}, callError(ctx, "append_turn_error", err)
		}
		out.SeedTurns = append(out.SeedTurns, toMessage(turn))
	}
	return out, nil
}

// Advance posts userText to the thread and runs the chat assistant. A run
// that does not complete is reported through RunResult.Status, not an error.
func (o *Orchestrator) Advance(ctx context.Context, threadID, userText string) (RunResult, error) {
	if strings.TrimSpace(userText) == "" {
		return RunResult{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	return o.runner.Exchange(ctx, threadID, o.assistantID, userText)
}
