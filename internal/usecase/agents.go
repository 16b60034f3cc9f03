package usecase

import (
	"context"
	"errors"
	"strings"

	"shopping-assistant/internal/domain"
)

// taskContext resolves a session and replays its primary thread.
type taskContext struct {
	sessions  SessionReader
	reasoning ReasoningService
}

func (c taskContext) resolve(ctx context.Context, sessionID int64) (domain.ShoppingSession, error) {
	session, err := c.sessions.GetSession(ctx, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ShoppingSession{}, newError(ErrorNotFound, "session_not_found", err)
	}
	if err != nil {
		return domain.ShoppingSession{}, newError(ErrorInternal, "store_read_error", err)
	}
	if strings.TrimSpace(session.ThreadID) == "" {
		return domain.ShoppingSession{}, newError(ErrorMissingContext, "missing_thread", nil)
	}
	return session, nil
}

func (c taskContext) transcript(ctx context.Context, threadID string) (string, error) {
	turns, err := c.reasoning.ListTurns(ctx, threadID)
	if err != nil {
		return "", upstreamError("list_turns_error", err)
	}
	return replayTranscript(turns), nil
}

// DescriptionAgent writes a product description tailored to the session's
// conversation.
type DescriptionAgent struct {
	taskContext
	runner      *Runner
	assistantID string
}

func NewDescriptionAgent(sessions SessionReader, rs ReasoningService, runner *Runner, assistantID string) (*DescriptionAgent, error) {
	if err := checkAgentDeps(sessions, rs, runner, assistantID); err != nil {
		return nil, err
	}
	return &DescriptionAgent{
		taskContext: taskContext{sessions: sessions, reasoning: rs},
		runner:      runner,
		assistantID: assistantID,
	}, nil
}

func (a *DescriptionAgent) Describe(ctx context.Context, sessionID int64, productPage string) (RunResult, error) {
	if strings.TrimSpace(productPage) == "" {
		return RunResult{}, newError(ErrorInvalidInput, "empty_product_page", nil)
	}
	session, err := a.resolve(ctx, sessionID)
	if err != nil {
		return RunResult{}, err
	}
	conversation, err := a.transcript(ctx, session.ThreadID)
	if err != nil {
		return RunResult{}, err
	}
	return a.runner.ExchangeIsolated(ctx, a.assistantID, buildDescriptionPrompt(conversation, productPage))
}

// ComparisonAgent compares every product described so far in a session.
type ComparisonAgent struct {
	taskContext
	runner      *Runner
	assistantID string
}

func NewComparisonAgent(sessions SessionReader, rs ReasoningService, runner *Runner, assistantID string) (*ComparisonAgent, error) {
	if err := checkAgentDeps(sessions, rs, runner, assistantID); err != nil {
		return nil, err
	}
	return &ComparisonAgent{
		taskContext: taskContext{sessions: sessions, reasoning: rs},
		runner:      runner,
		assistantID: assistantID,
	}, nil
}

// Compare returns only the assistant's turns; the seeding prompt is dropped.
func (a *ComparisonAgent) Compare(ctx context.Context, sessionID int64) (RunResult, error) {
	session, err := a.resolve(ctx, sessionID)
	if err != nil {
		return RunResult{}, err
	}
	conversation, err := a.transcript(ctx, session.ThreadID)
	if err != nil {
		return RunResult{}, err
	}
	pages, err := a.sessions.ProductPagesBySession(ctx, session.ID)
	if err != nil {
		return RunResult{}, newError(ErrorInternal, "store_read_error", err)
	}

	res, err := a.runner.ExchangeIsolated(ctx, a.assistantID, buildComparisonPrompt(conversation, pages))
	if err != nil || !res.Completed() {
		return res, err
	}
	assistantTurns := make([]domain.Message, 0, len(res.Turns))
	for _, t := range res.Turns {
		if t.Role == domain.RoleAssistant {
			assistantTurns = append(assistantTurns, t)
		}
	}
	res.Turns = assistantTurns
	return res, nil
}

func checkAgentDeps(sessions SessionReader, rs ReasoningService, runner *Runner, assistantID string) error {
	switch {
	case sessions == nil:
		return errors.New("usecase: session reader must not be nil")
	case rs == nil:
		return errors.New("usecase: reasoning service must not be nil")
	case runner == nil:
		return errors.New("usecase: runner must not be nil")
	case strings.TrimSpace(assistantID) == "":
		return errors.New("usecase: assistant id must not be empty")
	}
	return nil
}
