package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"shopping-assistant/internal/domain"
)

const (
	defaultPollInterval = time.Second
	defaultRunTimeout   = 120 * time.Second
)

// RunResult is the outcome of driving one run. Turns is only populated when
// Status is completed and keeps the service's newest-first order.
type RunResult struct {
	Status domain.RunStatus
	Turns  []domain.Message
}

func (r RunResult) Completed() bool {
	return r.Status == domain.RunCompleted
}

type RunnerOptions struct {
	PollInterval time.Duration
	MaxWait      time.Duration
	Observer     RunObserver
}

// Runner drives a reasoning service run from start to a terminal status.
// It is shared by the chat orchestrator and the task agents.
type Runner struct {
	reasoning ReasoningService
	interval  time.Duration
	maxWait   time.Duration
	observer  RunObserver
}

func NewRunner(rs ReasoningService, opts RunnerOptions) (*Runner, error) {
	if rs == nil {
		return nil, errors.New("usecase: reasoning service must not be nil")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = defaultRunTimeout
	}
	return &Runner{
		reasoning: rs,
		interval:  opts.PollInterval,
		maxWait:   opts.MaxWait,
		observer:  opts.Observer,
	}, nil
}

// Exchange appends content as a user turn on threadID and runs assistantID
// against the thread until it reaches a terminal status.
func (r *Runner) Exchange(ctx context.Context, threadID, assistantID, content string) (RunResult, error) {
	if strings.TrimSpace(threadID) == "" {
		return RunResult{}, newError(ErrorMissingContext, "missing_thread", nil)
	}
	if _, err := r.reasoning.AppendTurn(ctx, threadID, domain.RoleUser, content); err != nil {
		return RunResult{}, callError(ctx, "append_turn_error", err)
	}
	return r.run(ctx, threadID, assistantID)
}

// ExchangeIsolated runs content on a new disposable thread.
func (r *Runner) ExchangeIsolated(ctx context.Context, assistantID, content string) (RunResult, error) {
	threadID, err := r.reasoning.CreateThread(ctx)
	if err != nil {
		return RunResult{}, callError(ctx, "create_thread_error", err)
	}
	return r.Exchange(ctx, threadID, assistantID, content)
}

func (r *Runner) run(ctx context.Context, threadID, assistantID string) (RunResult, error) {
	started := time.Now()
	run, err := r.reasoning.StartRun(ctx, threadID, assistantID)
	if err != nil {
		return RunResult{}, callError(ctx, "start_run_error", err)
	}
	run, err = r.await(ctx, run)
	if err != nil {
		return RunResult{}, err
	}
	if r.observer != nil {
		r.observer.ObserveRun(run.Status, time.Since(started))
	}
	if run.Status != domain.RunCompleted {
		return RunResult{Status: run.Status}, nil
	}

	turns, err := r.reasoning.ListTurns(ctx, threadID)
	if err != nil {
		return RunResult{}, callError(ctx, "list_turns_error", err)
	}
	return RunResult{Status: run.Status, Turns: normalizeTurns(turns)}, nil
}

// await polls run until it leaves the pending states or maxWait elapses.
// A wait that outlives maxWait yields RunTimedOut; cancellation of ctx
// itself is returned as ctx.Err().
func (r *Runner) await(ctx context.Context, run domain.Run) (domain.Run, error) {
	if !run.Status.Pending() {
		return run, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, r.maxWait)
	defer cancel()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return domain.Run{}, err
			}
			run.Status = domain.RunTimedOut
			return run, nil
		case <-ticker.C:
		}

		next, err := r.reasoning.GetRun(waitCtx, run.ThreadID, run.ID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return domain.Run{}, ctxErr
			}
			if waitCtx.Err() != nil {
				run.Status = domain.RunTimedOut
				return run, nil
			}
			return domain.Run{}, upstreamError("get_run_error", err)
		}
		run = next
		if !run.Status.Pending() {
			return run, nil
		}
	}
}

// normalizeTurns flattens each turn's text fragments into one string.
func normalizeTurns(turns []domain.Turn) []domain.Message {
	out := make([]domain.Message, 0, len(turns))
	for _, t := range turns {
		out = append(out, toMessage(t))
	}
	return out
}

func toMessage(t domain.Turn) domain.Message {
	return domain.Message{
		ID:        t.ID,
		Role:      t.Role,
		CreatedAt: t.CreatedAt,
		Content:   t.Text(),
	}
}
