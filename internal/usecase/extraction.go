package usecase

import (
	"context"
	"errors"
	"strings"

	"shopping-assistant/internal/domain"
)

// preferenceExtraction is the structured output requested at session end.
type preferenceExtraction struct {
	Preferences []domain.PreferenceUpdate `json:"preferences"`
}

// EndResult is the outcome of closing a session.
type EndResult struct {
	UserID      int64
	Extracted   []domain.PreferenceUpdate
	Preferences []domain.Preference
}

// ExtractionPipeline derives preferences from a finished session's
// conversation and merges them into the session owner's record.
type ExtractionPipeline struct {
	taskContext
	merger *PreferenceMerger
}

func NewExtractionPipeline(sessions SessionReader, rs ReasoningService, merger *PreferenceMerger) (*ExtractionPipeline, error) {
	if sessions == nil {
		return nil, errors.New("usecase: session reader must not be nil")
	}
	if rs == nil {
		return nil, errors.New("usecase: reasoning service must not be nil")
	}
	if merger == nil {
		return nil, errors.New("usecase: preference merger must not be nil")
	}
	return &ExtractionPipeline{
		taskContext: taskContext{sessions: sessions, reasoning: rs},
		merger:      merger,
	}, nil
}

// End runs resolve, transcribe and extract in turn. Nothing is written
// unless extraction produced a conforming result.
func (p *ExtractionPipeline) End(ctx context.Context, sessionID int64) (EndResult, error) {
	session, err := p.resolveSession(ctx, sessionID)
	if err != nil {
		return EndResult{}, err
	}
	transcript, err := p.transcript(ctx, session.ThreadID)
	if err != nil {
		return EndResult{}, err
	}
	extracted, err := p.extract(ctx, transcript)
	if err != nil {
		return EndResult{}, err
	}

	merged, err := p.merger.Merge(ctx, session.UserID, extracted)
	if err != nil {
		return EndResult{}, err
	}
	return EndResult{UserID: session.UserID, Extracted: extracted, Preferences: merged}, nil
}

// resolveSession fails closed: a session without a thread is not found.
func (p *ExtractionPipeline) resolveSession(ctx context.Context, sessionID int64) (domain.ShoppingSession, error) {
	session, err := p.resolve(ctx, sessionID)
	var ue *Error
	if errors.As(err, &ue) && ue.Code == ErrorMissingContext {
		return domain.ShoppingSession{}, newError(ErrorNotFound, "thread_not_found", nil)
	}
	return session, err
}

func (p *ExtractionPipeline) extract(ctx context.Context, transcript string) ([]domain.PreferenceUpdate, error) {
	var out preferenceExtraction
	err := p.reasoning.StructuredExtract(ctx, buildExtractionMessages(transcript), extractionSchemaName, &out)
	if errors.Is(err, domain.ErrMalformedOutput) {
		return nil, newError(ErrorSchemaConformance, "malformed_extraction", err)
	}
	if err != nil {
		return nil, upstreamError("extraction_error", err)
	}
	for _, pref := range out.Preferences {
		if strings.TrimSpace(pref.Key) == "" {
			return nil, newError(ErrorSchemaConformance, "empty_preference_key", nil)
		}
	}
	if out.Preferences == nil {
		out.Preferences = []domain.PreferenceUpdate{}
	}
	return out.Preferences, nil
}
