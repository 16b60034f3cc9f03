package usecase

import (
	"context"
	"errors"
	"strings"

	"shopping-assistant/internal/domain"
)

// Service is the application surface behind the HTTP and Lambda handlers.
type Service struct {
	store        RecordStore
	merger       *PreferenceMerger
	orchestrator *Orchestrator
	describer    *DescriptionAgent
	comparer     *ComparisonAgent
	extractor    *ExtractionPipeline
}

type ServiceDeps struct {
	Store        RecordStore
	Merger       *PreferenceMerger
	Orchestrator *Orchestrator
	Describer    *DescriptionAgent
	Comparer     *ComparisonAgent
	Extractor    *ExtractionPipeline
}

func NewService(d ServiceDeps) (*Service, error) {
	switch {
	case d.Store == nil:
		return nil, errors.New("usecase: record store must not be nil")
	case d.Merger == nil:
		return nil, errors.New("usecase: preference merger must not be nil")
	case d.Orchestrator == nil:
		return nil, errors.New("usecase: orchestrator must not be nil")
	case d.Describer == nil:
		return nil, errors.New("usecase: description agent must not be nil")
	case d.Comparer == nil:
		return nil, errors.New("usecase: comparison agent must not be nil")
	case d.Extractor == nil:
		return nil, errors.New("usecase: extraction pipeline must not be nil")
	}
	return &Service{
		store:        d.Store,
		merger:       d.Merger,
		orchestrator: d.Orchestrator,
		describer:    d.Describer,
		comparer:     d.Comparer,
		extractor:    d.Extractor,
	}, nil
}

func (s *Service) CreateUser(ctx context.Context, name, email, password string) (domain.User, error) {
	if strings.TrimSpace(email) == "" {
		return domain.User{}, newError(ErrorInvalidInput, "empty_email", nil)
	}
	u, err := s.store.CreateUser(ctx, name, email, password)
	if err != nil {
		return domain.User{}, newError(ErrorInternal, "store_write_error", err)
	}
	return u, nil
}

// Login compares the stored password verbatim.
func (s *Service) Login(ctx context.Context, email, password string) (domain.User, error) {
	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, newError(ErrorUnauthorized, "invalid_credentials", nil)
	}
	if err != nil {
		return domain.User{}, newError(ErrorInternal, "store_read_error", err)
	}
	if u.Password != password {
		return domain.User{}, newError(ErrorUnauthorized, "invalid_credentials", nil)
	}
	return u, nil
}

func (s *Service) GetUser(ctx context.Context, id int64) (domain.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, newError(ErrorNotFound, "user_not_found", err)
	}
	if err != nil {
		return domain.User{}, newError(ErrorInternal, "store_read_error", err)
	}
	return u, nil
}

func (s *Service) SetPreferences(ctx context.Context, userID int64, updates []domain.PreferenceUpdate) ([]domain.Preference, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.merger.Merge(ctx, userID, updates)
}

func (s *Service) GetPreferences(ctx context.Context, userID int64) ([]domain.Preference, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.merger.Current(ctx, userID)
}

// CreateSession opens a seeded thread for the user and records it.
func (s *Service) CreateSession(ctx context.Context, userID int64, intent string) (domain.ShoppingSession, OpenResult, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return domain.ShoppingSession{}, OpenResult{}, err
	}
	prefs, err := s.merger.Current(ctx, userID)
	if err != nil {
		return domain.ShoppingSession{}, OpenResult{}, err
	}
	opened, err := s.orchestrator.Open(ctx, prefs, intent)
	if err != nil {
		return domain.ShoppingSession{}, OpenResult{}, err
	}
	session, err := s.store.CreateSession(ctx, userID, opened.ThreadID, intent)
	if err != nil {
		return domain.ShoppingSession{}, OpenResult{}, newError(ErrorInternal, "store_write_error", err)
	}
	return session, opened, nil
}

func (s *Service) ListSessions(ctx context.Context, userID int64) ([]domain.ShoppingSession, error) {
	sessions, err := s.store.SessionsByUser(ctx, userID)
	if err != nil {
		return nil, newError(ErrorInternal, "store_read_error", err)
	}
	if len(sessions) == 0 {
		return nil, newError(ErrorNotFound, "no_sessions", nil)
	}
	return sessions, nil
}

func (s *Service) GetSession(ctx context.Context, id int64) (domain.ShoppingSession, error) {
	session, err := s.store.GetSession(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ShoppingSession{}, newError(ErrorNotFound, "session_not_found", err)
	}
	if err != nil {
		return domain.ShoppingSession{}, newError(ErrorInternal, "store_read_error", err)
	}
	return session, nil
}

// Chat advances the session's conversation and marks the session updated
// when the run completes.
func (s *Service) Chat(ctx context.Context, sessionID int64, text string) (RunResult, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return RunResult{}, err
	}
	res, err := s.orchestrator.Advance(ctx, session.ThreadID, text)
	if err != nil || !res.Completed() {
		return res, err
	}
	if err := s.store.TouchSession(ctx, session.ID); err != nil {
		return RunResult{}, newError(ErrorInternal, "store_write_error", err)
	}
	return res, nil
}

// DescribeProduct generates a tailored description and keeps it as a
// product page for later comparison.
func (s *Service) DescribeProduct(ctx context.Context, sessionID int64, productPage string) (RunResult, error) {
	res, err := s.describer.Describe(ctx, sessionID, productPage)
	if err != nil || !res.Completed() {
		return res, err
	}
	for _, t := range res.Turns {
		if t.Role != domain.RoleAssistant {
			continue
		}
		if _, err := s.store.AddProductPage(ctx, sessionID, t.Content); err != nil {
			return RunResult{}, newError(ErrorInternal, "store_write_error", err)
		}
		break
	}
	return res, nil
}

func (s *Service) CompareProducts(ctx context.Context, sessionID int64) (RunResult, error) {
	return s.comparer.Compare(ctx, sessionID)
}

func (s *Service) EndSession(ctx context.Context, sessionID int64) (EndResult, error) {
	return s.extractor.End(ctx, sessionID)
}
