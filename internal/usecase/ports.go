package usecase

import (
	"context"
	"time"

	"shopping-assistant/internal/domain"
)

// ReasoningService is the stateful conversation backend the assistant drives.
// ListTurns returns turns newest first.
type ReasoningService interface {
	CreateThread(ctx context.Context) (string, error)
	AppendTurn(ctx context.Context, threadID string, role domain.Role, content string) (domain.Turn, error)
	StartRun(ctx context.Context, threadID, assistantID string) (domain.Run, error)
	GetRun(ctx context.Context, threadID, runID string) (domain.Run, error)
	ListTurns(ctx context.Context, threadID string) ([]domain.Turn, error)
	// StructuredExtract decodes a schema-constrained completion of messages
	// into out. Non-conforming output wraps domain.ErrMalformedOutput.
	StructuredExtract(ctx context.Context, messages []domain.ChatMessage, schemaName string, out any) error
}

// PreferenceCollection is the whole-collection view of stored preferences.
type PreferenceCollection interface {
	LoadAll(ctx context.Context) ([]domain.Preference, error)
	Update(ctx context.Context, fn func([]domain.Preference) ([]domain.Preference, error)) ([]domain.Preference, error)
}

// SessionReader resolves sessions and their product pages for the agents.
type SessionReader interface {
	GetSession(ctx context.Context, id int64) (domain.ShoppingSession, error)
	ProductPagesBySession(ctx context.Context, sessionID int64) ([]domain.ProductPage, error)
}

// RecordStore is the full record store consumed by Service.
type RecordStore interface {
	SessionReader
	CreateUser(ctx context.Context, name, email, password string) (domain.User, error)
	GetUser(ctx context.Context, id int64) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	PreferencesByUser(ctx context.Context, userID int64) ([]domain.Preference, error)
	CreateSession(ctx context.Context, userID int64, threadID, intent string) (domain.ShoppingSession, error)
	SessionsByUser(ctx context.Context, userID int64) ([]domain.ShoppingSession, error)
	TouchSession(ctx context.Context, id int64) error
	AddProductPage(ctx context.Context, sessionID int64, text string) (domain.ProductPage, error)
}

// RunObserver receives the outcome of every run the Runner drives.
type RunObserver interface {
	ObserveRun(status domain.RunStatus, elapsed time.Duration)
}
