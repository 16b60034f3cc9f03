package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"shopping-assistant/internal/domain"
)

const (
	collectionUsers        = "users"
	collectionPreferences  = "preferences"
	collectionSessions     = "shopping_sessions"
	collectionProductPages = "product_pages"
)

// Store is the record store for users, preferences, shopping sessions and
// product pages. Every collection is read and written whole.
type Store struct {
	users    *Collection[domain.User]
	prefs    *Collection[domain.Preference]
	sessions *Collection[domain.ShoppingSession]
	pages    *Collection[domain.ProductPage]
	now      func() time.Time
}

// New creates a Store over backend.
func New(backend Backend) (*Store, error) {
	if backend == nil {
		return nil, errors.New("repository: backend must not be nil")
	}
	return &Store{
		users:    NewCollection[domain.User](collectionUsers, backend),
		prefs:    NewCollection[domain.Preference](collectionPreferences, backend),
		sessions: NewCollection[domain.ShoppingSession](collectionSessions, backend),
		pages:    NewCollection[domain.ProductPage](collectionProductPages, backend),
		now:      time.Now,
	}, nil
}

// Preferences exposes the preference collection to the merge engine.
func (s *Store) Preferences() *Collection[domain.Preference] {
	return s.prefs
}

// CreateUser appends a user with the next free id.
func (s *Store) CreateUser(ctx context.Context, name, email, password string) (domain.User, error) {
	var created domain.User
	_, err := s.users.Update(ctx, func(users []domain.User) ([]domain.User, error) {
		created = domain.User{
			ID:        NextID(users, func(u domain.User) int64 { return u.ID }),
			Name:      name,
			Email:     email,
			Password:  password,
			CreatedAt: s.now().UTC(),
		}
		return append(users, created), nil
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("repository: CreateUser: %w", err)
	}
	return created, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (domain.User, error) {
	users, err := s.users.LoadAll(ctx)
	if err != nil {
		return domain.User{}, fmt.Errorf("repository: GetUser: %w", err)
	}
	for _, u := range users {
		if u.ID == id {
			return u, nil
		}
	}
	return domain.User{}, ErrNotFound
}

// GetUserByEmail returns the first user registered with email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	users, err := s.users.LoadAll(ctx)
	if err != nil {
		return domain.User{}, fmt.Errorf("repository: GetUserByEmail: %w", err)
	}
	for _, u := range users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, ErrNotFound
}

// PreferencesByUser returns the user's preferences in stored order.
func (s *Store) PreferencesByUser(ctx context.Context, userID int64) ([]domain.Preference, error) {
	prefs, err := s.prefs.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository: PreferencesByUser: %w", err)
	}
	out := make([]domain.Preference, 0, len(prefs))
	for _, p := range prefs {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

// CreateSession appends a session whose thread id is fixed from here on.
func (s *Store) CreateSession(ctx context.Context, userID int64, threadID, intent string) (domain.ShoppingSession, error) {
	var created domain.ShoppingSession
	_, err := s.sessions.Update(ctx, func(sessions []domain.ShoppingSession) ([]domain.ShoppingSession, error) {
		now := s.now().UTC()
		created = domain.ShoppingSession{
			ID:        NextID(sessions, func(ss domain.ShoppingSession) int64 { return ss.ID }),
			UserID:    userID,
			ThreadID:  threadID,
			Intent:    intent,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return append(sessions, created), nil
	})
	if err != nil {
		return domain.ShoppingSession{}, fmt.Errorf("repository: CreateSession: %w", err)
	}
	return created, nil
}

func (s *Store) GetSession(ctx context.Context, id int64) (domain.ShoppingSession, error) {
	sessions, err := s.sessions.LoadAll(ctx)
	if err != nil {
		return domain.ShoppingSession{}, fmt.Errorf("repository: GetSession: %w", err)
	}
	for _, ss := range sessions {
		if ss.ID == id {
			return ss, nil
		}
	}
	return domain.ShoppingSession{}, ErrNotFound
}

func (s *Store) SessionsByUser(ctx context.Context, userID int64) ([]domain.ShoppingSession, error) {
	sessions, err := s.sessions.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository: SessionsByUser: %w", err)
	}
	out := make([]domain.ShoppingSession, 0)
	for _, ss := range sessions {
		if ss.UserID == userID {
			out = append(out, ss)
		}
	}
	return out, nil
}

// TouchSession bumps updated_at. Thread id and intent are never rewritten.
func (s *Store) TouchSession(ctx context.Context, id int64) error {
	_, err := s.sessions.Update(ctx, func(sessions []domain.ShoppingSession) ([]domain.ShoppingSession, error) {
		for i := range sessions {
			if sessions[i].ID == id {
				sessions[i].UpdatedAt = s.now().UTC()
				return sessions, nil
			}
		}
		return nil, ErrNotFound
	})
	if err != nil {
		return fmt.Errorf("repository: TouchSession: %w", err)
	}
	return nil
}

// AddProductPage appends a product page to the session.
func (s *Store) AddProductPage(ctx context.Context, sessionID int64, text string) (domain.ProductPage, error) {
	var created domain.ProductPage
	_, err := s.pages.Update(ctx, func(pages []domain.ProductPage) ([]domain.ProductPage, error) {
		created = domain.ProductPage{
			ID:          NextID(pages, func(p domain.ProductPage) int64 { return p.ID }),
			SessionID:   sessionID,
			ProductPage: text,
			CreatedAt:   s.now().UTC(),
		}
		return append(pages, created), nil
	})
	if err != nil {
		return domain.ProductPage{}, fmt.Errorf("repository: AddProductPage: %w", err)
	}
	return created, nil
}

// ProductPagesBySession returns the session's pages in id order, which is
// the order they were added.
func (s *Store) ProductPagesBySession(ctx context.Context, sessionID int64) ([]domain.ProductPage, error) {
	pages, err := s.pages.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository: ProductPagesBySession: %w", err)
	}
	out := make([]domain.ProductPage, 0)
	for _, p := range pages {
		if p.SessionID == sessionID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
