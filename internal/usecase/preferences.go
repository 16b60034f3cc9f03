package usecase

import (
	"context"
	"errors"
	"strings"

	"shopping-assistant/internal/domain"
)

// PreferenceMerger upserts preferences keyed by (user, key).
type PreferenceMerger struct {
	prefs PreferenceCollection
}

func NewPreferenceMerger(prefs PreferenceCollection) (*PreferenceMerger, error) {
	if prefs == nil {
		return nil, errors.New("usecase: preference collection must not be nil")
	}
	return &PreferenceMerger{prefs: prefs}, nil
}

// Merge applies updates in order and returns the user's resulting
// preferences. Existing keys keep their id; new keys get the next id across
// all users. The collection is written once, and not at all for an empty
// update list.
func (m *PreferenceMerger) Merge(ctx context.Context, userID int64, updates []domain.PreferenceUpdate) ([]domain.Preference, error) {
	for _, u := range updates {
		if strings.TrimSpace(u.Key) == "" {
			return nil, newError(ErrorInvalidInput, "empty_preference_key", nil)
		}
	}
	if len(updates) == 0 {
		return m.Current(ctx, userID)
	}

	all, err := m.prefs.Update(ctx, func(all []domain.Preference) ([]domain.Preference, error) {
		return mergePreferences(all, userID, updates), nil
	})
	if err != nil {
		return nil, newError(ErrorInternal, "store_write_error", err)
	}
	return preferencesFor(all, userID), nil
}

// Current returns the user's stored preferences.
func (m *PreferenceMerger) Current(ctx context.Context, userID int64) ([]domain.Preference, error) {
	all, err := m.prefs.LoadAll(ctx)
	if err != nil {
		return nil, newError(ErrorInternal, "store_read_error", err)
	}
	return preferencesFor(all, userID), nil
}

func mergePreferences(all []domain.Preference, userID int64, updates []domain.PreferenceUpdate) []domain.Preference {
	index := make(map[string]int)
	var maxID int64
	for i, p := range all {
		if p.UserID == userID {
			index[p.Key] = i
		}
		if p.ID > maxID {
			maxID = p.ID
		}
	}

	for _, u := range updates {
		if i, ok := index[u.Key]; ok {
			all[i].Value = u.Value
			continue
		}
		maxID++
		all = append(all, domain.Preference{ID: maxID, UserID: userID, Key: u.Key, Value: u.Value})
		index[u.Key] = len(all) - 1
	}
	return all
}

func preferencesFor(all []domain.Preference, userID int64) []domain.Preference {
	out := make([]domain.Preference, 0)
	for _, p := range all {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out
}
