package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"shopping-assistant/internal/domain"
	"shopping-assistant/internal/repository"
)

type countingBackend struct {
	*repository.MemoryBackend
	saves   int
	loadErr error
}

func (c *countingBackend) Load(ctx context.Context, name string) (repository.Snapshot, error) {
	if c.loadErr != nil {
		return repository.Snapshot{}, c.loadErr
	}
	return c.MemoryBackend.Load(ctx, name)
}

func (c *countingBackend) Save(ctx context.Context, name string, body []byte, prev int64) error {
	c.saves++
	return c.MemoryBackend.Save(ctx, name, body, prev)
}

func newTestMerger(t *testing.T) (*PreferenceMerger, *countingBackend) {
	t.Helper()
	backend := &countingBackend{MemoryBackend: repository.NewMemoryBackend()}
	store, err := repository.New(backend)
	require.NoError(t, err)
	m, err := NewPreferenceMerger(store.Preferences())
	require.NoError(t, err)
	return m, backend
}

func TestNewPreferenceMerger_ValidatesDependencies(t *testing.T) {
	_, err := NewPreferenceMerger(nil)
	require.Error(t, err)
}

func TestMerge_InsertsThenUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMerger(t)

	got, err := m.Merge(ctx, 1, []domain.PreferenceUpdate{{Key: "budget", Value: "$100"}})
	require.NoError(t, err)
	require.Equal(t, []domain.Preference{{ID: 1, UserID: 1, Key: "budget", Value: "$100"}}, got)

	got, err = m.Merge(ctx, 1, []domain.PreferenceUpdate{{Key: "budget", Value: "$150"}})
	require.NoError(t, err)
	require.Equal(t, []domain.Preference{{ID: 1, UserID: 1, Key: "budget", Value: "$150"}}, got)
}

func TestMerge_RepeatedKeyLastWins(t *testing.T) {
	m, _ := newTestMerger(t)

	got, err := m.Merge(context.Background(), 1, []domain.PreferenceUpdate{
		{Key: "color", Value: "red"},
		{Key: "size", Value: "M"},
		{Key: "color", Value: "blue"},
	})
	require.NoError(t, err)
	want := []domain.Preference{
		{ID: 1, UserID: 1, Key: "color", Value: "blue"},
		{ID: 2, UserID: 1, Key: "size", Value: "M"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("merge mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMerger(t)
	updates := []domain.PreferenceUpdate{{Key: "brand", Value: "Acme"}, {Key: "budget", Value: "$50"}}

	once, err := m.Merge(ctx, 3, updates)
	require.NoError(t, err)
	twice, err := m.Merge(ctx, 3, updates)
	require.NoError(t, err)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("second merge changed preferences (-once +twice):\n%s", diff)
	}
}

func TestMerge_NewIDsAreGlobalMaxPlusOne(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMerger(t)

	_, err := m.Merge(ctx, 1, []domain.PreferenceUpdate{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}})
	require.NoError(t, err)
	got, err := m.Merge(ctx, 2, []domain.PreferenceUpdate{{Key: "a", Value: "x"}})
	require.NoError(t, err)
	require.Equal(t, []domain.Preference{{ID: 3, UserID: 2, Key: "a", Value: "x"}}, got)

	first, err := m.Current(ctx, 1)
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Equal(t, "1", first[0].Value)
}

func TestMerge_EmptyUpdatesDoNotWrite(t *testing.T) {
	ctx := context.Background()
	m, backend := newTestMerger(t)
	_, err := m.Merge(ctx, 1, []domain.PreferenceUpdate{{Key: "a", Value: "1"}})
	require.NoError(t, err)
	require.Equal(t, 1, backend.saves)

	got, err := m.Merge(ctx, 1, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 1, backend.saves)
}

func TestMerge_RejectsEmptyKeyBeforeWriting(t *testing.T) {
	m, backend := newTestMerger(t)
	_, err := m.Merge(context.Background(), 1, []domain.PreferenceUpdate{{Key: "ok", Value: "1"}, {Key: " ", Value: "2"}})
	expectError(t, err, ErrorInvalidInput, "empty_preference_key")
	require.Zero(t, backend.saves)
}

func TestMerge_StoreErrors(t *testing.T) {
	m, backend := newTestMerger(t)
	backend.loadErr = errors.New("disk gone")

	_, err := m.Merge(context.Background(), 1, []domain.PreferenceUpdate{{Key: "a", Value: "1"}})
	expectError(t, err, ErrorInternal, "store_write_error")

	_, err = m.Current(context.Background(), 1)
	expectError(t, err, ErrorInternal, "store_read_error")
}
