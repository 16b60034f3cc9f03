package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"shopping-assistant/internal/domain"
	"shopping-assistant/internal/repository"
)

type extractionFixture struct {
	rs       *fakeReasoning
	store    *repository.Store
	backend  *countingBackend
	pipeline *ExtractionPipeline
}

func newExtractionFixture(t *testing.T) extractionFixture {
	t.Helper()
	rs := newFakeReasoning()
	backend := &countingBackend{MemoryBackend: repository.NewMemoryBackend()}
	store, err := repository.New(backend)
	require.NoError(t, err)
	merger, err := NewPreferenceMerger(store.Preferences())
	require.NoError(t, err)
	p, err := NewExtractionPipeline(store, rs, merger)
	require.NoError(t, err)
	return extractionFixture{rs: rs, store: store, backend: backend, pipeline: p}
}

func (f extractionFixture) session(t *testing.T, userID int64, turns ...domain.Turn) domain.ShoppingSession {
	t.Helper()
	s, err := f.store.CreateSession(context.Background(), userID, f.rs.seedThread(turns...), "intent")
	require.NoError(t, err)
	f.backend.saves = 0
	return s
}

func TestNewExtractionPipeline_ValidatesDependencies(t *testing.T) {
	rs := newFakeReasoning()
	store := newTestStore(t)
	merger, err := NewPreferenceMerger(store.Preferences())
	require.NoError(t, err)

	_, err = NewExtractionPipeline(nil, rs, merger)
	require.Error(t, err)
	_, err = NewExtractionPipeline(store, nil, merger)
	require.Error(t, err)
	_, err = NewExtractionPipeline(store, rs, nil)
	require.Error(t, err)
}

func TestEnd_MergesExtractedPreferences(t *testing.T) {
	f := newExtractionFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Preferences().ReplaceAll(ctx, []domain.Preference{{ID: 1, UserID: 5, Key: "budget", Value: "$100"}}))
	session := f.session(t, 5,
		textTurn("m1", domain.RoleUser, "My budget is $150"),
		textTurn("m2", domain.RoleAssistant, "Got it"),
	)
	f.rs.extractJSON = `{"preferences":[{"key":"budget","value":"$150"},{"key":"Career","value":"Designer"}]}`

	out, err := f.pipeline.End(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, int64(5), out.UserID)
	require.Equal(t, []domain.PreferenceUpdate{{Key: "budget", Value: "$150"}, {Key: "Career", Value: "Designer"}}, out.Extracted)
	require.Equal(t, []domain.Preference{
		{ID: 1, UserID: 5, Key: "budget", Value: "$150"},
		{ID: 2, UserID: 5, Key: "Career", Value: "Designer"},
	}, out.Preferences)

	require.Len(t, f.rs.lastExtract, 2)
	require.Equal(t, domain.RoleSystem, f.rs.lastExtract[0].Role)
	require.Equal(t, extractionPolicy(), f.rs.lastExtract[0].Content)
	require.Equal(t, "My budget is $150\nGot it\n", f.rs.lastExtract[1].Content)
}

func TestEnd_NoRecognizablePreferencesIsNoOp(t *testing.T) {
	f := newExtractionFixture(t)
	session := f.session(t, 1, textTurn("m1", domain.RoleUser, "just browsing"))
	f.rs.extractJSON = `{"preferences":[]}`

	out, err := f.pipeline.End(context.Background(), session.ID)
	require.NoError(t, err)
	require.Empty(t, out.Extracted)
	require.Empty(t, out.Preferences)
	require.Zero(t, f.backend.saves)
}

func TestEnd_MalformedOutputIsSchemaFailure(t *testing.T) {
	f := newExtractionFixture(t)
	session := f.session(t, 1, textTurn("m1", domain.RoleUser, "hi"))

	f.rs.extractJSON = `{"preferences": "lots"}`
	_, err := f.pipeline.End(context.Background(), session.ID)
	expectError(t, err, ErrorSchemaConformance, "malformed_extraction")

	f.rs.extractJSON = `{"preferences":[{"key":"","value":"x"}]}`
	_, err = f.pipeline.End(context.Background(), session.ID)
	expectError(t, err, ErrorSchemaConformance, "empty_preference_key")
	require.Zero(t, f.backend.saves)
}

func TestEnd_ResolutionFailsClosed(t *testing.T) {
	f := newExtractionFixture(t)
	ctx := context.Background()

	_, err := f.pipeline.End(ctx, 42)
	expectError(t, err, ErrorNotFound, "session_not_found")

	noThread, err := f.store.CreateSession(ctx, 1, "", "x")
	require.NoError(t, err)
	_, err = f.pipeline.End(ctx, noThread.ID)
	expectError(t, err, ErrorNotFound, "thread_not_found")
	require.Zero(t, f.rs.callCount())
}

func TestEnd_UpstreamFailure(t *testing.T) {
	f := newExtractionFixture(t)
	session := f.session(t, 1)
	f.rs.extractErr = errors.New("timeout")

	_, err := f.pipeline.End(context.Background(), session.ID)
	expectError(t, err, ErrorUpstream, "extraction_error")
}
