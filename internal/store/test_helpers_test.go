package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/onemodel/internal/model"
	"github.com/roach88/onemodel/internal/testutil"
)

// testOptions returns store options with a deterministic clock and instance
// ids and a silent logger.
func testOptions() Options {
	return Options{
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:         testutil.NewDeterministicClock().Now,
		NewInstanceID: testutil.NewSequentialIDGenerator("").Generate,
	}
}

// createTestStore opens a fresh SQLite store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	return createTestStoreWith(t, testOptions())
}

func createTestStoreWith(t *testing.T, opts Options) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts)
	require.NoError(t, err, "Open() failed")
	t.Cleanup(func() { s.Close() })
	return s
}

func mustEntity(t *testing.T, s *Store, name string) int64 {
	t.Helper()
	id, err := s.CreateEntity(context.Background(), Standalone(), name, nil, nil)
	require.NoError(t, err, "CreateEntity(%q)", name)
	return id
}

func mustClassedEntity(t *testing.T, s *Store, name string, classID int64) int64 {
	t.Helper()
	id, err := s.CreateEntity(context.Background(), Standalone(), name, &classID, nil)
	require.NoError(t, err, "CreateEntity(%q)", name)
	return id
}

func mustClass(t *testing.T, s *Store, name string) int64 {
	t.Helper()
	id, _, err := s.CreateClassAndTemplateEntity(context.Background(), Standalone(), name)
	require.NoError(t, err, "CreateClassAndTemplateEntity(%q)", name)
	return id
}

func mustGroup(t *testing.T, s *Store, name string, allowMixed bool) int64 {
	t.Helper()
	id, err := s.CreateGroup(context.Background(), Standalone(), name, allowMixed)
	require.NoError(t, err, "CreateGroup(%q)", name)
	return id
}

func mustRelate(t *testing.T, s *Store, from, to int64) int64 {
	t.Helper()
	id, err := s.CreateRelationToLocalEntity(context.Background(), Standalone(), model.RelationToLocalEntity{
		RelTypeID: s.Base().HasRelTypeID,
		EntityID:  from,
		EntityID2: to,
	}, nil)
	require.NoError(t, err, "CreateRelationToLocalEntity(%d -> %d)", from, to)
	return id
}

func mustText(t *testing.T, s *Store, entityID int64, text string) int64 {
	t.Helper()
	id, err := s.CreateTextAttribute(context.Background(), Standalone(), model.TextAttribute{
		EntityID:   entityID,
		AttrTypeID: entityID,
		Text:       text,
	}, nil)
	require.NoError(t, err, "CreateTextAttribute(%q)", text)
	return id
}

func countRows(t *testing.T, s *Store, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, s.db.QueryRow(query, args...).Scan(&n), "query %q", query)
	return n
}

func int64Ptr(v int64) *int64 { return &v }

func boolPtrOf(v bool) *bool { return &v }
