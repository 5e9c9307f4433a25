package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aspendos/council/internal/models"
)

func sampleSession(id string, createdAt time.Time) *models.Session {
	return &models.Session{
		ID:        id,
		Query:     "what should we build next?",
		Status:    models.SessionComplete,
		TotalCost: 0.042,
		CreatedAt: createdAt,
		Assignments: []*models.PersonaAssignment{
			{
				Seat:         models.SeatLogic,
				PrimaryModel: "openai/o3-pro",
				Status:       models.AssignmentComplete,
				Output:       "a plan",
				ServedBy:     "openai/o3-pro",
			},
		},
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	fs := NewFileStore(t.TempDir())

	want := sampleSession("s1", time.Now().UTC().Truncate(time.Second))
	require.NoError(t, fs.Put(want))

	got, err := fs.Get("s1")
	require.NoError(t, err)
	require.Equal(t, want.Query, got.Query)
	require.Equal(t, models.SessionComplete, got.Status)
	require.Len(t, got.Assignments, 1)
	require.Equal(t, models.SeatLogic, got.Assignments[0].Seat)
}

func TestCallerMutationDoesNotCorruptIndex(t *testing.T) {
	fs := NewFileStore("")

	put := sampleSession("s1", time.Now().UTC())
	require.NoError(t, fs.Put(put))

	// Mutating the record we handed in, or the one handed back, must
	// not change what a later read observes.
	put.Status = models.SessionFailed
	put.Assignments[0].Output = "rewritten"

	got, err := fs.Get("s1")
	require.NoError(t, err)
	got.Assignments[0].Output = "also rewritten"
	got.Status = models.SessionCanceled

	listed, err := fs.List()
	require.NoError(t, err)
	require.Len(t, listed, 1)
	listed[0].Assignments[0].Output = "listed copy rewritten"

	fresh, err := fs.Get("s1")
	require.NoError(t, err)
	require.Equal(t, models.SessionComplete, fresh.Status)
	require.Equal(t, "a plan", fresh.Assignments[0].Output)
}

func TestGetNotFound(t *testing.T) {
	fs := NewFileStore(t.TempDir())
	_, err := fs.Get("missing")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestListNewestFirst(t *testing.T) {
	fs := NewFileStore(t.TempDir())

	base := time.Now().UTC()
	require.NoError(t, fs.Put(sampleSession("old", base.Add(-time.Hour))))
	require.NoError(t, fs.Put(sampleSession("new", base)))

	sessions, err := fs.List()
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	require.Equal(t, "new", sessions[0].ID)
	require.Equal(t, "old", sessions[1].ID)
}

func TestPersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	first := NewFileStore(dir)
	require.NoError(t, first.Put(sampleSession("s1", time.Now().UTC())))

	second := NewFileStore(dir)
	got, err := second.Get("s1")
	require.NoError(t, err)
	require.Equal(t, "s1", got.ID)
}

func TestMemoryOnlyStore(t *testing.T) {
	fs := NewFileStore("")
	require.NoError(t, fs.Put(sampleSession("s1", time.Now().UTC())))

	got, err := fs.Get("s1")
	require.NoError(t, err)
	require.Equal(t, "s1", got.ID)
}

func TestIgnoresUnreadableFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "garbage.json"), []byte("not json"), 0o644))

	fs := NewFileStore(dir)
	sessions, err := fs.List()
	require.NoError(t, err)
	require.Empty(t, sessions)
}
