package checkpoint

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinedata/filmset-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "checkpoints.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSaveLoadRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	in := map[string]string{"Sholay": "Q202354", "Lagaan": ""}
	require.NoError(t, st.Save(ctx, "Indian films by decade", model.StepQIDs, in))

	var out map[string]string
	require.NoError(t, st.Load(ctx, "Indian films by decade", model.StepQIDs, &out))
	assert.Equal(t, in, out)
}

func TestLoad_NotFound(t *testing.T) {
	st := newTestStore(t)

	var out []string
	err := st.Load(context.Background(), "missing group", model.StepFilms, &out)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExists(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ok, err := st.Exists(ctx, "g", model.StepSubcats)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.Save(ctx, "g", model.StepSubcats, []string{"Category:1990s Indian films"}))

	ok, err = st.Exists(ctx, "g", model.StepSubcats)
	require.NoError(t, err)
	assert.True(t, ok)

	// Same step under a different group stays independent.
	ok, err = st.Exists(ctx, "other", model.StepSubcats)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSave_OverwritesIdempotently(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Save(ctx, "g", model.StepFilms, []string{"A"}))
	require.NoError(t, st.Save(ctx, "g", model.StepFilms, []string{"A", "B"}))

	var out []string
	require.NoError(t, st.Load(ctx, "g", model.StepFilms, &out))
	assert.Equal(t, []string{"A", "B"}, out)
}

func TestDelete(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Save(ctx, "g", model.StepCSV, []model.FilmRecord{{Title: "X"}}))
	require.NoError(t, st.Delete(ctx, "g", model.StepCSV))

	var out []model.FilmRecord
	assert.ErrorIs(t, st.Load(ctx, "g", model.StepCSV, &out), ErrNotFound)

	// Deleting a missing key is not an error.
	assert.NoError(t, st.Delete(ctx, "g", model.StepCSV))
}

func TestList(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Save(ctx, "b", model.StepSubcats, []string{}))
	require.NoError(t, st.Save(ctx, "a", model.StepFilms, []string{}))
	require.NoError(t, st.Save(ctx, "a", model.StepSubcats, []string{}))

	keys, err := st.List(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 3)

	assert.Equal(t, "a", keys[0].Group)
	assert.Equal(t, model.StepFilms, keys[0].Step)
	assert.Equal(t, "a", keys[1].Group)
	assert.Equal(t, model.StepSubcats, keys[1].Step)
	assert.Equal(t, "b", keys[2].Group)
	for _, k := range keys {
		assert.False(t, k.UpdatedAt.IsZero())
	}
}
