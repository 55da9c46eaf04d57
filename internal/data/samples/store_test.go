package samples

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyrefactor/internal/core/errors"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "samples.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_SeedListGet(t *testing.T) {
	ctx := context.Background()
	store := openTemp(t)

	n, err := store.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(Builtins()), n)

	n, err = store.Seed(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "seeding twice inserts nothing")

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, len(Builtins()))
	assert.Equal(t, "complex_conditional", list[0].Name)
	for _, s := range list {
		assert.Empty(t, s.Source)
		assert.True(t, s.Builtin)
		assert.NotEmpty(t, s.Options)
		assert.False(t, s.UpdatedAt.IsZero())
	}

	got, err := store.Get(ctx, "loop_variable")
	require.NoError(t, err)
	assert.Equal(t, "for i in range(5): print(i)\n", got.Source)
	assert.Equal(t, []string{"rename_variables"}, got.Options)
}

func TestStore_GetMissing(t *testing.T) {
	store := openTemp(t)
	_, err := store.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestStore_PutOverridesBuiltin(t *testing.T) {
	ctx := context.Background()
	store := openTemp(t)
	_, err := store.Seed(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, Sample{
		Name:    "loop_variable",
		Source:  "for j in range(3): print(j)\n",
		Options: []string{"rename_variables", "preview"},
	}))
	got, err := store.Get(ctx, "loop_variable")
	require.NoError(t, err)
	assert.False(t, got.Builtin)
	assert.Equal(t, []string{"rename_variables", "preview"}, got.Options)

	_, err = store.Seed(ctx)
	require.NoError(t, err)
	got, err = store.Get(ctx, "loop_variable")
	require.NoError(t, err)
	assert.Contains(t, got.Source, "for j")
}

func TestStore_PutValidates(t *testing.T) {
	store := openTemp(t)
	ctx := context.Background()
	for _, s := range []Sample{
		{Name: "Bad Name", Source: "x = 1\n"},
		{Name: "", Source: "x = 1\n"},
		{Name: "empty", Source: "  \n"},
	} {
		err := store.Put(ctx, s)
		assert.True(t, errors.IsCode(err, errors.CodeValidationError), "%+v", s)
	}
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := openTemp(t)
	require.NoError(t, store.Put(ctx, Sample{Name: "mine", Source: "x = 1\n"}))
	require.NoError(t, store.Delete(ctx, "mine"))
	assert.True(t, errors.IsCode(store.Delete(ctx, "mine"), errors.CodeNotFound))
}

func TestStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "samples.db")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, Sample{Name: "kept", Source: "x = 1\n"}))
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()
	got, err := store.Get(ctx, "kept")
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", got.Source)
}

func TestOpen_Memory(t *testing.T) {
	store, err := Open(MemoryPath)
	require.NoError(t, err)
	defer store.Close()
	_, err = store.Seed(context.Background())
	require.NoError(t, err)
	list, err := store.List(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, list)
}

func TestOpen_RejectsDirectory(t *testing.T) {
	_, err := Open(t.TempDir())
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
	_, err = Open("  ")
	assert.Error(t, err)
}
