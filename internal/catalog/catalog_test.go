package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("solid x\nendsolid x\n"), 0o644))
}

func TestNewScansDirectory(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.stl"))
	touch(t, filepath.Join(dir, "a.3mf"))
	touch(t, filepath.Join(dir, "notes.txt"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.stl"), 0o755))

	c, err := New(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.3mf", "b.stl"}, c.List())
	assert.True(t, c.Has("b.stl"))
	assert.False(t, c.Has("notes.txt"))
	assert.Equal(t, filepath.Join(dir, "a.3mf"), c.Path("../../a.3mf"))
}

func TestNewCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "inputs", "bases")
	c, err := New(dir, nil)
	require.NoError(t, err)
	assert.Empty(t, c.List())
	assert.DirExists(t, dir)
}

func TestWatchPicksUpChanges(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "old.stl"))

	c, err := New(dir, nil)
	require.NoError(t, err)
	c.debounce = 30 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))
	defer c.Close()

	touch(t, filepath.Join(dir, "new.3mf"))
	require.NoError(t, os.Remove(filepath.Join(dir, "old.stl")))

	assert.Eventually(t, func() bool {
		return c.Has("new.3mf") && !c.Has("old.stl")
	}, 5*time.Second, 20*time.Millisecond)
}

func TestCloseIsIdempotent(t *testing.T) {
	c, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}
