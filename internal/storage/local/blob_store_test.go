package local_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/summit-index-crawler/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("CreatesMissingDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "archive", "nested")
		store, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		assert.NotNil(t, store)
		assert.DirExists(t, dir)
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{BaseDir: "  "})
		assert.Error(t, err)
	})

	t.Run("BaseDirIsAFile", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := local.New(local.Config{BaseDir: file})
		assert.Error(t, err)
	})

	t.Run("LeavesNoProbeBehind", func(t *testing.T) {
		dir := t.TempDir()
		_, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestPutObject(t *testing.T) {
	dir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("WritesNestedObject", func(t *testing.T) {
		uri, err := store.PutObject(ctx, "tasks/h1/t1.json", "application/json", strings.NewReader(`{"task_id":"t1"}`))
		require.NoError(t, err)
		assert.Equal(t, "file://"+filepath.Join(dir, "tasks/h1/t1.json"), uri)

		// #nosec G304 -- test reads from the controlled temp directory.
		data, err := os.ReadFile(filepath.Join(dir, "tasks/h1/t1.json"))
		require.NoError(t, err)
		assert.JSONEq(t, `{"task_id":"t1"}`, string(data))
	})

	t.Run("OverwritesAndLeavesNoTempFiles", func(t *testing.T) {
		_, err := store.PutObject(ctx, "tasks/h1/t1.json", "", strings.NewReader("second"))
		require.NoError(t, err)
		entries, err := os.ReadDir(filepath.Join(dir, "tasks/h1"))
		require.NoError(t, err)
		require.Len(t, entries, 1)
	})

	t.Run("EmptyPath", func(t *testing.T) {
		_, err := store.PutObject(ctx, "", "", strings.NewReader("x"))
		assert.Error(t, err)
	})

	t.Run("PathTraversal", func(t *testing.T) {
		_, err := store.PutObject(ctx, "../escape.json", "", strings.NewReader("x"))
		assert.ErrorContains(t, err, "escapes")
	})

	t.Run("CanceledContext", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := store.PutObject(cctx, "late.json", "", strings.NewReader("x"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}
