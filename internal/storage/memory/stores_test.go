package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/summit-index-crawler/internal/crawler"
)

func TestTaskStoreLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewTaskStore()

	_, err := store.GetTask(ctx, "a.org")
	require.ErrorIs(t, err, crawler.ErrTaskNotFound)

	task := crawler.Task{ID: "t1", Host: "a.org", Status: crawler.TaskStatusPending, Seeds: []string{"http://a.org/"}}
	require.NoError(t, store.Save(ctx, task))
	require.NoError(t, store.Save(ctx, crawler.Task{ID: "t0", Host: "0.org", Status: crawler.TaskStatusRunning}))
	require.Error(t, store.Save(ctx, crawler.Task{ID: "bad"}))

	got, err := store.GetTask(ctx, "a.org")
	require.NoError(t, err)
	require.Equal(t, task, got)
	got.Seeds[0] = "mutated"

	all, err := store.Tasks(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "0.org", all[0].Host)
	require.Equal(t, "http://a.org/", all[1].Seeds[0])

	require.NoError(t, store.Delete(ctx, crawler.Task{ID: "other", Host: "a.org"}))
	_, err = store.GetTask(ctx, "a.org")
	require.NoError(t, err, "delete with a stale id must not remove the newer record")

	require.NoError(t, store.Delete(ctx, task))
	_, err = store.GetTask(ctx, "a.org")
	require.ErrorIs(t, err, crawler.ErrTaskNotFound)
}

func TestIndexSourceStoreRefreshable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.UnixMilli(10_000)
	store := NewIndexSourceStore(
		crawler.IndexSource{Host: "due-late.org", NextUpdate: 9_000},
		crawler.IndexSource{Host: "due-early.org", NextUpdate: 1_000},
		crawler.IndexSource{Host: "boundary.org", NextUpdate: 10_000},
		crawler.IndexSource{Host: "future.org", NextUpdate: 20_000},
	)

	due, err := store.RefreshableSources(ctx, now)
	require.NoError(t, err)
	hosts := make([]string, 0, len(due))
	for _, src := range due {
		hosts = append(hosts, src.Host)
	}
	require.Equal(t, []string{"due-early.org", "due-late.org"}, hosts)

	src := due[0]
	src.NextUpdate = 50_000
	src.QueueURL = "q"
	require.NoError(t, store.Save(ctx, src))
	stored, ok := store.Source("due-early.org")
	require.True(t, ok)
	require.Equal(t, int64(50_000), stored.NextUpdate)
	require.Equal(t, "q", stored.QueueURL)

	require.Error(t, store.Save(ctx, crawler.IndexSource{}))
}
