package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/summit-index-crawler/internal/crawler"
)

var taskCols = []string{"id", "host", "status", "queue_url", "seeds", "document_ttl", "monitor_timestamp"}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestTaskStoreGetTask(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	store, err := NewTaskStore(mock)
	require.NoError(t, err)

	ts := time.Unix(1700000000, 0)
	mock.ExpectQuery("SELECT (.+) FROM crawl_tasks WHERE host").
		WithArgs("peakbagger.com").
		WillReturnRows(pgxmock.NewRows(taskCols).
			AddRow("t1", "peakbagger.com", "RUNNING", "q1", []string{"http://peakbagger.com/"}, int64(86400), &ts))

	task, err := store.GetTask(context.Background(), "peakbagger.com")
	require.NoError(t, err)
	require.Equal(t, crawler.TaskStatusRunning, task.Status)
	require.Equal(t, []string{"http://peakbagger.com/"}, task.Seeds)
	require.Equal(t, int64(86400), task.DocumentTTL)
	require.NotNil(t, task.MonitorTimestamp)
	require.True(t, ts.Equal(*task.MonitorTimestamp))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskStoreGetTaskNotFound(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	store, err := NewTaskStore(mock)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT (.+) FROM crawl_tasks WHERE host").
		WithArgs("missing.org").
		WillReturnRows(pgxmock.NewRows(taskCols))

	_, err = store.GetTask(context.Background(), "missing.org")
	require.ErrorIs(t, err, crawler.ErrTaskNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskStoreTasks(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	store, err := NewTaskStore(mock)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT (.+) FROM crawl_tasks ORDER BY host").
		WillReturnRows(pgxmock.NewRows(taskCols).
			AddRow("t1", "a.org", "PENDING", "qa", []string{"http://a.org/"}, int64(0), nil).
			AddRow("t2", "b.org", "COMPLETED", "qb", []string{}, int64(0), nil))

	tasks, err := store.Tasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	require.Equal(t, crawler.TaskStatusPending, tasks[0].Status)
	require.Nil(t, tasks[0].MonitorTimestamp)
	require.Equal(t, "qb", tasks[1].QueueURL)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskStoreTasksQueryError(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	store, err := NewTaskStore(mock)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT (.+) FROM crawl_tasks").WillReturnError(errors.New("conn reset"))
	_, err = store.Tasks(context.Background())
	require.ErrorContains(t, err, "list tasks")
}

func TestTaskStoreSaveUpserts(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	store, err := NewTaskStore(mock)
	require.NoError(t, err)

	task := crawler.Task{ID: "t1", Host: "a.org", Status: crawler.TaskStatusRunning, QueueURL: "qa", DocumentTTL: 60}
	mock.ExpectExec("INSERT INTO crawl_tasks (.+) ON CONFLICT \\(host\\) DO UPDATE").
		WithArgs("a.org", "t1", "RUNNING", "qa", []string{}, int64(60), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Save(context.Background(), task))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskStoreSaveRequiresHost(t *testing.T) {
	t.Parallel()

	store, err := NewTaskStore(newMock(t))
	require.NoError(t, err)
	require.Error(t, store.Save(context.Background(), crawler.Task{ID: "t1"}))
}

func TestTaskStoreDeleteMatchesID(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	store, err := NewTaskStore(mock)
	require.NoError(t, err)

	mock.ExpectExec("DELETE FROM crawl_tasks WHERE host = \\$1 AND id = \\$2").
		WithArgs("a.org", "t1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, store.Delete(context.Background(), crawler.Task{ID: "t1", Host: "a.org"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIndexSourceStoreRefreshable(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	store, err := NewIndexSourceStore(mock)
	require.NoError(t, err)

	now := time.UnixMilli(5000)
	mock.ExpectQuery("SELECT (.+) FROM index_sources WHERE next_update < \\$1").
		WithArgs(int64(5000)).
		WillReturnRows(pgxmock.NewRows([]string{"host", "seeds", "next_update", "refresh_interval_seconds", "document_ttl", "queue_url"}).
			AddRow("a.org", []string{"http://a.org/"}, int64(1000), int64(3600), int64(0), ""))

	sources, err := store.RefreshableSources(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, []crawler.IndexSource{{
		Host: "a.org", Seeds: []string{"http://a.org/"}, NextUpdate: 1000, RefreshIntervalSeconds: 3600,
	}}, sources)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIndexSourceStoreSave(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	store, err := NewIndexSourceStore(mock)
	require.NoError(t, err)

	src := crawler.IndexSource{Host: "a.org", Seeds: []string{"s"}, NextUpdate: 9, RefreshIntervalSeconds: 1, DocumentTTL: 2, QueueURL: "qa"}
	mock.ExpectExec("INSERT INTO index_sources").
		WithArgs("a.org", []string{"s"}, int64(9), int64(1), int64(2), "qa").
		WillReturnError(errors.New("unique violation"))

	require.ErrorContains(t, store.Save(context.Background(), src), "save source a.org")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS crawl_tasks").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, EnsureSchema(context.Background(), mock))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{})
	require.Error(t, err)
}

func TestNewStoresRequireDB(t *testing.T) {
	t.Parallel()

	_, err := NewTaskStore(nil)
	require.Error(t, err)
	_, err = NewIndexSourceStore(nil)
	require.Error(t, err)
}
