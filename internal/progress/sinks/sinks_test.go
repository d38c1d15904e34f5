package sinks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/summit-index-crawler/internal/progress"
	"github.com/JakeFAU/summit-index-crawler/internal/publisher"
	pubmemory "github.com/JakeFAU/summit-index-crawler/internal/publisher/memory"
	"github.com/JakeFAU/summit-index-crawler/internal/storage/memory"
)

func TestLogSinkWritesFields(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{Kind: progress.KindWorkerHealthy, TS: time.Now(), WorkerID: "w1"},
	}))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "WORKER_HEALTHY", fields["kind"])
	require.Equal(t, "w1", fields["worker_id"])
	require.NotContains(t, fields, "task_id")
}

func TestPublisherSinkPublishesJSON(t *testing.T) {
	t.Parallel()

	pub := pubmemory.New()
	sink := NewPublisherSink(pub, "crawl-lifecycle", nil)
	evt := progress.Event{Kind: progress.KindTaskCreated, TS: time.Unix(10, 0).UTC(), TaskID: "t1", Host: "www.summitpost.org"}
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{evt}))

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "crawl-lifecycle", msgs[0].Topic)
	require.Equal(t, "TASK_CREATED", msgs[0].Attributes["kind"])
	require.Equal(t, "www.summitpost.org", msgs[0].Attributes["host"])

	var decoded progress.Event
	require.NoError(t, json.Unmarshal(msgs[0].Data, &decoded))
	require.Equal(t, evt, decoded)
}

type failingPublisher struct{ calls int }

func (f *failingPublisher) Publish(context.Context, publisher.Message) (string, error) {
	f.calls++
	return "", errors.New("broker down")
}

func TestPublisherSinkAttemptsWholeBatch(t *testing.T) {
	t.Parallel()

	pub := &failingPublisher{}
	sink := NewPublisherSink(pub, "t", nil)
	err := sink.Consume(context.Background(), []progress.Event{
		{Kind: progress.KindRoundCompleted, TS: time.Now()},
		{Kind: progress.KindRoundFailed, TS: time.Now()},
	})
	require.ErrorContains(t, err, "broker down")
	require.Equal(t, 2, pub.calls)
}

func TestArchiveSinkWritesRetiredTasksOnly(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	sink := NewArchiveSink(store, nil)
	retiredAt := time.Unix(1000, 0).UTC()
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{Kind: progress.KindTaskCompleted, TS: retiredAt, TaskID: "t0", Host: "a.org"},
		{Kind: progress.KindTaskRetired, TS: retiredAt, TaskID: "t1", Host: "a.org", QueueURL: "q-a-org"},
	}))

	require.Equal(t, []string{"tasks/a.org/t1.json"}, store.Keys())
	data, ok := store.Object("tasks/a.org/t1.json")
	require.True(t, ok)

	var rec ArchiveRecord
	require.NoError(t, json.Unmarshal(data, &rec))
	require.Equal(t, ArchiveRecord{TaskID: "t1", Host: "a.org", QueueURL: "q-a-org", RetiredAt: retiredAt}, rec)
}

type brokenStore struct{}

func (brokenStore) PutObject(context.Context, string, string, io.Reader) (string, error) {
	return "", errors.New("bucket unavailable")
}

func TestArchiveSinkReturnsStoreErrors(t *testing.T) {
	t.Parallel()

	sink := NewArchiveSink(brokenStore{}, nil)
	err := sink.Consume(context.Background(), []progress.Event{
		{Kind: progress.KindTaskRetired, TS: time.Now(), TaskID: "t1", Host: "a.org"},
	})
	require.ErrorContains(t, err, "bucket unavailable")
}
