package cmd

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub/v2"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/summit-index-crawler/internal/api"
	"github.com/JakeFAU/summit-index-crawler/internal/config"
	"github.com/JakeFAU/summit-index-crawler/internal/crawler"
	"github.com/JakeFAU/summit-index-crawler/internal/progress"
	"github.com/JakeFAU/summit-index-crawler/internal/progress/sinks"
	memorypublisher "github.com/JakeFAU/summit-index-crawler/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/summit-index-crawler/internal/publisher/pubsub"
	jsqueue "github.com/JakeFAU/summit-index-crawler/internal/queue/jetstream"
	memoryqueue "github.com/JakeFAU/summit-index-crawler/internal/queue/memory"
	"github.com/JakeFAU/summit-index-crawler/internal/storage"
	"github.com/JakeFAU/summit-index-crawler/internal/storage/gcs"
	"github.com/JakeFAU/summit-index-crawler/internal/storage/local"
	memorystorage "github.com/JakeFAU/summit-index-crawler/internal/storage/memory"
	"github.com/JakeFAU/summit-index-crawler/internal/storage/postgres"
)

// closers releases resources in reverse acquisition order.
type closers []func()

func (c *closers) add(fn func()) {
	*c = append(*c, fn)
}

func (c closers) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func buildQueue(cfg config.QueueConfig, logger *zap.Logger, cl *closers) (crawler.IndexingTaskQueueClient, error) {
	switch cfg.Provider {
	case "memory":
		logger.Warn("using in-memory crawl queues; workers in other processes cannot consume them")
		return memoryqueue.NewClient(), nil
	case "jetstream":
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("summitcrawler-coordinator"))
		if err != nil {
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		cl.add(nc.Close)
		js, err := jetstream.New(nc)
		if err != nil {
			return nil, fmt.Errorf("jetstream: %w", err)
		}
		client, err := jsqueue.New(js, jsqueue.Config{Replicas: cfg.Replicas, MaxAge: cfg.MaxAge})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported queue provider %q", cfg.Provider)
	}
}

type stores struct {
	tasks   crawler.TaskStore
	sources crawler.IndexSourceStore
	ready   api.ReadyFunc
}

func buildStores(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger, cl *closers) (stores, error) {
	switch cfg.Provider {
	case "memory":
		return stores{
			tasks:   memorystorage.NewTaskStore(),
			sources: memorystorage.NewIndexSourceStore(cfg.IndexSources()...),
		}, nil
	case "postgres":
		pool, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return stores{}, err
		}
		cl.add(pool.Close)
		if cfg.Migrate {
			if err := postgres.EnsureSchema(ctx, pool); err != nil {
				return stores{}, err
			}
			logger.Info("postgres schema ensured")
		}
		if len(cfg.Sources) > 0 {
			logger.Warn("store.sources is ignored by the postgres provider", zap.Int("sources", len(cfg.Sources)))
		}
		tasks, err := postgres.NewTaskStore(pool)
		if err != nil {
			return stores{}, err
		}
		sources, err := postgres.NewIndexSourceStore(pool)
		if err != nil {
			return stores{}, err
		}
		return stores{tasks: tasks, sources: sources, ready: pool.Ping}, nil
	default:
		return stores{}, fmt.Errorf("unsupported store provider %q", cfg.Provider)
	}
}

func buildArchive(ctx context.Context, cfg config.ArchiveConfig, cl *closers) (storage.BlobStore, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "memory":
		return memorystorage.NewBlobStore(), nil
	case "local":
		store, err := local.New(local.Config{BaseDir: cfg.BaseDir})
		if err != nil {
			return nil, err
		}
		return store, nil
	case "gcs":
		store, err := gcs.Open(ctx, gcs.Config{Bucket: cfg.Bucket, Prefix: cfg.Prefix}, nil)
		if err != nil {
			return nil, err
		}
		cl.add(func() { _ = store.Close() })
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported archive provider %q", cfg.Provider)
	}
}

func buildPublisherSink(ctx context.Context, cfg config.EventsConfig, logger *zap.Logger, cl *closers) (progress.Sink, error) {
	switch cfg.Publisher {
	case "", "none":
		return nil, nil
	case "memory":
		return sinks.NewPublisherSink(memorypublisher.New(), cfg.Topic, logger), nil
	case "pubsub":
		client, err := pubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("create pubsub client: %w", err)
		}
		cl.add(func() { _ = client.Close() })
		pub, err := pubsubpublisher.NewFromClient(client, cfg.Topic)
		if err != nil {
			return nil, err
		}
		cl.add(pub.Stop)
		return sinks.NewPublisherSink(pub, cfg.Topic, logger), nil
	default:
		return nil, fmt.Errorf("unsupported events publisher %q", cfg.Publisher)
	}
}

// buildHub assembles the lifecycle hub and its sinks. The caller closes the
// hub before running cl so sinks flush while their clients are still open.
func buildHub(ctx context.Context, cfg config.EventsConfig, logger *zap.Logger, cl *closers) (*progress.Hub, error) {
	hubSinks := []progress.Sink{sinks.NewLogSink(logger.Named("events"))}

	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, err
	}
	hubSinks = append(hubSinks, promSink)

	pubSink, err := buildPublisherSink(ctx, cfg, logger.Named("publisher"), cl)
	if err != nil {
		return nil, err
	}
	if pubSink != nil {
		hubSinks = append(hubSinks, pubSink)
	}

	archive, err := buildArchive(ctx, cfg.Archive, cl)
	if err != nil {
		return nil, err
	}
	if archive != nil {
		hubSinks = append(hubSinks, sinks.NewArchiveSink(archive, logger.Named("archive")))
	}

	return progress.NewHub(progress.Config{
		BufferSize:     cfg.BufferSize,
		MaxBatchEvents: cfg.MaxBatchEvents,
		MaxBatchWait:   cfg.MaxBatchWait,
		Logger:         logger.Named("hub"),
	}, hubSinks...), nil
}
