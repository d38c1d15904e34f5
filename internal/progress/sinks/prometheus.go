package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/summit-index-crawler/internal/progress"
)

// PrometheusSink counts lifecycle events and records round and drain durations.
type PrometheusSink struct {
	events        *prometheus.CounterVec
	roundAssigned prometheus.Histogram
	queueDrain    prometheus.Histogram
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "summit_lifecycle_events_total",
			Help: "Lifecycle events observed, partitioned by kind.",
		}, []string{"kind"}),
		roundAssigned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "summit_round_tasks_assigned",
			Help:    "Tasks assigned per completed coordination round.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
		queueDrain: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "summit_task_empty_queue_seconds",
			Help:    "How long a task queue stayed empty before the task completed.",
			Buckets: []float64{60, 300, 600, 1800, 3600, 7200},
		}),
	}
	for _, collector := range []prometheus.Collector{s.events, s.roundAssigned, s.queueDrain} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register lifecycle collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.events.WithLabelValues(string(evt.Kind)).Inc()
		switch evt.Kind {
		case progress.KindRoundCompleted:
			s.roundAssigned.Observe(float64(evt.Count))
		case progress.KindTaskCompleted:
			if evt.Dur > 0 {
				s.queueDrain.Observe(evt.Dur.Seconds())
			}
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
