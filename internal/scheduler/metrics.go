package scheduler

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/tidewatch/tidewatch/internal/scheduler"

// Metrics records refresh activity as OpenTelemetry instruments and keeps
// running totals for the status endpoint.
type Metrics struct {
	refreshTotal   metric.Int64Counter
	resultTotal    metric.Int64Counter
	fetchDuration  metric.Float64Histogram
	retryScheduled metric.Int64Counter

	mu     sync.RWMutex
	totals Totals
}

// Totals are the counters since start.
type Totals struct {
	Refreshes      int64            `json:"refreshes"`
	ByTrigger      map[string]int64 `json:"byTrigger"`
	Successes      int64            `json:"successes"`
	Failures       int64            `json:"failures"`
	Discarded      int64            `json:"discarded"`
	Retries        int64            `json:"retries"`
	LastDurationMs int64            `json:"lastDurationMs"`
}

// NewMetrics creates the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	refreshTotal, err := meter.Int64Counter(
		"tidewatch.refresh.total",
		metric.WithDescription("Refresh cycles started, by trigger"),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return nil, err
	}

	resultTotal, err := meter.Int64Counter(
		"tidewatch.source.result.total",
		metric.WithDescription("Source results applied, by source and outcome"),
		metric.WithUnit("{result}"),
	)
	if err != nil {
		return nil, err
	}

	fetchDuration, err := meter.Float64Histogram(
		"tidewatch.source.fetch.duration",
		metric.WithDescription("Duration of one source fetch in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	retryScheduled, err := meter.Int64Counter(
		"tidewatch.refresh.retry.total",
		metric.WithDescription("Backoff retries scheduled after every source failed"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		refreshTotal:   refreshTotal,
		resultTotal:    resultTotal,
		fetchDuration:  fetchDuration,
		retryScheduled: retryScheduled,
		totals:         Totals{ByTrigger: make(map[string]int64)},
	}, nil
}

func (m *Metrics) refreshStarted(ctx context.Context, trigger Trigger) {
	if m == nil {
		return
	}
	m.refreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("trigger", string(trigger))))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.totals.Refreshes++
	m.totals.ByTrigger[string(trigger)]++
}

func (m *Metrics) resultApplied(ctx context.Context, name string, failed bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if failed {
		outcome = "failure"
	}
	attrs := metric.WithAttributes(attribute.String("source", name), attribute.String("outcome", outcome))
	m.resultTotal.Add(ctx, 1, attrs)
	m.fetchDuration.Record(ctx, d.Seconds(), attrs)

	m.mu.Lock()
	defer m.mu.Unlock()
	if failed {
		m.totals.Failures++
	} else {
		m.totals.Successes++
	}
}

func (m *Metrics) resultDiscarded() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totals.Discarded++
}

func (m *Metrics) retry(ctx context.Context, attempt int) {
	if m == nil {
		return
	}
	m.retryScheduled.Add(ctx, 1, metric.WithAttributes(attribute.Int("attempt", attempt)))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.totals.Retries++
}

func (m *Metrics) cycleFinished(d time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totals.LastDurationMs = d.Milliseconds()
}

// Totals returns a copy of the running totals.
func (m *Metrics) Totals() Totals {
	if m == nil {
		return Totals{ByTrigger: map[string]int64{}}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	t := m.totals
	t.ByTrigger = make(map[string]int64, len(m.totals.ByTrigger))
	for k, v := range m.totals.ByTrigger {
		t.ByTrigger[k] = v
	}
	return t
}
