package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/tidewatch/tidewatch/internal/displaymode"
	"github.com/tidewatch/tidewatch/internal/scheduler"
	"github.com/tidewatch/tidewatch/internal/source"
	"github.com/tidewatch/tidewatch/internal/weather"
)

func TestMetrics_FetchDurationUsesSchedulerClock(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	mock := clock.NewMock()
	mock.Set(morning)

	slow := fetchFunc[weather.Summary](func(context.Context, displaymode.Mode) source.Result[weather.Summary] {
		mock.Add(3 * time.Second)
		return source.Ok(weather.Summary{TemperatureF: 60}, string(weather.SourceLiveForecast))
	})
	_, td, s, c := okHarness()

	metrics, err := scheduler.NewMetrics()
	require.NoError(t, err)

	sched, err := scheduler.New(scheduler.Config{
		Weather: slow, Tides: td, Sun: s, Calendar: c,
		Resolver: displaymode.NewResolver(displaymode.Config{Clock: mock, Timezone: "UTC", ThresholdHour: 17}),
		Clock:    mock,
		Sink:     &recordingSink{},
		Metrics:  metrics,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(sched.Stop)

	sched.RefreshAll(scheduler.TriggerManual)
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, sched.WaitSettled(ctx))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]float64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != "tidewatch.source.fetch.duration" {
				continue
			}
			hist, ok := md.Data.(metricdata.Histogram[float64])
			require.True(t, ok)
			for _, dp := range hist.DataPoints {
				name, _ := dp.Attributes.Value(attribute.Key("source"))
				sums[name.AsString()] += dp.Sum
			}
		}
	}

	assert.Equal(t, 3.0, sums[scheduler.SourceWeather])
}
