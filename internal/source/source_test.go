package source_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tidewatch/tidewatch/internal/provider/resilience"
	"github.com/tidewatch/tidewatch/internal/source"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want source.Kind
	}{
		{"unauthorized", &resilience.StatusError{StatusCode: http.StatusUnauthorized}, source.KindAuth},
		{"forbidden", &resilience.StatusError{StatusCode: http.StatusForbidden}, source.KindAuth},
		{"server error", &resilience.StatusError{StatusCode: http.StatusBadGateway}, source.KindNetwork},
		{"not found", fmt.Errorf("wrapped: %w", &resilience.StatusError{StatusCode: http.StatusNotFound}), source.KindNetwork},
		{"decode", &resilience.DecodeError{Err: errors.New("unexpected EOF")}, source.KindData},
		{"circuit open", resilience.ErrCircuitOpen, source.KindNetwork},
		{"already classified", source.ConfigError("missing api key"), source.KindConfig},
		{"plain", errors.New("dial tcp: refused"), source.KindNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, source.Classify(tt.err).Kind)
		})
	}
	assert.Nil(t, source.Classify(nil))
}

func TestError_IsByKind(t *testing.T) {
	err := fmt.Errorf("weather: %w", source.DataError("missing list"))

	assert.ErrorIs(t, err, source.ErrData)
	assert.NotErrorIs(t, err, source.ErrNetwork)
	assert.Contains(t, err.Error(), "data error: missing list")
}

func TestResult(t *testing.T) {
	ok := source.Ok(42, "test")
	assert.True(t, ok.OK())
	assert.False(t, ok.Failed())
	assert.Equal(t, source.Kind(""), ok.Kind())

	failed := source.Fail[int](&resilience.StatusError{StatusCode: http.StatusForbidden}, "test")
	assert.True(t, failed.Failed())
	assert.Equal(t, source.KindAuth, failed.Kind())

	empty := source.Empty[[]string](source.ReasonNotConfigured, "calendar")
	assert.True(t, empty.OK())
	assert.Nil(t, empty.Value)
	assert.Equal(t, "not_configured", empty.Reason)
}

func TestError_MarshalJSON(t *testing.T) {
	r := source.Fail[int](&resilience.StatusError{Provider: "noaa", StatusCode: http.StatusUnauthorized}, "tides")

	b, err := json.Marshal(r)
	assert.NoError(t, err)
	assert.Contains(t, string(b), `"kind":"auth"`)
	assert.Contains(t, string(b), `"source":"tides"`)

	b, err = json.Marshal(source.Ok(1, "test"))
	assert.NoError(t, err)
	assert.NotContains(t, string(b), `"error"`)
}
