// Package handler provides HTTP handlers for the Tidewatch API.
package handler

import (
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/tidewatch/tidewatch/internal/api/models"
	"github.com/tidewatch/tidewatch/internal/api/response"
	"github.com/tidewatch/tidewatch/internal/provider/resilience"
	"github.com/tidewatch/tidewatch/internal/scheduler"
)

// StatusSource reports on the refresh loop.
type StatusSource interface {
	Snapshot() scheduler.Snapshot
	Visible() bool
	Metrics() *scheduler.Metrics
}

// ProviderHealthSource reports on upstream providers.
type ProviderHealthSource interface {
	GetAllHealth() []*resilience.ProviderHealth
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	scheduler StatusSource
	providers ProviderHealthSource
	now       func() time.Time
}

// NewOpsHandler creates a new OpsHandler. Either source may be nil.
func NewOpsHandler(version, buildTime string, sched StatusSource, providers ProviderHealthSource) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		scheduler: sched,
		providers: providers,
		now:       time.Now,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready. The service is ready once the
// scheduler has started its first cycle.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil || h.scheduler.Snapshot().Generation == 0 {
		response.ServiceUnavailable(w, r, "scheduler has not started")
		return
	}

	snap := h.scheduler.Snapshot()
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]any{
			"generation": snap.Generation,
			"state":      snap.State,
		},
	}
	if snap.LastSuccessAt == nil {
		health.Status = models.HealthStatusDegraded
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - scheduler and provider status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:    models.HealthStatusOK,
		Time:      models.Timestamp(h.now()),
		Providers: []models.ProviderStatus{},
	}

	if h.scheduler != nil {
		snap := h.scheduler.Snapshot()
		status.Scheduler = models.SchedulerStatus{
			State:         string(snap.State),
			Generation:    snap.Generation,
			Mode:          snap.Mode.String(),
			Visible:       h.scheduler.Visible(),
			LastSuccessAt: timestampPtr(snap.LastSuccessAt),
		}
		if m := h.scheduler.Metrics(); m != nil {
			totals := m.Totals()
			status.Scheduler.Refreshes = totals.Refreshes
			status.Scheduler.Retries = totals.Retries
			status.Scheduler.Discarded = totals.Discarded
		}
		if snap.State == scheduler.StateRetrying {
			status.Status = models.HealthStatusDegraded
		}
	}

	if h.providers != nil {
		for _, p := range h.providers.GetAllHealth() {
			ps := models.ProviderStatus{
				Provider:      p.Name,
				Status:        providerStatus(p),
				CircuitState:  p.CircuitState.String(),
				LastSuccessAt: timestampPtr(p.LastSuccessAt),
				LastFailureAt: timestampPtr(p.LastFailureAt),
			}
			if p.LastError != "" {
				msg := p.LastError
				ps.Message = &msg
			}
			if ps.Status != models.HealthStatusOK {
				status.Status = models.HealthStatusDegraded
			}
			status.Providers = append(status.Providers, ps)
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func providerStatus(p *resilience.ProviderHealth) models.HealthStatus {
	switch p.CircuitState {
	case gobreaker.StateOpen:
		return models.HealthStatusFail
	case gobreaker.StateHalfOpen:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusOK
	}
}

func timestampPtr(t *time.Time) *models.Timestamp {
	if t == nil {
		return nil
	}
	ts := models.Timestamp(*t)
	return &ts
}
