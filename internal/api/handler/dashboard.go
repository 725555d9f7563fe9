package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/tidewatch/tidewatch/internal/api/models"
	"github.com/tidewatch/tidewatch/internal/api/response"
	"github.com/tidewatch/tidewatch/internal/dashboard"
	"github.com/tidewatch/tidewatch/internal/scheduler"
)

// ViewSource renders the presentation model.
type ViewSource interface {
	View() dashboard.View
}

// Controller drives the refresh loop.
type Controller interface {
	Snapshot() scheduler.Snapshot
	Manual() uint64
	SetVisible(visible bool) bool
}

// DashboardHandler handles dashboard endpoints.
type DashboardHandler struct {
	board      ViewSource
	controller Controller
	logger     zerolog.Logger
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(board ViewSource, controller Controller, logger zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{
		board:      board,
		controller: controller,
		logger:     logger.With().Str("component", "dashboard_handler").Logger(),
	}
}

// GetView handles GET /v1/dashboard - the rendered panels.
func (h *DashboardHandler) GetView(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.board.View())
}

// GetSnapshot handles GET /v1/dashboard/snapshot - raw results for the
// current generation.
func (h *DashboardHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.controller.Snapshot())
}

// Refresh handles POST /v1/dashboard/refresh.
func (h *DashboardHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	gen := h.controller.Manual()
	snap := h.controller.Snapshot()

	h.logger.Info().
		Str("subject", GetSubject(r.Context())).
		Uint64("generation", gen).
		Str("trigger", string(snap.Trigger)).
		Msg("refresh requested")

	response.Accepted(w, r, models.RefreshResponse{
		Triggered:  true,
		Generation: gen,
		Trigger:    string(snap.Trigger),
	})
}

// SetVisibility handles POST /v1/dashboard/visibility.
func (h *DashboardHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	var input models.VisibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if input.Visible == nil {
		response.BadRequest(w, r, "validation error", []models.FieldError{
			{Field: "visible", Message: "is required", Code: "REQUIRED"},
		})
		return
	}

	started := h.controller.SetVisible(*input.Visible)
	resp := models.RefreshResponse{
		Triggered:  started,
		Generation: h.controller.Snapshot().Generation,
	}
	if started {
		resp.Trigger = string(scheduler.TriggerVisibility)
	}
	response.JSON(w, r, http.StatusOK, resp)
}
