package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/persistorai/listengraph/internal/migrate"
)

// StatusHandler serves liveness and progress of the current run.
type StatusHandler struct {
	progress  Progress
	version   string
	startTime time.Time
}

// NewStatusHandler creates a StatusHandler over progress.
func NewStatusHandler(progress Progress, version string) *StatusHandler {
	return &StatusHandler{progress: progress, version: version, startTime: time.Now()}
}

type healthResponse struct {
	Status        string        `json:"status"`
	Version       string        `json:"version"`
	State         migrate.State `json:"state"`
	UptimeSeconds float64       `json:"uptime_seconds"`
}

type statusResponse struct {
	State              migrate.State `json:"state"`
	Done               bool          `json:"done"`
	SuccessRatePercent float64       `json:"success_rate_percent"`
	Stats              migrate.Stats `json:"stats"`
}

// Liveness handles GET /healthz. A failed migration reports "failed" with
// 503 so that supervisors can tell it from a healthy run.
func (h *StatusHandler) Liveness(c *gin.Context) {
	state := h.progress.State()

	resp := healthResponse{
		Status:        "ok",
		Version:       h.version,
		State:         state,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}

	code := http.StatusOK
	if state == migrate.StateFailed {
		resp.Status = "failed"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, resp)
}

// Status handles GET /status.
func (h *StatusHandler) Status(c *gin.Context) {
	state := h.progress.State()
	stats := h.progress.Snapshot()

	c.JSON(http.StatusOK, statusResponse{
		State:              state,
		Done:               state.Terminal(),
		SuccessRatePercent: migrate.SuccessRate(stats.Processed, stats.Resumed, stats.Failed),
		Stats:              stats,
	})
}
