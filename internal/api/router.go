// Package api serves the read-only status endpoints of a running migration.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/listengraph/internal/middleware"
	"github.com/persistorai/listengraph/internal/migrate"
)

// Progress reports the live state of a migration.
type Progress interface {
	State() migrate.State
	Snapshot() migrate.Stats
}

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Log      *logrus.Logger
	Progress Progress
	Version  string
}

// NewRouter builds the status server handler.
func NewRouter(deps RouterDeps) http.Handler {
	r := gin.New()
	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.HandleMethodNotAllowed = true

	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Log))
	r.Use(middleware.Recovery(deps.Log))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.Prometheus())

	h := NewStatusHandler(deps.Progress, deps.Version)
	r.GET("/healthz", h.Liveness)
	r.GET("/status", h.Status)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
