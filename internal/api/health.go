package api

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// PingerFunc adapts a function to the Pinger interface.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
}

// HealthHandler reports service health. The database is the only hard
// dependency; the object store and provider are checked lazily per request
// and only degrade the status.
type HealthHandler struct {
	database  Pinger
	objects   Pinger
	version   string
	startTime time.Time
}

func NewHealthHandler(database, objects Pinger, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		database:  database,
		objects:   objects,
		version:   version,
		startTime: startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.database.HealthCheck(r.Context()); err != nil {
		checks["database"] = "error"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if h.objects != nil {
		if err := h.objects.HealthCheck(r.Context()); err != nil {
			checks["object_store"] = "error"
			if status == "healthy" {
				status = "degraded"
			}
		} else {
			checks["object_store"] = "ok"
		}
	} else {
		checks["object_store"] = "not_configured"
	}

	WriteJSON(w, httpStatus, HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
	})
}
