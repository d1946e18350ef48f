// Package api exposes status tracking and the notification inbox over HTTP.
package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jobboard-workers/internal/common/logger"
)

// Deps wires the handlers. Validator may be nil when an upstream gateway
// authenticates callers.
type Deps struct {
	Tracking      StatusService
	Inbox         InboxService
	Validator     TokenValidator
	RequiredScope string
	Ready         map[string]Pinger
	Logger        logger.Logger
}

// NewHandler builds the full HTTP handler with routes and middleware.
func NewHandler(d Deps) http.Handler {
	log := logger.Component(d.Logger, "api")
	h := &handler{
		tracking: d.Tracking,
		inbox:    d.Inbox,
		ready:    d.Ready,
		logger:   log,
	}

	authed := authenticate(d.Validator)
	protect := func(fn http.HandlerFunc) http.Handler { return authed(fn) }
	write := func(fn http.HandlerFunc) http.Handler {
		return authed(requireScope(d.RequiredScope, fn))
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /ready", h.readiness)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.Handle("PATCH /api/v1/applications/{id}/status", write(h.setApplicationStatus))
	mux.Handle("GET /api/v1/applications/{id}/history", protect(h.applicationHistory))
	mux.Handle("GET /api/v1/applications", protect(h.listApplications))

	mux.Handle("PATCH /api/v1/job-pools/{poolId}/candidates/{id}/status", write(h.setPoolMemberStatus))
	mux.Handle("GET /api/v1/job-pools/{poolId}/candidates/{id}/history", protect(h.poolMemberHistory))
	mux.Handle("GET /api/v1/job-pools/{poolId}/candidates", protect(h.listPoolMembers))

	mux.Handle("GET /api/v1/statuses/{kind}", protect(h.describeStatuses))

	mux.Handle("GET /api/v1/me/notifications", protect(h.listNotifications))
	mux.Handle("POST /api/v1/me/notifications/{id}/read", protect(h.markNotificationRead))

	// requestID -> recovery -> logging -> mux
	var handler http.Handler = mux
	handler = logging(log)(handler)
	handler = recovery(log)(handler)
	handler = requestID(handler)

	return handler
}
