package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"jobboard-workers/internal/common/errors"
	"jobboard-workers/internal/common/logger"
	"jobboard-workers/internal/models"
	"jobboard-workers/internal/status"
	"jobboard-workers/internal/tracking"
)

const (
	maxBodyBytes = 64 << 10
	dateFormat   = "2006-01-02"
)

// StatusService is the tracking surface the API drives.
type StatusService interface {
	SetStatus(ctx context.Context, in tracking.SetStatusInput) (*tracking.Result, error)
	List(ctx context.Context, kind status.Kind, f tracking.Filter) ([]models.TrackedEntity, error)
	History(ctx context.Context, kind status.Kind, id, parentID string) ([]models.StatusHistory, error)
}

type InboxService interface {
	List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
}

// Pinger is a dependency probed by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

type handler struct {
	tracking StatusService
	inbox    InboxService
	ready    map[string]Pinger
	logger   logger.Logger
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.ready))
	healthy := true
	for name, p := range h.ready {
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, checks)
}

func (h *handler) setApplicationStatus(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, status.KindApplication, "")
}

func (h *handler) setPoolMemberStatus(w http.ResponseWriter, r *http.Request) {
	poolID, ok := pathUUID(w, r, "poolId", status.KindJobPool)
	if !ok {
		return
	}
	h.setStatus(w, r, status.KindJobPool, poolID)
}

func (h *handler) setStatus(w http.ResponseWriter, r *http.Request, kind status.Kind, parentID string) {
	id, ok := pathUUID(w, r, "id", kind)
	if !ok {
		return
	}

	req, err := decodeSetStatus(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	p, _ := principalFrom(r.Context())
	result, err := h.tracking.SetStatus(r.Context(), tracking.SetStatusInput{
		Kind:           kind,
		EntityID:       id,
		ParentID:       parentID,
		Status:         req.Status,
		Note:           req.Notes,
		ActorID:        actorID(p),
		ExpectedStatus: req.ExpectedStatus,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func decodeSetStatus(w http.ResponseWriter, r *http.Request) (*setStatusRequest, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.NewInvalidRequestError("request body too large or unreadable")
	}

	result, err := setStatusSchema.ValidateJSON(raw)
	if err != nil {
		return nil, errors.NewInvalidRequestError(err.Error())
	}
	if !result.Valid {
		e := errors.NewRequestValidationError(result.Error())
		e.Metadata = map[string]interface{}{"errors": result.Errors}
		return nil, e
	}

	var req setStatusRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, errors.NewInvalidRequestError(err.Error())
	}
	return &req, nil
}

// actorID returns the caller's id when it can be stored as changed_by.
func actorID(p Principal) *string {
	if _, err := uuid.Parse(p.UserID); err != nil {
		return nil
	}
	id := p.UserID
	return &id
}

func (h *handler) applicationHistory(w http.ResponseWriter, r *http.Request) {
	h.history(w, r, status.KindApplication, "")
}

func (h *handler) poolMemberHistory(w http.ResponseWriter, r *http.Request) {
	poolID, ok := pathUUID(w, r, "poolId", status.KindJobPool)
	if !ok {
		return
	}
	h.history(w, r, status.KindJobPool, poolID)
}

func (h *handler) history(w http.ResponseWriter, r *http.Request, kind status.Kind, parentID string) {
	id, ok := pathUUID(w, r, "id", kind)
	if !ok {
		return
	}
	rows, err := h.tracking.History(r.Context(), kind, id, parentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *handler) listApplications(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if jobID := r.URL.Query().Get("jobId"); jobID != "" {
		if _, err := uuid.Parse(jobID); err != nil {
			writeError(w, r, errors.NewInvalidRequestError("jobId must be a UUID"))
			return
		}
		f.ParentID = jobID
	}
	h.list(w, r, status.KindApplication, f)
}

func (h *handler) listPoolMembers(w http.ResponseWriter, r *http.Request) {
	poolID, ok := pathUUID(w, r, "poolId", status.KindJobPool)
	if !ok {
		return
	}
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f.ParentID = poolID
	h.list(w, r, status.KindJobPool, f)
}

func (h *handler) list(w http.ResponseWriter, r *http.Request, kind status.Kind, f tracking.Filter) {
	rows, err := h.tracking.List(r.Context(), kind, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// parseFilter reads status, from, to, limit and offset. A date-only "to"
// covers the whole day.
func parseFilter(r *http.Request) (tracking.Filter, error) {
	q := r.URL.Query()
	var f tracking.Filter

	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		s := status.Status(strings.ToLower(raw))
		f.Status = &s
	}

	var err error
	if f.From, err = parseTime(q.Get("from"), false); err != nil {
		return f, errors.NewInvalidRequestError("invalid from: expected RFC3339 or YYYY-MM-DD")
	}
	if f.To, err = parseTime(q.Get("to"), true); err != nil {
		return f, errors.NewInvalidRequestError("invalid to: expected RFC3339 or YYYY-MM-DD")
	}
	if f.Limit, err = parseInt(q.Get("limit")); err != nil {
		return f, errors.NewInvalidRequestError("limit must be an integer")
	}
	if f.Offset, err = parseInt(q.Get("offset")); err != nil {
		return f, errors.NewInvalidRequestError("offset must be an integer")
	}
	return f, nil
}

func parseTime(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateFormat, raw)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func parseInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func (h *handler) describeStatuses(w http.ResponseWriter, r *http.Request) {
	kind, err := status.ParseKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, r, errors.NewEntityNotFoundError("status_kind", r.PathValue("kind")))
		return
	}
	writeJSON(w, http.StatusOK, status.Describe(kind))
}

func (h *handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	unread, _ := strconv.ParseBool(r.URL.Query().Get("unread"))
	limit, err := parseInt(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, r, errors.NewInvalidRequestError("limit must be an integer"))
		return
	}

	// A caller id that is not a UUID owns no notification rows.
	if _, err := uuid.Parse(p.UserID); err != nil {
		writeJSON(w, http.StatusOK, []models.Notification{})
		return
	}

	rows, err := h.inbox.List(r.Context(), p.UserID, unread, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *handler) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "notification")
	if !ok {
		return
	}
	p, _ := principalFrom(r.Context())
	if _, err := uuid.Parse(p.UserID); err != nil {
		writeError(w, r, errors.NewEntityNotFoundError("notification", id))
		return
	}
	if err := h.inbox.MarkRead(r.Context(), p.UserID, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

// pathUUID reads a UUID path value. Anything else cannot name a row, so it is
// reported as not found.
func pathUUID(w http.ResponseWriter, r *http.Request, name string, kind status.Kind) (string, bool) {
	raw := r.PathValue(name)
	if _, err := uuid.Parse(raw); err != nil {
		writeError(w, r, errors.NewEntityNotFoundError(string(kind), raw))
		return "", false
	}
	return raw, true
}
