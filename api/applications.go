package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/garnizeh/hrbot/pkg/models"
	"github.com/garnizeh/hrbot/pkg/repository"
)

// ApplicationStore is the review side of the repository.
type ApplicationStore interface {
	repository.ApplicationRepo
	Get(ctx context.Context, id int64) (*models.Application, error)
	SetStatus(ctx context.Context, id int64, from, to models.ApplicationStatus) (bool, error)
}

// ReviewEvents queues follow-up work for review actions. *notify.Notifier
// implements it.
type ReviewEvents interface {
	NotifyStatusChange(ctx context.Context, appID int64, status models.ApplicationStatus) error
	RequestScreening(ctx context.Context, appID int64) (int64, error)
}

type ApplicationsHandler struct {
	repo      ApplicationStore
	events    ReviewEvents
	screening bool
}

// NewApplicationsHandler builds the review handlers. screening enables the
// screening endpoint; it needs a worker with the screening handler.
func NewApplicationsHandler(repo ApplicationStore, events ReviewEvents, screening bool) *ApplicationsHandler {
	return &ApplicationsHandler{repo: repo, events: events, screening: screening}
}

// notifyApplicant lists the statuses the applicant is told about.
var notifyApplicant = map[models.ApplicationStatus]bool{
	models.StatusAccepted: true,
	models.StatusRejected: true,
}

const maxNotesSize = 64 * 1024

// ListApplications pages through submitted applications of one status
// (default pending), oldest first.
func (h *ApplicationsHandler) ListApplications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := models.StatusPending
	if s := q.Get("status"); s != "" {
		status = models.ApplicationStatus(s)
	}
	if !status.Valid() || status == models.StatusDraft {
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}

	// pagination: limit and offset params
	limit := 50
	if l := q.Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}
	offset := 0
	if o := q.Get("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			offset = v
		}
	}

	apps, err := h.repo.ListByStatus(r.Context(), status, limit, offset)
	if err != nil {
		http.Error(w, "failed to list applications", http.StatusInternalServerError)
		return
	}

	counts, err := h.repo.CountByStatus(r.Context())
	if err != nil {
		http.Error(w, "failed to count applications", http.StatusInternalServerError)
		return
	}

	if apps == nil {
		apps = []models.Application{}
	}

	resp := map[string]any{
		"status": status,
		"total":  counts[status],
		"limit":  limit,
		"offset": offset,
		"items":  apps,
	}

	writeJSON(w, resp, http.StatusOK)
}

// submitted loads the application named in the route. Drafts are private
// to the applicant and reported as missing.
func (h *ApplicationsHandler) submitted(w http.ResponseWriter, r *http.Request) (*models.Application, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return nil, false
	}
	a, err := h.repo.Get(r.Context(), id)
	if err != nil {
		http.Error(w, fmt.Sprintf("get application: %v", err), http.StatusInternalServerError)
		return nil, false
	}
	if a == nil || a.Status == models.StatusDraft {
		http.Error(w, "not found", http.StatusNotFound)
		return nil, false
	}
	return a, true
}

func (h *ApplicationsHandler) GetApplication(w http.ResponseWriter, r *http.Request) {
	a, ok := h.submitted(w, r)
	if !ok {
		return
	}
	writeJSON(w, a, http.StatusOK)
}

type statusRequest struct {
	Status models.ApplicationStatus `json:"status"`
}

// UpdateStatus moves an application along the review lifecycle. Accepted
// and rejected applicants are notified through a job.
func (h *ApplicationsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if !req.Status.Valid() {
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}

	a, ok := h.submitted(w, r)
	if !ok {
		return
	}
	if !models.CanReview(a.Status, req.Status) {
		http.Error(w, fmt.Sprintf("cannot move from %s to %s", a.Status, req.Status), http.StatusConflict)
		return
	}

	ctx := r.Context()
	changed, err := h.repo.SetStatus(ctx, a.ID, a.Status, req.Status)
	if err != nil {
		http.Error(w, fmt.Sprintf("set status: %v", err), http.StatusInternalServerError)
		return
	}
	if !changed {
		http.Error(w, "status changed concurrently", http.StatusConflict)
		return
	}
	staffID, _ := StaffID(ctx)
	logger.Info("application status changed",
		slog.Int64("application_id", a.ID),
		slog.String("from", string(a.Status)),
		slog.String("to", string(req.Status)),
		slog.Int64("staff_id", staffID),
	)

	notified := false
	if notifyApplicant[req.Status] && h.events != nil {
		if err := h.events.NotifyStatusChange(ctx, a.ID, req.Status); err != nil {
			logger.Error("queue status notification", slog.Int64("application_id", a.ID), slog.Any("err", err))
		} else {
			notified = true
		}
	}

	writeJSON(w, map[string]any{"id": a.ID, "status": req.Status, "notified": notified}, http.StatusOK)
}

type notesRequest struct {
	Notes string `json:"notes"`
}

func (h *ApplicationsHandler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxNotesSize+1))
	if err != nil {
		http.Error(w, "read body failed", http.StatusBadRequest)
		return
	}
	if len(body) > maxNotesSize {
		http.Error(w, "notes too large", http.StatusBadRequest)
		return
	}
	var req notesRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	a, ok := h.submitted(w, r)
	if !ok {
		return
	}
	if err := h.repo.SetHRNotes(r.Context(), a.ID, req.Notes); err != nil {
		http.Error(w, fmt.Sprintf("store notes: %v", err), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RequestScreening queues an AI screening run; the result lands in hr_notes.
func (h *ApplicationsHandler) RequestScreening(w http.ResponseWriter, r *http.Request) {
	if !h.screening || h.events == nil {
		http.Error(w, "screening unavailable", http.StatusServiceUnavailable)
		return
	}
	a, ok := h.submitted(w, r)
	if !ok {
		return
	}
	jobID, err := h.events.RequestScreening(r.Context(), a.ID)
	if err != nil {
		http.Error(w, fmt.Sprintf("queue screening: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{"application_id": a.ID, "job_id": jobID}, http.StatusAccepted)
}

// Stats counts submitted applications per status.
func (h *ApplicationsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.repo.CountByStatus(r.Context())
	if err != nil {
		http.Error(w, "failed to count applications", http.StatusInternalServerError)
		return
	}

	out := make(map[string]int64, len(models.Statuses))
	var total int64
	for _, s := range models.Statuses {
		if s == models.StatusDraft {
			continue
		}
		out[string(s)] = counts[s]
		total += counts[s]
	}

	writeJSON(w, map[string]any{"total": total, "by_status": out}, http.StatusOK)
}
