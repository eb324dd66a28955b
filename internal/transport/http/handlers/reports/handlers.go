package reportshandler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/ctxlog"

	"workforce/internal/domain/auth"
	"workforce/internal/domain/compliance"
	"workforce/internal/domain/reports"
	"workforce/internal/platform/jobs"
	"workforce/internal/transport/http/api"
	"workforce/internal/transport/http/middleware"
	"workforce/internal/transport/http/shared"
)

const (
	defaultSnapshots = 30
	maxSnapshots     = 366
)

var jobStatuses = []string{jobs.StatusRunning, jobs.StatusCompleted, jobs.StatusFailed}

type Handler struct {
	Service *reports.Service
	Perms   middleware.PermissionStore
}

func NewHandler(service *reports.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/dashboard/executive", h.handleExecutive)
		r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/jobs", h.handleJobs)
		r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/compliance/snapshots", h.handleSnapshots)
	})
}

type executiveResponse struct {
	reports.Executive
	StatusCounts map[string]int `json:"statusCounts"`
}

func (h *Handler) handleExecutive(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	opts := shared.ParseEvalOptions(r, v)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	scope := shared.VisibleScope(user, r)

	dashboard, err := h.Service.Executive(r.Context(), user.TenantID, scope, opts)
	if err != nil {
		ctxlog.From(r.Context()).Error("executive dashboard failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "dashboard_failed", "failed to build dashboard", middleware.GetRequestID(r.Context()))
		return
	}
	style := compliance.ParseNameStyle(r.URL.Query().Get("statusNames"))
	api.Success(w, executiveResponse{
		Executive:    dashboard,
		StatusCounts: dashboard.Compliance.ItemsByStatus.Labeled(style),
	}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleJobs(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	q := r.URL.Query()
	v := shared.NewValidator()
	filter := reports.JobRunFilter{
		JobType: strings.TrimSpace(q.Get("jobType")),
		Status:  strings.TrimSpace(q.Get("status")),
	}
	if filter.Status != "" {
		v.Enum("status", filter.Status, jobStatuses, "must be one of running, completed, failed")
	}
	if raw := q.Get("startedFrom"); raw != "" {
		if from, ok := v.Date("startedFrom", raw); ok {
			filter.StartedFrom = &from
		}
	}
	if raw := q.Get("startedTo"); raw != "" {
		if to, ok := v.Date("startedTo", raw); ok {
			end := to.AddDate(0, 0, 1)
			filter.StartedTo = &end
		}
	}
	if filter.StartedFrom != nil && filter.StartedTo != nil {
		v.DateOrder("startedFrom", *filter.StartedFrom, "startedTo", *filter.StartedTo)
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	page := shared.ParsePagination(r, 50, 200)
	runs, total, err := h.Service.JobRuns(r.Context(), user.TenantID, filter, page.Limit, page.Offset)
	if err != nil {
		ctxlog.From(r.Context()).Error("job run list failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "job_list_failed", "failed to list job runs", middleware.GetRequestID(r.Context()))
		return
	}
	if runs == nil {
		runs = []reports.JobRun{}
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, runs, middleware.GetRequestID(r.Context()))
}

// handleSnapshots lists the org-wide sweep summaries. They are not scoped, so only HR may read them.
func (h *Handler) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	if !user.IsHR() {
		api.Fail(w, http.StatusForbidden, "forbidden", "org-wide snapshots are limited to HR", middleware.GetRequestID(r.Context()))
		return
	}

	page := shared.ParsePagination(r, defaultSnapshots, maxSnapshots)
	snaps, err := h.Service.Snapshots(r.Context(), user.TenantID, page.Limit)
	if err != nil {
		ctxlog.From(r.Context()).Error("snapshot list failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "snapshot_list_failed", "failed to list snapshots", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, snaps, middleware.GetRequestID(r.Context()))
}
