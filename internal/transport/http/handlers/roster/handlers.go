package rosterhandler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/ctxlog"

	"workforce/internal/domain/auth"
	"workforce/internal/domain/compliance"
	"workforce/internal/domain/roster"
	"workforce/internal/transport/http/api"
	"workforce/internal/transport/http/middleware"
	"workforce/internal/transport/http/shared"
)

type Handler struct {
	Service *roster.Service
	Perms   middleware.PermissionStore
}

func NewHandler(service *roster.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/roster/shifts", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermRosterRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermRosterWrite, h.Perms)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermRosterRead, h.Perms)).Get("/{shiftID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermRosterWrite, h.Perms)).Post("/{shiftID}/assignments", h.handleAssign)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	q := r.URL.Query()
	v := shared.NewValidator()
	filter := roster.ShiftFilter{
		SiteID: strings.TrimSpace(q.Get("site")),
		Line:   strings.TrimSpace(q.Get("line")),
	}
	if raw := q.Get("from"); raw != "" {
		filter.From, _ = v.Date("from", raw)
	}
	if raw := q.Get("to"); raw != "" {
		filter.To, _ = v.Date("to", raw)
	}
	v.DateOrder("from", filter.From, "to", filter.To)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	shifts, err := h.Service.ListShifts(r.Context(), user.TenantID, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, shifts, middleware.GetRequestID(r.Context()))
}

type shiftPayload struct {
	SiteID       string `json:"siteId"`
	Line         string `json:"line"`
	RequiredRole string `json:"requiredRole"`
	StartsAt     string `json:"startsAt"`
	EndsAt       string `json:"endsAt"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload shiftPayload
	if err := api.Decode(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	v := shared.NewValidator()
	v.Required("siteId", payload.SiteID, "is required")
	startsAt := parseInstant(v, "startsAt", payload.StartsAt)
	endsAt := parseInstant(v, "endsAt", payload.EndsAt)
	if !startsAt.IsZero() && !endsAt.IsZero() && !endsAt.After(startsAt) {
		v.Add("endsAt", "must be after startsAt")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	shift, err := h.Service.CreateShift(r.Context(), shared.AuditMeta(r, user), roster.Shift{
		SiteID:       payload.SiteID,
		Line:         payload.Line,
		RequiredRole: payload.RequiredRole,
		StartsAt:     startsAt,
		EndsAt:       endsAt,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Created(w, shift, middleware.GetRequestID(r.Context()))
}

func parseInstant(v *shared.Validator, field, raw string) time.Time {
	if strings.TrimSpace(raw) == "" {
		v.Add(field, "is required")
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		v.Add(field, "must be an RFC3339 timestamp")
		return time.Time{}
	}
	return t
}

type shiftResponse struct {
	Shift       roster.Shift        `json:"shift"`
	Assignments []roster.Assignment `json:"assignments"`
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	shift, assignments, err := h.Service.GetShift(r.Context(), user.TenantID, chi.URLParam(r, "shiftID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if assignments == nil {
		assignments = []roster.Assignment{}
	}
	api.Success(w, shiftResponse{Shift: shift, Assignments: assignments}, middleware.GetRequestID(r.Context()))
}

type assignPayload struct {
	EmployeeID string `json:"employeeId"`
	Force      bool   `json:"force"`
	Reason     string `json:"reason"`
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload assignPayload
	if err := api.Decode(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	v := shared.NewValidator()
	v.Required("employeeId", payload.EmployeeID, "is required")
	if payload.Force {
		v.Required("reason", payload.Reason, "is required when forcing an assignment")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	assignment, err := h.Service.Assign(r.Context(), shared.AuditMeta(r, user), user, chi.URLParam(r, "shiftID"), roster.AssignRequest{
		EmployeeID: strings.TrimSpace(payload.EmployeeID),
		Force:      payload.Force,
		Reason:     payload.Reason,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Created(w, assignment, middleware.GetRequestID(r.Context()))
}

type blockedItem struct {
	RequirementID string           `json:"requirementId"`
	Code          string           `json:"code"`
	Name          string           `json:"name"`
	Status        string           `json:"status"`
	ValidTo       *compliance.Date `json:"validTo"`
	DaysLeft      *int             `json:"daysLeft"`
}

func blockedDetails(blocked *roster.BlockedError) map[string]any {
	items := make([]blockedItem, 0, len(blocked.Items))
	for _, item := range blocked.Items {
		items = append(items, blockedItem{
			RequirementID: item.Requirement.ID,
			Code:          item.Requirement.Code,
			Name:          item.Requirement.Name,
			Status:        string(item.Result.Status),
			ValidTo:       item.ValidTo,
			DaysLeft:      item.Result.DaysLeft,
		})
	}
	return map[string]any{"employeeId": blocked.EmployeeID, "items": items}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())
	var blocked *roster.BlockedError
	switch {
	case errors.As(err, &blocked):
		api.FailWithDetails(w, http.StatusConflict, "compliance_blocked", "employee has blocking compliance issues", blockedDetails(blocked), requestID)
	case errors.Is(err, roster.ErrShiftNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "shift not found", requestID)
	case errors.Is(err, compliance.ErrEmployeeNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "employee not found", requestID)
	case errors.Is(err, roster.ErrForceNotAllowed):
		api.Fail(w, http.StatusForbidden, "forbidden", "only HR may override a compliance block", requestID)
	case errors.Is(err, roster.ErrForceReason), errors.Is(err, roster.ErrInvalidShiftWindow):
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), requestID)
	case errors.Is(err, roster.ErrAlreadyAssigned):
		api.Fail(w, http.StatusConflict, "already_assigned", "employee already assigned to shift", requestID)
	default:
		ctxlog.From(r.Context()).Error("roster request failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "roster_failed", "roster request failed", requestID)
	}
}
