package employeeshandler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/ctxlog"

	"workforce/internal/domain/auth"
	"workforce/internal/domain/compliance"
	"workforce/internal/domain/employees"
	"workforce/internal/transport/http/api"
	"workforce/internal/transport/http/middleware"
	"workforce/internal/transport/http/shared"
)

type Handler struct {
	Service *employees.Service
	Perms   middleware.PermissionStore
}

func NewHandler(service *employees.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequirePermission(auth.PermEmployeesRead, h.Perms)).Get("/employees", h.handleList)
	r.With(middleware.RequirePermission(auth.PermEmployeesWrite, h.Perms)).Post("/employees", h.handleCreate)
	r.With(middleware.RequirePermission(auth.PermEmployeesRead, h.Perms)).Get("/employees/{employeeID}", h.handleGet)
	r.With(middleware.RequirePermission(auth.PermEmployeesWrite, h.Perms)).Put("/employees/{employeeID}", h.handleUpdate)
}

type employeePayload struct {
	EmployeeNumber  string `json:"employeeNumber"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email"`
	Line            string `json:"line"`
	PrimaryRoleCode string `json:"primaryRoleCode"`
	SiteID          string `json:"siteId"`
	ManagerID       string `json:"managerId"`
	StartDate       string `json:"startDate"`
	EndDate         string `json:"endDate"`
	Status          string `json:"status"`
}

func (p employeePayload) validate(v *shared.Validator) employees.Employee {
	v.Required("firstName", p.FirstName, "is required")
	v.Required("lastName", p.LastName, "is required")
	v.Required("email", p.Email, "is required")
	if email := strings.TrimSpace(p.Email); email != "" && !strings.Contains(email, "@") {
		v.Add("email", "must be a valid email address")
	}
	v.Enum("status", p.Status, employees.Statuses, "must be one of active, inactive, terminated")

	emp := employees.Employee{
		EmployeeNumber:  p.EmployeeNumber,
		FirstName:       p.FirstName,
		LastName:        p.LastName,
		Email:           p.Email,
		Line:            p.Line,
		PrimaryRoleCode: p.PrimaryRoleCode,
		SiteID:          p.SiteID,
		ManagerID:       strings.TrimSpace(p.ManagerID),
		Status:          p.Status,
	}
	emp.StartDate = optionalDate(v, "startDate", p.StartDate)
	emp.EndDate = optionalDate(v, "endDate", p.EndDate)
	if emp.StartDate != nil && emp.EndDate != nil {
		v.DateOrder("startDate", emp.StartDate.Time(), "endDate", emp.EndDate.Time())
	}
	return emp
}

func optionalDate(v *shared.Validator, field, raw string) *compliance.Date {
	d, err := compliance.ParseOptionalDate(raw)
	if err != nil {
		v.Add(field, "must be a valid date in YYYY-MM-DD format")
		return nil
	}
	return d
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	q := r.URL.Query()
	filter := employees.Filter{
		SiteID:    strings.TrimSpace(q.Get("site")),
		Line:      strings.TrimSpace(q.Get("line")),
		ManagerID: strings.TrimSpace(q.Get("manager")),
		Status:    strings.TrimSpace(q.Get("status")),
	}
	page := shared.ParsePagination(r, 100, 500)
	list, total, err := h.Service.List(r.Context(), user, filter, page.Limit, page.Offset)
	if err != nil {
		ctxlog.From(r.Context()).Error("employee list failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "employee_list_failed", "failed to list employees", middleware.GetRequestID(r.Context()))
		return
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, list, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	emp, err := h.Service.Get(r.Context(), user, chi.URLParam(r, "employeeID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, emp, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload employeePayload
	if err := api.Decode(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	v := shared.NewValidator()
	emp := payload.validate(v)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	created, err := h.Service.Create(r.Context(), shared.AuditMeta(r, user), emp)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Created(w, created, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload employeePayload
	if err := api.Decode(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	v := shared.NewValidator()
	emp := payload.validate(v)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	updated, err := h.Service.Update(r.Context(), shared.AuditMeta(r, user), chi.URLParam(r, "employeeID"), emp)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, updated, middleware.GetRequestID(r.Context()))
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, employees.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "employee not found", requestID)
	case errors.Is(err, employees.ErrForbidden):
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", requestID)
	case errors.Is(err, employees.ErrDuplicate):
		api.Fail(w, http.StatusConflict, "employee_exists", "employee number or email already exists", requestID)
	default:
		ctxlog.From(r.Context()).Error("employee request failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "employee_failed", "employee request failed", requestID)
	}
}
