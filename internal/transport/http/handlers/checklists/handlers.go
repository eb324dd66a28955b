package checklistshandler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/ctxlog"

	"workforce/internal/domain/auth"
	"workforce/internal/domain/checklists"
	"workforce/internal/domain/compliance"
	"workforce/internal/domain/employees"
	"workforce/internal/transport/http/api"
	"workforce/internal/transport/http/middleware"
	"workforce/internal/transport/http/shared"
)

type Handler struct {
	Service   *checklists.Service
	Employees *employees.Service
	Perms     middleware.PermissionStore
}

func NewHandler(service *checklists.Service, emps *employees.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Employees: emps, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermChecklistsRead, h.Perms)
	write := middleware.RequirePermission(auth.PermChecklistsWrite, h.Perms)

	r.With(read).Get("/employees/{employeeID}/checklists", h.handleListForEmployee)
	r.Route("/checklists", func(r chi.Router) {
		r.With(read).Get("/templates", h.handleListTemplates)
		r.With(write).Post("/templates", h.handleCreateTemplate)
		r.With(write).Post("/", h.handleAssign)
		r.With(read).Get("/{checklistID}", h.handleGet)
		r.With(write).Post("/{checklistID}/items/{itemID}/complete", h.handleComplete)
	})
}

func (h *Handler) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	list, err := h.Service.ListTemplates(r.Context(), user.TenantID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, list, middleware.GetRequestID(r.Context()))
}

type templatePayload struct {
	Name  string                    `json:"name"`
	Kind  string                    `json:"kind"`
	Items []checklists.TemplateItem `json:"items"`
}

func (h *Handler) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload templatePayload
	if err := api.Decode(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	v := shared.NewValidator()
	v.Required("name", payload.Name, "is required")
	if strings.TrimSpace(payload.Kind) != "" {
		v.Enum("kind", strings.ToLower(strings.TrimSpace(payload.Kind)), checklists.Kinds, "must be one of onboarding, offboarding, other")
	}
	if len(payload.Items) == 0 {
		v.Add("items", "must contain at least one item")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	created, err := h.Service.CreateTemplate(r.Context(), shared.AuditMeta(r, user), checklists.Template{
		Name:  payload.Name,
		Kind:  payload.Kind,
		Items: payload.Items,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Created(w, created, middleware.GetRequestID(r.Context()))
}

type assignPayload struct {
	TemplateID string `json:"templateId"`
	EmployeeID string `json:"employeeId"`
	StartDate  string `json:"startDate"`
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
	v.Required("templateId", payload.TemplateID, "is required")
	v.Required("employeeId", payload.EmployeeID, "is required")
	start, err := compliance.ParseOptionalDate(payload.StartDate)
	if err != nil {
		v.Add("startDate", "must be a valid date in YYYY-MM-DD format")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	if _, err := h.Employees.Get(r.Context(), user, payload.EmployeeID); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.Service.Assign(r.Context(), shared.AuditMeta(r, user), payload.TemplateID, payload.EmployeeID, start)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Created(w, created, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListForEmployee(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	employeeID := chi.URLParam(r, "employeeID")
	if _, err := h.Employees.Get(r.Context(), user, employeeID); err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.Service.ListForEmployee(r.Context(), user.TenantID, employeeID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []checklists.Checklist{}
	}
	api.Success(w, list, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	c, err := h.visibleChecklist(r, user, chi.URLParam(r, "checklistID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, c, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	checklistID := chi.URLParam(r, "checklistID")
	if _, err := h.visibleChecklist(r, user, checklistID); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.Service.CompleteItem(r.Context(), shared.AuditMeta(r, user), checklistID, chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, c, middleware.GetRequestID(r.Context()))
}

// visibleChecklist loads a checklist and applies the owner's record visibility.
func (h *Handler) visibleChecklist(r *http.Request, user auth.UserContext, checklistID string) (checklists.Checklist, error) {
	c, err := h.Service.Get(r.Context(), user.TenantID, checklistID)
	if err != nil {
		return checklists.Checklist{}, err
	}
	if _, err := h.Employees.Get(r.Context(), user, c.EmployeeID); err != nil {
		return checklists.Checklist{}, err
	}
	return c, nil
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, checklists.ErrTemplateNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "checklist template not found", requestID)
	case errors.Is(err, checklists.ErrChecklistNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "checklist not found", requestID)
	case errors.Is(err, checklists.ErrItemNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "checklist item not found", requestID)
	case errors.Is(err, employees.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "employee not found", requestID)
	case errors.Is(err, employees.ErrForbidden):
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", requestID)
	case errors.Is(err, checklists.ErrInvalidTemplate):
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), requestID)
	default:
		ctxlog.From(r.Context()).Error("checklist request failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "checklist_failed", "checklist request failed", requestID)
	}
}
