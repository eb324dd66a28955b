package authhandler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/ctxlog"

	"workforce/internal/domain/audit"
	"workforce/internal/domain/auth"
	"workforce/internal/domain/employees"
	"workforce/internal/transport/http/api"
	"workforce/internal/transport/http/middleware"
	"workforce/internal/transport/http/shared"
)

type Handler struct {
	Service   *auth.Service
	Employees *employees.Service
	Audit     audit.Recorder
}

func NewHandler(service *auth.Service, emps *employees.Service, recorder audit.Recorder) *Handler {
	return &Handler{Service: service, Employees: emps, Audit: recorder}
}

// RegisterPublicRoutes mounts the routes reachable without a token.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/auth/login", h.HandleLogin)
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/logout", h.handleLogout)
	r.Post("/auth/mfa/setup", h.handleMFASetup)
	r.Post("/auth/mfa/enable", h.handleMFAEnable)
	r.Post("/auth/mfa/disable", h.handleMFADisable)
	r.Get("/me", h.handleMe)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	MFACode  string `json:"mfaCode"`
}

type mfaCodeRequest struct {
	Code string `json:"code"`
}

type userResponse struct {
	ID         string `json:"id"`
	TenantID   string `json:"tenantId"`
	RoleID     string `json:"roleId"`
	Role       string `json:"role"`
	Email      string `json:"email,omitempty"`
	EmployeeID string `json:"employeeId,omitempty"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload loginRequest
	if err := api.Decode(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	v := shared.NewValidator()
	v.Required("email", payload.Email, "is required")
	v.Required("password", payload.Password, "is required")
	if v.Reject(w, requestID) {
		return
	}

	result, err := h.Service.Login(r.Context(), strings.TrimSpace(payload.Email), payload.Password, strings.TrimSpace(payload.MFACode))
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", requestID)
		return
	case errors.Is(err, auth.ErrMFARequired):
		api.Fail(w, http.StatusUnauthorized, "mfa_required", "mfa code required", requestID)
		return
	case errors.Is(err, auth.ErrMFAInvalid):
		api.Fail(w, http.StatusUnauthorized, "mfa_invalid", "invalid mfa code", requestID)
		return
	case err != nil:
		ctxlog.From(r.Context()).Error("login failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "login_failed", "failed to sign in", requestID)
		return
	}

	user := result.User
	if h.Audit != nil {
		meta := shared.AuditMeta(r, auth.UserContext{UserID: user.ID, TenantID: user.TenantID})
		if err := h.Audit.Record(r.Context(), meta.Entry(audit.ActionLogin, "user", user.ID, nil, nil)); err != nil {
			ctxlog.From(r.Context()).Warn("audit login failed", "err", err)
		}
	}

	api.Success(w, map[string]any{
		"token": result.Token,
		"user": userResponse{
			ID:         user.ID,
			TenantID:   user.TenantID,
			RoleID:     user.RoleID,
			Role:       user.RoleName,
			Email:      user.Email,
			EmployeeID: user.EmployeeID,
		},
	}, requestID)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	if err := h.Service.Logout(r.Context(), user); err != nil {
		api.Fail(w, http.StatusInternalServerError, "logout_failed", "failed to end session", middleware.GetRequestID(r.Context()))
		return
	}
	if h.Audit != nil {
		if err := h.Audit.Record(r.Context(), shared.AuditMeta(r, user).Entry(audit.ActionLogout, "user", user.UserID, nil, nil)); err != nil {
			ctxlog.From(r.Context()).Warn("audit logout failed", "err", err)
		}
	}
	api.Success(w, map[string]string{"status": "logged_out"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMFASetup(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	account := user.UserID
	if found, err := h.Service.Me(r.Context(), user); err == nil && found.Email != "" {
		account = found.Email
	}
	setup, err := h.Service.SetupMFA(r.Context(), user, account)
	if err != nil {
		writeMFAError(w, r, err)
		return
	}
	api.Success(w, setup, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMFAEnable(w http.ResponseWriter, r *http.Request) {
	h.toggleMFA(w, r, true)
}

func (h *Handler) handleMFADisable(w http.ResponseWriter, r *http.Request) {
	h.toggleMFA(w, r, false)
}

func (h *Handler) toggleMFA(w http.ResponseWriter, r *http.Request, enable bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	var payload mfaCodeRequest
	if err := api.Decode(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	v := shared.NewValidator()
	v.Required("code", payload.Code, "is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	toggle, action, status := h.Service.DisableMFA, audit.ActionMFADisable, "disabled"
	if enable {
		toggle, action, status = h.Service.EnableMFA, audit.ActionMFAEnable, "enabled"
	}
	if err := toggle(r.Context(), user, strings.TrimSpace(payload.Code)); err != nil {
		writeMFAError(w, r, err)
		return
	}
	if h.Audit != nil {
		if err := h.Audit.Record(r.Context(), shared.AuditMeta(r, user).Entry(action, "user", user.UserID, nil, nil)); err != nil {
			ctxlog.From(r.Context()).Warn("audit mfa change failed", "err", err)
		}
	}
	api.Success(w, map[string]string{"status": status}, middleware.GetRequestID(r.Context()))
}

func writeMFAError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, auth.ErrMFAUnavailable):
		api.Fail(w, http.StatusBadRequest, "mfa_unavailable", "mfa requires encryption key", requestID)
	case errors.Is(err, auth.ErrMFANotSetUp):
		api.Fail(w, http.StatusBadRequest, "mfa_missing", "mfa setup required", requestID)
	case errors.Is(err, auth.ErrMFAInvalid), errors.Is(err, auth.ErrMFARequired):
		api.Fail(w, http.StatusBadRequest, "mfa_invalid", "invalid mfa code", requestID)
	default:
		ctxlog.From(r.Context()).Error("mfa update failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "mfa_failed", "failed to update mfa", requestID)
	}
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	found, err := h.Service.Me(r.Context(), user)
	if err != nil {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var emp *employees.Employee
	if user.EmployeeID != "" && h.Employees != nil {
		record, err := h.Employees.Get(r.Context(), user, user.EmployeeID)
		if err == nil {
			emp = &record
		} else if !employees.IsNotFound(err) {
			ctxlog.From(r.Context()).Warn("me employee lookup failed", "err", err)
		}
	}

	api.Success(w, map[string]any{
		"user": userResponse{
			ID:         user.UserID,
			TenantID:   user.TenantID,
			RoleID:     user.RoleID,
			Role:       user.RoleName,
			Email:      found.Email,
			EmployeeID: user.EmployeeID,
		},
		"employee": emp,
	}, middleware.GetRequestID(r.Context()))
}
