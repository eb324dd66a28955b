package compliancehandler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/m-mizutani/ctxlog"

	"workforce/internal/domain/auth"
	"workforce/internal/domain/compliance"
	"workforce/internal/domain/employees"
	"workforce/internal/domain/reports"
	"workforce/internal/transport/http/api"
	"workforce/internal/transport/http/middleware"
	"workforce/internal/transport/http/shared"
)

const (
	importEndpoint  = "compliance.assignments.import"
	maxClassifyRows = 5000
	defaultInbox    = 50
)

type Handler struct {
	Service     *compliance.Service
	Employees   *employees.Service
	Perms       middleware.PermissionStore
	Idempotency *middleware.IdempotencyStore
}

func NewHandler(service *compliance.Service, emps *employees.Service, perms middleware.PermissionStore, idem *middleware.IdempotencyStore) *Handler {
	return &Handler{Service: service, Employees: emps, Perms: perms, Idempotency: idem}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermComplianceRead, h.Perms)
	write := middleware.RequirePermission(auth.PermComplianceWrite, h.Perms)
	catalog := middleware.RequirePermission(auth.PermCatalogWrite, h.Perms)

	r.With(read).Get("/employees/{employeeID}/compliance", h.handleEmployee)
	r.Route("/compliance", func(r chi.Router) {
		r.With(read).Get("/requirements", h.handleListRequirements)
		r.With(catalog).Post("/requirements", h.handleCreateRequirement)
		r.With(catalog).Put("/requirements/{requirementID}", h.handleUpdateRequirement)
		r.With(catalog).Put("/requirements/{requirementID}/applicability", h.handleReplaceApplicability)
		r.With(write).Put("/assignments/{employeeID}/{requirementID}", h.handleSetAssignment)
		r.With(write).Post("/assignments/import", h.handleImport)
		r.With(read).Get("/summary", h.handleSummary)
		r.With(read).Get("/inbox", h.handleInbox)
		r.With(read).Get("/matrix.csv", h.handleMatrixCSV)
		r.With(read).Get("/matrix.pdf", h.handleMatrixPDF)
		r.With(read).Post("/classify", h.handleClassify)
	})
}

func nameStyle(r *http.Request) compliance.NameStyle {
	return compliance.ParseNameStyle(r.URL.Query().Get("statusNames"))
}

// relabel rewrites item statuses for the requested spelling. Canonical style is a no-op.
func relabel(items []compliance.Item, style compliance.NameStyle) []compliance.Item {
	if style == compliance.NamesCanonical {
		return items
	}
	out := make([]compliance.Item, len(items))
	for i, item := range items {
		item.Result.Status = compliance.Status(item.Result.Status.Label(style))
		out[i] = item
	}
	return out
}

type employeeResponse struct {
	compliance.EmployeeStatus
	StatusCounts map[string]int `json:"statusCounts"`
}

func (h *Handler) handleEmployee(w http.ResponseWriter, r *http.Request) {
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

	employeeID := chi.URLParam(r, "employeeID")
	if _, err := h.Employees.Get(r.Context(), user, employeeID); err != nil {
		writeError(w, r, err)
		return
	}
	status, err := h.Service.EmployeeStatus(r.Context(), user.TenantID, employeeID, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}

	style := nameStyle(r)
	resp := employeeResponse{EmployeeStatus: status, StatusCounts: status.Counts.Labeled(style)}
	resp.Primary = compliance.Status(status.Primary.Label(style))
	resp.Items = relabel(status.Items, style)
	if status.Blocker != nil {
		blocker := relabel([]compliance.Item{*status.Blocker}, style)[0]
		resp.Blocker = &blocker
	}
	api.Success(w, resp, middleware.GetRequestID(r.Context()))
}

type requirementPayload struct {
	Code              string                     `json:"code"`
	Name              string                     `json:"name"`
	Category          string                     `json:"category"`
	Criticality       string                     `json:"criticality"`
	Active            *bool                      `json:"active"`
	WarningWindowDays *int                       `json:"warningWindowDays"`
	Applicability     []compliance.Applicability `json:"applicability"`
}

func (p requirementPayload) validate(v *shared.Validator) compliance.Requirement {
	v.Required("code", p.Code, "is required")
	if strings.TrimSpace(p.Category) != "" {
		if _, err := compliance.ParseCategory(p.Category); err != nil {
			v.Add("category", "must be one of license, medical, contract, other")
		}
	}
	if strings.TrimSpace(p.Criticality) != "" {
		v.Enum("criticality", strings.ToLower(strings.TrimSpace(p.Criticality)), compliance.Criticalities, "must be one of blocking, high, normal")
	}
	if p.WarningWindowDays != nil && *p.WarningWindowDays < 0 {
		v.Add("warningWindowDays", "must not be negative")
	}
	req := compliance.Requirement{
		Code:              p.Code,
		Name:              p.Name,
		Category:          compliance.Category(p.Category),
		Criticality:       p.Criticality,
		Active:            true,
		WarningWindowDays: p.WarningWindowDays,
	}
	if p.Active != nil {
		req.Active = *p.Active
	}
	return req
}

func (h *Handler) handleListRequirements(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	includeInactive := r.URL.Query().Get("includeInactive") == "true"
	list, err := h.Service.ListCatalog(r.Context(), user.TenantID, includeInactive)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, list, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateRequirement(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload requirementPayload
	if err := api.Decode(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	v := shared.NewValidator()
	req := payload.validate(v)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	created, err := h.Service.CreateRequirement(r.Context(), shared.AuditMeta(r, user), req, payload.Applicability)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Created(w, created, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateRequirement(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload requirementPayload
	if err := api.Decode(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	v := shared.NewValidator()
	req := payload.validate(v)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	req.ID = chi.URLParam(r, "requirementID")

	updated, err := h.Service.UpdateRequirement(r.Context(), shared.AuditMeta(r, user), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, updated, middleware.GetRequestID(r.Context()))
}

type applicabilityPayload struct {
	Rows []compliance.Applicability `json:"rows"`
}

func (h *Handler) handleReplaceApplicability(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload applicabilityPayload
	if err := api.Decode(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	rows, err := h.Service.ReplaceApplicability(r.Context(), shared.AuditMeta(r, user), chi.URLParam(r, "requirementID"), payload.Rows)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, rows, middleware.GetRequestID(r.Context()))
}

type assignmentPayload struct {
	ValidTo        string `json:"validTo"`
	Waived         bool   `json:"waived"`
	WaiverReason   string `json:"waiverReason"`
	DocumentNumber string `json:"documentNumber"`
}

type assignmentResponse struct {
	Assignment compliance.Assignment `json:"assignment"`
	Result     compliance.Result     `json:"result"`
}

func (h *Handler) handleSetAssignment(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload assignmentPayload
	if err := api.Decode(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	v := shared.NewValidator()
	validTo, err := compliance.ParseOptionalDate(payload.ValidTo)
	if err != nil {
		v.Add("validTo", "must be a valid date in YYYY-MM-DD format")
	}
	if payload.Waived {
		v.Required("waiverReason", payload.WaiverReason, "is required when waived")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	saved, result, err := h.Service.SetAssignment(r.Context(), shared.AuditMeta(r, user), compliance.Assignment{
		EmployeeID:     chi.URLParam(r, "employeeID"),
		RequirementID:  chi.URLParam(r, "requirementID"),
		ValidTo:        validTo,
		Waived:         payload.Waived,
		WaiverReason:   payload.WaiverReason,
		DocumentNumber: payload.DocumentNumber,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	result.Status = compliance.Status(result.Status.Label(nameStyle(r)))
	api.Success(w, assignmentResponse{Assignment: saved, Result: result}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "unable to read csv payload", middleware.GetRequestID(r.Context()))
		return
	}

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	requestHash := middleware.RequestHash(body)
	if idempotencyKey != "" {
		stored, found, err := h.Idempotency.Check(r.Context(), user.TenantID, user.UserID, importEndpoint, idempotencyKey, requestHash)
		if errors.Is(err, middleware.ErrIdempotencyConflict) {
			api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key was used with a different payload", middleware.GetRequestID(r.Context()))
			return
		}
		if err != nil {
			ctxlog.From(r.Context()).Warn("idempotency check failed", "err", err)
		}
		if found {
			api.Success(w, json.RawMessage(stored), middleware.GetRequestID(r.Context()))
			return
		}
	}

	result, err := h.Service.ImportAssignments(r.Context(), shared.AuditMeta(r, user), bytes.NewReader(body))
	if errors.Is(err, compliance.ErrImportFailed) {
		ctxlog.From(r.Context()).Error("assignment import rolled back", "batchId", result.BatchID, "err", err)
		api.FailWithDetails(w, http.StatusInternalServerError, "import_failed", "import was rolled back; no rows were written", result, middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	if idempotencyKey != "" {
		encoded, err := json.Marshal(result)
		if err != nil {
			ctxlog.From(r.Context()).Warn("idempotency response marshal failed", "err", err)
		} else if err := h.Idempotency.Save(r.Context(), user.TenantID, user.UserID, importEndpoint, idempotencyKey, requestHash, encoded); err != nil {
			ctxlog.From(r.Context()).Warn("idempotency save failed", "err", err)
		}
	}
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

type summaryResponse struct {
	compliance.OrgSummary
	StatusCounts   map[string]int `json:"statusCounts"`
	EmployeeCounts map[string]int `json:"employeeCounts"`
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	opts := shared.ParseEvalOptions(r, v)
	top := shared.ParseInt(r, "top", 0, v)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	summary, err := h.Service.OrgSummary(r.Context(), user.TenantID, h.scope(user, r), opts, top)
	if err != nil {
		writeError(w, r, err)
		return
	}
	style := nameStyle(r)
	api.Success(w, summaryResponse{
		OrgSummary:     summary,
		StatusCounts:   summary.Summary.ItemsByStatus.Labeled(style),
		EmployeeCounts: summary.Summary.EmployeesByStatus.Labeled(style),
	}, middleware.GetRequestID(r.Context()))
}

type inboxResponse struct {
	AsOf compliance.Date       `json:"asOf"`
	Rows []compliance.InboxRow `json:"rows"`
}

func (h *Handler) handleInbox(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	opts := shared.ParseEvalOptions(r, v)
	limit := shared.ParseInt(r, "limit", defaultInbox, v)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	rows, asOf, err := h.Service.Inbox(r.Context(), user.TenantID, h.scope(user, r), opts, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	style := nameStyle(r)
	for i := range rows {
		rows[i].Primary = compliance.Status(rows[i].Primary.Label(style))
		rows[i].Blocker = relabel([]compliance.Item{rows[i].Blocker}, style)[0]
	}
	api.Success(w, inboxResponse{AsOf: asOf, Rows: rows}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMatrixCSV(w http.ResponseWriter, r *http.Request) {
	h.writeMatrix(w, r, "text/csv", "csv", reports.WriteMatrixCSV)
}

func (h *Handler) handleMatrixPDF(w http.ResponseWriter, r *http.Request) {
	h.writeMatrix(w, r, "application/pdf", "pdf", reports.WriteMatrixPDF)
}

type matrixWriter func(io.Writer, compliance.Matrix, compliance.NameStyle) error

func (h *Handler) writeMatrix(w http.ResponseWriter, r *http.Request, contentType, ext string, write matrixWriter) {
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

	m, err := h.Service.Matrix(r.Context(), user.TenantID, h.scope(user, r), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := write(&buf, m, nameStyle(r)); err != nil {
		ctxlog.From(r.Context()).Error("matrix export failed", "format", ext, "err", err)
		api.Fail(w, http.StatusInternalServerError, "export_failed", "failed to render matrix", middleware.GetRequestID(r.Context()))
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=compliance-matrix-%s.%s", m.AsOf, ext))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		ctxlog.From(r.Context()).Warn("matrix write failed", "err", err)
	}
}

type classifyPayload struct {
	AsOf   string                   `json:"asOf"`
	Window *int                     `json:"window"`
	Top    int                      `json:"top"`
	Rows   []compliance.ClassifyRow `json:"rows"`
}

func (h *Handler) handleClassify(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetUser(r.Context()); !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload classifyPayload
	if err := api.Decode(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	var opts compliance.Options
	if raw := strings.TrimSpace(payload.AsOf); raw != "" {
		asOf, err := compliance.ParseDate(raw)
		if err != nil {
			v.Add("asOf", "must be a valid date in YYYY-MM-DD format")
		} else {
			opts.AsOf = &asOf
		}
	}
	if payload.Window != nil && *payload.Window < 0 {
		v.Add("window", "must be a non-negative number of days")
	}
	opts.Window = payload.Window
	if len(payload.Rows) > maxClassifyRows {
		v.Add("rows", fmt.Sprintf("must contain at most %d rows", maxClassifyRows))
	}
	for i, row := range payload.Rows {
		if row.WarningWindowDays != nil && *row.WarningWindowDays < 0 {
			v.Add(fmt.Sprintf("rows[%d].warningWindowDays", i), "must not be negative")
		}
		if row.ValidTo != nil && row.ValidTo.IsZero() {
			v.Add(fmt.Sprintf("rows[%d].validTo", i), "must be a valid date")
		}
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	report, err := h.Service.ClassifyRows(opts, payload.Rows, payload.Top)
	if err != nil {
		writeError(w, r, err)
		return
	}
	style := nameStyle(r)
	report.Primary = compliance.Status(report.Primary.Label(style))
	for i := range report.Rows {
		report.Rows[i].Result.Status = compliance.Status(report.Rows[i].Result.Status.Label(style))
	}
	api.Success(w, report, middleware.GetRequestID(r.Context()))
}

// scope applies the query filters and the caller's visibility.
func (h *Handler) scope(user auth.UserContext, r *http.Request) compliance.Scope {
	return shared.VisibleScope(user, r)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, compliance.ErrEmployeeNotFound), errors.Is(err, employees.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "employee not found", requestID)
	case errors.Is(err, compliance.ErrRequirementNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "requirement not found", requestID)
	case errors.Is(err, employees.ErrForbidden):
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", requestID)
	case errors.Is(err, compliance.ErrDuplicateCode):
		api.Fail(w, http.StatusConflict, "requirement_exists", "requirement code already exists", requestID)
	case errors.Is(err, compliance.ErrInvalidWarningWindow):
		api.Fail(w, http.StatusBadRequest, "validation_error", "warning window must not be negative", requestID)
	case errors.Is(err, compliance.ErrInvalidDate):
		api.Fail(w, http.StatusBadRequest, "validation_error", "invalid date", requestID)
	case errors.Is(err, compliance.ErrUnknownCategory), errors.Is(err, compliance.ErrInvalidRequirement):
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), requestID)
	case errors.Is(err, compliance.ErrWaiverReasonRequired):
		api.Fail(w, http.StatusBadRequest, "validation_error", "waiver reason is required", requestID)
	case errors.Is(err, compliance.ErrInvalidCSV):
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid csv payload", requestID)
	default:
		ctxlog.From(r.Context()).Error("compliance request failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "compliance_failed", "compliance request failed", requestID)
	}
}
