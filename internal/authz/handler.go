package authz

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/convoy-fleet/convoy/internal/platform/httpx"
)

// Handler exposes the engine's operations over HTTP. Administration of
// permissions is itself guarded by the engine: reads require users:view,
// mutations require users:edit.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	guard    Guard
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard Guard) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		guard:    guard,
		validate: validator.New(),
	}
}

// MountRoutes registers authorization routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/check", h.check)
	r.Get("/effective", h.listEffective)

	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require("users", "view"))
		r.Get("/permissions", h.listCatalog)
		r.Get("/templates", h.listTemplates)
		r.Get("/roles/{role}/grants", h.listRoleGrants)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require("users", "edit"))
		r.Put("/roles/{role}/grants", h.setRoleGrant)
		r.Post("/roles/{role}/template", h.applyTemplate)
		r.Put("/users/{userID}/overrides", h.setUserOverride)
		r.Delete("/users/{userID}/overrides", h.clearUserOverride)
	})
}

type grantRequest struct {
	Module  string `json:"module" validate:"required"`
	Action  string `json:"action" validate:"required"`
	Granted bool   `json:"granted"`
}

type templateRequest struct {
	Template string `json:"template" validate:"required"`
}

type checkResponse struct {
	Granted bool `json:"granted"`
}

type permissionsResponse struct {
	Permissions []string `json:"permissions"`
}

type reportResponse struct {
	Succeeded []string        `json:"succeeded"`
	Failed    []reportFailure `json:"failed"`
}

type reportFailure struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())
	if principal == nil {
		RespondError(w, ErrAuthenticationRequired)
		return
	}
	module := r.URL.Query().Get("module")
	action := r.URL.Query().Get("action")
	if module == "" || action == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "module and action query parameters are required")
		return
	}
	granted, err := h.service.Resolve(r.Context(), *principal, module, action)
	if err != nil {
		h.logger.Error("resolve", slog.Any("error", err))
		RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, checkResponse{Granted: granted})
}

func (h *Handler) listEffective(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())
	if principal == nil {
		RespondError(w, ErrAuthenticationRequired)
		return
	}
	keys, err := h.service.ListEffective(r.Context(), *principal)
	if err != nil {
		h.logger.Error("list effective", slog.Any("error", err))
		RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, permissionsResponse{Permissions: keyStrings(keys)})
}

func (h *Handler) listCatalog(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, permissionsResponse{Permissions: keyStrings(h.service.Catalog().Keys())})
}

func (h *Handler) listTemplates(w http.ResponseWriter, r *http.Request) {
	type templateView struct {
		Name    string   `json:"name"`
		Actions []string `json:"actions"`
	}
	views := make([]templateView, 0)
	for _, tpl := range Templates() {
		views = append(views, templateView{Name: tpl.Name, Actions: tpl.Actions})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"templates": views})
}

func (h *Handler) listRoleGrants(w http.ResponseWriter, r *http.Request) {
	role := chi.URLParam(r, "role")
	refresh := r.URL.Query().Get("refresh") == "1"
	keys, err := h.service.RoleGrants(r.Context(), role, refresh)
	if err != nil {
		h.logger.Error("list role grants", slog.String("role", role), slog.Any("error", err))
		RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, permissionsResponse{Permissions: keyStrings(keys)})
}

func (h *Handler) setRoleGrant(w http.ResponseWriter, r *http.Request) {
	role := chi.URLParam(r, "role")
	var req grantRequest
	if ok := h.decode(w, r, &req); !ok {
		return
	}
	if err := h.service.SetRoleGrant(r.Context(), role, req.Module, req.Action, req.Granted); err != nil {
		h.logger.Error("set role grant", slog.String("role", role), slog.Any("error", err))
		RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) applyTemplate(w http.ResponseWriter, r *http.Request) {
	role := chi.URLParam(r, "role")
	var req templateRequest
	if ok := h.decode(w, r, &req); !ok {
		return
	}
	report, err := h.service.ApplyTemplate(r.Context(), role, req.Template)
	if err != nil {
		h.logger.Error("apply template", slog.String("role", role), slog.Any("error", err))
		RespondError(w, err)
		return
	}
	resp := reportResponse{Succeeded: keyStrings(report.Succeeded), Failed: make([]reportFailure, 0, len(report.Failed))}
	for _, failure := range report.Failed {
		resp.Failed = append(resp.Failed, reportFailure{Key: failure.Key.String(), Error: failure.Err})
	}
	status := http.StatusOK
	if !report.Ok() {
		status = http.StatusMultiStatus
	}
	httpx.JSON(w, status, resp)
}

func (h *Handler) setUserOverride(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	var req grantRequest
	if ok := h.decode(w, r, &req); !ok {
		return
	}
	if err := h.service.SetUserOverride(r.Context(), userID, req.Module, req.Action, req.Granted); err != nil {
		h.logger.Error("set user override", slog.String("user", userID.String()), slog.Any("error", err))
		RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) clearUserOverride(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	module := r.URL.Query().Get("module")
	action := r.URL.Query().Get("action")
	if module == "" || action == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "module and action query parameters are required")
		return
	}
	if err := h.service.ClearUserOverride(r.Context(), userID, module, action); err != nil {
		h.logger.Error("clear user override", slog.String("user", userID.String()), slog.Any("error", err))
		RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func keyStrings(keys []Key) []string {
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, key.String())
	}
	return out
}
