package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/leadgate/leadgate/common/httputil"
	"github.com/leadgate/leadgate/common/logging"
	"github.com/leadgate/leadgate/gateway/internal/repository"
	"github.com/leadgate/leadgate/gateway/internal/service"
)

// AdminHandler serves application key management for operators.
type AdminHandler struct {
	apps   *service.ApplicationService
	logger *slog.Logger
}

func NewAdminHandler(apps *service.ApplicationService, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{apps: apps, logger: logger}
}

type createApplicationRequest struct {
	Name string `json:"name"`
}

func actor(r *http.Request) service.Actor {
	name := r.Header.Get("X-Actor")
	if name == "" {
		name = "admin"
	}
	return service.Actor{Name: name, IPAddress: httputil.GetClientIP(r)}
}

func (h *AdminHandler) CreateApplication(w http.ResponseWriter, r *http.Request) {
	var req createApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	app, err := h.apps.Create(r.Context(), req.Name, actor(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, app)
}

func (h *AdminHandler) RotateApplication(w http.ResponseWriter, r *http.Request) {
	app, err := h.apps.Rotate(r.Context(), r.PathValue("client_id"), actor(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, app)
}

func (h *AdminHandler) ListApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.apps.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, apps)
}

func (h *AdminHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidName):
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrApplicationNotFound):
		httputil.WriteError(w, http.StatusNotFound, "application not found")
	case errors.Is(err, repository.ErrApplicationExists):
		httputil.WriteError(w, http.StatusConflict, "application already exists")
	default:
		h.logger.ErrorContext(r.Context(), "admin request failed", logging.Path(r.URL.Path), logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
