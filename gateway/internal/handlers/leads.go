package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/leadgate/leadgate/common/httputil"
	"github.com/leadgate/leadgate/common/logging"
	"github.com/leadgate/leadgate/gateway/internal/middleware"
	"github.com/leadgate/leadgate/gateway/internal/models"
	"github.com/leadgate/leadgate/gateway/internal/params"
	"github.com/leadgate/leadgate/gateway/internal/repository"
	"github.com/leadgate/leadgate/gateway/internal/service"
)

// ParamLeads carries the JSON array of a batch submission.
const ParamLeads = "leads"

type LeadHandler struct {
	service *service.LeadService
	logger  *slog.Logger
}

func NewLeadHandler(svc *service.LeadService, logger *slog.Logger) *LeadHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LeadHandler{service: svc, logger: logger}
}

// Create accepts a single lead. Every verified parameter becomes a payload
// field, in request order.
func (h *LeadHandler) Create(w http.ResponseWriter, r *http.Request) {
	app := middleware.ApplicationFromContext(r.Context())
	if app == nil {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	payload := middleware.ParamsFromContext(r.Context()).Payload()

	// Dispatch runs to completion even if the client disconnects.
	ctx := context.WithoutCancel(r.Context())
	lead, err := h.service.Submit(ctx, app, payload)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"id": lead.ID})
}

// CreateBatch accepts many leads in one request and dispatches them as a pack.
func (h *LeadHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	app := middleware.ApplicationFromContext(r.Context())
	if app == nil {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	raw, ok := middleware.ParamsFromContext(r.Context()).Get(ParamLeads)
	if !ok {
		httputil.WriteError(w, http.StatusBadRequest, "missing leads parameter")
		return
	}
	var items []service.BatchItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "leads must be a JSON array of objects")
		return
	}

	ctx := context.WithoutCancel(r.Context())
	leads, err := h.service.SubmitBatch(ctx, app, items)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	ids := make([]string, len(leads))
	for i, l := range leads {
		ids[i] = l.ID
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string][]string{"ids": ids})
}

func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	app := middleware.ApplicationFromContext(r.Context())
	if app == nil {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	win := paramWindow(middleware.ParamsFromContext(r.Context()))

	leads, total, err := h.service.List(r.Context(), app, win.Limit, win.Offset)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if leads == nil {
		leads = []*models.Lead{}
	}
	httputil.WriteList(w, leads, total, win.Limit, win.Offset)
}

func (h *LeadHandler) Get(w http.ResponseWriter, r *http.Request) {
	app := middleware.ApplicationFromContext(r.Context())
	if app == nil {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	lead, err := h.service.Get(r.Context(), app, r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, lead)
}

func (h *LeadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	app := middleware.ApplicationFromContext(r.Context())
	if app == nil {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.service.Delete(r.Context(), app, r.PathValue("id"), httputil.GetClientIP(r)); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListRequests returns delivery records, filtered by lead_id, system and status.
func (h *LeadHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	app := middleware.ApplicationFromContext(r.Context())
	if app == nil {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	p := middleware.ParamsFromContext(r.Context())
	win := paramWindow(p)

	filter := models.RequestFilter{Limit: win.Limit, Offset: win.Offset}
	filter.LeadID, _ = p.Get("lead_id")
	filter.System, _ = p.Get("system")
	if s, ok := p.Get("status"); ok && s != "" {
		st, err := models.ParseStatus(s)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Status = st
	}

	reqs, total, err := h.service.Requests(r.Context(), app, filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if reqs == nil {
		reqs = []*models.Request{}
	}
	httputil.WriteList(w, reqs, total, win.Limit, win.Offset)
}

// paramWindow reads limit and offset from the verified parameters, which
// cover both the query string and the body.
func paramWindow(p params.Params) httputil.Window {
	limit, _ := p.Get("limit")
	offset, _ := p.Get("offset")
	return httputil.NewWindow(limit, offset)
}

func (h *LeadHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyPayload), errors.Is(err, service.ErrEmptyBatch):
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrBatchTooLarge):
		httputil.WriteError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, repository.ErrLeadNotFound):
		httputil.WriteError(w, http.StatusNotFound, "lead not found")
	case errors.Is(err, repository.ErrLeadExists):
		httputil.WriteError(w, http.StatusConflict, "lead already exists")
	default:
		h.logger.ErrorContext(r.Context(), "lead request failed", logging.Path(r.URL.Path), logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
