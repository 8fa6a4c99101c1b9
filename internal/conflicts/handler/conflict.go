package handler

import (
	"net/http"
	"time"

	"roomdesk/internal/conflicts/service"
	apperrors "roomdesk/pkg/errors"
	httputil "roomdesk/pkg/http"
	"roomdesk/pkg/logger"
	"roomdesk/pkg/middleware"
	"roomdesk/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type ConflictHandler struct {
	service  service.ConflictService
	log      *logger.Logger
	location *time.Location
}

// NewConflictHandler builds the handler. loc is used to read ?date= values
// as local calendar days.
func NewConflictHandler(service service.ConflictService, log *logger.Logger, loc *time.Location) *ConflictHandler {
	if loc == nil {
		loc = time.Local
	}
	return &ConflictHandler{
		service:  service,
		log:      log,
		location: loc,
	}
}

func (h *ConflictHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if _, err := middleware.RequirePrivileged(r); err != nil {
		h.writeError(w, "List", err)
		return
	}

	from, err := httputil.ExtractTime(r, "from")
	if err != nil {
		h.writeError(w, "List", err)
		return
	}
	to, err := httputil.ExtractTime(r, "to")
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	result, err := h.service.List(r.Context(), service.ListFilter{
		ResourceID: r.URL.Query().Get("resource_id"),
		From:       from,
		To:         to,
	})
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "List", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ConflictHandler) Resolve(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, err := middleware.RequirePrivileged(r)
	if err != nil {
		h.writeError(w, "Resolve", err)
		return
	}

	var cmd model.ResolutionCommand
	if err := httputil.DecodeBody(r, &cmd); err != nil {
		h.writeError(w, "Resolve", err)
		return
	}

	result, err := h.service.Resolve(r.Context(), &cmd, actor.ID)
	if err != nil {
		h.writeError(w, "Resolve", err)
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "Resolve", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ConflictHandler) ResolvedOn(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if _, err := middleware.RequirePrivileged(r); err != nil {
		h.writeError(w, "ResolvedOn", err)
		return
	}

	var day time.Time
	if s := r.URL.Query().Get("date"); s != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, s, h.location)
		if err != nil {
			h.writeError(w, "ResolvedOn", apperrors.InvalidInput("invalid date parameter, expected YYYY-MM-DD: "+s))
			return
		}
		day = parsed
	}

	resolutions, err := h.service.ResolvedOn(r.Context(), day)
	if err != nil {
		h.writeError(w, "ResolvedOn", err)
		return
	}

	if err := httputil.WriteSuccess(w, resolutions); err != nil {
		h.log.Error("failed to write success response", "handler", "ResolvedOn", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ConflictHandler) Stats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if _, err := middleware.RequireActor(r); err != nil {
		h.writeError(w, "Stats", err)
		return
	}

	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.writeError(w, "Stats", err)
		return
	}

	if err := httputil.WriteSuccess(w, stats); err != nil {
		h.log.Error("failed to write success response", "handler", "Stats", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ConflictHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *ConflictHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/conflicts", h.List)
	router.POST("/api/v1/conflicts/resolve", h.Resolve)
	router.GET("/api/v1/conflicts/resolved", h.ResolvedOn)
	router.GET("/api/v1/conflicts/stats", h.Stats)
}
