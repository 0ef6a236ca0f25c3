package session

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"media-relay/internal/platform/metrics"
	"media-relay/internal/platform/respond"
	"media-relay/internal/platform/validate"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler exposes the session control endpoints using go-chi.
type Handler struct {
	svc      *Service
	log      *slog.Logger
	metrics  *metrics.Metrics
	validate *validator.Validate
}

// NewHandler returns a Handler that uses the given Service, Logger, and optional Metrics.
// Metrics may be nil to disable metric recording (e.g. in tests).
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, log: log, metrics: m, validate: validate.New()}
}

type controlRequest struct {
	SessionID string   `json:"sessionId" validate:"required"`
	Action    string   `json:"action" validate:"required"`
	Value     *float64 `json:"value"`
}

type updateURLRequest struct {
	SessionID string  `json:"sessionId" validate:"required"`
	URL       *string `json:"url" validate:"required"`
}

type updateURLResponse struct {
	Status    string `json:"status"`
	SessionID ID     `json:"sessionId"`
}

// Control handles POST /control.
// Body: { "sessionId": "a", "action": "skip", "value": 6 }.
func (h *Handler) Control(w http.ResponseWriter, r *http.Request) {
	var req controlRequest
	if !h.decode(w, r, &req) {
		return
	}

	id := ID(req.SessionID)
	res, err := h.svc.ApplyControl(id, req.Action, req.Value)
	if err != nil {
		if errors.Is(err, ErrInvalidAction) {
			h.log.Debug("control rejected",
				slog.String("session_id", req.SessionID),
				slog.String("action", req.Action),
				slog.String("error", err.Error()))
			respond.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error("control failed", slog.String("error", err.Error()))
		respond.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	if res.Accepted {
		h.log.Info("control accepted",
			slog.String("session_id", req.SessionID),
			slog.String("action", string(res.Action)))
	} else {
		h.log.Debug("duplicate skip ignored", slog.String("session_id", req.SessionID))
	}
	if h.metrics != nil {
		h.metrics.IncControlAction(string(res.Action), res.Accepted)
	}
	respond.JSON(w, http.StatusOK, res)
}

// UpdateURL handles POST /update-url.
// Body: { "sessionId": "a", "url": "https://..." }.
func (h *Handler) UpdateURL(w http.ResponseWriter, r *http.Request) {
	var req updateURLRequest
	if !h.decode(w, r, &req) {
		return
	}

	id := ID(req.SessionID)
	h.svc.UpdateURL(id, *req.URL)

	h.log.Info("session url updated", slog.String("session_id", req.SessionID))
	if h.metrics != nil {
		h.metrics.IncURLUpdates()
	}
	respond.JSON(w, http.StatusOK, updateURLResponse{Status: "URL updated", SessionID: id})
}

// CurrentURL handles GET /current-url/{session_id}.
func (h *Handler) CurrentURL(w http.ResponseWriter, r *http.Request) {
	id := ID(chi.URLParam(r, "session_id"))
	if id == "" {
		respond.Error(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	snap, err := h.svc.GetStatus(id)
	if err != nil {
		if errors.Is(err, ErrUnknownSession) {
			respond.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error("get status failed", slog.String("session_id", string(id)), slog.String("error", err.Error()))
		respond.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	respond.JSON(w, http.StatusOK, snap)
}

// decode reads and validates a JSON body, writing a 400 response on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.log.Debug("invalid request body", slog.String("error", err.Error()))
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		field := validate.FirstField(err)
		h.log.Debug("missing parameter", slog.String("field", field))
		respond.Error(w, http.StatusBadRequest, "missing parameter: "+field)
		return false
	}
	return true
}
