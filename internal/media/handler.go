package media

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"media-relay/internal/platform/metrics"
	"media-relay/internal/platform/respond"
	"media-relay/internal/platform/validate"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const retryAfterSeconds = 5

// Delivery methods accepted by the resolve endpoint.
const (
	DeliveryRedirect = "redirect"
	DeliveryStream   = "stream"
)

// Handler exposes the resolve endpoint using go-chi.
type Handler struct {
	resolver *Resolver
	delivery *Delivery
	log      *slog.Logger
	metrics  *metrics.Metrics
	validate *validator.Validate
}

// NewHandler returns a Handler. Metrics may be nil to disable metric recording.
func NewHandler(resolver *Resolver, delivery *Delivery, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{resolver: resolver, delivery: delivery, log: log, metrics: m, validate: validate.New()}
}

type resolveQuery struct {
	URL      string `json:"url" validate:"required,url"`
	Mode     string `json:"mode" validate:"omitempty,oneof=video audio audio-low audio-first"`
	Delivery string `json:"delivery" validate:"omitempty,oneof=redirect stream"`
}

// defaultDelivery is the delivery used when the request names none.
func defaultDelivery(mode Mode) string {
	switch mode {
	case ModeAudioLow, ModeAudioFirst:
		return DeliveryRedirect
	default:
		return DeliveryStream
	}
}

// Resolve handles GET /resolve?url=&mode=&delivery=.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	q := resolveQuery{
		URL:      r.URL.Query().Get("url"),
		Mode:     r.URL.Query().Get("mode"),
		Delivery: r.URL.Query().Get("delivery"),
	}
	if err := h.validate.Struct(q); err != nil {
		field := validate.FirstField(err)
		h.log.Debug("invalid resolve query", slog.String("field", field))
		respond.Error(w, http.StatusBadRequest, "missing or invalid parameter: "+field)
		return
	}
	if u, err := url.Parse(q.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		respond.Error(w, http.StatusBadRequest, "missing or invalid parameter: url")
		return
	}

	mode, err := ParseMode(q.Mode)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	delivery := q.Delivery
	if delivery == "" {
		delivery = defaultDelivery(mode)
	}

	res, err := h.resolver.Resolve(r.Context(), q.URL, mode)
	if err != nil {
		h.fail(w, mode, err)
		return
	}

	if delivery == DeliveryRedirect {
		h.log.Info("redirecting to variant",
			slog.String("mode", string(mode)),
			slog.String("role", string(res.Variant.Role)),
			slog.Int("quality", res.Variant.Quality))
		h.count(mode, "redirect")
		h.delivery.Redirect(w, r, res)
		return
	}

	transferID := uuid.NewString()
	log := h.log.With(slog.String("transfer_id", transferID), slog.String("mode", string(mode)))
	log.Info("streaming variant",
		slog.String("role", string(res.Variant.Role)),
		slog.Int("quality", res.Variant.Quality),
		slog.String("filename", h.delivery.Filename(res)))

	n, err := h.delivery.Stream(w, r, res)
	if h.metrics != nil {
		h.metrics.AddProxiedBytes(n)
	}
	if err != nil && !headersSent(w) {
		h.fail(w, mode, err)
		return
	}
	if err != nil {
		// Headers are out; the caller sees a truncated body.
		log.Warn("stream truncated", slog.Int64("bytes", n), slog.String("error", err.Error()))
		h.count(mode, "truncated")
		return
	}
	log.Info("stream complete", slog.Int64("bytes", n))
	h.count(mode, "stream")
}

func (h *Handler) fail(w http.ResponseWriter, mode Mode, err error) {
	switch {
	case errors.Is(err, ErrNoSuitableFormat):
		h.log.Info("no suitable format", slog.String("mode", string(mode)), slog.String("error", err.Error()))
		h.count(mode, "not_found")
		respond.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrUpstreamTimeout):
		h.log.Warn("upstream timeout", slog.String("mode", string(mode)), slog.String("error", err.Error()))
		h.count(mode, "timeout")
		// A timeout is an upstream failure like any other; Retry-After tells
		// the caller it is worth trying again.
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		respond.Error(w, http.StatusInternalServerError, "upstream timed out, retry later")
	default:
		h.log.Error("upstream failure", slog.String("mode", string(mode)), slog.String("error", err.Error()))
		h.count(mode, "upstream_error")
		respond.Error(w, http.StatusInternalServerError, "upstream failure")
	}
}

func (h *Handler) count(mode Mode, outcome string) {
	if h.metrics != nil {
		h.metrics.IncResolutions(string(mode), outcome)
	}
}

// headersSent reports whether Stream already committed a response, which it
// does by setting Content-Disposition right before writing the status.
func headersSent(w http.ResponseWriter) bool {
	return w.Header().Get("Content-Disposition") != ""
}
