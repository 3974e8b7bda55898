package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/swatto/smsbridge/internal/channel"
	"github.com/swatto/smsbridge/internal/sms"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

// Handler handles HTTP requests for the smsbridge service
type Handler struct {
	Config     *Config
	Dispatcher *sms.Dispatcher
	Provider   string
	StartTime  time.Time
	Version    string
	metrics    *Metrics
}

// New creates a new Handler dispatching through d. provider names the
// resolved platform provider for /health.
func New(cfg *Config, d *sms.Dispatcher, provider, version string) *Handler {
	return &Handler{
		Config:     cfg,
		Dispatcher: d,
		Provider:   provider,
		StartTime:  time.Now(),
		Version:    version,
		metrics:    NewMetrics(),
	}
}

// Routes returns the router with the standard middleware stack applied.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(func(next http.Handler) http.Handler {
		return LogRequests(h.Config.LogFormat, next)
	})
	r.Use(middleware.Recoverer)

	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers all HTTP routes on the given router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Ping)
	r.Get("/health", h.Health)
	r.Get("/metrics", h.Metrics)

	r.Group(func(r chi.Router) {
		if h.Config.WebhookSecret != "" {
			r.Use(func(next http.Handler) http.Handler {
				return RequireWebhookAuth(h.Config.WebhookSecret, next)
			})
		}
		r.Post("/channel/*", h.Channel)
		r.Post("/send", h.SendRequest)
	})
}

// Ping handles the ping endpoint
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	if _, err := io.WriteString(w, "ping"); err != nil {
		slog.Error("ping: failed to write response", "error", err)
	}
}

// Health handles the health check endpoint
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.StartTime).Round(time.Second)
	response := HealthResponse{
		Status:   "ok",
		Version:  h.Version,
		Uptime:   uptime.String(),
		Provider: h.Provider,
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("health: failed to encode JSON response", "error", err)
	}
}

// Channel handles POST /channel/{name}: a method call envelope addressed
// to the configured channel.
func (h *Handler) Channel(w http.ResponseWriter, r *http.Request) {
	if name := chi.URLParam(r, "*"); name != h.Config.Channel() {
		slog.Warn("channel: unknown channel", "channel", name)
		http.NotFound(w, r)
		return
	}

	body, ok := readJSONBody(w, r, "channel")
	if !ok {
		return
	}

	call, err := channel.Decode(body)
	if err != nil {
		slog.Error("channel: failed to decode call", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.invoke(w, r, call)
}

// SendRequest handles POST /send: the body is the arguments object of an
// implied sendSMS call.
func (h *Handler) SendRequest(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSONBody(w, r, "send")
	if !ok {
		return
	}

	call, err := channel.DecodeArguments(sms.MethodSendSMS, body)
	if err != nil {
		slog.Error("send: failed to parse JSON", "error", err)
		http.Error(w, "send: invalid JSON in request body", http.StatusBadRequest)
		return
	}
	h.invoke(w, r, call)
}

func (h *Handler) invoke(w http.ResponseWriter, r *http.Request, call channel.Call) {
	out := h.Dispatcher.Invoke(r.Context(), call.Method, call.Arguments)
	h.metrics.Observe(out)
	channel.WriteOutcome(w, out)
}

// readJSONBody enforces the JSON content type and the body size cap. On
// failure it writes the error response and returns false.
func readJSONBody(w http.ResponseWriter, r *http.Request, scope string) ([]byte, bool) {
	contentType := r.Header.Get("Content-Type")
	// Handle Content-Type case-insensitively and allow charset parameters
	if !strings.HasPrefix(strings.ToLower(contentType), "application/json") {
		slog.Error(scope+": invalid Content-Type", "content_type", contentType)
		http.Error(w, scope+": Content-Type must be application/json", http.StatusNotAcceptable)
		return nil, false
	}

	defer func() {
		if err := r.Body.Close(); err != nil {
			slog.Error(scope+": failed to close request body", "error", err)
		}
	}()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			slog.Error(scope+": request body too large", "limit", tooLarge.Limit)
			http.Error(w, scope+": request body too large", http.StatusRequestEntityTooLarge)
			return nil, false
		}
		slog.Error(scope+": failed to read request body", "error", err)
		http.Error(w, scope+": failed to read request body", http.StatusBadRequest)
		return nil, false
	}
	return body, true
}
