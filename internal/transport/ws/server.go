package ws

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prudhvinik1/slotsync/internal/models"
	"github.com/prudhvinik1/slotsync/internal/realtime"
	"github.com/rs/zerolog"
)

const (
	apiKeyHeader    = "X-API-Key"
	signatureHeader = "X-Signature"
	maxBodyBytes    = 1 << 20

	paymentSucceeded = "succeeded"
)

type ServerConfig struct {
	InternalAPIKey       string
	PaymentWebhookSecret string
	Websocket            HandlerOptions
}

type server struct {
	engine *realtime.Engine
	cfg    ServerConfig
	logger zerolog.Logger
}

// NewHTTPHandler builds the instance's HTTP surface: health, the websocket endpoint, internal
// triggers for the booking service and the payment webhook.
func NewHTTPHandler(engine *realtime.Engine, auth TokenVerifier, cfg ServerConfig, logger zerolog.Logger) http.Handler {
	s := &server{
		engine: engine,
		cfg:    cfg,
		logger: logger.With().Str("component", "HTTPServer").Logger(),
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	router.Method(http.MethodGet, "/ws", NewHandler(engine, auth, cfg.Websocket, logger))

	router.Route("/internal", func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Get("/stats", s.stats)
		r.Post("/appointments/{id}/events", s.appointmentEvent)
	})
	router.Post("/webhooks/payment", s.paymentWebhook)

	return router
}

func (s *server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(apiKeyHeader)
		if s.cfg.InternalAPIKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.cfg.InternalAPIKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Stats())
}

type appointmentEventRequest struct {
	Type models.AppointmentEventType `json:"type"`
}

func (s *server) appointmentEvent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}

	var req appointmentEventRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Type.Valid() {
		writeError(w, http.StatusBadRequest, "unknown event type")
		return
	}

	event := models.AppointmentEvent{AppointmentID: id, Type: req.Type, OccurredAt: s.engine.Now()}
	if err := s.engine.HandleAppointmentEvent(r.Context(), event); err != nil {
		s.writeEngineError(w, err, id)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type paymentWebhookRequest struct {
	AppointmentID uuid.UUID `json:"appointmentId"`
	Status        string    `json:"status"`
}

// paymentWebhook accepts gateway callbacks signed with HMAC-SHA256 over the raw body.
func (s *server) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !s.validSignature(body, r.Header.Get(signatureHeader)) {
		s.logger.Warn().Str("remote_addr", r.RemoteAddr).Msg("Rejected payment webhook with bad signature")
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var req paymentWebhookRequest
	if err := json.Unmarshal(body, &req); err != nil || req.AppointmentID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Status != paymentSucceeded {
		s.logger.Info().Str("appointment_id", req.AppointmentID.String()).Str("status", req.Status).Msg("Ignoring payment webhook")
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := s.engine.PaymentConfirmed(r.Context(), req.AppointmentID); err != nil {
		s.writeEngineError(w, err, req.AppointmentID)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *server) validSignature(body []byte, header string) bool {
	if s.cfg.PaymentWebhookSecret == "" || header == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimPrefix(header, "sha256="))
	if err != nil {
		return false
	}
	return hmac.Equal(got, Sign([]byte(s.cfg.PaymentWebhookSecret), body))
}

// Sign returns the HMAC-SHA256 of body under secret.
func Sign(secret, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}

func (s *server) writeEngineError(w http.ResponseWriter, err error, appointmentID uuid.UUID) {
	if errors.Is(err, realtime.ErrAppointmentNotFound) || errors.Is(err, realtime.ErrVendorNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.logger.Error().Err(err).Str("appointment_id", appointmentID.String()).Msg("Appointment trigger failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
