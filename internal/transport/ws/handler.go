package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prudhvinik1/slotsync/internal/events"
	"github.com/prudhvinik1/slotsync/internal/realtime"
	"github.com/prudhvinik1/slotsync/internal/services"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var errNoAuthFrame = errors.New("first frame was not an auth event")

type TokenVerifier interface {
	VerifyToken(token string) (*services.TokenClaims, error)
}

type HandlerOptions struct {
	AuthTimeout time.Duration
	SendBuffer  int
	CheckOrigin func(r *http.Request) bool
}

// Handler upgrades requests to websockets, authenticates them and runs the per-connection
// read loop.
type Handler struct {
	engine      *realtime.Engine
	auth        TokenVerifier
	router      *Router
	upgrader    websocket.Upgrader
	authTimeout time.Duration
	sendBuffer  int
	logger      zerolog.Logger
	handshakes  metric.Int64Counter
}

func NewHandler(engine *realtime.Engine, auth TokenVerifier, opts HandlerOptions, logger zerolog.Logger) *Handler {
	if opts.AuthTimeout <= 0 {
		opts.AuthTimeout = 10 * time.Second
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	if opts.CheckOrigin == nil {
		opts.CheckOrigin = func(*http.Request) bool { return true }
	}

	handshakes, _ := otel.Meter("slotsync/ws").Int64Counter("ws_handshakes_total",
		metric.WithDescription("Websocket handshakes by outcome"))

	return &Handler{
		engine: engine,
		auth:   auth,
		router: NewRouter(engine, logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     opts.CheckOrigin,
		},
		authTimeout: opts.AuthTimeout,
		sendBuffer:  opts.SendBuffer,
		logger:      logger.With().Str("component", "WebsocketHandler").Logger(),
		handshakes:  handshakes,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	claims, err := h.authenticate(socket, r)
	if err != nil {
		h.handshakes.Add(r.Context(), 1, metric.WithAttributes(attribute.String("outcome", "rejected")))
		h.reject(socket, err)
		return
	}
	h.handshakes.Add(r.Context(), 1, metric.WithAttributes(attribute.String("outcome", "accepted")))

	ctx := r.Context()
	conn := newConn(socket, claims.UserID, h.sendBuffer, h.logger)
	h.engine.Connect(ctx, conn)
	go conn.writePump()

	defer func() {
		conn.Close()
		if err := h.engine.Disconnect(context.WithoutCancel(ctx), conn.ID()); err != nil {
			conn.logger.Warn().Err(err).Msg("Disconnect cleanup failed")
		}
		conn.logger.Info().Msg("Websocket closed")
	}()

	conn.logger.Info().Msg("Websocket connected")
	if err := conn.Send(events.Connected, events.Welcome{ConnectionID: conn.ID(), UserID: conn.UserID()}); err != nil {
		return
	}
	h.readLoop(ctx, conn)
}

// readLoop processes frames in arrival order until the socket fails or is closed.
func (h *Handler) readLoop(ctx context.Context, conn *Conn) {
	socket := conn.ws
	socket.SetReadLimit(maxMessageSize)
	socket.SetReadDeadline(time.Now().Add(pongWait))
	socket.SetPongHandler(func(string) error {
		h.engine.Touch(conn.ID())
		return socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := socket.ReadMessage()
		if err != nil {
			if !conn.closed() && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				conn.logger.Debug().Err(err).Msg("Websocket read failed")
			}
			return
		}
		socket.SetReadDeadline(time.Now().Add(pongWait))
		h.engine.Touch(conn.ID())

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.reply(conn, "", fmt.Errorf("%w: %v", ErrInvalidPayload, err))
			continue
		}
		cmd, err := Decode(env)
		if err != nil {
			h.reply(conn, env.Event, err)
			continue
		}
		if err := h.router.Handle(ctx, conn, cmd); err != nil {
			h.reply(conn, env.Event, err)
		}
	}
}

func (h *Handler) reply(conn *Conn, event string, err error) {
	if errors.Is(err, ErrConnClosed) || errors.Is(err, ErrSendBufferFull) {
		return
	}
	payload := errorPayload(event, err)
	if payload.Code == CodeInternal {
		conn.logger.Error().Err(err).Str("event", event).Msg("Command failed")
	} else {
		conn.logger.Debug().Err(err).Str("event", event).Msg("Command rejected")
	}
	conn.Send(events.Error, payload)
}

// authenticate reads the bearer token from the Authorization header, the token query parameter
// or, failing both, a first auth frame.
func (h *Handler) authenticate(socket *websocket.Conn, r *http.Request) (*services.TokenClaims, error) {
	token := requestToken(r)
	if token == "" {
		socket.SetReadDeadline(time.Now().Add(h.authTimeout))
		_, data, err := socket.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("failed to read auth frame: %w", err)
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event != EventAuth {
			return nil, errNoAuthFrame
		}
		cmd, err := Decode(env)
		if err != nil {
			return nil, err
		}
		token = cmd.(Auth).Token
	}
	return h.auth.VerifyToken(token)
}

func requestToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}

// reject sends a single auth_error and closes the socket.
func (h *Handler) reject(socket *websocket.Conn, err error) {
	h.logger.Info().Err(err).Str("remote_addr", socket.RemoteAddr().String()).Msg("Websocket authentication failed")

	deadline := time.Now().Add(writeWait)
	socket.SetWriteDeadline(deadline)
	socket.WriteJSON(outbound{
		Event: events.AuthError,
		Data:  events.ErrorPayload{Code: CodeUnauthorized, Message: "authentication failed"},
	})
	socket.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication failed"), deadline)
	socket.Close()
}
