package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var (
	ErrConnClosed     = errors.New("connection closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

// Conn is one authenticated websocket. Sends are queued on a bounded buffer drained by a
// single writer goroutine; a full buffer drops the frame rather than blocking the caller.
type Conn struct {
	id     string
	userID uuid.UUID
	ws     *websocket.Conn
	logger zerolog.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func newConn(ws *websocket.Conn, userID uuid.UUID, buffer int, logger zerolog.Logger) *Conn {
	id := uuid.NewString()
	return &Conn{
		id:     id,
		userID: userID,
		ws:     ws,
		logger: logger.With().Str("connection_id", id).Str("user_id", userID.String()).Logger(),
		send:   make(chan []byte, buffer),
		done:   make(chan struct{}),
	}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) UserID() uuid.UUID { return c.userID }

func (c *Conn) Send(event string, payload any) error {
	frame, err := json.Marshal(outbound{Event: event, Data: payload})
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	default:
		c.logger.Warn().Str("event", event).Msg("Send buffer full, dropping frame")
		return ErrSendBufferFull
	}
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

func (c *Conn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// writePump owns all data writes to the socket and keeps it alive with pings.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug().Err(err).Msg("Write failed")
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.logger.Debug().Err(err).Msg("Ping failed")
				c.Close()
				return
			}
		}
	}
}
