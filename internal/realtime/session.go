package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/rs/zerolog"

	"github.com/galynx/galynx/internal/auth"
	"github.com/galynx/galynx/internal/ratelimit"
	"github.com/galynx/galynx/internal/storage"
)

const (
	// maxFrameSize bounds a single inbound text frame.
	maxFrameSize = 64 * 1024

	// writeWait is the time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// sendBuffer is the per-connection buffer for ACK and ERROR frames
	// produced by the read loop.
	sendBuffer = 64
)

// Conn is the slice of *websocket.Conn the session uses, extracted so tests
// can drive a session without a network socket.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	Close() error
}

// Session is one authenticated WebSocket connection: an outbound pump
// forwarding workspace bus events, and an inbound loop dispatching commands.
type Session struct {
	conn       Conn
	actx       auth.Context
	hub        *Hub
	dispatcher *Dispatcher
	limiter    *ratelimit.Limiter
	audit      AuditWriter
	log        zerolog.Logger

	// out carries frames produced by the read loop (ACK/ERROR/WELCOME) to
	// the single writer goroutine, so bus events and replies never interleave
	// mid-frame.
	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewSession constructs a Session for an upgraded, authenticated connection.
func NewSession(conn Conn, actx auth.Context, hub *Hub, dispatcher *Dispatcher, limiter *ratelimit.Limiter, audit AuditWriter, logger zerolog.Logger) *Session {
	return &Session{
		conn:       conn,
		actx:       actx,
		hub:        hub,
		dispatcher: dispatcher,
		limiter:    limiter,
		audit:      audit,
		log: logger.With().
			Str("component", "realtime.session").
			Stringer("user_id", actx.UserID).
			Stringer("workspace_id", actx.WorkspaceID).
			Logger(),
		out:  make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// Run services the connection until either side closes. It subscribes to the
// workspace bus, records the connection in the audit log, greets the client
// with WELCOME, then pumps frames both ways.
func (s *Session) Run(ctx context.Context) {
	sub := s.hub.Subscribe(s.actx.WorkspaceID)
	defer sub.Unsubscribe()

	actor := s.actx.UserID
	if err := s.audit.Write(ctx, s.actx.WorkspaceID, &actor, "WS_CONNECTED", "session", nil, map[string]string{"transport": "websocket"}); err != nil {
		s.log.Warn().Err(err).Msg("append WS_CONNECTED audit entry")
	}

	s.enqueue(Envelope{
		EventType:   EventWelcome,
		WorkspaceID: &s.actx.WorkspaceID,
		ServerTS:    storage.NowMillis(),
		Payload: map[string]string{
			"user_id": s.actx.UserID.String(),
			"role":    string(s.actx.Role),
		},
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writePump(sub)
	}()

	s.readLoop(ctx)
	s.closeOnce.Do(func() { close(s.done) })
	wg.Wait()
}

// writePump is the sole writer: it forwards bus events and locally produced
// frames until the session ends or the bus subscription closes.
func (s *Session) writePump(sub *Subscription) {
	defer func() { _ = s.conn.Close() }()

	for {
		select {
		case env, ok := <-sub.C:
			if !ok {
				// Bus closed underneath us: the subscriber is terminated.
				return
			}
			if !s.writeEnvelope(env) {
				return
			}
		case frame := <-s.out:
			if !s.writeFrame(frame) {
				return
			}
		case <-s.done:
			// Drain buffered replies so the client sees its last ACK.
			for {
				select {
				case frame := <-s.out:
					if !s.writeFrame(frame) {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (s *Session) writeEnvelope(env Envelope) bool {
	data, err := json.Marshal(env)
	if err != nil {
		s.log.Warn().Err(err).Msg("marshal outbound event")
		return true
	}
	return s.writeFrame(data)
}

func (s *Session) writeFrame(data []byte) bool {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.log.Debug().Err(err).Msg("websocket write failed")
		return false
	}
	return true
}

// enqueue hands a frame to the writer goroutine. A full buffer drops the
// frame with a warning rather than blocking the read loop.
func (s *Session) enqueue(env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		s.log.Warn().Err(err).Msg("marshal session frame")
		return
	}
	select {
	case s.out <- data:
	default:
		s.log.Warn().Str("event_type", string(env.EventType)).Msg("session send buffer full, frame dropped")
	}
}

// readLoop consumes inbound frames until the peer disconnects. Pings are
// answered by the transport's control-frame handler; text frames are parsed
// as command envelopes and dispatched. Command failures are reported as
// non-fatal ERROR events, never by closing the socket.
func (s *Session) readLoop(ctx context.Context) {
	s.conn.SetReadLimit(maxFrameSize)

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Err(err).Msg("websocket read error")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		if err := s.limiter.Check(ctx, ratelimit.ClassWSCommand, ratelimit.WSCommandKey(s.actx.UserID.String())); err != nil {
			if errors.Is(err, ratelimit.ErrTooManyRequests) {
				s.sendError(429, "too many websocket commands, slow down")
				continue
			}
			s.log.Warn().Err(err).Msg("ws-command rate limit check failed")
			s.sendError(500, "internal error")
			continue
		}

		var frame CommandFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.sendError(400, "invalid websocket command payload")
			continue
		}

		result, err := s.dispatcher.Dispatch(ctx, s.actx, frame)
		if err != nil {
			cmdErr := TranslateError(err)
			if cmdErr.Status >= 500 {
				s.log.Error().Err(err).Str("command", frame.Command).Msg("command dispatch failed")
			}
			s.sendError(cmdErr.Status, cmdErr.Message)
			continue
		}

		ack := Envelope{
			EventType:     EventAck,
			CorrelationID: frame.ClientMsgID,
			ServerTS:      storage.NowMillis(),
			Payload: map[string]any{
				"command": frame.Command,
				"result":  result,
			},
		}
		s.enqueue(ack)
	}
}

// sendError emits a non-fatal ERROR event on this connection only. The
// payload carries the HTTP status mapping and the error text.
func (s *Session) sendError(status int, message string) {
	s.enqueue(Envelope{
		EventType: EventError,
		ServerTS:  storage.NowMillis(),
		Payload: map[string]any{
			"status": status,
			"error":  message,
		},
	})
}
