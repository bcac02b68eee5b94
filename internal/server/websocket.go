package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/meetmind/insight-engine/internal/observability"
	"github.com/meetmind/insight-engine/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Meeting clients connect from browser extensions and desktop
		// apps; origin validation happens at the ingress layer.
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// ClientMessage is a JSON text frame from the consumer. Binary frames
// carry raw PCM audio and bypass this envelope entirely.
type ClientMessage struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Speaker  string `json:"speaker,omitempty"`
	Question string `json:"question,omitempty"`
}

// wsConn serializes writes to one websocket connection. gorilla allows
// only one concurrent writer, and events come from several goroutines.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// HandleMeetingWS is the entry point for meeting websocket connections.
// Each connection gets its own session; closing the socket tears the
// session down.
func HandleMeetingWS(manager *session.Manager) http.HandlerFunc {
	logger := observability.GetLogger().With().Str("component", "ws_handler").Logger()

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to upgrade connection to WebSocket")
			return
		}
		defer conn.Close()

		wrapped := &wsConn{conn: conn}
		sess, err := manager.Create(func(event session.Event) error {
			return wrapped.writeJSON(event)
		})
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create session")
			_ = wrapped.writeJSON(session.Event{Type: session.EventError, Payload: map[string]any{
				"message": "Failed to create session",
			}})
			return
		}
		defer manager.Remove(sess.ID)

		sessLogger := observability.WithSession(sess.ID)
		sessLogger.Info().Str("remote_addr", r.RemoteAddr).Msg("Meeting WebSocket connected")

		readLoop(wrapped, sess, sessLogger)
	}
}

func readLoop(conn *wsConn, sess *session.Session, logger zerolog.Logger) {
	for {
		messageType, payload, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			sess.FeedAudio(payload)

		case websocket.TextMessage:
			var msg ClientMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				logger.Error().Err(err).Msg("Failed to parse client message")
				observability.RecordError("invalid_json", "ws_handler")
				continue
			}
			handleClientMessage(conn, sess, msg, logger)
		}
	}
}

func handleClientMessage(conn *wsConn, sess *session.Session, msg ClientMessage, logger zerolog.Logger) {
	switch msg.Type {
	case "transcript":
		sess.AppendTranscript(msg.Text, msg.Speaker)

	case "ask":
		if msg.Question == "" {
			logger.Warn().Msg("Ask message without a question")
			return
		}
		// LLM latency must not stall the read loop.
		go sess.Ask(msg.Question)

	case "summary":
		go sess.Summarize()

	case "ping":
		_ = conn.writeJSON(session.Event{Type: session.EventPong})

	default:
		logger.Warn().Str("msg_type", msg.Type).Msg("Unknown client message type")
	}
}
