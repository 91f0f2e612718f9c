package prefixcode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// StreamConfig configures the streaming API.
type StreamConfig struct {
	// Enabled turns on WebSocket streaming
	Enabled bool `yaml:"enabled"`
	// MaxMessageBytes caps the size of a single inbound frame
	MaxMessageBytes int64 `yaml:"max_message_bytes,omitempty"`
	// WriteTimeout for WebSocket writes
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty"`
	// PingInterval is how often to ping idle clients
	PingInterval time.Duration `yaml:"ping_interval,omitempty"`
	// MaxSessions caps concurrent sessions
	MaxSessions int `yaml:"max_sessions,omitempty"`
}

// DefaultStreamConfig returns default streaming configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Enabled:         true,
		MaxMessageBytes: 1 << 20,
		WriteTimeout:    10 * time.Second,
		PingInterval:    30 * time.Second,
		MaxSessions:     64,
	}
}

// StreamSession is one live encoding session over a WebSocket connection.
// The model is resolved once when the session starts; every binary frame
// is encoded with that session codec.
type StreamSession struct {
	ID      string
	Model   string
	conn    *websocket.Conn
	codec   *Codec
	created time.Time

	mu       sync.Mutex
	messages uint64
	bytesIn  uint64
	bitsOut  uint64
}

func (s *StreamSession) writeJSON(timeout time.Duration, msg StreamMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if timeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// StreamHub manages live encoding sessions.
type StreamHub struct {
	store        ModelStore
	defaultModel string
	config       StreamConfig
	metrics      *MetricsCollector

	mu       sync.RWMutex
	sessions map[string]*StreamSession
	nextID   uint64
	closed   bool
}

// NewStreamHub creates a streaming hub backed by the given model store.
// Sessions that start without naming a model use defaultModel.
func NewStreamHub(store ModelStore, defaultModel string, cfg StreamConfig) *StreamHub {
	if defaultModel == "" {
		defaultModel = EnglishModelName
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = DefaultStreamConfig().MaxMessageBytes
	}
	return &StreamHub{
		store:        store,
		defaultModel: defaultModel,
		config:       cfg,
		sessions:     make(map[string]*StreamSession),
	}
}

// Count returns the number of active sessions.
func (h *StreamHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// List returns all active session IDs.
func (h *StreamHub) List() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	return ids
}

// CloseAll closes every active session and rejects new ones.
func (h *StreamHub) CloseAll() {
	h.mu.Lock()
	sessions := make([]*StreamSession, 0, len(h.sessions))
	for _, sess := range h.sessions {
		sessions = append(sessions, sess)
	}
	h.sessions = make(map[string]*StreamSession)
	h.closed = true
	h.mu.Unlock()

	for _, sess := range sessions {
		sess.mu.Lock()
		_ = sess.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = sess.conn.Close()
		sess.mu.Unlock()
	}
}

// resolveCodec looks up the named model (or the hub default) and builds
// its codec.
func (h *StreamHub) resolveCodec(ctx context.Context, name string) (string, *Codec, error) {
	if name == "" {
		name = h.defaultModel
	}
	model, err := h.store.Get(ctx, name)
	if err != nil {
		return name, nil, err
	}
	codec, err := model.Codec()
	if err != nil {
		return name, nil, err
	}
	return name, codec, nil
}

func (h *StreamHub) addSession(model string, codec *Codec, conn *websocket.Conn) (*StreamSession, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, errors.New("stream hub is closed")
	}
	if h.config.MaxSessions > 0 && len(h.sessions) >= h.config.MaxSessions {
		return nil, fmt.Errorf("session limit reached (%d active)", len(h.sessions))
	}
	h.nextID++
	sess := &StreamSession{
		ID:      fmt.Sprintf("sess-%d", h.nextID),
		Model:   model,
		conn:    conn,
		codec:   codec,
		created: time.Now(),
	}
	h.sessions[sess.ID] = sess
	return sess, nil
}

func (h *StreamHub) removeSession(id string) {
	h.mu.Lock()
	delete(h.sessions, id)
	h.mu.Unlock()
}

// WebSocket handling

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamMessage is the JSON format for WebSocket text frames. A session
// opens with {"type":"start","model":...}; the server answers each binary
// plaintext frame with a {"type":"encoded",...} summary followed by one
// binary frame holding the packed encoding.
type StreamMessage struct {
	Type     string `json:"type"`
	Model    string `json:"model,omitempty"`
	Session  string `json:"session,omitempty"`
	BitLen   int    `json:"bit_len,omitempty"`
	Padding  int    `json:"padding,omitempty"`
	BytesIn  uint64 `json:"bytes_in,omitempty"`
	BytesOut uint64 `json:"bytes_out,omitempty"`
	Messages uint64 `json:"messages,omitempty"`
	BitsOut  uint64 `json:"bits_out,omitempty"`
	Error    string `json:"error,omitempty"`
}

// WebSocketHandler returns an HTTP handler for WebSocket connections.
func (h *StreamHub) WebSocketHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := streamUpgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer func() { _ = conn.Close() }()

		if h.config.MaxMessageBytes > 0 {
			conn.SetReadLimit(h.config.MaxMessageBytes)
		}

		sess, err := h.startSession(r.Context(), conn)
		if err != nil {
			h.sendError(conn, err.Error())
			return
		}
		defer h.removeSession(sess.ID)

		if err := sess.writeJSON(h.config.WriteTimeout, StreamMessage{
			Type:    "started",
			Session: sess.ID,
			Model:   sess.Model,
		}); err != nil {
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go h.pingLoop(ctx, sess)

		for {
			msgType, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}

			switch msgType {
			case websocket.BinaryMessage:
				if err := h.encodeFrame(sess, payload); err != nil {
					h.sendSessionError(sess, err.Error())
				}

			case websocket.TextMessage:
				var cmd StreamMessage
				if err := json.Unmarshal(payload, &cmd); err != nil {
					h.sendSessionError(sess, "invalid message format")
					continue
				}
				switch cmd.Type {
				case "stats":
					sess.mu.Lock()
					stats := StreamMessage{
						Type:     "stats",
						Session:  sess.ID,
						Model:    sess.Model,
						Messages: sess.messages,
						BytesIn:  sess.bytesIn,
						BitsOut:  sess.bitsOut,
					}
					sess.mu.Unlock()
					_ = sess.writeJSON(h.config.WriteTimeout, stats)

				case "close":
					sess.mu.Lock()
					done := StreamMessage{
						Type:     "closed",
						Session:  sess.ID,
						Messages: sess.messages,
					}
					sess.mu.Unlock()
					_ = sess.writeJSON(h.config.WriteTimeout, done)
					return

				default:
					h.sendSessionError(sess, "unknown command: "+cmd.Type)
				}
			}
		}
	}
}

// startSession reads the start frame and registers a session for the
// connection. Binary frames before a start frame are a protocol error.
func (h *StreamHub) startSession(ctx context.Context, conn *websocket.Conn) (*StreamSession, error) {
	msgType, payload, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("failed to read start frame: %w", err)
	}
	if msgType != websocket.TextMessage {
		return nil, errors.New("expected a start frame before binary data")
	}
	var start StreamMessage
	if err := json.Unmarshal(payload, &start); err != nil {
		return nil, errors.New("invalid message format")
	}
	if start.Type != "start" {
		return nil, fmt.Errorf("expected start frame, got %q", start.Type)
	}

	model, codec, err := h.resolveCodec(ctx, start.Model)
	if err != nil {
		return nil, err
	}
	return h.addSession(model, codec, conn)
}

// encodeFrame packs one plaintext frame with the session codec and sends
// the summary and the packed bytes back on the connection.
func (h *StreamHub) encodeFrame(sess *StreamSession, plaintext []byte) error {
	start := time.Now()
	packed, bitLen, err := sess.codec.EncodePacked(plaintext)
	if h.metrics != nil {
		h.metrics.RecordEncode(len(plaintext), bitLen, time.Since(start), err)
	}
	if err != nil {
		return err
	}

	summary, err := json.Marshal(StreamMessage{
		Type:     "encoded",
		Session:  sess.ID,
		BitLen:   bitLen,
		Padding:  len(packed)*8 - bitLen,
		BytesIn:  uint64(len(plaintext)),
		BytesOut: uint64(len(packed)),
	})
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.messages++
	sess.bytesIn += uint64(len(plaintext))
	sess.bitsOut += uint64(bitLen)
	if h.config.WriteTimeout > 0 {
		_ = sess.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
	}
	if err := sess.conn.WriteMessage(websocket.TextMessage, summary); err != nil {
		return err
	}
	return sess.conn.WriteMessage(websocket.BinaryMessage, packed)
}

func (h *StreamHub) pingLoop(ctx context.Context, sess *StreamSession) {
	if h.config.PingInterval <= 0 {
		return
	}
	timeout := h.config.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sess.mu.Lock()
			err := sess.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(timeout))
			sess.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// sendError writes an error frame on a connection with no session yet.
func (h *StreamHub) sendError(conn *websocket.Conn, msg string) {
	payload, _ := json.Marshal(StreamMessage{
		Type:  "error",
		Error: msg,
	})
	_ = conn.WriteMessage(websocket.TextMessage, payload)
}

func (h *StreamHub) sendSessionError(sess *StreamSession, msg string) {
	_ = sess.writeJSON(h.config.WriteTimeout, StreamMessage{
		Type:    "error",
		Session: sess.ID,
		Error:   msg,
	})
}
