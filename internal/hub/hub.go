package hub

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ahmadnazif/AiChatBackendDemo/internal/models"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Inbound envelope types.
const (
	TypeReceiveSingle  = "ReceiveSingle"
	TypeReceiveChained = "ReceiveChained"
	TypeStreamChat     = "StreamChat"
	TypeStreamFileChat = "StreamFileChat"
	TypeStopStream     = "StopStream"
)

// Outbound envelope types.
const (
	TypeOnReceivedSingle  = "OnReceivedSingle"
	TypeOnReceivedChained = "OnReceivedChained"
	TypeOnStreamChunk     = "OnStreamChunk"
	TypeOnStreamEnd       = "OnStreamEnd"
	TypeOnError           = "OnError"
)

const (
	sendQueueSize = 64
	writeTimeout  = 5 * time.Second
	maxFrameBytes = 32 << 20 // file chat payloads arrive inline
)

// Envelope is the wire frame in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type streamEndPayload struct {
	StreamingID string `json:"streamingId"`
}

type stopStreamPayload struct {
	StreamingID string `json:"streamingId"`
}

// NewConnectionID returns a fresh transport connection id.
func NewConnectionID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// Hub owns the websocket endpoint: it upgrades connections, registers them in
// the session registry and routes inbound envelopes to the dispatcher. Each
// connection gets a writer goroutine draining a bounded send queue; every
// inbound request runs as its own goroutine so a slow generation never blocks
// the read loop.
type Hub struct {
	registry   *Registry
	dispatcher *Dispatcher

	mu    sync.RWMutex
	conns map[string]*connection
}

func NewHub(registry *Registry) *Hub {
	return &Hub{
		registry: registry,
		conns:    make(map[string]*connection),
	}
}

// SetDispatcher wires the request dispatcher. Must be called before serving;
// split from the constructor because hub and dispatcher reference each other.
func (h *Hub) SetDispatcher(d *Dispatcher) {
	h.dispatcher = d
}

type connection struct {
	id       string
	username string
	conn     *websocket.Conn
	send     chan []byte
	ctx      context.Context
	cancel   context.CancelFunc

	streamMu sync.Mutex
	streams  map[string]context.CancelFunc
}

func (c *connection) trackStream(streamingID string, cancel context.CancelFunc) {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()
	c.streams[streamingID] = cancel
}

func (c *connection) untrackStream(streamingID string) {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()
	delete(c.streams, streamingID)
}

// cancelStream stops one active generation, or all of them when the id is
// empty.
func (c *connection) cancelStream(streamingID string) {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()
	if streamingID == "" {
		for id, cancel := range c.streams {
			cancel()
			delete(c.streams, id)
		}
		return
	}
	if cancel, ok := c.streams[streamingID]; ok {
		cancel()
		delete(c.streams, streamingID)
	}
}

// ServeHTTP handles GET /ws/chat-hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.URL.Query().Get("username"))
	if username == "" {
		http.Error(w, "username query parameter is required", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Printf("websocket accept failed: %v", err)
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	connectionID := NewConnectionID()
	if res := h.registry.Add(connectionID, username, false); !res.IsSuccess {
		log.Printf("connection rejected for %s: %s", username, res.Message)
		conn.Close(websocket.StatusPolicyViolation, res.Message)
		return
	}
	log.Printf("%s connected as %s", username, connectionID)

	ctx, cancel := context.WithCancel(context.Background())
	c := &connection{
		id:       connectionID,
		username: username,
		conn:     conn,
		send:     make(chan []byte, sendQueueSize),
		ctx:      ctx,
		cancel:   cancel,
		streams:  make(map[string]context.CancelFunc),
	}

	h.mu.Lock()
	h.conns[connectionID] = c
	h.mu.Unlock()

	var closeOnce sync.Once
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			c.cancelStream("")
			h.mu.Lock()
			delete(h.conns, connectionID)
			h.mu.Unlock()
			h.registry.Remove(connectionID, models.KeyConnectionID)
			cancel()
			conn.Close(code, reason)
			log.Printf("%s disconnected (%s): %s", username, connectionID, reason)
		})
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case data := <-c.send:
				wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
				err := conn.Write(wctx, websocket.MessageText, data)
				wcancel()
				if err != nil {
					log.Printf("write to %s failed: %v", connectionID, err)
					shutdown(websocket.StatusAbnormalClosure, "write failed")
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				shutdown(websocket.StatusNormalClosure, "peer closed")
			} else {
				shutdown(websocket.StatusAbnormalClosure, err.Error())
			}
			break
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.SendError(connectionID, "invalid envelope")
			continue
		}
		h.dispatch(c, env)
	}

	<-writerDone
}

// dispatch runs one inbound envelope. Streaming requests register their
// cancel func so StopStream and disconnect can abort them.
func (h *Hub) dispatch(c *connection, env Envelope) {
	switch env.Type {
	case TypeReceiveSingle:
		var req models.SingleChatRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			h.SendError(c.id, "invalid ReceiveSingle payload")
			return
		}
		go h.dispatcher.HandleSingle(c.ctx, c.id, &req)

	case TypeReceiveChained:
		var req models.ChainedChatRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			h.SendError(c.id, "invalid ReceiveChained payload")
			return
		}
		go h.dispatcher.HandleChained(c.ctx, c.id, &req)

	case TypeStreamChat:
		var req models.ChainedChatRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			h.SendError(c.id, "invalid StreamChat payload")
			return
		}
		h.runStream(c, func(ctx context.Context, started func(string)) {
			h.dispatcher.HandleStream(ctx, c.id, &req, started)
		})

	case TypeStreamFileChat:
		var req models.FileChatRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			h.SendError(c.id, "invalid StreamFileChat payload")
			return
		}
		h.runStream(c, func(ctx context.Context, started func(string)) {
			h.dispatcher.HandleFileStream(ctx, c.id, &req, started)
		})

	case TypeStopStream:
		var p stopStreamPayload
		if len(env.Payload) > 0 {
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				h.SendError(c.id, "invalid StopStream payload")
				return
			}
		}
		c.cancelStream(p.StreamingID)

	default:
		h.SendError(c.id, "unsupported envelope type: "+env.Type)
	}
}

func (h *Hub) runStream(c *connection, run func(ctx context.Context, started func(string))) {
	ctx, cancel := context.WithCancel(c.ctx)
	go func() {
		defer cancel()
		var streamingID string
		run(ctx, func(id string) {
			streamingID = id
			c.trackStream(id, cancel)
		})
		if streamingID != "" {
			c.untrackStream(streamingID)
		}
	}()
}

func (h *Hub) get(connectionID string) *connection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conns[connectionID]
}

// push enqueues one outbound envelope to the connection. A gone connection or
// a full queue drops the event with a log line, never blocking the caller.
func (h *Hub) push(connectionID, typ string, payload any) {
	c := h.get(connectionID)
	if c == nil {
		log.Printf("%s dropped: connection %s gone", typ, connectionID)
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("%s dropped: marshal failed: %v", typ, err)
		return
	}
	data, err := json.Marshal(Envelope{Type: typ, Payload: body})
	if err != nil {
		log.Printf("%s dropped: marshal failed: %v", typ, err)
		return
	}

	select {
	case c.send <- data:
	case <-c.ctx.Done():
	default:
		log.Printf("%s dropped: send queue full for %s", typ, connectionID)
	}
}

// Sink implementation.

func (h *Hub) SendSingle(connectionID string, resp *models.SingleChatResponse) {
	h.push(connectionID, TypeOnReceivedSingle, resp)
}

func (h *Hub) SendChained(connectionID string, resp *models.ChainedChatResponse) {
	h.push(connectionID, TypeOnReceivedChained, resp)
}

func (h *Hub) SendStreamChunk(connectionID string, chunk *models.StreamingChatResponse) {
	h.push(connectionID, TypeOnStreamChunk, chunk)
}

func (h *Hub) SendStreamEnd(connectionID string, streamingID string) {
	h.push(connectionID, TypeOnStreamEnd, streamEndPayload{StreamingID: streamingID})
}

func (h *Hub) SendError(connectionID string, message string) {
	h.push(connectionID, TypeOnError, errorPayload{Message: message})
}
