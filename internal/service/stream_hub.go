package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/vybekart-ssh/Vybekart-Backend/internal/presence"
	"go.uber.org/zap"
)

// Peer is the gateway's record of one connection. The hub owns it and indexes it by ID;
// the joined session is tracked here rather than on the transport.
type Peer struct {
	ID     string
	UserID string // caller identity from upstream auth, empty for anonymous viewers
	Send   chan []byte

	sessionID string // guarded by StreamHub.mu
}

// Relay fans room broadcasts out across gateway instances. Published payloads must come
// back through StreamHub.DeliverLocal on every instance, this one included.
type Relay interface {
	Publish(ctx context.Context, sessionID string, payload []byte) error
}

// StreamHubForHandler: интерфейс для WebSocket handler (D: зависимость от абстракции).
type StreamHubForHandler interface {
	Register(userID string) *Peer
	Unregister(p *Peer)
	HandleMessage(p *Peer, data []byte)
	Upgrader() *websocket.Upgrader
	MaxMessageSize() int64
}

// presenceLeaveTimeout bounds a presence removal once the app context is gone.
const presenceLeaveTimeout = 5 * time.Second

// HubOptions configures the WebSocket side of the hub.
type HubOptions struct {
	ReadBufferSize  int
	WriteBufferSize int
	MaxMessageSize  int64
	AllowedOrigins  []string
}

// StreamHub binds connections into per-session rooms, relays chat, reaction and pin events,
// and keeps the presence count in step with joins and disconnects.
type StreamHub struct {
	mu    sync.RWMutex
	peers map[string]*Peer              // connection id -> peer
	rooms map[string]map[*Peer]struct{} // sessionID -> members on this instance

	presence   *presence.Tracker
	relay      Relay         // optional: cross-instance fan-out
	pins       PinAuthorizer // never nil
	upgrader   websocket.Upgrader
	maxMsgSize int64
	log        *zap.Logger
	ctx        context.Context // app context for presence and relay calls
	now        func() time.Time
}

// NewStreamHub creates a new stream hub.
func NewStreamHub(tracker *presence.Tracker, opts HubOptions, log *zap.Logger) *StreamHub {
	if opts.ReadBufferSize <= 0 {
		opts.ReadBufferSize = 1024 * 4
	}
	if opts.WriteBufferSize <= 0 {
		opts.WriteBufferSize = 1024 * 4
	}
	return &StreamHub{
		peers:      make(map[string]*Peer),
		rooms:      make(map[string]map[*Peer]struct{}),
		presence:   tracker,
		pins:       AllowAllPins{},
		maxMsgSize: opts.MaxMessageSize,
		log:        log,
		ctx:        context.Background(),
		now:        time.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  opts.ReadBufferSize,
			WriteBufferSize: opts.WriteBufferSize,
			CheckOrigin:     checkOrigin(opts.AllowedOrigins),
		},
	}
}

// checkOrigin allows every origin when the list is empty, as the gateway did before origins were configurable.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// SetRelay sets the optional cross-instance relay.
func (h *StreamHub) SetRelay(r Relay) { h.relay = r }

// SetPinAuthorizer replaces the pin policy; nil restores allow-all.
func (h *StreamHub) SetPinAuthorizer(a PinAuthorizer) {
	if a == nil {
		a = AllowAllPins{}
	}
	h.pins = a
}

// SetContext sets the app context for presence and relay calls (for shutdown propagation).
func (h *StreamHub) SetContext(ctx context.Context) { h.ctx = ctx }

// Upgrader returns the WebSocket upgrader for HTTP handlers.
func (h *StreamHub) Upgrader() *websocket.Upgrader { return &h.upgrader }

// MaxMessageSize is the read limit handlers apply to each connection.
func (h *StreamHub) MaxMessageSize() int64 { return h.maxMsgSize }

// Register creates the record for a new connection.
func (h *StreamHub) Register(userID string) *Peer {
	p := &Peer{
		ID:     ulid.Make().String(),
		UserID: userID,
		Send:   make(chan []byte, 256),
	}
	h.mu.Lock()
	h.peers[p.ID] = p
	h.mu.Unlock()
	h.log.Debug("peer registered", zap.String("conn_id", p.ID), zap.String("user_id", userID))
	return p
}

// Unregister is the disconnect path: the peer leaves its room, presence is decremented
// and the remaining members get the new count. Send is closed.
func (h *StreamHub) Unregister(p *Peer) {
	h.mu.Lock()
	if _, ok := h.peers[p.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.peers, p.ID)
	sessionID := p.sessionID
	h.removeFromRoomLocked(p)
	close(p.Send)
	h.mu.Unlock()

	h.log.Debug("peer unregistered", zap.String("conn_id", p.ID), zap.String("session_id", sessionID))
	if sessionID != "" {
		h.leavePresence(sessionID, p.ID)
	}
}

func (h *StreamHub) removeFromRoomLocked(p *Peer) {
	if p.sessionID == "" {
		return
	}
	if m, ok := h.rooms[p.sessionID]; ok {
		delete(m, p)
		if len(m) == 0 {
			delete(h.rooms, p.sessionID)
		}
	}
	p.sessionID = ""
}

// HandleMessage dispatches one client event. Malformed or incomplete events are dropped
// and logged; nothing is sent back to the connection.
func (h *StreamHub) HandleMessage(p *Peer, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		h.log.Debug("dropping malformed event", zap.String("conn_id", p.ID), zap.Error(err))
		return
	}
	var req roomRequest
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &req); err != nil {
			h.log.Debug("dropping malformed payload",
				zap.String("conn_id", p.ID), zap.String("event", env.Event), zap.Error(err))
			return
		}
	}
	if req.SessionID == "" {
		h.log.Debug("dropping event without sessionId", zap.String("conn_id", p.ID), zap.String("event", env.Event))
		return
	}
	switch env.Event {
	case EventJoinRoom:
		h.join(p, req.SessionID)
	case EventChatMessage:
		h.chat(p, req)
	case EventLikeStream:
		h.broadcast(req.SessionID, EventFloatingHearts, FloatingHearts{SessionID: req.SessionID, From: p.ID})
	case EventPinProduct:
		h.pin(p, req)
	default:
		h.log.Debug("dropping unknown event", zap.String("conn_id", p.ID), zap.String("event", env.Event))
	}
}

// join binds p to the session's room. A peer bound to another session leaves it first.
func (h *StreamHub) join(p *Peer, sessionID string) {
	h.mu.Lock()
	if _, ok := h.peers[p.ID]; !ok {
		h.mu.Unlock()
		return
	}
	previous := p.sessionID
	if previous != sessionID {
		h.removeFromRoomLocked(p)
		if h.rooms[sessionID] == nil {
			h.rooms[sessionID] = make(map[*Peer]struct{})
		}
		h.rooms[sessionID][p] = struct{}{}
		p.sessionID = sessionID
	}
	h.mu.Unlock()

	if previous != "" && previous != sessionID {
		h.leavePresence(previous, p.ID)
	}
	count, err := h.presence.Join(h.ctx, sessionID, p.ID)
	if err != nil {
		h.log.Warn("presence join failed", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	h.log.Info("peer joined room",
		zap.String("session_id", sessionID),
		zap.String("conn_id", p.ID),
		zap.Int64("viewers", count))
	h.broadcast(sessionID, EventViewerCount, ViewerCount{SessionID: sessionID, Count: count})
}

// leavePresence must reach the shared store even during shutdown, or the entry outlives the connection.
func (h *StreamHub) leavePresence(sessionID, connID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(h.ctx), presenceLeaveTimeout)
	defer cancel()
	count, err := h.presence.Leave(ctx, sessionID, connID)
	if err != nil {
		h.log.Warn("presence leave failed", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	h.broadcast(sessionID, EventViewerCount, ViewerCount{SessionID: sessionID, Count: count})
}

func (h *StreamHub) chat(p *Peer, req roomRequest) {
	if req.Message == "" {
		h.log.Debug("dropping empty chat message", zap.String("conn_id", p.ID))
		return
	}
	name := defaultSenderName
	if req.SenderName != nil {
		name = *req.SenderName
	}
	h.broadcast(req.SessionID, EventNewMessage, ChatMessage{
		SessionID:  req.SessionID,
		Message:    req.Message,
		SenderName: name,
		SenderID:   p.ID,
		Timestamp:  timestamp(h.now()),
	})
}

func (h *StreamHub) pin(p *Peer, req roomRequest) {
	if req.ProductID == "" {
		h.log.Debug("dropping pin without productId", zap.String("conn_id", p.ID))
		return
	}
	if !h.pins.CanPin(h.ctx, p, req.SessionID) {
		h.log.Info("pin rejected",
			zap.String("session_id", req.SessionID),
			zap.String("conn_id", p.ID),
			zap.String("user_id", p.UserID))
		return
	}
	var name string
	if req.ProductName != nil {
		name = *req.ProductName
	}
	h.broadcast(req.SessionID, EventPinnedProduct, PinnedProduct{
		SessionID:   req.SessionID,
		ProductID:   req.ProductID,
		ProductName: name,
		Timestamp:   timestamp(h.now()),
	})
}

// EndSession tells the room the session is over. Connections stay open; each
// disconnect still goes through Unregister.
func (h *StreamHub) EndSession(sessionID string) {
	h.broadcast(sessionID, EventStreamEnded, StreamEnded{SessionID: sessionID})
	h.log.Info("session ended", zap.String("session_id", sessionID))
}

// broadcast sends an event to every member of the room, through the relay when one is set.
func (h *StreamHub) broadcast(sessionID, event string, data interface{}) {
	raw, err := encodeEvent(event, data)
	if err != nil {
		h.log.Error("encode event", zap.String("event", event), zap.Error(err))
		return
	}
	if h.relay != nil {
		err := h.relay.Publish(h.ctx, sessionID, raw)
		if err == nil {
			return
		}
		h.log.Warn("relay publish failed, delivering locally", zap.String("session_id", sessionID), zap.Error(err))
	}
	h.DeliverLocal(sessionID, raw)
}

// DeliverLocal writes an encoded event to this instance's members of the room.
// A member whose send buffer is full misses the event.
func (h *StreamHub) DeliverLocal(sessionID string, raw []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for p := range h.rooms[sessionID] {
		select {
		case p.Send <- raw:
		default:
			h.log.Debug("peer send buffer full", zap.String("conn_id", p.ID), zap.String("session_id", sessionID))
		}
	}
}

// Close unregisters every peer on this instance. Their writers send a close frame and
// drop the connection; presence entries are removed as on a normal disconnect.
func (h *StreamHub) Close() {
	h.mu.RLock()
	peers := make([]*Peer, 0, len(h.peers))
	for _, p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.RUnlock()
	for _, p := range peers {
		h.Unregister(p)
	}
	h.log.Info("gateway closed", zap.Int("peers", len(peers)))
}

// SessionOf returns the session the peer has joined, if any.
func (h *StreamHub) SessionOf(p *Peer) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return p.sessionID
}

// PeerCount returns number of local peers in a session (for debugging).
func (h *StreamHub) PeerCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}
