package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/vybekart-ssh/Vybekart-Backend/internal/service"
	"go.uber.org/zap"
)

// StreamWSHandler handles gateway WebSocket connections on /ws/streams.
type StreamWSHandler struct {
	hub    service.StreamHubForHandler
	logger *zap.Logger
}

// NewStreamWSHandler creates the WebSocket gateway handler.
func NewStreamWSHandler(hub service.StreamHubForHandler, logger *zap.Logger) *StreamWSHandler {
	return &StreamWSHandler{hub: hub, logger: logger}
}

// ServeWS upgrades the request to WebSocket and runs the event loop.
// Rooms are joined with a join_room event; the caller identity, if any, comes from the upgrade request.
func (h *StreamWSHandler) ServeWS(c *gin.Context) {
	conn, err := h.hub.Upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	if n := h.hub.MaxMessageSize(); n > 0 {
		conn.SetReadLimit(n)
	}

	peer := h.hub.Register(CallerID(c))
	defer h.hub.Unregister(peer)

	// Writer goroutine: send from peer.Send to connection
	go h.writePump(conn, peer)

	h.readPump(conn, peer)
}

func (h *StreamWSHandler) readPump(conn *websocket.Conn, p *service.Peer) {
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("read error", zap.String("conn_id", p.ID), zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage {
			h.logger.Debug("dropping non-text frame", zap.String("conn_id", p.ID))
			continue
		}
		h.hub.HandleMessage(p, data)
	}
}

// writePump is the only writer on conn. It ends when the hub closes p.Send.
func (h *StreamWSHandler) writePump(conn *websocket.Conn, p *service.Peer) {
	defer func() {
		_ = conn.Close()
	}()
	for data := range p.Send {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			// Closing unblocks readPump, which unregisters the peer and closes p.Send.
			_ = conn.Close()
			for range p.Send {
			}
			return
		}
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
