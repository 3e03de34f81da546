package service

import (
	"encoding/json"
	"time"
)

// Client -> server events.
const (
	EventJoinRoom    = "join_room"
	EventChatMessage = "chat_message"
	EventLikeStream  = "like_stream"
	EventPinProduct  = "pin_product"
)

// Server -> client events.
const (
	EventViewerCount    = "viewer_count"
	EventNewMessage     = "new_message"
	EventFloatingHearts = "floating_hearts"
	EventPinnedProduct  = "pinned_product"
	EventStreamEnded    = "stream_ended"
)

const defaultSenderName = "Anonymous"

// Envelope frames every gateway message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// roomRequest is the union of fields carried by client events.
type roomRequest struct {
	SessionID   string  `json:"sessionId"`
	Message     string  `json:"message"`
	SenderName  *string `json:"senderName"`
	ProductID   string  `json:"productId"`
	ProductName *string `json:"productName"`
}

type ViewerCount struct {
	SessionID string `json:"sessionId"`
	Count     int64  `json:"count"`
}

type ChatMessage struct {
	SessionID  string `json:"sessionId"`
	Message    string `json:"message"`
	SenderName string `json:"senderName"`
	SenderID   string `json:"senderId"`
	Timestamp  string `json:"timestamp"`
}

type FloatingHearts struct {
	SessionID string `json:"sessionId"`
	From      string `json:"from"`
}

type PinnedProduct struct {
	SessionID   string `json:"sessionId"`
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Timestamp   string `json:"timestamp"`
}

type StreamEnded struct {
	SessionID string `json:"sessionId"`
}

// encodeEvent builds the wire form of an outbound event.
func encodeEvent(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

func timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
