package models

import "encoding/json"

// ConnState is the channel connection state.
type ConnState string

const (
	ConnDisconnected ConnState = "disconnected"
	ConnConnecting   ConnState = "connecting"
	ConnConnected    ConnState = "connected"
	ConnReconnecting ConnState = "reconnecting"
)

// Channel event types pushed by the club server.
const (
	EventMessageCreated = "message.created"
	EventTypingChanged  = "typing.changed"
	EventPresence       = "presence.changed"
	EventCreated        = "notification.event_created"
)

// Frame types sent by the client.
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FrameTyping      = "typing"
)

// ChannelEvent is the discriminated envelope for server push events. Payload
// is decoded according to Type by the consumer.
type ChannelEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Decode unmarshals the payload into the type matching the event's Type tag.
func (e ChannelEvent) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// ClientFrame is the envelope for frames written to the channel.
type ClientFrame struct {
	Type    string `json:"type"`
	Topic   string `json:"topic,omitempty"`
	RoomID  string `json:"room_id,omitempty"`
	IsTyped bool   `json:"is_typing,omitempty"`
}

// MessageCreatedPayload accompanies EventMessageCreated.
type MessageCreatedPayload struct {
	RoomID  string  `json:"room_id"`
	Message Message `json:"message"`
}

// TypingChangedPayload accompanies EventTypingChanged.
type TypingChangedPayload struct {
	RoomID   string `json:"room_id"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	IsTyping bool   `json:"is_typing"`
}

// PresenceChangedPayload accompanies EventPresence.
type PresenceChangedPayload struct {
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
}

// EventCreatedPayload accompanies EventCreated.
type EventCreatedPayload struct {
	Event PollEvent `json:"event"`
}
