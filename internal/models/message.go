package models

import "time"

// MessageType distinguishes plain chat text from server-generated entries.
type MessageType string

const (
	MessageText         MessageType = "text"
	MessageSystem       MessageType = "system"
	MessageAnnouncement MessageType = "announcement"
)

// Delivery is the client-side delivery state of a message.
type Delivery string

const (
	// DeliveryOptimistic marks a locally appended message that the server has
	// not confirmed yet.
	DeliveryOptimistic Delivery = "optimistic"
	DeliveryConfirmed  Delivery = "confirmed"
	DeliveryFailed     Delivery = "failed"
)

// Message is one entry in a room's message window.
//
// ClientID is the client-generated correlation id attached to outgoing sends
// and echoed back by the server; it is how a confirmation finds its specific
// optimistic entry. ID is assigned by the server and is empty until then.
type Message struct {
	ID         string      `json:"id,omitempty"`
	ClientID   string      `json:"client_id,omitempty"`
	RoomID     string      `json:"room_id"`
	SenderID   string      `json:"sender_id"`
	SenderName string      `json:"sender_name,omitempty"`
	Content    string      `json:"content"`
	Type       MessageType `json:"type"`
	Delivery   Delivery    `json:"delivery"`
	CreatedAt  time.Time   `json:"created_at"`
}
