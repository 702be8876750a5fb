package models

import "time"

// Room is the synchronized view of a chat room.
type Room struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Participants int       `json:"participants"`
	Unread       int       `json:"unread"`
	LastMessage  string    `json:"last_message,omitempty"`
	LastActivity time.Time `json:"last_activity,omitempty"`
	Member       bool      `json:"member"`
}
