package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"clubsync/internal/presence"
	"clubsync/internal/rooms"
)

// RoomHandler exposes synchronized room state to UI consumers.
type RoomHandler struct {
	sync    *rooms.Synchronizer
	tracker *presence.Tracker
}

// NewRoomHandler builds a RoomHandler.
func NewRoomHandler(sync *rooms.Synchronizer, tracker *presence.Tracker) *RoomHandler {
	return &RoomHandler{sync: sync, tracker: tracker}
}

// ListRooms returns the synchronized room list.
func (h *RoomHandler) ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.sync.Rooms(), "active": h.sync.ActiveRoom()})
}

// SetActive switches the active room and loads its window.
func (h *RoomHandler) SetActive(c *gin.Context) {
	roomID := c.Param("room_id")
	if err := h.sync.SetActiveRoom(c.Request.Context(), roomID); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to activate room"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": roomID})
}

// ClearActive deactivates the current room.
func (h *RoomHandler) ClearActive(c *gin.Context) {
	if err := h.sync.SetActiveRoom(c.Request.Context(), ""); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to deactivate room"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": ""})
}

// GetMessages returns the active room's message window.
func (h *RoomHandler) GetMessages(c *gin.Context) {
	roomID := c.Param("room_id")
	if roomID != h.sync.ActiveRoom() {
		c.JSON(http.StatusConflict, gin.H{"error": "room is not active"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": h.sync.Messages()})
}

// LoadOlder pages the active room's window backwards.
func (h *RoomHandler) LoadOlder(c *gin.Context) {
	roomID := c.Param("room_id")
	if roomID != h.sync.ActiveRoom() {
		c.JSON(http.StatusConflict, gin.H{"error": "room is not active"})
		return
	}
	if err := h.sync.LoadOlder(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load older messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": h.sync.Messages()})
}

// PostMessage sends a message. A rejected send returns the original content
// so the UI can offer retry.
func (h *RoomHandler) PostMessage(c *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.sync.Send(c.Request.Context(), c.Param("room_id"), req.Content)
	if err != nil {
		var sendErr *rooms.SendError
		if errors.As(err, &sendErr) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "send rejected", "content": sendErr.Content})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "send failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// MarkRead resets a room's unread counter.
func (h *RoomHandler) MarkRead(c *gin.Context) {
	if err := h.sync.MarkRead(c.Request.Context(), c.Param("room_id")); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to mark read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetTyping returns who is typing in a room plus the rendered display text.
func (h *RoomHandler) GetTyping(c *gin.Context) {
	roomID := c.Param("room_id")
	c.JSON(http.StatusOK, gin.H{
		"users": h.tracker.Typing(roomID),
		"text":  h.tracker.TypingText(roomID),
	})
}

// PostTyping reports local typing activity.
func (h *RoomHandler) PostTyping(c *gin.Context) {
	var req struct {
		IsTyping *bool `json:"is_typing" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	roomID := c.Param("room_id")
	var err error
	if *req.IsTyping {
		err = h.tracker.StartTyping(roomID)
	} else {
		err = h.tracker.StopTyping(roomID)
	}
	if err != nil {
		// Typing is best effort; a disconnected channel is not a client error.
		c.JSON(http.StatusOK, gin.H{"status": "skipped"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
