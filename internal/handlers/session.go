package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"clubsync/internal/session"
)

// SessionHandler receives the current-user identity from the external auth
// layer. The sync core never authenticates users itself.
type SessionHandler struct {
	sess *session.Session
}

// NewSessionHandler builds a SessionHandler.
func NewSessionHandler(sess *session.Session) *SessionHandler {
	return &SessionHandler{sess: sess}
}

// PutSession installs the logged-in identity.
func (h *SessionHandler) PutSession(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
		Name   string `json:"name"`
		Token  string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.sess.Login(session.User{ID: req.UserID, Name: req.Name, Token: req.Token})
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// DeleteSession signals logout.
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	h.sess.Logout()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetSession reports the current auth state.
func (h *SessionHandler) GetSession(c *gin.Context) {
	user, ok := h.sess.Current()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"logged_in": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logged_in": true, "user_id": user.ID, "name": user.Name})
}
