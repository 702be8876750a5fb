package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"clubsync/internal/store"
)

// PromptHandler tracks the long-lived "user already declined this prompt"
// flags, so declined install/notification prompts are not re-shown every
// session. Flags live in the durable store, unlike session state.
type PromptHandler struct {
	durable store.KV
}

// NewPromptHandler builds a PromptHandler.
func NewPromptHandler(durable store.KV) *PromptHandler {
	return &PromptHandler{durable: durable}
}

// GetPrompt reports whether a prompt kind was previously declined.
func (h *PromptHandler) GetPrompt(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"declined": promptDeclined(h.durable, c.Param("kind"))})
}

// DeclinePrompt records a permanent decline for a prompt kind.
func (h *PromptHandler) DeclinePrompt(c *gin.Context) {
	if err := h.durable.Set(promptKey(c.Param("kind")), []byte("1")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record decline"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func promptKey(kind string) string {
	return "prompt_declined:" + kind
}

func promptDeclined(kv store.KV, kind string) bool {
	if kv == nil {
		return false
	}
	_, err := kv.Get(promptKey(kind))
	return err == nil
}
