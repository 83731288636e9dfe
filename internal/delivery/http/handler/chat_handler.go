package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/duetapp/duet-sync/internal/domain"
	"github.com/duetapp/duet-sync/internal/usecase/chat"
	"github.com/duetapp/duet-sync/internal/usecase/stats"
)

type ChatHandler struct {
	engine     *chat.Engine
	aggregator *stats.Aggregator
}

func NewChatHandler(engine *chat.Engine, aggregator *stats.Aggregator) *ChatHandler {
	return &ChatHandler{
		engine:     engine,
		aggregator: aggregator,
	}
}

// OpenConversation handles POST /chats/open
func (h *ChatHandler) OpenConversation(c *gin.Context) {
	me, ok := currentProfile(c)
	if !ok {
		return
	}

	var req struct {
		PartnerID string `json:"partner_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	conv, err := h.engine.GetOrCreateConversation(c.Request.Context(), me.ID, req.PartnerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

type sendMessageRequest struct {
	Type        string              `json:"type" binding:"required"`
	Text        string              `json:"text"`
	ImageData   []byte              `json:"image_data"`
	ImageURL    string              `json:"image_url"`
	StickerURL  string              `json:"sticker_url"`
	PrivateDate *domain.PrivateDate `json:"private_date"`
}

// ListConversations handles GET /chats
func (h *ChatHandler) ListConversations(c *gin.Context) {
	me, ok := currentProfile(c)
	if !ok {
		return
	}
	chats, err := h.engine.ListConversations(c.Request.Context(), me)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chats)
}

// GetConversation handles GET /chats/:chat_id
func (h *ChatHandler) GetConversation(c *gin.Context) {
	me, ok := currentProfile(c)
	if !ok {
		return
	}
	conv, err := h.engine.GetConversation(c.Request.Context(), c.Param("chat_id"), me)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// SendMessage handles POST /chats/:chat_id/messages
func (h *ChatHandler) SendMessage(c *gin.Context) {
	me, ok := currentProfile(c)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	msg, err := h.engine.SendMessage(c.Request.Context(), &chat.SendMessageInput{
		ChatID:      c.Param("chat_id"),
		SenderID:    me.ID,
		Type:        domain.MessageType(req.Type),
		Text:        req.Text,
		ImageData:   req.ImageData,
		ImageURL:    req.ImageURL,
		StickerURL:  req.StickerURL,
		PrivateDate: req.PrivateDate,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// MarkRead handles POST /chats/:chat_id/read
func (h *ChatHandler) MarkRead(c *gin.Context) {
	me, ok := currentProfile(c)
	if !ok {
		return
	}
	if err := h.engine.MarkRead(c.Request.Context(), c.Param("chat_id"), me.ID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetTyping handles POST /chats/:chat_id/typing
func (h *ChatHandler) SetTyping(c *gin.Context) {
	me, ok := currentProfile(c)
	if !ok {
		return
	}
	if err := h.engine.SetTyping(c.Request.Context(), c.Param("chat_id"), me.ID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Translate handles POST /chats/:chat_id/messages/:message_id/translate
func (h *ChatHandler) Translate(c *gin.Context) {
	me, ok := currentProfile(c)
	if !ok {
		return
	}

	var req struct {
		Text       string `json:"text" binding:"required"`
		SourceLang string `json:"source_lang" binding:"required"`
		TargetLang string `json:"target_lang" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	translated, err := h.engine.RequestTranslation(
		c.Request.Context(),
		c.Param("chat_id"), c.Param("message_id"), me.ID,
		req.SourceLang, req.TargetLang, req.Text,
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"translated_text": translated})
}

// Icebreakers handles GET /chats/:chat_id/icebreakers
func (h *ChatHandler) Icebreakers(c *gin.Context) {
	me, ok := currentProfile(c)
	if !ok {
		return
	}
	suggestions, err := h.engine.SuggestIcebreakers(c.Request.Context(), c.Param("chat_id"), me.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"icebreakers": suggestions})
}

// Stats handles GET /chats/:chat_id/stats
func (h *ChatHandler) Stats(c *gin.Context) {
	me, ok := currentProfile(c)
	if !ok {
		return
	}
	chatID := c.Param("chat_id")
	if _, err := h.engine.GetConversation(c.Request.Context(), chatID, me); err != nil {
		respondError(c, err)
		return
	}
	s, err := h.aggregator.Get(c.Request.Context(), chatID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}
