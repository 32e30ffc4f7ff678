package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"furniplan/internal/models"
	"furniplan/internal/services"
)

type ChatHandler struct {
	chats      *services.ChatService
	dispatcher *services.Dispatcher
}

func NewChatHandler(chats *services.ChatService, dispatcher *services.Dispatcher) *ChatHandler {
	return &ChatHandler{chats: chats, dispatcher: dispatcher}
}

type sendMessageRequest struct {
	Content       string                   `json:"content"`
	Type          models.MessageType       `json:"type"`
	Source        models.MessageSource     `json:"source"`
	IsAIGenerated bool                     `json:"isAIGenerated"`
	Attachments   []models.AttachmentInput `json:"attachments"`
	AISuggestions []string                 `json:"aiSuggestions"`
}

// messageResponse is the stored message, plus a warning when it could not
// be relayed to WhatsApp.
type messageResponse struct {
	*models.Message
	Warning string `json:"warning,omitempty"`
}

type patchMessagesRequest struct {
	MessageID    *int64 `json:"messageId"`
	SuggestionID *int64 `json:"suggestionId"`
}

// @Summary      Список чатов
// @Description  Чаты, в которых участвует текущий пользователь: сначала активные, затем по последней активности
// @Tags         Chat
// @Produce      json
// @Param        type    query  string  false  "direct | group | whatsapp"
// @Param        status  query  string  false  "active | archived"
// @Param        leadId  query  int     false  "ID лида"
// @Success      200  {array}   models.Chat
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Security     BearerAuth
// @Router       /api/chat [get]
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID, _ := getUserAndRole(c)

	var f models.ChatFilter
	if v := c.Query("type"); v != "" {
		t := models.ChatType(v)
		f.Type = &t
	}
	if v := c.Query("status"); v != "" {
		s := models.ChatStatus(v)
		f.Status = &s
	}
	if v := c.Query("leadId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid leadId"})
			return
		}
		f.LeadID = &id
	}

	chats, err := h.chats.ListChats(c.Request.Context(), userID, f)
	if err != nil {
		respondError(c, "chat][list", err)
		return
	}
	c.JSON(http.StatusOK, chats)
}

// @Summary      Создать чат
// @Tags         Chat
// @Accept       json
// @Produce      json
// @Param        chat  body      models.CreateChatInput  true  "Чат"
// @Success      201   {object}  models.Chat
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Security     BearerAuth
// @Router       /api/chat [post]
func (h *ChatHandler) CreateChat(c *gin.Context) {
	userID, _ := getUserAndRole(c)
	var in models.CreateChatInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	chat, err := h.chats.CreateChat(c.Request.Context(), userID, in)
	if err != nil {
		respondError(c, "chat][create", err)
		return
	}
	c.JSON(http.StatusCreated, chat)
}

func (h *ChatHandler) GetChat(c *gin.Context) {
	userID, _ := getUserAndRole(c)
	chatID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	chat, err := h.chats.GetChat(c.Request.Context(), chatID, userID)
	if err != nil {
		respondError(c, "chat][get", err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (h *ChatHandler) UpdateChat(c *gin.Context) {
	userID, _ := getUserAndRole(c)
	chatID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var in models.UpdateChatInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	chat, err := h.chats.UpdateChat(c.Request.Context(), chatID, userID, in)
	if err != nil {
		respondError(c, "chat][update", err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

// ArchiveChat backs DELETE; chats are archived, never removed.
func (h *ChatHandler) ArchiveChat(c *gin.Context) {
	userID, _ := getUserAndRole(c)
	chatID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.chats.ArchiveChat(c.Request.Context(), chatID, userID); err != nil {
		respondError(c, "chat][archive", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(models.ChatStatusArchived)})
}

// @Summary      Сообщения чата
// @Description  Возвращает страницу сообщений по возрастанию времени и отмечает чужие сообщения прочитанными
// @Tags         Chat
// @Produce      json
// @Param        id      path   int     true   "ID чата"
// @Param        limit   query  int     false  "по умолчанию 50, максимум 200"
// @Param        before  query  string  false  "RFC3339"
// @Param        after   query  string  false  "RFC3339"
// @Success      200  {array}   models.Message
// @Failure      404  {object}  map[string]string
// @Security     BearerAuth
// @Router       /api/chat/{id}/messages [get]
func (h *ChatHandler) ListMessages(c *gin.Context) {
	userID, _ := getUserAndRole(c)
	chatID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var q models.MessageQuery
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		q.Limit = n
	}
	var err error
	if q.Before, err = parseTimeQuery(c, "before"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if q.After, err = parseTimeQuery(c, "after"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msgs, err := h.chats.ListMessages(c.Request.Context(), chatID, userID, q)
	if err != nil {
		respondError(c, "chat][messages", err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// @Summary      Отправить сообщение
// @Description  Сохраняет сообщение; для WhatsApp-чатов пересылает его клиенту. Ошибка пересылки возвращается в поле warning
// @Tags         Chat
// @Accept       json
// @Produce      json
// @Param        id       path      int                 true  "ID чата"
// @Param        message  body      sendMessageRequest  true  "Сообщение"
// @Success      201  {object}  messageResponse
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Security     BearerAuth
// @Router       /api/chat/{id}/messages [post]
func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID, _ := getUserAndRole(c)
	chatID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.dispatcher.Send(c.Request.Context(), services.SendInput{
		ChatID:        chatID,
		SenderID:      userID,
		Content:       req.Content,
		Type:          req.Type,
		Source:        req.Source,
		IsAIGenerated: req.IsAIGenerated,
		Attachments:   req.Attachments,
		AISuggestions: req.AISuggestions,
	})
	if err != nil {
		respondError(c, "chat][send", err)
		return
	}
	c.JSON(http.StatusCreated, messageResponse{Message: res.Message, Warning: res.Warning})
}

// PatchMessages marks one message read ({messageId}) or a suggestion used ({suggestionId}).
func (h *ChatHandler) PatchMessages(c *gin.Context) {
	userID, _ := getUserAndRole(c)
	chatID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req patchMessagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch {
	case req.MessageID != nil && req.SuggestionID == nil:
		msg, err := h.chats.MarkMessageRead(c.Request.Context(), chatID, *req.MessageID, userID)
		if err != nil {
			respondError(c, "chat][read", err)
			return
		}
		c.JSON(http.StatusOK, msg)
	case req.SuggestionID != nil && req.MessageID == nil:
		sug, err := h.chats.MarkSuggestionUsed(c.Request.Context(), chatID, *req.SuggestionID, userID)
		if err != nil {
			respondError(c, "chat][suggestion", err)
			return
		}
		c.JSON(http.StatusOK, sug)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "exactly one of messageId or suggestionId is required"})
	}
}

// Transcript renders the chat as a PDF attachment.
func (h *ChatHandler) Transcript(c *gin.Context) {
	userID, _ := getUserAndRole(c)
	chatID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := h.chats.ExportTranscript(c.Request.Context(), chatID, userID, &buf); err != nil {
		respondError(c, "chat][transcript", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="chat-%d.pdf"`, chatID))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

func parseTimeQuery(c *gin.Context, key string) (*time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: expected RFC3339 timestamp", key)
	}
	return &t, nil
}
