package realtime

import (
	"encoding/json"
	"log"
	"sync"

	"furniplan/internal/models"
)

const (
	EventMessageCreated = "message.created"
	EventMessagesRead   = "messages.read"
)

// Event is what subscribers of a chat room receive.
type Event struct {
	Type       string          `json:"type"`
	ChatID     int64           `json:"chatId"`
	Message    *models.Message `json:"message,omitempty"`
	MessageIDs []int64         `json:"messageIds,omitempty"`
	ReaderID   int64           `json:"readerId,omitempty"`
}

// ChatHub fans chat events out to the websocket clients of each chat.
type ChatHub struct {
	mu    sync.RWMutex
	chats map[int64]map[*Client]struct{}
}

func NewChatHub() *ChatHub {
	return &ChatHub{
		chats: make(map[int64]map[*Client]struct{}),
	}
}

func (h *ChatHub) Register(chatID int64, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.chats[chatID] == nil {
		h.chats[chatID] = make(map[*Client]struct{})
	}
	h.chats[chatID][c] = struct{}{}
}

func (h *ChatHub) Unregister(chatID int64, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.chats[chatID]; ok {
		if _, ok := conns[c]; ok {
			delete(conns, c)
			c.closeSend()
		}
		if len(conns) == 0 {
			delete(h.chats, chatID)
		}
	}
}

// Clients returns the number of subscribers of a chat.
func (h *ChatHub) Clients(chatID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.chats[chatID])
}

func (h *ChatHub) BroadcastMessage(msg *models.Message) {
	if msg == nil {
		return
	}
	h.broadcast(msg.ChatID, Event{Type: EventMessageCreated, ChatID: msg.ChatID, Message: msg})
}

func (h *ChatHub) BroadcastRead(chatID, readerID int64, messageIDs []int64) {
	if len(messageIDs) == 0 {
		return
	}
	h.broadcast(chatID, Event{Type: EventMessagesRead, ChatID: chatID, MessageIDs: messageIDs, ReaderID: readerID})
}

// broadcast never blocks on a client: a full send buffer drops that client.
func (h *ChatHub) broadcast(chatID int64, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[ws] marshal event chat=%d: %v", chatID, err)
		return
	}

	h.mu.RLock()
	var slow []*Client
	for c := range h.chats[chatID] {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Printf("[ws] dropping slow client chat=%d user=%d", chatID, c.userID)
		h.Unregister(chatID, c)
	}
}
