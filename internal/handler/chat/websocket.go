package chat

import (
	"context"
	"encoding/base64"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/companionlabs/backend/internal/model/account"
	chatmodel "github.com/companionlabs/backend/internal/model/chat"
	chatservice "github.com/companionlabs/backend/internal/service/chat"
)

// WebSocketHandler owns the live conversation endpoint.
type WebSocketHandler struct {
	chatSvc  *chatservice.Service
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates the websocket handler.
func NewWebSocketHandler(chatSvc *chatservice.Service) *WebSocketHandler {
	return &WebSocketHandler{
		chatSvc: chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes registers the websocket route.
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/chat", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	Image     string `json:"image,omitempty"` // base64 source image
	Style     string `json:"style,omitempty"`
	Action    string `json:"action,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// wsClient wraps one connection as a room subscriber. gorilla connections do
// not allow concurrent writers, so every write goes through the mutex.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) Deliver(event string, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := outgoingMessage{Type: event, Data: payload, Timestamp: time.Now().Unix()}
	if err := c.conn.WriteJSON(msg); err != nil {
		log.Printf("[websocket] deliver %s failed: %v", event, err)
	}
}

func (c *wsClient) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

// handleWebSocket upgrades the connection, joins the conversation identified
// by the chatter/persona/role query parameters, replays history and then
// relays messages until the socket closes.
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	chatterID := r.URL.Query().Get("chatter_id")
	personaID := r.URL.Query().Get("persona_id")
	role, ok := account.ParseRole(r.URL.Query().Get("role"))
	if chatterID == "" || personaID == "" || !ok {
		http.Error(w, "chatter_id, persona_id and role are required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	client := &wsClient{conn: conn}

	joined, err := h.chatSvc.Join(r.Context(), chatterID, personaID, role)
	if err != nil {
		log.Printf("[websocket] join failed chatter=%s persona=%s: %v", chatterID, personaID, err)
		client.Deliver("error", map[string]string{"message": "could not join conversation"})
		return
	}

	h.chatSvc.Attach(joined.ConversationID, client)
	defer h.chatSvc.Detach(joined.ConversationID, client)

	log.Printf("[websocket] joined conversation=%s chatter=%s", joined.ConversationID, chatterID)

	client.Deliver("joined", map[string]any{
		"conversationId": joined.ConversationID,
		"history":        joined.History,
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	go h.pingLoop(ctx, client)

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}

		conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		switch msg.Type {
		case "message":
			h.handleChatMessage(ctx, client, joined.ConversationID, chatterID, personaID, role, &msg)
		default:
			client.Deliver("error", map[string]string{"message": "unsupported message type: " + msg.Type})
		}
	}
}

func (h *WebSocketHandler) handleChatMessage(ctx context.Context, client *wsClient, conversationID, chatterID, personaID string, role account.Role, msg *inboundMessage) {
	action, err := chatmodel.ParseAction(msg.Action)
	if err != nil {
		client.Deliver("error", map[string]string{"message": err.Error()})
		return
	}

	var image []byte
	if msg.Image != "" {
		image, err = base64.StdEncoding.DecodeString(msg.Image)
		if err != nil {
			client.Deliver("error", map[string]string{"message": "image payload is not valid base64"})
			return
		}
	}

	requestID := msg.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	req := chatservice.ExchangeRequest{
		ConversationID: conversationID,
		ChatterID:      chatterID,
		PersonaID:      personaID,
		Role:           role,
		Action:         action,
		Content:        msg.Content,
		Image:          image,
		Style:          chatmodel.Style(msg.Style),
		RequestID:      requestID,
	}

	if err := h.chatSvc.Exchange(ctx, req); err != nil {
		// The pipeline already broadcast what the room should see.
		log.Printf("[websocket] exchange failed conversation=%s request=%s: %v", conversationID, requestID, err)
	}
}

func (h *WebSocketHandler) pingLoop(ctx context.Context, client *wsClient) {
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.ping(); err != nil {
				return
			}
		}
	}
}
