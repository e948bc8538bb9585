package chat

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/companionlabs/backend/internal/model/account"
	chatmodel "github.com/companionlabs/backend/internal/model/chat"
	chatservice "github.com/companionlabs/backend/internal/service/chat"
	"github.com/companionlabs/backend/pkg/utils"
)

const defaultPageLimit = 20

// HistoryHandler serves the conversation log over REST.
type HistoryHandler struct {
	chatSvc *chatservice.Service
}

// NewHistoryHandler creates the history handler.
func NewHistoryHandler(chatSvc *chatservice.Service) *HistoryHandler {
	return &HistoryHandler{chatSvc: chatSvc}
}

// RegisterRoutes registers the history and usage routes.
func (h *HistoryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/conversations/{conversationID}/messages", h.handlePage)
	r.Get("/conversations/{conversationID}/messages/around", h.handleAround)
	r.Get("/conversations/{conversationID}/messages/search", h.handleSearch)
	r.Delete("/conversations/{conversationID}/messages/{timestamp}", h.handleDelete)
	r.Get("/usage", h.handleUsage)
}

func (h *HistoryHandler) handlePage(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	limit := queryInt(r, "limit", defaultPageLimit)
	cursor := r.URL.Query().Get("cursor")

	messages, err := h.chatSvc.GetHistory(r.Context(), conversationID, limit, cursor)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	next := ""
	if len(messages) == limit && limit > 0 {
		next = messages[len(messages)-1].Timestamp
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"messages":   messages,
		"nextCursor": next,
	})
}

func (h *HistoryHandler) handleAround(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	timestamp := r.URL.Query().Get("timestamp")
	if timestamp == "" {
		utils.RespondError(w, http.StatusBadRequest, "timestamp query parameter is required")
		return
	}
	limit := queryInt(r, "limit", defaultPageLimit)

	older, newer, err := h.chatSvc.GetAround(r.Context(), conversationID, timestamp, limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"older": older,
		"newer": newer,
	})
}

func (h *HistoryHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	query := r.URL.Query().Get("q")
	if query == "" {
		utils.RespondError(w, http.StatusBadRequest, "q query parameter is required")
		return
	}

	matches, err := h.chatSvc.SearchHistory(r.Context(), conversationID, query)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

func (h *HistoryHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	timestamp := chi.URLParam(r, "timestamp")

	deleted, err := h.chatSvc.DeleteMessage(r.Context(), conversationID, timestamp)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if !deleted {
		utils.RespondError(w, http.StatusNotFound, "message not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *HistoryHandler) handleUsage(w http.ResponseWriter, r *http.Request) {
	chatterID := r.URL.Query().Get("chatter_id")
	role, ok := account.ParseRole(r.URL.Query().Get("role"))
	if chatterID == "" || !ok {
		utils.RespondError(w, http.StatusBadRequest, "chatter_id and role are required")
		return
	}

	report, err := h.chatSvc.GetUsage(r.Context(), chatterID, role)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, report)
}

func queryInt(r *http.Request, key string, defaultValue int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		return defaultValue
	}
	return val
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch chatmodel.KindOf(err) {
	case chatmodel.KindItemNotFound, chatmodel.KindConversationNotFound:
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case chatmodel.KindBadRequest:
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
