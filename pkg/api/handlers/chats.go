package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"pilotdeck/pkg/logger"
	"pilotdeck/pkg/models"
	"pilotdeck/pkg/store"
	"pilotdeck/pkg/utils"
	"pilotdeck/pkg/validation"
)

// RegisterChats registers the chat-scoped message endpoints:
//   - POST /v1/chats/{id}/messages
//   - GET  /v1/chats/{id}/messages?limit=<n>
//
// These must be registered before the generic row routes so the longer
// path wins; gorilla matches in registration order.
func RegisterChats(r *mux.Router) {
	r.HandleFunc("/chats/{id}/messages", createChatMessage).Methods(http.MethodPost)
	r.HandleFunc("/chats/{id}/messages", listChatMessages).Methods(http.MethodGet)
}

func createChatMessage(w http.ResponseWriter, r *http.Request) {
	chatID := mux.Vars(r)["id"]
	var m models.Message
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	m.ChatID = chatID
	if m.ID == "" {
		m.ID = utils.GenMessageID()
	}
	if m.TS == 0 {
		m.TS = time.Now().UTC().UnixNano()
	}
	if m.Status == "" {
		m.Status = models.StatusSent
	}
	m.Sender = models.NormalizeSender(string(m.Sender))
	if err := validation.ValidateMessage(m); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := store.SaveMessage(m); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("message_created", "chat", chatID, "id", m.ID)
	_ = utils.JSONWrite(w, http.StatusCreated, m)
}

func listChatMessages(w http.ResponseWriter, r *http.Request) {
	chatID := mux.Vars(r)["id"]
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}
	msgs, err := store.ListChatMessages(chatID, limit)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	logger.Debug("messages_listed", "chat", chatID, "count", len(msgs))
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Chat     string           `json:"chat"`
		Messages []models.Message `json:"messages"`
	}{Chat: chatID, Messages: msgs})
}
