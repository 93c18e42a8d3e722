package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"pilotdeck/pkg/config"
	"pilotdeck/pkg/gemini"
	"pilotdeck/pkg/logger"
	"pilotdeck/pkg/models"
	"pilotdeck/pkg/store"
	"pilotdeck/pkg/utils"
)

// GeminiProxy is the context-bounded completion proxy. It loads bounded
// prior turns for a chat, assembles a size-capped window, calls the
// generation endpoint with the server-held credential and persists the
// assistant turn. The user's own turn is assumed already persisted by the
// caller and is not re-inserted here.
type GeminiProxy struct {
	Client          *gemini.Client
	MaxMessages     int
	MaxContextChars int

	// History loads up to n stored turns newest-first; Persist stores the
	// assistant turn. Both default to the pebble store and are swappable
	// in tests.
	History func(chatID string, n int) ([]models.Message, error)
	Persist func(m models.Message) error
}

// NewGeminiProxy wires the proxy against the global store.
func NewGeminiProxy(client *gemini.Client, cfg config.AssistantConfig) *GeminiProxy {
	return &GeminiProxy{
		Client:          client,
		MaxMessages:     cfg.MaxMessages,
		MaxContextChars: cfg.MaxContextChars,
		History:         store.RecentMessages,
		Persist:         store.SaveMessage,
	}
}

// Register mounts the proxy at /gemini.
func (p *GeminiProxy) Register(r *mux.Router) {
	r.HandleFunc("/gemini", p.handle).Methods(http.MethodGet, http.MethodPost, http.MethodOptions)
}

// setCORS applies the permissive cross-origin headers every proxy
// response carries, success and error alike.
func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
}

func (p *GeminiProxy) handle(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		p.health(w)
	case http.MethodPost:
		p.generate(w, r)
	}
}

// health is the capability probe: enabled iff a server-side credential is
// present. No side effects.
func (p *GeminiProxy) health(w http.ResponseWriter) {
	if !p.Client.Enabled() {
		_ = utils.JSONWrite(w, http.StatusServiceUnavailable, map[string]any{
			"enabled": false,
			"error":   "GEMINI_API_KEY is not configured",
		})
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"enabled": true})
}

type generateRequest struct {
	Prompt string  `json:"prompt"`
	ChatID *string `json:"chatId"`
}

type generateResponse struct {
	OK   bool            `json:"ok"`
	Text *string         `json:"text"`
	Raw  json.RawMessage `json:"raw,omitempty"`
}

func (p *GeminiProxy) generate(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("generate_panic", "panic", rec)
			utils.JSONError(w, http.StatusInternalServerError, "internal error")
		}
	}()

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		utils.JSONError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if req.ChatID != nil && strings.TrimSpace(*req.ChatID) == "" {
		utils.JSONError(w, http.StatusBadRequest, "chatId must be a non-empty string")
		return
	}
	if !p.Client.Enabled() {
		utils.JSONError(w, http.StatusBadRequest, "GEMINI_API_KEY is not configured")
		return
	}

	var turns []gemini.Turn
	chatID := ""
	if req.ChatID != nil {
		chatID = *req.ChatID
		history, err := p.History(chatID, p.MaxMessages)
		if err != nil {
			// degrade to empty context rather than aborting the request
			logger.Warn("history_load_failed", "chat", chatID, "error", err)
			history = nil
		}
		turns = BuildWindow(history, req.Prompt, p.MaxContextChars)
	} else {
		// single-shot variant: the prompt goes standalone, capped at the
		// context budget
		turns = []gemini.Turn{{Role: gemini.RoleUser, Text: truncateChars(req.Prompt, p.MaxContextChars)}}
	}

	res, err := p.Client.Generate(r.Context(), turns)
	if err != nil {
		var ue *gemini.UpstreamError
		if errors.As(err, &ue) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(ue.Status)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": ue.Message, "raw": ue.Raw})
			return
		}
		logger.Error("generate_failed", "chat", chatID, "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "generation request failed")
		return
	}

	if res.Text != nil && chatID != "" {
		m := models.Message{
			ID:      utils.GenMessageID(),
			ChatID:  chatID,
			Sender:  models.SenderAssistant,
			Content: *res.Text,
			TS:      time.Now().UTC().UnixNano(),
			Status:  models.StatusSent,
		}
		if err := p.Persist(m); err != nil {
			// the generated text is already in hand; log and keep going
			logger.Error("persist_assistant_turn_failed", "chat", chatID, "error", err)
		}
	}
	_ = utils.JSONWrite(w, http.StatusOK, generateResponse{OK: true, Text: res.Text, Raw: res.Raw})
}
