package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"pilotdeck/pkg/logger"
)

// Completion is the result of one generation call.
type Completion struct {
	Text *string
	Raw  json.RawMessage
}

// Completer produces a generated reply for a prompt within a chat.
type Completer interface {
	Complete(ctx context.Context, chatID, prompt string) (Completion, error)
}

// ProxyClient is the HTTP Completer against the completion proxy. It
// persists the user's turn first so the proxy's context window sees it,
// then posts the prompt to /gemini.
type ProxyClient struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewProxyClient(baseURL, apiKey string) *ProxyClient {
	return &ProxyClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{},
	}
}

// ProbeURL returns the capability probe endpoint for this proxy.
func (c *ProxyClient) ProbeURL() string { return c.BaseURL + "/gemini" }

func (c *ProxyClient) Complete(ctx context.Context, chatID, prompt string) (Completion, error) {
	if chatID != "" {
		if err := c.saveUserTurn(ctx, chatID, prompt); err != nil {
			// the proxy degrades to less context; not fatal for the reply
			logger.Warn("user_turn_persist_failed", "chat", chatID, "error", err)
		}
	}

	body := map[string]any{"prompt": prompt}
	if chatID != "" {
		body["chatId"] = chatID
	}
	data, err := json.Marshal(body)
	if err != nil {
		return Completion{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/gemini", bytes.NewReader(data))
	if err != nil {
		return Completion{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("apikey", c.APIKey)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Completion{}, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Completion{}, err
	}
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			return Completion{}, fmt.Errorf("%s (HTTP %d)", e.Error, resp.StatusCode)
		}
		return Completion{}, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	var out struct {
		OK   bool            `json:"ok"`
		Text *string         `json:"text"`
		Raw  json.RawMessage `json:"raw"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return Completion{}, err
	}
	return Completion{Text: out.Text, Raw: out.Raw}, nil
}

func (c *ProxyClient) saveUserTurn(ctx context.Context, chatID, prompt string) error {
	body := map[string]any{"content": prompt, "sender": "user"}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/v1/chats/%s/messages", c.BaseURL, chatID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("apikey", c.APIKey)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}
