// Package gemini is a minimal REST client for the generative-language API.
// It deliberately avoids the official SDK: the proxy contract mirrors the
// upstream HTTP status and surfaces the raw upstream body, which the SDK
// does not expose.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"pilotdeck/pkg/logger"
)

const (
	// RoleUser and RoleModel tag turns in the conversation payload.
	RoleUser  = "user"
	RoleModel = "model"
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// New creates a client. A zero APIKey yields a client that reports
// Enabled() == false; callers decide how to degrade.
func New(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    base,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether a server-side credential is configured.
func (c *Client) Enabled() bool { return c.apiKey != "" }

// Turn is one conversation turn in the upstream payload.
type Turn struct {
	Role string
	Text string
}

// Result carries the extracted text (nil when no recognizable shape was
// found) plus the raw upstream body for diagnostics.
type Result struct {
	Text *string
	Raw  json.RawMessage
}

// UpstreamError reports a non-OK upstream response; the proxy forwards
// Status verbatim.
type UpstreamError struct {
	Status  int
	Message string
	Raw     json.RawMessage
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Message)
}

type reqPart struct {
	Text string `json:"text"`
}

type reqContent struct {
	Role  string    `json:"role,omitempty"`
	Parts []reqPart `json:"parts"`
}

type generateRequest struct {
	Contents []reqContent `json:"contents"`
}

// Generate sends the assembled turn sequence as the full conversation
// payload and returns the extracted text plus the raw body.
func (c *Client) Generate(ctx context.Context, turns []Turn) (*Result, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("API key not configured")
	}
	if len(turns) == 0 {
		return nil, fmt.Errorf("no turns to send")
	}

	body := generateRequest{Contents: make([]reqContent, 0, len(turns))}
	for _, t := range turns {
		body.Contents = append(body.Contents, reqContent{
			Role:  t.Role,
			Parts: []reqPart{{Text: t.Text}},
		})
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Warn("generation_upstream_error", "status", resp.StatusCode, "model", c.model)
		return nil, &UpstreamError{
			Status:  resp.StatusCode,
			Message: upstreamMessage(raw),
			Raw:     json.RawMessage(raw),
		}
	}

	text := ExtractText(raw)
	logger.Info("generation_completed",
		"model", c.model,
		"turns", len(turns),
		"duration_ms", time.Since(start).Milliseconds(),
		"has_text", text != nil,
	)
	return &Result{Text: text, Raw: json.RawMessage(raw)}, nil
}

// ExtractText locates generated text by checking, in order, the
// candidates[0].content.parts[0].text shape and the
// output[0].content[0].text shape. Nil when neither is present.
func ExtractText(raw []byte) *string {
	var cand struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(raw, &cand); err == nil {
		if len(cand.Candidates) > 0 && len(cand.Candidates[0].Content.Parts) > 0 {
			t := cand.Candidates[0].Content.Parts[0].Text
			return &t
		}
	}
	var out struct {
		Output []struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
	}
	if err := json.Unmarshal(raw, &out); err == nil {
		if len(out.Output) > 0 && len(out.Output[0].Content) > 0 {
			t := out.Output[0].Content[0].Text
			return &t
		}
	}
	return nil
}

func upstreamMessage(raw []byte) string {
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return "upstream request failed"
}
