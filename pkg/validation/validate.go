package validation

import (
	"fmt"
	"strings"

	"pilotdeck/pkg/models"
)

// MaxContentLen caps message bodies accepted over the API.
const MaxContentLen = 64 * 1024

// ValidateMessage checks the fields a stored message must carry. Content
// may be empty only when the message carries attachments.
func ValidateMessage(m models.Message) error {
	switch models.NormalizeSender(string(m.Sender)) {
	case models.SenderUser, models.SenderAssistant, models.SenderSystem:
	default:
		return fmt.Errorf("invalid sender %q", m.Sender)
	}
	switch m.Status {
	case "", models.StatusSending, models.StatusSent, models.StatusError:
	default:
		return fmt.Errorf("invalid status %q", m.Status)
	}
	if strings.TrimSpace(m.Content) == "" && len(m.Attachments) == 0 {
		return fmt.Errorf("content is required")
	}
	if len(m.Content) > MaxContentLen {
		return fmt.Errorf("content exceeds %d bytes", MaxContentLen)
	}
	for _, a := range m.Attachments {
		if a.ID == "" {
			return fmt.Errorf("attachment id is required")
		}
		if a.Name == "" {
			return fmt.Errorf("attachment name is required")
		}
	}
	return nil
}

// ValidateTable rejects requests for tables the row API does not serve.
func ValidateTable(name string) error {
	if !models.KnownTable(name) {
		return fmt.Errorf("unknown table %q", name)
	}
	return nil
}
