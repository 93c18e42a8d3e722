package handlers

import (
	"pilotdeck/pkg/gemini"
	"pilotdeck/pkg/models"
)

// maxLonePromptChars caps the fallback turn sent when a chat has no
// usable history.
const maxLonePromptChars = 1000

// BuildWindow assembles the context window from stored turns. history is
// newest-first (as loaded); it is reversed to chronological order, then
// turns are included oldest to newest while the running character total
// stays within maxChars. Assembly stops at the first turn that would
// overflow the budget: later, more recent turns are skipped even when
// they would individually fit. This early stop is intentional; changing
// it changes which turns the model sees.
//
// When nothing can be included the window degrades to a single user turn
// carrying the incoming prompt truncated to maxLonePromptChars.
func BuildWindow(history []models.Message, prompt string, maxChars int) []gemini.Turn {
	// reverse newest-first into chronological order
	chrono := make([]models.Message, len(history))
	for i, m := range history {
		chrono[len(history)-1-i] = m
	}

	var turns []gemini.Turn
	total := 0
	for _, m := range chrono {
		n := charLen(m.Content)
		if total+n > maxChars {
			break
		}
		turns = append(turns, gemini.Turn{Role: roleFor(m.Sender), Text: m.Content})
		total += n
	}
	if len(turns) == 0 {
		return []gemini.Turn{{Role: gemini.RoleUser, Text: truncateChars(prompt, maxLonePromptChars)}}
	}
	return turns
}

func roleFor(s models.Sender) string {
	if models.NormalizeSender(string(s)) == models.SenderUser {
		return gemini.RoleUser
	}
	return gemini.RoleModel
}

func charLen(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}

func truncateChars(s string, max int) string {
	if max <= 0 {
		return ""
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
