// Package session implements the chat transcript manager: message
// lifecycle, single in-flight submission, duplicate suppression, slash
// command dispatch and the completion path against the proxy.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pilotdeck/pkg/logger"
	"pilotdeck/pkg/models"
)

// duplicateWindow is the trailing window within which an identical
// submission from the same sender is suppressed.
const duplicateWindow = 10 * time.Second

const fallbackReply = "O assistente está indisponível no momento. Tente novamente mais tarde."

// Options configures a Manager. Everything is explicit; nothing is read
// from ambient globals.
type Options struct {
	// Completer produces assistant replies. Required unless the manager
	// only ever runs commands.
	Completer Completer
	// Dial opens store sessions for /supabase connect. Defaults to Dial.
	Dial Dialer
	// AssistantEnabled is the externally injected capability flag.
	// Defaults to true.
	AssistantEnabled *bool
	// OnConnect runs after a successful store connect; the caller hangs
	// its durable-storage wipe here.
	OnConnect func()
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Manager owns one transcript. All exported methods are safe for
// concurrent use; mutations are serialized by one mutex.
type Manager struct {
	mu sync.Mutex

	chatID     string
	transcript []models.Message

	inFlight bool
	closed   bool

	completer Completer
	dial      Dialer
	store     Store

	enabled bool
	probe   ProbeStatus

	replyTo string
	staged  []models.Attachment
	cursor  int

	onConnect func()
	now       func() time.Time
}

// New creates a Manager for one chat view.
func New(chatID string, opts Options) *Manager {
	m := &Manager{
		chatID:    chatID,
		completer: opts.Completer,
		dial:      opts.Dial,
		enabled:   true,
		probe:     ProbeOK,
		onConnect: opts.OnConnect,
		now:       opts.Now,
		cursor:    -1,
	}
	if m.dial == nil {
		m.dial = Dial
	}
	if m.now == nil {
		m.now = time.Now
	}
	if opts.AssistantEnabled != nil {
		m.enabled = *opts.AssistantEnabled
	}
	return m
}

// Close marks the manager dead. Later probe ticks and submissions stop
// mutating the transcript.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

// Messages returns a copy of the transcript.
func (m *Manager) Messages() []models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Message, len(m.transcript))
	copy(out, m.transcript)
	return out
}

// InFlight reports whether a submission is currently being processed.
func (m *Manager) InFlight() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight
}

// Capability is the derived send gate: the injected flag AND the latest
// probe result.
type Capability struct{ Enabled bool }

// Capability computes the current send capability.
func (m *Manager) Capability() Capability {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Capability{Enabled: m.enabled && m.probe == ProbeOK}
}

// Submit processes one line of user input. It never returns an error:
// every failure becomes a message status change or an appended system
// notice. The in-flight latch is released on every exit path.
func (m *Manager) Submit(ctx context.Context, rawText string) {
	rawText = strings.TrimRight(rawText, "\n")
	if strings.TrimSpace(rawText) == "" {
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if m.inFlight {
		m.mu.Unlock()
		return
	}
	if !m.enabled {
		m.appendLocked(m.systemNotice("O assistente está desabilitado."))
		m.mu.Unlock()
		return
	}

	isCommand := strings.HasPrefix(rawText, "/")
	if m.isDuplicateLocked(rawText, isCommand) {
		m.appendLocked(m.systemNotice("duplicate suppressed"))
		m.mu.Unlock()
		return
	}

	m.inFlight = true
	m.mu.Unlock()

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("submit_panic", "panic", rec)
			m.mu.Lock()
			// settle any user turn left mid-send
			for i := len(m.transcript) - 1; i >= 0; i-- {
				if m.transcript[i].Sender == models.SenderUser && m.transcript[i].Status == models.StatusSending {
					m.transcript[i].Status = models.StatusError
					break
				}
			}
			m.appendLocked(m.systemNotice("erro interno ao enviar a mensagem."))
		} else {
			m.mu.Lock()
		}
		m.inFlight = false
		m.mu.Unlock()
	}()

	if isCommand {
		m.submitCommand(ctx, rawText)
		return
	}
	m.submitPrompt(ctx, rawText)
}

// submitCommand records one redacted user message and dispatches the
// command. Staged reply target and attachments are left untouched.
func (m *Manager) submitCommand(ctx context.Context, rawText string) {
	m.mu.Lock()
	user := models.Message{
		ID:      uuid.NewString(),
		ChatID:  m.chatID,
		Sender:  models.SenderUser,
		Content: RedactSecrets(rawText),
		TS:      m.now().UnixNano(),
		Status:  models.StatusSending,
	}
	m.appendLocked(user)

	cmd, err := ParseCommand(rawText)
	if err != nil {
		m.setStatusLocked(user.ID, models.StatusError)
		m.appendLocked(m.systemNotice(err.Error()))
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	result, err := m.runCommand(ctx, cmd)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if err != nil {
		m.setStatusLocked(user.ID, models.StatusError)
		m.appendLocked(m.systemNotice(err.Error()))
		m.mu.Unlock()
		return
	}
	m.setStatusLocked(user.ID, models.StatusSent)
	m.appendLocked(m.systemNotice(result))
	m.mu.Unlock()
}

// submitPrompt appends the user turn with the staged reply target and
// attachments, clears the staging fields and runs the completion path.
func (m *Manager) submitPrompt(ctx context.Context, rawText string) {
	m.mu.Lock()
	user := models.Message{
		ID:          uuid.NewString(),
		ChatID:      m.chatID,
		Sender:      models.SenderUser,
		Content:     rawText,
		TS:          m.now().UnixNano(),
		Status:      models.StatusSending,
		ReplyToID:   m.replyTo,
		Attachments: m.staged,
	}
	m.appendLocked(user)
	m.replyTo = ""
	m.staged = nil

	if m.probe != ProbeOK || m.completer == nil {
		m.setStatusLocked(user.ID, models.StatusSent)
		m.appendFallbackLocked()
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	res, err := m.completer.Complete(ctx, m.chatID, rawText)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if err != nil {
		m.setStatusLocked(user.ID, models.StatusError)
		m.appendLocked(m.systemNotice("Falha ao gerar resposta: " + err.Error()))
		return
	}
	m.setStatusLocked(user.ID, models.StatusSent)
	if res.Text == nil {
		m.appendLocked(m.systemNotice("O assistente não retornou texto."))
		return
	}
	m.appendLocked(models.Message{
		ID:      uuid.NewString(),
		ChatID:  m.chatID,
		Sender:  models.SenderAssistant,
		Content: *res.Text,
		TS:      m.now().UnixNano(),
		Status:  models.StatusSent,
	})
}

// appendFallbackLocked appends the canned offline reply unless the last
// assistant message already carries the identical text.
func (m *Manager) appendFallbackLocked() {
	for i := len(m.transcript) - 1; i >= 0; i-- {
		if m.transcript[i].Sender != models.SenderAssistant {
			continue
		}
		if m.transcript[i].Content == fallbackReply {
			return
		}
		break
	}
	m.appendLocked(models.Message{
		ID:      uuid.NewString(),
		ChatID:  m.chatID,
		Sender:  models.SenderAssistant,
		Content: fallbackReply,
		TS:      m.now().UnixNano(),
		Status:  models.StatusSent,
	})
}

// isDuplicateLocked reports whether an identical submission from the user
// landed within the trailing window. Non-command input also compares the
// pending reply target and attachment count.
func (m *Manager) isDuplicateLocked(rawText string, isCommand bool) bool {
	cutoff := m.now().Add(-duplicateWindow).UnixNano()
	for i := len(m.transcript) - 1; i >= 0; i-- {
		msg := m.transcript[i]
		if msg.TS < cutoff {
			break
		}
		if msg.Sender != models.SenderUser {
			continue
		}
		if msg.Content != rawText && (!isCommand || msg.Content != RedactSecrets(rawText)) {
			continue
		}
		if isCommand {
			return true
		}
		if msg.ReplyToID == m.replyTo && len(msg.Attachments) == len(m.staged) {
			return true
		}
	}
	return false
}

func (m *Manager) systemNotice(text string) models.Message {
	return models.Message{
		ID:      uuid.NewString(),
		ChatID:  m.chatID,
		Sender:  models.SenderSystem,
		Content: text,
		TS:      m.now().UnixNano(),
		Status:  models.StatusSent,
	}
}

func (m *Manager) appendLocked(msg models.Message) {
	if m.closed {
		return
	}
	// timestamps are non-decreasing in array order
	if n := len(m.transcript); n > 0 && msg.TS < m.transcript[n-1].TS {
		msg.TS = m.transcript[n-1].TS
	}
	m.transcript = append(m.transcript, msg)
}

func (m *Manager) setStatusLocked(id string, status models.Status) {
	for i := range m.transcript {
		if m.transcript[i].ID != id {
			continue
		}
		// terminal states are never re-entered
		if m.transcript[i].Status != models.StatusSending {
			return
		}
		m.transcript[i].Status = status
		return
	}
}

// AttachFile stages one attachment for the next submitted message.
func (m *Manager) AttachFile(name, mimeType, blobRef string) models.Attachment {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := models.Attachment{
		ID:       uuid.NewString(),
		Name:     name,
		MimeType: mimeType,
		BlobRef:  blobRef,
	}
	m.staged = append(m.staged, a)
	return a
}

// StagedAttachments returns a copy of the pending attachment set.
func (m *Manager) StagedAttachments() []models.Attachment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Attachment, len(m.staged))
	copy(out, m.staged)
	return out
}

// SelectPrev moves the selection cursor one message up, clamped to the
// transcript bounds.
func (m *Manager) SelectPrev() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.transcript) == 0 {
		m.cursor = -1
		return m.cursor
	}
	if m.cursor < 0 {
		m.cursor = len(m.transcript) - 1
		return m.cursor
	}
	if m.cursor > 0 {
		m.cursor--
	}
	return m.cursor
}

// SelectNext moves the selection cursor one message down, clamped.
func (m *Manager) SelectNext() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.transcript) == 0 {
		m.cursor = -1
		return m.cursor
	}
	if m.cursor < len(m.transcript)-1 {
		m.cursor++
	}
	return m.cursor
}

// ReplyToSelected sets the pending reply target to the selected message.
func (m *Manager) ReplyToSelected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cursor < 0 || m.cursor >= len(m.transcript) {
		return false
	}
	m.replyTo = m.transcript[m.cursor].ID
	return true
}

// ClearReply drops the pending reply target.
func (m *Manager) ClearReply() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replyTo = ""
}

// PendingReply returns the current reply target id, empty when none.
func (m *Manager) PendingReply() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replyTo
}

// ResolveReply looks up the content a reply reference points at. Dangling
// references resolve to "unknown".
func (m *Manager) ResolveReply(replyToID string) string {
	if replyToID == "" {
		return ""
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.transcript {
		if m.transcript[i].ID == replyToID {
			return m.transcript[i].Content
		}
	}
	return "unknown"
}

// SetAssistantEnabled flips the injected capability flag.
func (m *Manager) SetAssistantEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = enabled
}

// Connected reports whether a store session is open.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store != nil
}
