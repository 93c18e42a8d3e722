package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"pilotdeck/pkg/models"
)

type stubCompleter struct {
	fn    func(chatID, prompt string) (Completion, error)
	calls int
}

func (s *stubCompleter) Complete(_ context.Context, chatID, prompt string) (Completion, error) {
	s.calls++
	return s.fn(chatID, prompt)
}

func textPtr(s string) *string { return &s }

func userMessages(msgs []models.Message) []models.Message {
	var out []models.Message
	for _, m := range msgs {
		if m.Sender == models.SenderUser {
			out = append(out, m)
		}
	}
	return out
}

func countContaining(msgs []models.Message, sender models.Sender, substr string) int {
	n := 0
	for _, m := range msgs {
		if m.Sender == sender && strings.Contains(m.Content, substr) {
			n++
		}
	}
	return n
}

func TestSubmitSettlesWithAssistantReply(t *testing.T) {
	comp := &stubCompleter{fn: func(chatID, prompt string) (Completion, error) {
		return Completion{Text: textPtr("olá!")}, nil
	}}
	m := New("chat-1", Options{Completer: comp})
	defer m.Close()

	m.Submit(context.Background(), "bom dia")

	msgs := m.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Sender != models.SenderUser || msgs[0].Status != models.StatusSent {
		t.Fatalf("user message not settled: %+v", msgs[0])
	}
	if msgs[1].Sender != models.SenderAssistant || msgs[1].Content != "olá!" {
		t.Fatalf("unexpected assistant message: %+v", msgs[1])
	}
	if m.InFlight() {
		t.Fatalf("latch still held after submission")
	}
}

func TestSubmitErrorMarksUserMessage(t *testing.T) {
	comp := &stubCompleter{fn: func(chatID, prompt string) (Completion, error) {
		return Completion{}, errors.New("quota exceeded")
	}}
	m := New("chat-1", Options{Completer: comp})
	defer m.Close()

	m.Submit(context.Background(), "bom dia")

	msgs := m.Messages()
	users := userMessages(msgs)
	if len(users) != 1 || users[0].Status != models.StatusError {
		t.Fatalf("expected one user message in error state, got %+v", users)
	}
	if countContaining(msgs, models.SenderSystem, "quota exceeded") != 1 {
		t.Fatalf("expected system notice carrying the error, got %+v", msgs)
	}
	if m.InFlight() {
		t.Fatalf("latch still held after failed submission")
	}
}

func TestLatchReleasedOnPanic(t *testing.T) {
	comp := &stubCompleter{fn: func(chatID, prompt string) (Completion, error) {
		panic("boom")
	}}
	m := New("chat-1", Options{Completer: comp})
	defer m.Close()

	m.Submit(context.Background(), "bom dia")

	if m.InFlight() {
		t.Fatalf("latch still held after panicking completer")
	}
	if countContaining(m.Messages(), models.SenderSystem, "erro interno") != 1 {
		t.Fatalf("expected internal-error notice, got %+v", m.Messages())
	}
}

func TestDuplicateSuppressedWithinWindow(t *testing.T) {
	now := time.Now()
	comp := &stubCompleter{fn: func(chatID, prompt string) (Completion, error) {
		return Completion{Text: textPtr("resposta")}, nil
	}}
	m := New("chat-1", Options{Completer: comp, Now: func() time.Time { return now }})
	defer m.Close()

	m.Submit(context.Background(), "mesma coisa")
	m.Submit(context.Background(), "mesma coisa")
	m.Submit(context.Background(), "mesma coisa")

	msgs := m.Messages()
	if got := len(userMessages(msgs)); got != 1 {
		t.Fatalf("expected 1 user message, got %d", got)
	}
	if got := countContaining(msgs, models.SenderSystem, "duplicate suppressed"); got != 2 {
		t.Fatalf("expected one notice per extra attempt, got %d", got)
	}
	if comp.calls != 1 {
		t.Fatalf("completer called %d times, want 1", comp.calls)
	}
}

func TestDuplicateAllowedAfterWindow(t *testing.T) {
	now := time.Now()
	comp := &stubCompleter{fn: func(chatID, prompt string) (Completion, error) {
		return Completion{Text: textPtr("resposta")}, nil
	}}
	m := New("chat-1", Options{Completer: comp, Now: func() time.Time { return now }})
	defer m.Close()

	m.Submit(context.Background(), "mesma coisa")
	now = now.Add(11 * time.Second)
	m.Submit(context.Background(), "mesma coisa")

	if got := len(userMessages(m.Messages())); got != 2 {
		t.Fatalf("expected 2 user messages after window elapsed, got %d", got)
	}
}

func TestDuplicateDistinguishesReplyTarget(t *testing.T) {
	now := time.Now()
	comp := &stubCompleter{fn: func(chatID, prompt string) (Completion, error) {
		return Completion{Text: textPtr("resposta")}, nil
	}}
	m := New("chat-1", Options{Completer: comp, Now: func() time.Time { return now }})
	defer m.Close()

	m.Submit(context.Background(), "oi")
	m.SelectNext()
	if !m.ReplyToSelected() {
		t.Fatalf("could not set reply target")
	}
	m.Submit(context.Background(), "oi")

	if got := len(userMessages(m.Messages())); got != 2 {
		t.Fatalf("same text with different reply target should not be suppressed, got %d user messages", got)
	}
}

func TestAssistantDisabledRejectsSubmission(t *testing.T) {
	disabled := false
	comp := &stubCompleter{fn: func(chatID, prompt string) (Completion, error) {
		t.Fatalf("completer must not be called when disabled")
		return Completion{}, nil
	}}
	m := New("chat-1", Options{Completer: comp, AssistantEnabled: &disabled})
	defer m.Close()

	m.Submit(context.Background(), "oi")

	msgs := m.Messages()
	if len(userMessages(msgs)) != 0 {
		t.Fatalf("no user message should be appended when disabled")
	}
	if countContaining(msgs, models.SenderSystem, "desabilitado") != 1 {
		t.Fatalf("expected disabled notice, got %+v", msgs)
	}
}

func TestFallbackWhenProbeUnhealthy(t *testing.T) {
	comp := &stubCompleter{fn: func(chatID, prompt string) (Completion, error) {
		t.Fatalf("completer must not be called when probe is unhealthy")
		return Completion{}, nil
	}}
	m := New("chat-1", Options{Completer: comp})
	defer m.Close()
	m.setProbe(ProbeError)

	m.Submit(context.Background(), "primeira")
	m.Submit(context.Background(), "segunda")

	msgs := m.Messages()
	fallbacks := countContaining(msgs, models.SenderAssistant, "indisponível")
	if fallbacks != 1 {
		t.Fatalf("consecutive identical fallbacks must be suppressed, got %d", fallbacks)
	}
	if got := len(userMessages(msgs)); got != 2 {
		t.Fatalf("both user messages should land, got %d", got)
	}
}

func TestUpdateWithoutConnectionMakesNoNetworkCall(t *testing.T) {
	dialed := false
	m := New("chat-1", Options{
		Completer: &stubCompleter{fn: func(chatID, prompt string) (Completion, error) {
			t.Fatalf("completer must not be called for commands")
			return Completion{}, nil
		}},
		Dial: func(ctx context.Context, url, key string) (Store, error) {
			dialed = true
			return nil, nil
		},
	})
	defer m.Close()

	m.Submit(context.Background(), `/atualizar t1 abc {"x":1}`)

	if dialed {
		t.Fatalf("dial must not run for /atualizar")
	}
	msgs := m.Messages()
	if countContaining(msgs, models.SenderSystem, "não conectado") != 1 {
		t.Fatalf("expected not-connected notice, got %+v", msgs)
	}
	users := userMessages(msgs)
	if len(users) != 1 || users[0].Status != models.StatusError {
		t.Fatalf("command user message should end in error, got %+v", users)
	}
}

func TestConnectRedactsKeyAndRunsHook(t *testing.T) {
	hooked := false
	var gotKey string
	m := New("chat-1", Options{
		Dial: func(ctx context.Context, url, key string) (Store, error) {
			gotKey = key
			return &fakeStore{}, nil
		},
		OnConnect: func() { hooked = true },
	})
	defer m.Close()

	m.Submit(context.Background(), "/supabase connect https://x.example abcdefghijklmnop1234")

	if gotKey != "abcdefghijklmnop1234" {
		t.Fatalf("dial received wrong key: %q", gotKey)
	}
	if !hooked {
		t.Fatalf("OnConnect hook did not run")
	}
	if !m.Connected() {
		t.Fatalf("manager should report connected")
	}
	users := userMessages(m.Messages())
	if len(users) != 1 || !strings.HasSuffix(users[0].Content, "[REDACTED]") {
		t.Fatalf("recorded command must be redacted, got %q", users[0].Content)
	}
	if users[0].Status != models.StatusSent {
		t.Fatalf("connect command should settle sent, got %s", users[0].Status)
	}
}

func TestReplyLookup(t *testing.T) {
	comp := &stubCompleter{fn: func(chatID, prompt string) (Completion, error) {
		return Completion{Text: textPtr("resposta")}, nil
	}}
	m := New("chat-1", Options{Completer: comp})
	defer m.Close()

	m.Submit(context.Background(), "primeira mensagem")
	first := m.Messages()[0]

	if got := m.ResolveReply(first.ID); got != "primeira mensagem" {
		t.Fatalf("reply lookup for real id returned %q", got)
	}
	if got := m.ResolveReply("missing-id"); got != "unknown" {
		t.Fatalf("dangling reply should resolve to unknown, got %q", got)
	}
}

func TestAttachmentsStagedThenCleared(t *testing.T) {
	comp := &stubCompleter{fn: func(chatID, prompt string) (Completion, error) {
		return Completion{Text: textPtr("ok")}, nil
	}}
	m := New("chat-1", Options{Completer: comp})
	defer m.Close()

	m.AttachFile("plan.pdf", "application/pdf", "blob:1")
	m.AttachFile("notes.txt", "text/plain", "blob:2")
	if got := len(m.StagedAttachments()); got != 2 {
		t.Fatalf("expected 2 staged attachments, got %d", got)
	}

	m.Submit(context.Background(), "segue anexo")

	users := userMessages(m.Messages())
	if len(users[0].Attachments) != 2 {
		t.Fatalf("attachments not carried on the message: %+v", users[0])
	}
	if got := len(m.StagedAttachments()); got != 0 {
		t.Fatalf("staging not cleared after submit, %d left", got)
	}
}

func TestSelectionClamped(t *testing.T) {
	comp := &stubCompleter{fn: func(chatID, prompt string) (Completion, error) {
		return Completion{Text: textPtr("ok")}, nil
	}}
	m := New("chat-1", Options{Completer: comp})
	defer m.Close()

	if got := m.SelectPrev(); got != -1 {
		t.Fatalf("empty transcript cursor should stay -1, got %d", got)
	}

	m.Submit(context.Background(), "uma")
	n := len(m.Messages())

	for i := 0; i < n+5; i++ {
		m.SelectNext()
	}
	if got := m.SelectNext(); got != n-1 {
		t.Fatalf("cursor should clamp at %d, got %d", n-1, got)
	}
	for i := 0; i < n+5; i++ {
		m.SelectPrev()
	}
	if got := m.SelectPrev(); got != 0 {
		t.Fatalf("cursor should clamp at 0, got %d", got)
	}
}

func TestTimestampsNonDecreasing(t *testing.T) {
	comp := &stubCompleter{fn: func(chatID, prompt string) (Completion, error) {
		return Completion{Text: textPtr("ok")}, nil
	}}
	m := New("chat-1", Options{Completer: comp})
	defer m.Close()

	m.Submit(context.Background(), "uma")
	m.Submit(context.Background(), "duas")

	msgs := m.Messages()
	for i := 1; i < len(msgs); i++ {
		if msgs[i].TS < msgs[i-1].TS {
			t.Fatalf("timestamps decrease at index %d", i)
		}
	}
}

type fakeStore struct {
	rows    []map[string]any
	listErr error
	deleted []string
}

func (f *fakeStore) List(_ context.Context, table string, _ map[string]string, limit int) ([]map[string]any, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if limit > 0 && len(f.rows) > limit {
		return f.rows[:limit], nil
	}
	return f.rows, nil
}

func (f *fakeStore) Insert(_ context.Context, table string, row map[string]any) (map[string]any, error) {
	row["id"] = "row-1"
	f.rows = append(f.rows, row)
	return row, nil
}

func (f *fakeStore) Update(_ context.Context, table, id string, patch map[string]any) (map[string]any, error) {
	patch["id"] = id
	return patch, nil
}

func (f *fakeStore) Delete(_ context.Context, table, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}
