package session

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestParseCommandVariants(t *testing.T) {
	cmd, err := ParseCommand("/supabase connect https://x.example somekey")
	if err != nil {
		t.Fatalf("connect parse failed: %v", err)
	}
	if c, ok := cmd.(ConnectCommand); !ok || c.URL != "https://x.example" || c.Key != "somekey" {
		t.Fatalf("unexpected connect command: %#v", cmd)
	}

	cmd, err = ParseCommand("/listar projects")
	if err != nil {
		t.Fatalf("listar parse failed: %v", err)
	}
	if c, ok := cmd.(ListCommand); !ok || c.Table != "projects" {
		t.Fatalf("unexpected listar command: %#v", cmd)
	}

	cmd, err = ParseCommand(`/inserir chats {"title":"novo chat","pinned":true}`)
	if err != nil {
		t.Fatalf("inserir parse failed: %v", err)
	}
	ic, ok := cmd.(InsertCommand)
	if !ok || ic.Table != "chats" {
		t.Fatalf("unexpected inserir command: %#v", cmd)
	}
	if ic.Row["title"] != "novo chat" || ic.Row["pinned"] != true {
		t.Fatalf("inline JSON not parsed: %#v", ic.Row)
	}

	cmd, err = ParseCommand(`/atualizar projects p1 {"name":"renomeado"}`)
	if err != nil {
		t.Fatalf("atualizar parse failed: %v", err)
	}
	uc, ok := cmd.(UpdateCommand)
	if !ok || uc.Table != "projects" || uc.ID != "p1" || uc.Patch["name"] != "renomeado" {
		t.Fatalf("unexpected atualizar command: %#v", cmd)
	}

	cmd, err = ParseCommand("/deletar documents d9")
	if err != nil {
		t.Fatalf("deletar parse failed: %v", err)
	}
	if c, ok := cmd.(DeleteCommand); !ok || c.Table != "documents" || c.ID != "d9" {
		t.Fatalf("unexpected deletar command: %#v", cmd)
	}

	cmd, err = ParseCommand("/migrar-mock")
	if err != nil {
		t.Fatalf("migrar-mock parse failed: %v", err)
	}
	if _, ok := cmd.(MigrateMockCommand); !ok {
		t.Fatalf("unexpected migrar-mock command: %#v", cmd)
	}

	cmd, err = ParseCommand("/inexistente arg")
	if err != nil {
		t.Fatalf("unknown command should not error: %v", err)
	}
	if c, ok := cmd.(UnknownCommand); !ok || c.Name != "/inexistente" {
		t.Fatalf("unexpected unknown command: %#v", cmd)
	}
}

func TestParseCommandUsageErrors(t *testing.T) {
	cases := []string{
		"/supabase connect https://x.example",
		"/supabase disconnect a b",
		"/listar",
		"/listar a b",
		"/inserir chats",
		`/inserir chats {broken`,
		"/atualizar chats c1",
		`/atualizar chats c1 not-json`,
		"/deletar chats",
	}
	for _, line := range cases {
		if _, err := ParseCommand(line); err == nil {
			t.Fatalf("expected usage error for %q", line)
		} else {
			var ue *UsageError
			if !errors.As(err, &ue) {
				t.Fatalf("expected *UsageError for %q, got %T", line, err)
			}
		}
	}
}

func TestRedactSecrets(t *testing.T) {
	in := "/supabase connect https://x.example eyJhbGciOiJIUzI1NiJ9_abc-123"
	out := RedactSecrets(in)
	if !strings.HasSuffix(out, "[REDACTED]") {
		t.Fatalf("long trailing token not redacted: %q", out)
	}
	if strings.Contains(out, "eyJhbGci") {
		t.Fatalf("secret still present: %q", out)
	}

	short := "/listar chats"
	if got := RedactSecrets(short); got != short {
		t.Fatalf("short trailing token must stay intact, got %q", got)
	}
}

func TestMigrateMockAlwaysRefused(t *testing.T) {
	m := New("chat-1", Options{})
	defer m.Close()
	m.store = &fakeStore{}

	res, err := m.runCommand(context.Background(), MigrateMockCommand{})
	if err != nil {
		t.Fatalf("migrar-mock should not error: %v", err)
	}
	if !strings.Contains(res, "única fonte de verdade") {
		t.Fatalf("expected single-source-of-truth notice, got %q", res)
	}
}

func TestListCapsRows(t *testing.T) {
	fs := &fakeStore{}
	for i := 0; i < 300; i++ {
		fs.rows = append(fs.rows, map[string]any{"id": i})
	}
	m := New("chat-1", Options{})
	defer m.Close()
	m.store = fs

	res, err := m.runCommand(context.Background(), ListCommand{Table: "projects"})
	if err != nil {
		t.Fatalf("listar failed: %v", err)
	}
	if !strings.HasPrefix(res, "200 linha(s)") {
		t.Fatalf("listar should cap at 200 rows, got %q", strings.SplitN(res, "\n", 2)[0])
	}
}
