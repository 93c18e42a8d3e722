package session

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Command is a parsed slash-command invocation. Parsing and dispatch are
// separated so the command set stays exhaustive and statically checkable.
type Command interface{ isCommand() }

type ConnectCommand struct{ URL, Key string }

type ListCommand struct{ Table string }

type InsertCommand struct {
	Table string
	Row   map[string]any
}

type UpdateCommand struct {
	Table string
	ID    string
	Patch map[string]any
}

type DeleteCommand struct {
	Table string
	ID    string
}

type MigrateMockCommand struct{}

type UnknownCommand struct{ Name string }

func (ConnectCommand) isCommand()     {}
func (ListCommand) isCommand()        {}
func (InsertCommand) isCommand()      {}
func (UpdateCommand) isCommand()      {}
func (DeleteCommand) isCommand()      {}
func (MigrateMockCommand) isCommand() {}
func (UnknownCommand) isCommand()     {}

// UsageError reports a recognized command invoked with bad arguments. The
// message is user-facing.
type UsageError struct{ Message string }

func (e *UsageError) Error() string { return e.Message }

const commandList = "/supabase connect <url> <key>, /listar <tabela>, /inserir <tabela> <json>, /atualizar <tabela> <id> <json>, /deletar <tabela> <id>, /migrar-mock"

// secretToken matches a trailing credential-looking token so it can be
// redacted before a command line is recorded in the transcript.
var secretToken = regexp.MustCompile(`[A-Za-z0-9_-]{16,}\s*$`)

// RedactSecrets replaces a trailing token of 16 or more alphanumeric,
// hyphen or underscore characters with a placeholder.
func RedactSecrets(line string) string {
	return secretToken.ReplaceAllString(line, "[REDACTED]")
}

// ParseCommand parses a slash-command line into its tagged variant.
// Commands are case-sensitive with space-separated tokens. A recognized
// command with missing or malformed arguments returns a *UsageError; an
// unrecognized command returns UnknownCommand, not an error.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return nil, &UsageError{Message: "comando deve começar com /"}
	}
	switch fields[0] {
	case "/supabase":
		if len(fields) != 4 || fields[1] != "connect" {
			return nil, &UsageError{Message: "Uso: /supabase connect <url> <key>"}
		}
		return ConnectCommand{URL: fields[2], Key: fields[3]}, nil
	case "/listar":
		if len(fields) != 2 {
			return nil, &UsageError{Message: "Uso: /listar <tabela>"}
		}
		return ListCommand{Table: fields[1]}, nil
	case "/inserir":
		rest := strings.TrimSpace(strings.TrimPrefix(line, "/inserir"))
		parts := strings.SplitN(rest, " ", 2)
		if len(parts) != 2 {
			return nil, &UsageError{Message: "Uso: /inserir <tabela> <json>"}
		}
		row, err := parseJSONArg(parts[1])
		if err != nil {
			return nil, &UsageError{Message: "JSON inválido: " + err.Error()}
		}
		return InsertCommand{Table: parts[0], Row: row}, nil
	case "/atualizar":
		rest := strings.TrimSpace(strings.TrimPrefix(line, "/atualizar"))
		parts := strings.SplitN(rest, " ", 3)
		if len(parts) != 3 {
			return nil, &UsageError{Message: "Uso: /atualizar <tabela> <id> <json>"}
		}
		patch, err := parseJSONArg(parts[2])
		if err != nil {
			return nil, &UsageError{Message: "JSON inválido: " + err.Error()}
		}
		return UpdateCommand{Table: parts[0], ID: parts[1], Patch: patch}, nil
	case "/deletar":
		if len(fields) != 3 {
			return nil, &UsageError{Message: "Uso: /deletar <tabela> <id>"}
		}
		return DeleteCommand{Table: fields[1], ID: fields[2]}, nil
	case "/migrar-mock":
		return MigrateMockCommand{}, nil
	default:
		return UnknownCommand{Name: fields[0]}, nil
	}
}

func parseJSONArg(s string) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}

const listRowLimit = 200

// runCommand executes a parsed command and returns the user-facing result
// text. Called with the lock released; the in-flight latch serializes
// store mutation.
func (m *Manager) runCommand(ctx context.Context, cmd Command) (string, error) {
	m.mu.Lock()
	st := m.store
	m.mu.Unlock()

	switch c := cmd.(type) {
	case ConnectCommand:
		st, err := m.dial(ctx, c.URL, c.Key)
		if err != nil {
			return "", fmt.Errorf("falha ao conectar: %w", err)
		}
		m.mu.Lock()
		m.store = st
		m.mu.Unlock()
		if m.onConnect != nil {
			m.onConnect()
		}
		return "Supabase conectado.", nil
	case ListCommand:
		if st == nil {
			return "", errNotConnected
		}
		rows, err := st.List(ctx, c.Table, nil, listRowLimit)
		if err != nil {
			return "", err
		}
		return formatRows(c.Table, rows), nil
	case InsertCommand:
		if st == nil {
			return "", errNotConnected
		}
		row, err := st.Insert(ctx, c.Table, c.Row)
		if err != nil {
			return "", err
		}
		return "Linha inserida em " + c.Table + ":\n" + formatRow(row), nil
	case UpdateCommand:
		if st == nil {
			return "", errNotConnected
		}
		row, err := st.Update(ctx, c.Table, c.ID, c.Patch)
		if err != nil {
			return "", err
		}
		return "Linha atualizada em " + c.Table + ":\n" + formatRow(row), nil
	case DeleteCommand:
		if st == nil {
			return "", errNotConnected
		}
		if err := st.Delete(ctx, c.Table, c.ID); err != nil {
			return "", err
		}
		return fmt.Sprintf("Linha %s removida de %s.", c.ID, c.Table), nil
	case MigrateMockCommand:
		return "Migração de dados mock está desabilitada: o banco conectado é a única fonte de verdade.", nil
	case UnknownCommand:
		return fmt.Sprintf("Comando desconhecido: %s. Comandos disponíveis: %s", c.Name, commandList), nil
	default:
		return "", fmt.Errorf("comando não tratado")
	}
}

func formatRows(table string, rows []map[string]any) string {
	if len(rows) == 0 {
		return "Nenhuma linha em " + table + "."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d linha(s) em %s:\n", len(rows), table)
	for _, r := range rows {
		b.WriteString(formatRow(r))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatRow(row map[string]any) string {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Sprint(row)
	}
	return string(data)
}
