// deckchat is a line-oriented driver for the chat session manager. It
// reads input from stdin, submits each line through the manager and
// prints the transcript tail, mirroring what the dashboard chat view
// does in a browser.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"pilotdeck/pkg/logger"
	"pilotdeck/pkg/models"
	"pilotdeck/pkg/session"
)

func main() {
	_ = godotenv.Load(".env")
	server := flag.String("server", "http://localhost:8080", "pilotdeck server base URL")
	apiKey := flag.String("key", os.Getenv("PILOTDECK_API_KEY"), "frontend API key")
	chatID := flag.String("chat", "chat-local", "chat id for the transcript")
	disabled := flag.Bool("no-assistant", false, "start with the assistant capability flag off")
	flag.Parse()

	logger.Init(os.Getenv("PILOTDECK_LOG_LEVEL"), "text")

	proxy := session.NewProxyClient(*server, *apiKey)
	enabled := !*disabled
	mgr := session.New(*chatID, session.Options{
		Completer:        proxy,
		AssistantEnabled: &enabled,
	})
	defer mgr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mgr.StartProbe(ctx, proxy.ProbeURL(), 30*time.Second)

	fmt.Printf("deckchat connected to %s (chat %s)\n", *server, *chatID)
	fmt.Println("Digite uma mensagem, um comando (/listar, /inserir, ...) ou Ctrl-D para sair.")

	sc := bufio.NewScanner(os.Stdin)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	shown := 0
	for {
		fmt.Print("> ")
		if !sc.Scan() {
			break
		}
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		mgr.Submit(ctx, line)
		shown = printNew(mgr, shown)
	}
	if err := sc.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "stdin: %v\n", err)
		os.Exit(1)
	}
}

// printNew prints transcript entries appended since the last call and
// returns the new high-water mark.
func printNew(mgr *session.Manager, from int) int {
	msgs := mgr.Messages()
	for _, m := range msgs[from:] {
		prefix := string(m.Sender)
		if m.Status == models.StatusError {
			prefix += "!"
		}
		if m.ReplyToID != "" {
			fmt.Printf("[%s] (em resposta a: %s) %s\n", prefix, mgr.ResolveReply(m.ReplyToID), m.Content)
			continue
		}
		fmt.Printf("[%s] %s\n", prefix, m.Content)
	}
	return len(msgs)
}
