package banner

import (
	"fmt"

	"pilotdeck/pkg/config"
)

const banner = `
██████╗ ██╗██╗      ██████╗ ████████╗██████╗ ███████╗ ██████╗██╗  ██╗
██╔══██╗██║██║     ██╔═══██╗╚══██╔══╝██╔══██╗██╔════╝██╔════╝██║ ██╔╝
██████╔╝██║██║     ██║   ██║   ██║   ██║  ██║█████╗  ██║     █████╔╝
██╔═══╝ ██║██║     ██║   ██║   ██║   ██║  ██║██╔══╝  ██║     ██╔═██╗
██║     ██║███████╗╚██████╔╝   ██║   ██████╔╝███████╗╚██████╗██║  ██╗
╚═╝     ╚═╝╚══════╝ ╚═════╝    ╚═╝   ╚═════╝ ╚══════╝ ╚═════╝╚═╝  ╚═╝
`

// Print shows the startup banner with the effective runtime settings and
// the main endpoint surface.
func Print(eff config.EffectiveConfigResult, version string) {
	addr := eff.Addr
	if addr == "" && eff.Config != nil {
		addr = eff.Config.Addr()
	}
	assistant := "disabled"
	if eff.Config != nil && eff.Config.Assistant.AssistantEnabled() {
		if eff.Config.Assistant.APIKey != "" {
			assistant = "enabled"
		} else {
			assistant = "enabled (no credential)"
		}
	}
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:    %s\n", addr)
	fmt.Printf("DB Path:   %s\n", eff.DBPath)
	fmt.Printf("Assistant: %s\n", assistant)
	if version != "" {
		fmt.Printf("Version:   %s\n", version)
	}
	if eff.Source != "" {
		fmt.Printf("Config sources: %s\n", eff.Source)
	}
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("GET  /gemini                      - Assistant capability probe")
	fmt.Println("POST /gemini                      - Context-bounded completion")
	fmt.Println("GET  /v1/{table}                  - List rows (query params filter)")
	fmt.Println("POST /v1/{table}                  - Insert a row")
	fmt.Println("GET  /v1/chats/{id}/messages      - List chat messages")
	fmt.Println("POST /v1/chats/{id}/messages      - Append a chat message")
	fmt.Println("GET  /metrics, /healthz, /readyz  - Operational endpoints")
	fmt.Println("GET  /docs/                       - API documentation")
	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl 'http://localhost%s/gemini'\n", addr)
	fmt.Printf("curl -X POST 'http://localhost%s/gemini' -d '{\"prompt\":\"oi\",\"chatId\":\"chat-1\"}'\n", addr)
}
