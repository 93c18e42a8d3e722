package app

import (
	"fmt"
	"os"

	"pilotdeck/pkg/config"
)

// validateConfig performs quick, fail-fast validation of the effective
// configuration before starting long-running services.
func validateConfig(eff config.EffectiveConfigResult) error {
	if eff.DBPath == "" {
		return fmt.Errorf("database path is empty: set --db flag, PILOTDECK_DB_PATH env, or storage.db_path in config")
	}

	cert := eff.Config.Server.TLS.CertFile
	key := eff.Config.Server.TLS.KeyFile
	if (cert != "" && key == "") || (cert == "" && key != "") {
		return fmt.Errorf("incomplete TLS configuration: both server.tls.cert_file and server.tls.key_file must be set")
	}
	if cert != "" {
		if _, err := os.Stat(cert); err != nil {
			return fmt.Errorf("tls cert file not accessible: %w", err)
		}
		if _, err := os.Stat(key); err != nil {
			return fmt.Errorf("tls key file not accessible: %w", err)
		}
	}

	if eff.Config.Assistant.AssistantEnabled() && eff.Config.Assistant.APIKey == "" {
		// not fatal; the proxy answers the probe with 503 until a
		// credential appears in the environment
		fmt.Fprintln(os.Stderr, "warning: assistant enabled but GEMINI_API_KEY is not set; /gemini will report disabled")
	}

	return nil
}
