package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"pilotdeck/internal/retention"
	"pilotdeck/pkg/banner"
	"pilotdeck/pkg/config"
	"pilotdeck/pkg/gemini"
	"pilotdeck/pkg/state"
	"pilotdeck/pkg/store"
	"pilotdeck/pkg/telemetry"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	assistant *gemini.Client

	srv *http.Server
}

// New validates config and initializes resources that need no running
// context (state dirs, store, assistant client). Call Run to start the
// HTTP server and block until shutdown.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	_ = godotenv.Load(".env")

	if err := validateConfig(eff); err != nil {
		return nil, err
	}

	if err := state.Ensure(eff.DBPath); err != nil {
		return nil, fmt.Errorf("state layout: %w", err)
	}
	if err := store.Open(state.PathsVar.Store); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", state.PathsVar.Store, err)
	}

	telemetry.SetSlowThreshold(time.Duration(eff.Config.Telemetry.SlowThreshold))

	ac := eff.Config.Assistant
	var assistant *gemini.Client
	if ac.AssistantEnabled() {
		assistant = gemini.New(gemini.Config{
			APIKey:  ac.APIKey,
			BaseURL: ac.BaseURL,
			Model:   ac.Model,
			Timeout: time.Duration(ac.Timeout),
		})
	} else {
		// a credential-less client keeps the probe and generation paths
		// answering with the disabled taxonomy
		assistant = gemini.New(gemini.Config{})
	}

	return &App{eff: eff, version: version, commit: commit, buildDate: buildDate, assistant: assistant}, nil
}

// Run starts the retention scheduler and HTTP server, blocking until ctx
// is cancelled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	a.printBanner()

	stopRetention, err := retention.Start(ctx, a.eff)
	if err != nil {
		return err
	}
	defer stopRetention()

	errCh := a.startHTTP(ctx)

	select {
	case <-ctx.Done():
		a.shutdownHTTP()
		return nil
	case err := <-errCh:
		return err
	}
}

func (a *App) shutdownHTTP() {
	if a.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.srv.Shutdown(ctx)
}

// Close releases resources opened by New.
func (a *App) Close() error {
	return store.Close()
}

func (a *App) printBanner() {
	verStr := a.version
	if a.commit != "" && a.commit != "none" {
		verStr += " (" + a.commit + ")"
	}
	if a.buildDate != "" && a.buildDate != "unknown" {
		verStr += " @ " + a.buildDate
	}
	banner.Print(a.eff, verStr)
}
