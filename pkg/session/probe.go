package session

import (
	"context"
	"net/http"
	"time"

	"pilotdeck/pkg/logger"
)

// ProbeStatus is the health classification of the completion endpoint.
type ProbeStatus int

const (
	ProbeUnknown ProbeStatus = iota
	ProbeOK
	ProbeWarn
	ProbeError
)

func (s ProbeStatus) String() string {
	switch s {
	case ProbeOK:
		return "ok"
	case ProbeWarn:
		return "warn"
	case ProbeError:
		return "error"
	default:
		return "unknown"
	}
}

const probeTimeout = 6 * time.Second

// ProbeOnce performs one capability check against the completion endpoint.
// Transport failure or timeout classifies as error, 5xx as error, any
// other non-2xx as warn, 2xx as ok.
func ProbeOnce(ctx context.Context, hc *http.Client, url string) ProbeStatus {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ProbeError
	}
	resp, err := hc.Do(req)
	if err != nil {
		return ProbeError
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return ProbeOK
	case resp.StatusCode >= 500:
		return ProbeError
	default:
		return ProbeWarn
	}
}

// StartProbe polls the capability endpoint until the context is cancelled
// or the manager closes, updating the manager's probe status.
func (m *Manager) StartProbe(ctx context.Context, url string, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		hc := &http.Client{}
		for {
			status := ProbeOnce(ctx, hc, url)
			if !m.setProbe(status) {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(interval):
			}
		}
	}()
}

// setProbe records the latest probe result. Returns false once the
// manager is closed so the poll loop stops writing.
func (m *Manager) setProbe(status ProbeStatus) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	if status != m.probe {
		logger.Info("probe_status_changed", "status", status.String())
	}
	m.probe = status
	return true
}
