// Package retention prunes old chat messages on a cron schedule and writes
// a per-run report under the DB state dir.
package retention

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"

	"pilotdeck/pkg/config"
	"pilotdeck/pkg/logger"
	"pilotdeck/pkg/state"
	"pilotdeck/pkg/store"
)

type report struct {
	Time    string `json:"time"`
	Cutoff  string `json:"cutoff"`
	Deleted int    `json:"deleted"`
	Passes  int    `json:"passes"`
	DryRun  bool   `json:"dry_run"`
	Error   string `json:"error,omitempty"`
}

// ParsePeriod parses a retention period. Accepts Go duration syntax plus a
// "d" suffix for days ("30d").
func ParsePeriod(s string) (time.Duration, error) {
	if n, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("invalid retention period %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// Start starts the retention scheduler if enabled. Returns a cancel func.
func Start(ctx context.Context, eff config.EffectiveConfigResult) (context.CancelFunc, error) {
	ret := eff.Config.Retention
	if !ret.Enabled {
		logger.Info("retention_disabled")
		return func() {}, nil
	}

	retentionPath := state.PathsVar.Retention
	if err := os.MkdirAll(retentionPath, 0o700); err != nil {
		logger.Error("retention_path_create_failed", "path", retentionPath, "error", err)
		return nil, err
	}

	cronExpr := ret.Cron
	if cronExpr == "" {
		cronExpr = "0 2 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", ret.Cron)
		return nil, fmt.Errorf("invalid retention cron expression: %s", ret.Cron)
	}
	if _, err := ParsePeriod(ret.Period); err != nil {
		return nil, fmt.Errorf("retention enabled but period invalid: %w", err)
	}

	logger.Info("retention_enabled", "cron", cronExpr, "period", ret.Period, "path", retentionPath)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, eff, retentionPath, cronExpr)
	return cancel, nil
}

// runScheduler sleeps until the next cron tick and triggers a run, looping
// until the context is cancelled.
func runScheduler(ctx context.Context, eff config.EffectiveConfigResult, retentionPath, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			if err := RunOnce(eff, retentionPath); err != nil {
				logger.Error("retention_run_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}
	}
}

// RunOnce purges in batches until a pass comes back short, sleeping
// between passes, then writes a report artifact.
func RunOnce(eff config.EffectiveConfigResult, retentionPath string) error {
	ret := eff.Config.Retention
	period, err := ParsePeriod(ret.Period)
	if err != nil {
		return err
	}
	cutoff := time.Now().UTC().Add(-period).UnixNano()
	rep := report{
		Time:   time.Now().UTC().Format(time.RFC3339),
		Cutoff: time.Unix(0, cutoff).UTC().Format(time.RFC3339),
		DryRun: ret.DryRun,
	}

	for {
		n, perr := store.PurgeMessagesBefore(cutoff, ret.BatchSize, ret.DryRun)
		rep.Deleted += n
		rep.Passes++
		if perr != nil {
			rep.Error = perr.Error()
			err = perr
			break
		}
		// dry runs never shrink the candidate set; one pass is the answer
		if ret.DryRun || ret.BatchSize <= 0 || n < ret.BatchSize {
			break
		}
		if ret.BatchSleepMs > 0 {
			time.Sleep(time.Duration(ret.BatchSleepMs) * time.Millisecond)
		}
	}
	writeReport(retentionPath, rep)

	if err != nil {
		return err
	}
	logger.Info("retention_run_complete", "deleted", rep.Deleted, "passes", rep.Passes, "dry_run", ret.DryRun)
	return nil
}

func writeReport(dir string, rep report) {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return
	}
	path := filepath.Join(dir, fmt.Sprintf("run-%d.json", time.Now().UnixNano()))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		logger.Warn("retention_report_write_failed", "path", path, "error", err)
	}
}
