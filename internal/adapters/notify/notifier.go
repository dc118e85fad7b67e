// Package notify delivers desktop alerts through notify-send when data usage
// crosses a configured threshold.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/snaka/mioportal/internal/ports"
)

const (
	stateFileMode = 0o600
	stateDirMode  = 0o700
	stateFileName = "alerts.json"

	monthlySummary = "IIJmio monthly data usage"
	dailySummary   = "IIJmio daily data usage"
)

type sendFunc func(ctx context.Context, summary string, body string) error

// alertState remembers when each alert last fired, so a threshold that stays
// crossed produces one notification per calendar period instead of one per
// refresh.
type alertState struct {
	MonthlyAlertedAt *time.Time `json:"monthlyAlertedAt,omitempty"`
	DailyAlertedAt   *time.Time `json:"dailyAlertedAt,omitempty"`
}

type DesktopNotifier struct {
	statePath string
	send      sendFunc
	now       func() time.Time
	mu        sync.Mutex
}

var _ ports.Notifier = (*DesktopNotifier)(nil)

func NewDesktopNotifier(root string) *DesktopNotifier {
	return &DesktopNotifier{
		statePath: filepath.Join(filepath.Clean(root), stateFileName),
		send:      runNotifySend,
		now:       time.Now,
	}
}

func (n *DesktopNotifier) NotifyMonthlyThreshold(ctx context.Context, usedGB, thresholdGB float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	state, err := n.readState()
	if err != nil {
		return err
	}

	now := n.now()
	if state.MonthlyAlertedAt != nil && sameMonth(*state.MonthlyAlertedAt, now) {
		return nil
	}

	body := fmt.Sprintf("Used %.1f GB this month (threshold %.1f GB)", usedGB, thresholdGB)
	if err := n.send(ctx, monthlySummary, body); err != nil {
		return fmt.Errorf("send monthly usage alert: %w", err)
	}

	state.MonthlyAlertedAt = &now
	return n.writeState(state)
}

func (n *DesktopNotifier) NotifyDailyThreshold(ctx context.Context, usedMB, thresholdMB float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	state, err := n.readState()
	if err != nil {
		return err
	}

	now := n.now()
	if state.DailyAlertedAt != nil && sameDay(*state.DailyAlertedAt, now) {
		return nil
	}

	body := fmt.Sprintf("Used %.0f MB today (threshold %.0f MB)", usedMB, thresholdMB)
	if err := n.send(ctx, dailySummary, body); err != nil {
		return fmt.Errorf("send daily usage alert: %w", err)
	}

	state.DailyAlertedAt = &now
	return n.writeState(state)
}

func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (n *DesktopNotifier) readState() (alertState, error) {
	data, err := os.ReadFile(n.statePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return alertState{}, nil
		}
		return alertState{}, fmt.Errorf("read alert state: %w", err)
	}

	var state alertState
	if err := json.Unmarshal(data, &state); err != nil {
		return alertState{}, fmt.Errorf("decode alert state: %w", err)
	}
	return state, nil
}

func (n *DesktopNotifier) writeState(state alertState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode alert state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(n.statePath), stateDirMode); err != nil {
		return fmt.Errorf("create alert state directory: %w", err)
	}
	if err := os.WriteFile(n.statePath, data, stateFileMode); err != nil {
		return fmt.Errorf("write alert state: %w", err)
	}
	return nil
}

func runNotifySend(ctx context.Context, summary string, body string) error {
	path, err := exec.LookPath("notify-send")
	if err != nil {
		return fmt.Errorf("notify-send unavailable: %w", err)
	}

	cmd := exec.CommandContext(ctx, path, "--app-name=mioportal", summary, body)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("notify-send: %w: %s", err, output)
	}
	return nil
}
