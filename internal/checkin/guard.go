package checkin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/alert"
	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/metrics"
)

const (
	defaultWatchdogWindow = 8 * time.Second
	watchdogAlertTimeout  = 5 * time.Second
)

// Guard is the per-orchestrator busy flag. A second check-in while one
// is in flight is rejected immediately, never queued. The watchdog
// clears a flag whose holder never released it, trading strict mutual
// exclusion for availability: a crashed attempt must not brick the
// button until process restart.
type Guard struct {
	mu       sync.Mutex
	busy     bool
	seq      uint64
	timer    *time.Timer
	window   time.Duration
	logger   *slog.Logger
	alerter  alert.Alerter
	acquired time.Time
}

func NewGuard(window time.Duration, logger *slog.Logger, alerter alert.Alerter) *Guard {
	if window <= 0 {
		window = defaultWatchdogWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	if alerter == nil {
		alerter = alert.NopAlerter{}
	}
	return &Guard{
		window:  window,
		logger:  logger.With("component", "checkin_guard"),
		alerter: alerter,
	}
}

// TryAcquire takes the flag, or reports false without blocking. Each
// successful acquire arms the watchdog and returns a sequence token
// the holder must pass back to Release.
func (g *Guard) TryAcquire() (uint64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.busy {
		return 0, false
	}
	g.busy = true
	g.seq++
	g.acquired = time.Now()

	seq := g.seq
	g.timer = time.AfterFunc(g.window, func() {
		g.watchdogRelease(seq)
	})
	return seq, true
}

// Release clears the flag and disarms the watchdog. A stale token, one
// whose acquisition the watchdog already force-released, is a no-op:
// it must not clear a later holder's flag.
func (g *Guard) Release(seq uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seq != seq {
		return
	}
	g.releaseLocked()
}

func (g *Guard) releaseLocked() {
	if !g.busy {
		return
	}
	g.busy = false
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

func (g *Guard) watchdogRelease(seq uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// A stale timer from an earlier acquisition must not release the
	// current holder.
	if !g.busy || g.seq != seq {
		return
	}
	held := time.Since(g.acquired)
	g.releaseLocked()

	metrics.GuardWatchdogReleases.Inc()
	g.logger.Warn("busy guard force-released by watchdog",
		"held_for", held.Round(time.Millisecond),
		"window", g.window)

	// The holder is stuck somewhere past the window; worth a page.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), watchdogAlertTimeout)
		defer cancel()
		if err := g.alerter.Send(ctx, alert.Alert{
			Type:  alert.AlertTypeGuardWatchdog,
			Title: "busy guard force-released",
			Message: fmt.Sprintf("holder kept the busy flag for %s, past the %s window",
				held.Round(time.Millisecond), g.window),
		}); err != nil {
			g.logger.Warn("watchdog alert failed", "error", err)
		}
	}()
}

// Busy reports the flag without acquiring it.
func (g *Guard) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy
}
