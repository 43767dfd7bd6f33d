package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/alert"
	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/circuitbreaker"
	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/domain/model"
	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/metrics"
)

// LocalStore is the fast, always-available per-device archive.
type LocalStore interface {
	Get(ctx context.Context, address string) (*model.Record, error)
	Put(ctx context.Context, rec *model.Record) error
}

// RemoteStore is the shared eventually-consistent ledger.
type RemoteStore interface {
	Fetch(ctx context.Context, address string) (*model.Record, error)
	Upsert(ctx context.Context, rec *model.Record) error
}

const defaultRemoteTimeout = 5 * time.Second

// Reconciler merges the local archive, the remote ledger, and on-chain
// results into one balance view. The local copy is authoritative within
// a session; the remote copy only ever raises it (max-merge), so a
// stale remote read can never claw back a fresh local increment.
type Reconciler struct {
	local   LocalStore
	remote  RemoteStore
	breaker *circuitbreaker.Breaker
	alerter alert.Alerter
	logger  *slog.Logger

	remoteTimeout time.Duration
	now           func() time.Time
}

// Options configures a Reconciler. Remote and Alerter may be nil for
// offline or test operation.
type Options struct {
	Local         LocalStore
	Remote        RemoteStore
	Alerter       alert.Alerter
	Logger        *slog.Logger
	RemoteTimeout time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

func NewReconciler(opts Options) *Reconciler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	alerter := opts.Alerter
	if alerter == nil {
		alerter = alert.NopAlerter{}
	}
	timeout := opts.RemoteTimeout
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	log := logger.With("component", "ledger_reconciler")
	notifyRecovery := func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := alerter.Send(ctx, alert.Alert{
			Type:    alert.AlertTypeRecovery,
			Title:   "remote ledger recovered",
			Message: "remote sync circuit closed after successful probes",
		}); err != nil {
			log.Warn("recovery alert failed", "error", err)
		}
	}
	return &Reconciler{
		local:  opts.Local,
		remote: opts.Remote,
		breaker: circuitbreaker.New(circuitbreaker.Config{
			Now: now,
			OnStateChange: func(from, to circuitbreaker.State) {
				log.Warn("remote ledger breaker state changed", "from", from, "to", to)
				if from != circuitbreaker.StateClosed && to == circuitbreaker.StateClosed {
					go notifyRecovery()
				}
			},
		}),
		alerter: alerter,
		logger:  log,

		remoteTimeout: timeout,
		now:           now,
	}
}

// LoadOnConnect returns the record the session starts from. The local
// archive answers immediately; the remote ledger is consulted
// best-effort and its credits are adopted only when strictly larger.
// A wallet never seen anywhere starts from a zero-state record.
func (r *Reconciler) LoadOnConnect(ctx context.Context, address string) (*model.Record, error) {
	local, err := r.local.Get(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("load local record: %w", err)
	}
	if local == nil {
		local = &model.Record{Address: address}
	}

	remote := r.fetchRemote(ctx, address)
	if remote == nil {
		return local, nil
	}

	if remote.Credits > local.Credits {
		r.logger.Info("adopting larger remote balance",
			"address", address,
			"local_credits", local.Credits,
			"remote_credits", remote.Credits)
		metrics.LedgerMergeAdoptionsTotal.Inc()

		local.Credits = remote.Credits
		if remote.TotalCheckins > local.TotalCheckins {
			local.TotalCheckins = remote.TotalCheckins
		}
		if remote.LastCheckinAtMs > local.LastCheckinAtMs {
			local.LastCheckinAtMs = remote.LastCheckinAtMs
			local.LastCheckinDay = remote.LastCheckinDay
			local.Streak = remote.Streak
			local.LastCheckinTx = remote.LastCheckinTx
		}
		if err := r.local.Put(ctx, local); err != nil {
			r.logger.Warn("persisting merged record failed", "address", address, "error", err)
		}
	}
	return local, nil
}

// ApplyReward settles a confirmed check-in: phase one updates the local
// archive synchronously with post-increment values; phase two upserts
// those same values to the remote ledger in the background. Remote
// failure is logged and alerted but never fails the check-in.
func (r *Reconciler) ApplyReward(ctx context.Context, address string, credits, streak int64, txRef string) (*model.Record, error) {
	rec, err := r.local.Get(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("load local record: %w", err)
	}
	if rec == nil {
		rec = &model.Record{Address: address}
	}

	now := r.now()
	rec.Credits += credits
	rec.TotalCheckins++
	rec.LastCheckinAtMs = now.UnixMilli()
	rec.LastCheckinDay = now.UTC().Format("2006-01-02")
	rec.Streak = streak
	rec.LastCheckinTx = txRef

	if err := r.local.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist local record: %w", err)
	}

	// Absolute values, not a remote-side increment: replaying the same
	// upsert cannot double-count.
	snapshot := *rec
	go r.syncRemote(snapshot)

	cp := *rec
	return &cp, nil
}

// ArchiveOnDisconnect flushes the outgoing wallet's record before the
// session is torn down or a new address takes over.
func (r *Reconciler) ArchiveOnDisconnect(ctx context.Context, address string) {
	rec, err := r.local.Get(ctx, address)
	if err != nil || rec == nil {
		return
	}
	go r.syncRemote(*rec)
}

func (r *Reconciler) fetchRemote(ctx context.Context, address string) *model.Record {
	if r.remote == nil {
		return nil
	}
	fetchCtx, cancel := context.WithTimeout(ctx, r.remoteTimeout)
	defer cancel()

	var remote *model.Record
	err := r.breaker.Do(func() error {
		var ferr error
		remote, ferr = r.remote.Fetch(fetchCtx, address)
		return ferr
	})
	switch {
	case errors.Is(err, circuitbreaker.ErrOpen):
		r.logger.Debug("remote ledger read skipped", "address", address, "error", err)
		return nil
	case err != nil:
		r.logger.Warn("remote ledger read failed", "address", address, "error", err)
		return nil
	}
	return remote
}

func (r *Reconciler) syncRemote(rec model.Record) {
	if r.remote == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.remoteTimeout)
	defer cancel()

	err := r.breaker.Do(func() error {
		return r.remote.Upsert(ctx, &rec)
	})
	switch {
	case errors.Is(err, circuitbreaker.ErrOpen):
		metrics.LedgerRemoteSyncTotal.WithLabelValues("skipped").Inc()
		r.logger.Warn("remote ledger sync skipped", "address", rec.Address, "error", err)
		return
	case err != nil:
		metrics.LedgerRemoteSyncTotal.WithLabelValues("error").Inc()
		r.logger.Warn("remote ledger sync failed", "address", rec.Address, "error", err)

		alertCtx, alertCancel := context.WithTimeout(context.Background(), r.remoteTimeout)
		defer alertCancel()
		if sendErr := r.alerter.Send(alertCtx, alert.Alert{
			Type:    alert.AlertTypeRemoteSyncFailed,
			Wallet:  rec.Address,
			Title:   "remote ledger upsert failed",
			Message: err.Error(),
		}); sendErr != nil {
			r.logger.Warn("remote sync alert failed", "error", sendErr)
		}
		return
	}
	metrics.LedgerRemoteSyncTotal.WithLabelValues("ok").Inc()
}
