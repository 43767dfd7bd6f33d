package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/alert"
	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/cache"
	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/chain"
	evmrpc "github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/chain/evm/rpc"
	solrpc "github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/chain/solana/rpc"
	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/domain/model"
	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/ledger"
	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/metrics"
	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/preflight"
	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/tracing"
	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/wallet"
)

// State is one step of the check-in pipeline. Within an attempt states
// occur strictly in declaration order; Error is reachable from any
// non-terminal state.
type State string

const (
	StateIdle              State = "idle"
	StateWalletCheck       State = "wallet_check"
	StateKindGuard         State = "kind_guard"
	StateSwitchingChain    State = "switching_chain"
	StatePreflight         State = "preflight"
	StateAwaitingSignature State = "awaiting_signature"
	StateConfirming        State = "confirming"
	StateParsingResult     State = "parsing_result"
	StateReconciling       State = "reconciling"
	StateDone              State = "done"
	StateError             State = "error"
)

// CooldownActive augments the terminal failure set: the wallet already
// checked in within the cooldown window.
const CooldownActive FailureKind = "cooldown_active"

// Result is delivered on a successful check-in.
type Result struct {
	ChainKey    string
	Address     string
	Credits     int64
	Streak      int64
	TxRef       string
	ExplorerURL string
	// EventParsed is false when the reward came from the configured
	// default instead of the decoded CheckedIn event.
	EventParsed bool
	Record      *model.Record
}

// Events are the orchestrator's hooks toward its UI collaborator.
// Every transition is reported discretely; nil hooks are skipped.
type Events struct {
	OnStart   func(chainKey string)
	OnState   func(state State)
	OnSuccess func(result Result)
	OnError   func(err *Error)
}

const (
	defaultReward         = 30
	defaultStreak         = 1
	defaultConfirmTimeout = 90 * time.Second
	defaultPollInterval   = 2 * time.Second
	defaultStatusCacheTTL = 30 * time.Second
	statusCacheSize       = 256
)

// Config wires an Orchestrator. Registry, Wallet, Preflight and Ledger
// are required; client factories are required for the chains that will
// be used.
type Config struct {
	Registry     *chain.Registry
	Wallet       *wallet.Adapter
	EVMClient    func(profile chain.Profile) evmrpc.RPCClient
	SolanaClient func(profile chain.Profile) solrpc.RPCClient
	Preflight    *preflight.Checker
	Ledger       *ledger.Reconciler
	Events       Events
	Alerter      alert.Alerter
	Logger       *slog.Logger

	// DefaultReward and DefaultStreak apply when the CheckedIn event
	// cannot be decoded from the receipt.
	DefaultReward  int64
	DefaultStreak  int64
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	WatchdogWindow time.Duration
	StatusCacheTTL time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Orchestrator runs the submit -> confirm -> parse -> reconcile
// pipeline for one wallet session at a time.
type Orchestrator struct {
	registry     *chain.Registry
	wallet       *wallet.Adapter
	evmClient    func(chain.Profile) evmrpc.RPCClient
	solanaClient func(chain.Profile) solrpc.RPCClient
	preflight    *preflight.Checker
	ledger       *ledger.Reconciler
	events       Events
	alerter      alert.Alerter
	logger       *slog.Logger
	tracer       trace.Tracer
	guard        *Guard
	statusCache  *cache.LRU[string, *UserStatus]

	defaultReward  int64
	defaultStreak  int64
	confirmTimeout time.Duration
	pollInterval   time.Duration
	now            func() time.Time
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.Registry == nil || cfg.Wallet == nil || cfg.Preflight == nil || cfg.Ledger == nil {
		return nil, fmt.Errorf("checkin: registry, wallet, preflight and ledger are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	alerter := cfg.Alerter
	if alerter == nil {
		alerter = alert.NopAlerter{}
	}
	reward := cfg.DefaultReward
	if reward <= 0 {
		reward = defaultReward
	}
	streak := cfg.DefaultStreak
	if streak <= 0 {
		streak = defaultStreak
	}
	confirmTimeout := cfg.ConfirmTimeout
	if confirmTimeout <= 0 {
		confirmTimeout = defaultConfirmTimeout
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	cacheTTL := cfg.StatusCacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultStatusCacheTTL
	}

	return &Orchestrator{
		registry:     cfg.Registry,
		wallet:       cfg.Wallet,
		evmClient:    cfg.EVMClient,
		solanaClient: cfg.SolanaClient,
		preflight:    cfg.Preflight,
		ledger:       cfg.Ledger,
		events:       cfg.Events,
		alerter:      alerter,
		logger:       logger.With("component", "checkin_orchestrator"),
		tracer:       tracing.Tracer("checkin"),
		guard:        NewGuard(cfg.WatchdogWindow, logger, alerter),
		statusCache:  cache.NewLRU[string, *UserStatus](statusCacheSize, cacheTTL),

		defaultReward:  reward,
		defaultStreak:  streak,
		confirmTimeout: confirmTimeout,
		pollInterval:   pollInterval,
		now:            now,
	}, nil
}

// CheckIn runs one attempt end to end against the currently selected
// chain. A second call while one is in flight fails fast with Busy.
func (o *Orchestrator) CheckIn(ctx context.Context) (*Result, error) {
	profile := o.registry.Current()

	seq, ok := o.guard.TryAcquire()
	if !ok {
		metrics.CheckinDuplicatesTotal.WithLabelValues(profile.Key).Inc()
		o.logger.Warn("duplicate check-in ignored", "chain", profile.Key)
		return nil, &Error{Kind: Busy, State: StateIdle}
	}
	defer o.guard.Release(seq)

	metrics.CheckinAttemptsTotal.WithLabelValues(profile.Key).Inc()
	attempt := uuid.NewString()
	started := o.now()

	ctx, span := o.tracer.Start(ctx, "checkin.attempt", trace.WithAttributes(
		attribute.String("attempt.id", attempt),
		attribute.String("chain.key", profile.Key),
		attribute.String("chain.kind", profile.Kind.String()),
	))
	defer span.End()

	o.emitStart(profile.Key)

	result, err := o.run(ctx, span, profile)

	elapsed := o.now().Sub(started)
	metrics.CheckinDuration.WithLabelValues(profile.Key).Observe(elapsed.Seconds())

	if err != nil {
		var cerr *Error
		if !errors.As(err, &cerr) {
			cerr = failure(Internal, StateError, err)
		}
		metrics.CheckinOutcomesTotal.WithLabelValues(profile.Key, string(cerr.Kind)).Inc()
		span.RecordError(cerr)
		span.SetStatus(codes.Error, string(cerr.Kind))
		o.logger.Warn("check-in failed",
			"attempt", attempt,
			"chain", profile.Key,
			"kind", cerr.Kind,
			"state", cerr.State,
			"tx", cerr.TxRef,
			"error", cerr.Err,
			"elapsed", elapsed.Round(time.Millisecond))
		o.emitError(cerr)
		return nil, cerr
	}

	metrics.CheckinOutcomesTotal.WithLabelValues(profile.Key, "ok").Inc()
	span.SetStatus(codes.Ok, "")
	o.logger.Info("check-in succeeded",
		"attempt", attempt,
		"chain", profile.Key,
		"address", result.Address,
		"credits", result.Credits,
		"streak", result.Streak,
		"tx", result.TxRef,
		"elapsed", elapsed.Round(time.Millisecond))
	o.emitSuccess(*result)
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, span trace.Span, profile chain.Profile) (*Result, error) {
	o.transition(span, StateWalletCheck)
	sess := o.wallet.Session()
	if sess == nil {
		return nil, failure(NotConnected, StateWalletCheck, wallet.ErrNotConnected)
	}

	o.transition(span, StateKindGuard)
	if sess.Kind != profile.Kind {
		return nil, failure(WalletKindMismatch, StateKindGuard,
			fmt.Errorf("wallet is %s but selected chain %s needs %s", sess.Kind, profile.Key, profile.Kind))
	}

	address := model.NormalizeAddress(sess.Kind, sess.Address)

	// Cooldown gate: reject before touching the wallet when the local
	// ledger already shows a check-in inside the window.
	rec, err := o.ledger.LoadOnConnect(ctx, address)
	if err != nil {
		return nil, failure(Internal, StateKindGuard, err)
	}
	if !rec.CanCheckIn(o.now()) {
		return nil, failure(CooldownActive, StateKindGuard,
			fmt.Errorf("checked in at %d, window is %s", rec.LastCheckinAtMs, model.CooldownWindow))
	}

	switch profile.Kind {
	case model.KindSolana:
		return o.runSolana(ctx, span, profile, address)
	default:
		return o.runEVM(ctx, span, profile, address)
	}
}

func (o *Orchestrator) runEVM(ctx context.Context, span trace.Span, profile chain.Profile, address string) (*Result, error) {
	provider, err := o.wallet.Provider()
	if err != nil {
		return nil, failure(NotConnected, StateWalletCheck, err)
	}
	if o.evmClient == nil {
		return nil, failure(Internal, StatePreflight, fmt.Errorf("no EVM RPC client configured"))
	}
	client := o.evmClient(profile)

	o.transition(span, StateSwitchingChain)
	if _, err := wallet.EnsureChain(ctx, provider, profile, o.logger); err != nil {
		if wallet.IsUserRejection(err) {
			return nil, failure(UserRejected, StateSwitchingChain, err)
		}
		return nil, failure(ChainSwitchFailed, StateSwitchingChain, err)
	}

	o.transition(span, StatePreflight)
	if err := o.preflight.CheckEVM(ctx, client, profile, address, CheckInCalldata()); err != nil {
		var ibe *preflight.InsufficientBalanceError
		if errors.As(err, &ibe) {
			return nil, failure(InsufficientBalance, StatePreflight, err)
		}
		return nil, failure(Internal, StatePreflight, err)
	}

	o.transition(span, StateAwaitingSignature)
	txHash, err := submitEVM(ctx, provider, profile, address)
	if err != nil {
		if wallet.IsUserRejection(err) {
			return nil, failure(UserRejected, StateAwaitingSignature, err)
		}
		return nil, failure(Internal, StateAwaitingSignature, err)
	}
	span.SetAttributes(attribute.String("tx.hash", txHash))

	o.transition(span, StateConfirming)
	receipt, err := awaitEVMReceipt(ctx, client, txHash, o.confirmTimeout, o.pollInterval)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &Error{Kind: ConfirmationTimeout, State: StateConfirming, TxRef: txHash, Err: err}
		}
		return nil, &Error{Kind: Internal, State: StateConfirming, TxRef: txHash, Err: err}
	}

	o.transition(span, StateParsingResult)
	reward, parsed := ParseCheckedInReward(receipt.Logs, profile.ContractAddress)
	if !parsed {
		reward = o.fallbackReward(ctx, address)
		o.noteParseFallback(ctx, profile, txHash)
	}

	return o.reconcile(ctx, span, profile, address, reward, txHash, parsed)
}

func (o *Orchestrator) runSolana(ctx context.Context, span trace.Span, profile chain.Profile, address string) (*Result, error) {
	provider, err := o.wallet.Solana()
	if err != nil {
		return nil, failure(NotConnected, StateWalletCheck, err)
	}
	if o.solanaClient == nil {
		return nil, failure(Internal, StatePreflight, fmt.Errorf("no Solana RPC client configured"))
	}
	client := o.solanaClient(profile)

	o.transition(span, StatePreflight)
	if err := o.preflight.CheckSolana(ctx, client, address); err != nil {
		var ibe *preflight.InsufficientBalanceError
		if errors.As(err, &ibe) {
			return nil, failure(InsufficientBalance, StatePreflight, err)
		}
		return nil, failure(Internal, StatePreflight, err)
	}

	o.transition(span, StateAwaitingSignature)
	signature, err := submitSolana(ctx, client, provider, profile.ContractAddress)
	if err != nil {
		if wallet.IsUserRejection(err) {
			return nil, failure(UserRejected, StateAwaitingSignature, err)
		}
		return nil, failure(Internal, StateAwaitingSignature, err)
	}
	span.SetAttributes(attribute.String("tx.signature", signature))

	o.transition(span, StateConfirming)
	if err := awaitSolanaFinality(ctx, client, signature, o.confirmTimeout, o.pollInterval); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &Error{Kind: ConfirmationTimeout, State: StateConfirming, TxRef: signature, Err: err}
		}
		return nil, &Error{Kind: Internal, State: StateConfirming, TxRef: signature, Err: err}
	}

	// The program emits no decodable reward; the configured default
	// applies, same as an EVM receipt with an undecodable event.
	o.transition(span, StateParsingResult)
	reward := Reward{Credits: o.defaultReward, Streak: o.defaultStreak}

	return o.reconcile(ctx, span, profile, address, reward, signature, false)
}

func (o *Orchestrator) reconcile(ctx context.Context, span trace.Span, profile chain.Profile, address string, reward Reward, txRef string, parsed bool) (*Result, error) {
	o.transition(span, StateReconciling)
	rec, err := o.ledger.ApplyReward(ctx, address, reward.Credits, reward.Streak, txRef)
	if err != nil {
		return nil, &Error{Kind: Internal, State: StateReconciling, TxRef: txRef, Err: err}
	}

	o.statusCache.Remove(address)
	o.transition(span, StateDone)
	return &Result{
		ChainKey:    profile.Key,
		Address:     address,
		Credits:     reward.Credits,
		Streak:      reward.Streak,
		TxRef:       txRef,
		ExplorerURL: profile.ExplorerTxURL(txRef),
		EventParsed: parsed,
		Record:      rec,
	}, nil
}

// fallbackReward is used when the CheckedIn event cannot be decoded.
// The contract's own view is preferred over the configured constant:
// a post-confirmation getUserStatus read carries the updated streak.
func (o *Orchestrator) fallbackReward(ctx context.Context, address string) Reward {
	reward := Reward{Credits: o.defaultReward, Streak: o.defaultStreak}
	status, err := o.fetchEVMStatus(ctx, address)
	if err != nil {
		return reward
	}
	if status.Streak > 0 {
		reward.Streak = status.Streak
	}
	if status.NextReward > 0 {
		reward.Credits = status.NextReward
	}
	return reward
}

// noteParseFallback records that a confirmed check-in produced no
// decodable CheckedIn event. The default reward may drift from the
// on-chain amount until the next remote reconciliation.
func (o *Orchestrator) noteParseFallback(ctx context.Context, profile chain.Profile, txHash string) {
	metrics.EventParseFallbacksTotal.WithLabelValues(profile.Key).Inc()
	o.logger.Warn("CheckedIn event not found in receipt, using default reward",
		"chain", profile.Key,
		"tx", txHash,
		"default_reward", o.defaultReward)
	if err := o.alerter.Send(ctx, alert.Alert{
		Type:    alert.AlertTypeEventParseFallback,
		Chain:   profile.Key,
		Title:   "check-in event not decodable",
		Message: "receipt confirmed but CheckedIn log missing or malformed",
		Fields:  map[string]string{"tx": txHash},
	}); err != nil {
		o.logger.Warn("event parse fallback alert failed", "error", err)
	}
}

func (o *Orchestrator) transition(span trace.Span, state State) {
	span.AddEvent(string(state))
	if o.events.OnState != nil {
		o.events.OnState(state)
	}
}

func (o *Orchestrator) emitStart(chainKey string) {
	if o.events.OnStart != nil {
		o.events.OnStart(chainKey)
	}
}

func (o *Orchestrator) emitSuccess(result Result) {
	if o.events.OnSuccess != nil {
		o.events.OnSuccess(result)
	}
}

func (o *Orchestrator) emitError(err *Error) {
	if o.events.OnState != nil {
		o.events.OnState(StateError)
	}
	if o.events.OnError != nil {
		o.events.OnError(err)
	}
}
