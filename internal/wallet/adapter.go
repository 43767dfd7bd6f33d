package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/domain/model"
	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/metrics"
)

const (
	phantomInstallURL  = "https://phantom.app/download"
	phantomBrowsePath  = "https://phantom.app/ul/browse/"
	defaultConnectWait = 10 * time.Second
)

// Session is the single active wallet session. Owned exclusively by the
// adapter; destroyed on disconnect or account switch.
type Session struct {
	Kind    model.Kind
	Address string
	Brand   Brand
}

// SessionStore persists session-only keys (connected flag, last wallet
// type). Cleared on disconnect; never holds the durable ledger archive.
type SessionStore interface {
	Set(key, value string)
	Get(key string) string
	Erase()
}

// Events are emitted by the adapter on wallet runtime changes. The
// outgoing address accompanies account changes so the ledger can
// archive it before the new session loads.
type Events struct {
	OnAccountsChanged func(outgoing, incoming string)
	OnChainChanged    func(chainIDHex string)
	OnDisconnect      func(outgoing string)
}

// Adapter hides the differences between EVM wallet runtimes and the
// Solana wallet behind one connect/disconnect surface.
type Adapter struct {
	mu       sync.Mutex
	injected []Injected
	solana   SolanaProvider
	mobile   bool

	session  *Session
	provider EIP1193Provider

	connectWait time.Duration
	preferred   Brand
	store       SessionStore
	events      Events
	logger      *slog.Logger
}

// Config configures the adapter.
type Config struct {
	Injected    []Injected
	Solana      SolanaProvider
	Mobile      bool
	ConnectWait time.Duration
	// PreferredBrand is tried first when Connect is called without an
	// explicit preference and several injected providers are present.
	PreferredBrand Brand
	Store          SessionStore
	Events         Events
	Logger         *slog.Logger
}

func NewAdapter(cfg Config) *Adapter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	wait := cfg.ConnectWait
	if wait <= 0 {
		wait = defaultConnectWait
	}
	store := cfg.Store
	if store == nil {
		store = noopStore{}
	}
	return &Adapter{
		injected:    cfg.Injected,
		solana:      cfg.Solana,
		mobile:      cfg.Mobile,
		connectWait: wait,
		preferred:   cfg.PreferredBrand,
		store:       store,
		events:      cfg.Events,
		logger:      logger.With("component", "wallet_adapter"),
	}
}

// Session returns a copy of the active session, or nil.
func (a *Adapter) Session() *Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return nil
	}
	s := *a.session
	return &s
}

// Provider returns the active EVM provider for transaction submission.
func (a *Adapter) Provider() (EIP1193Provider, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil || a.session.Kind != model.KindEVM || a.provider == nil {
		return nil, ErrNotConnected
	}
	return a.provider, nil
}

// Solana returns the Solana provider when a Solana session is active.
func (a *Adapter) Solana() (SolanaProvider, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil || a.session.Kind != model.KindSolana || a.solana == nil {
		return nil, ErrNotConnected
	}
	return a.solana, nil
}

// Connect establishes a session of the requested kind. preferred picks
// among multiple injected EVM providers and is ignored for Solana; an
// empty preference falls back to the configured PreferredBrand.
func (a *Adapter) Connect(ctx context.Context, kind model.Kind, preferred Brand) (*Session, error) {
	if preferred == "" {
		preferred = a.preferred
	}
	var (
		sess *Session
		err  error
	)
	switch kind {
	case model.KindSolana:
		sess, err = a.connectSolana(ctx)
	default:
		sess, err = a.connectEVM(ctx, preferred)
	}

	result := "ok"
	if err != nil {
		result = "error"
		if IsUserRejection(err) {
			result = "rejected"
		}
	}
	metrics.WalletConnectsTotal.WithLabelValues(kind.String(), result).Inc()
	return sess, err
}

// connectEVM reads eth_accounts first and only falls back to the
// consent-prompting eth_requestAccounts, bounded by the connect window.
// A pending-request or rejection error triggers one eth_accounts
// re-poll: the user may have approved an earlier prompt already.
func (a *Adapter) connectEVM(ctx context.Context, preferred Brand) (*Session, error) {
	provider, brand, err := selectProvider(a.injected, preferred)
	if err != nil {
		return nil, err
	}

	accounts, err := requestAccounts(ctx, provider, "eth_accounts")
	if err != nil {
		a.logger.Warn("eth_accounts read failed", "error", err)
	}

	if len(accounts) == 0 {
		reqCtx, cancel := context.WithTimeout(ctx, a.connectWait)
		accounts, err = requestAccounts(reqCtx, provider, "eth_requestAccounts")
		cancel()
		switch {
		case err == nil:
		case reqCtx.Err() == context.DeadlineExceeded:
			return nil, ErrConnectTimeout
		case IsRequestPending(err) || IsUserRejection(err):
			// Re-poll once: a previously pending prompt may have been
			// approved out of band.
			accounts, _ = requestAccounts(ctx, provider, "eth_accounts")
			if len(accounts) == 0 {
				if IsUserRejection(err) {
					return nil, fmt.Errorf("%w: %s", ErrUserRejected, err)
				}
				return nil, fmt.Errorf("connect pending: %w", err)
			}
		default:
			return nil, fmt.Errorf("eth_requestAccounts: %w", err)
		}
	}

	if len(accounts) == 0 {
		return nil, ErrNoProvider
	}

	sess := &Session{Kind: model.KindEVM, Address: accounts[0], Brand: brand}

	a.mu.Lock()
	a.session = sess
	a.provider = provider
	a.mu.Unlock()

	a.store.Set("walletType", string(brand))
	a.registerEVMListeners(provider)

	a.logger.Info("wallet connected", "kind", "evm", "brand", brand, "address", sess.Address)
	s := *sess
	return &s, nil
}

func requestAccounts(ctx context.Context, provider EIP1193Provider, method string) ([]string, error) {
	raw, err := provider.Request(ctx, method, nil)
	if err != nil {
		return nil, err
	}
	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, fmt.Errorf("unmarshal accounts: %w", err)
	}
	return accounts, nil
}

func (a *Adapter) registerEVMListeners(provider EIP1193Provider) {
	provider.On("accountsChanged", func(payload json.RawMessage) {
		var accounts []string
		if err := json.Unmarshal(payload, &accounts); err != nil {
			a.logger.Warn("malformed accountsChanged payload", "error", err)
			return
		}
		a.handleAccountsChanged(accounts)
	})
	provider.On("chainChanged", func(payload json.RawMessage) {
		var chainID string
		if err := json.Unmarshal(payload, &chainID); err != nil {
			return
		}
		if a.events.OnChainChanged != nil {
			a.events.OnChainChanged(chainID)
		}
	})
	provider.On("disconnect", func(json.RawMessage) {
		a.handleProviderDisconnect()
	})
}

func (a *Adapter) handleAccountsChanged(accounts []string) {
	a.mu.Lock()
	outgoing := ""
	if a.session != nil {
		outgoing = a.session.Address
	}
	if len(accounts) == 0 {
		a.session = nil
		a.provider = nil
	} else if a.session != nil {
		a.session.Address = accounts[0]
	}
	a.mu.Unlock()

	if len(accounts) == 0 {
		a.logger.Info("wallet locked or all accounts disconnected", "outgoing", outgoing)
		if a.events.OnDisconnect != nil {
			a.events.OnDisconnect(outgoing)
		}
		return
	}
	if accounts[0] != outgoing {
		a.logger.Info("account switched", "outgoing", outgoing, "incoming", accounts[0])
		if a.events.OnAccountsChanged != nil {
			a.events.OnAccountsChanged(outgoing, accounts[0])
		}
	}
}

func (a *Adapter) handleProviderDisconnect() {
	a.mu.Lock()
	outgoing := ""
	if a.session != nil {
		outgoing = a.session.Address
	}
	a.session = nil
	a.provider = nil
	a.mu.Unlock()

	if a.events.OnDisconnect != nil {
		a.events.OnDisconnect(outgoing)
	}
}

// connectSolana detects the injected Phantom-compatible provider. When
// absent it does not retry: the caller gets a NotInstalledError whose
// remedy URL deep-links into the wallet's in-app browser on mobile or
// the install page on desktop.
func (a *Adapter) connectSolana(ctx context.Context) (*Session, error) {
	if a.solana == nil {
		remedy := phantomInstallURL
		if a.mobile {
			remedy = PhantomDeepLink(a.store.Get("currentURL"))
		}
		return nil, &NotInstalledError{Wallet: "Phantom", RemedyURL: remedy, Mobile: a.mobile}
	}

	pubkey, err := a.solana.Connect(ctx)
	if err != nil {
		if IsUserRejection(err) {
			return nil, fmt.Errorf("%w: %s", ErrUserRejected, err)
		}
		return nil, fmt.Errorf("solana connect: %w", err)
	}

	sess := &Session{Kind: model.KindSolana, Address: pubkey, Brand: BrandGeneric}

	a.mu.Lock()
	a.session = sess
	a.mu.Unlock()

	a.store.Set("walletType", "solana")
	a.solana.On("accountChanged", func(payload json.RawMessage) {
		var next string
		if err := json.Unmarshal(payload, &next); err != nil || next == "" {
			return
		}
		a.handleAccountsChanged([]string{next})
	})
	a.solana.On("disconnect", func(json.RawMessage) {
		a.handleProviderDisconnect()
	})

	a.logger.Info("wallet connected", "kind", "solana", "address", pubkey)
	s := *sess
	return &s, nil
}

// Disconnect tears down the session: best-effort provider disconnect,
// then local session state and session-only keys are cleared
// unconditionally. The durable per-wallet archive is untouched.
func (a *Adapter) Disconnect(ctx context.Context) {
	a.mu.Lock()
	sess := a.session
	a.session = nil
	a.provider = nil
	a.mu.Unlock()

	if sess != nil && sess.Kind == model.KindSolana && a.solana != nil {
		if err := a.solana.Disconnect(ctx); err != nil {
			a.logger.Warn("provider disconnect failed", "error", err)
		}
	}

	a.store.Erase()

	outgoing := ""
	if sess != nil {
		outgoing = sess.Address
	}
	a.logger.Info("wallet disconnected", "address", outgoing)
	if a.events.OnDisconnect != nil {
		a.events.OnDisconnect(outgoing)
	}
}

// PhantomDeepLink builds the in-app-browser URL for the current page.
func PhantomDeepLink(currentURL string) string {
	return phantomBrowsePath + url.QueryEscape(currentURL)
}

type noopStore struct{}

func (noopStore) Set(string, string) {}
func (noopStore) Get(string) string  { return "" }
func (noopStore) Erase()             {}
