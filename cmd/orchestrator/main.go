package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/admin"
	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/alert"
	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/chain"
	evmrpc "github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/chain/evm/rpc"
	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/chain/ratelimit"
	solrpc "github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/chain/solana/rpc"
	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/checkin"
	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/config"
	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/ledger"
	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/preflight"
	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/tracing"
	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/wallet"
)

const (
	// Client-side pacing for public RPC endpoints.
	rpcRatePerSec = 10.0
	rpcBurst      = 5
)

// kvFile is a small JSON-file key-value store. It backs both the chain
// preference (selected chain, cluster) and the wallet session keys so
// selections survive restarts the way a browser profile would.
type kvFile struct {
	mu   sync.Mutex
	path string
	data map[string]string
}

func newKVFile(path string) *kvFile {
	kv := &kvFile{path: path, data: make(map[string]string)}
	if raw, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(raw, &kv.data)
	}
	return kv
}

func (kv *kvFile) Get(key string) string {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	return kv.data[key]
}

func (kv *kvFile) Set(key, value string) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.data[key] = value
	kv.flushLocked()
}

func (kv *kvFile) Erase() {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.data = make(map[string]string)
	kv.flushLocked()
}

func (kv *kvFile) flushLocked() {
	raw, err := json.MarshalIndent(kv.data, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(kv.path), 0o755); err != nil {
		return
	}
	tmp, err := os.CreateTemp(filepath.Dir(kv.path), ".prefs-*")
	if err != nil {
		return
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return
	}
	tmp.Close()
	_ = os.Rename(tmp.Name(), kv.path)
}

// statusBridge exposes the orchestrator status lookup to the admin API.
type statusBridge struct {
	orch *checkin.Orchestrator
}

func (b statusBridge) CanCheckIn(ctx context.Context, address string) (bool, error) {
	status, err := b.orch.Status(ctx, address)
	if err != nil {
		return false, err
	}
	return status.CanCheckInToday, nil
}

func buildLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Log.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func buildAlerter(cfg *config.Config, logger *slog.Logger) alert.Alerter {
	var alerters []alert.Alerter
	if cfg.Alert.SlackWebhookURL != "" {
		alerters = append(alerters, alert.NewSlackAlerter(cfg.Alert.SlackWebhookURL))
	}
	if cfg.Alert.WebhookURL != "" {
		alerters = append(alerters, alert.NewWebhookAlerter(cfg.Alert.WebhookURL))
	}
	if len(alerters) == 0 {
		return alert.NopAlerter{}
	}
	cooldown := time.Duration(cfg.Alert.CooldownSec) * time.Second
	return alert.NewMultiAlerter(cooldown, logger, alerters...)
}

func runServer(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("server shutdown error", "error", err)
		}
	}()

	logger.Info("http server started", "addr", addr)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := buildLogger(cfg)
	slog.SetDefault(logger)

	logger.Info("starting checkin orchestrator",
		"default_chain", cfg.Chains.DefaultChain,
		"solana_cluster", cfg.Chains.SolanaCluster,
		"ledger_path", cfg.Ledger.Path,
		"remote_ledger", cfg.Ledger.RedisURL != "",
		"listen_addr", cfg.Server.ListenAddr,
	)

	shutdownTracing, err := tracing.Init(context.Background(), "checkin-orchestrator", cfg.Tracing.OTLPEndpoint, cfg.Tracing.Insecure)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()
	if cfg.Tracing.OTLPEndpoint != "" {
		logger.Info("tracing enabled", "endpoint", cfg.Tracing.OTLPEndpoint)
	}

	prefs := newKVFile(filepath.Join(filepath.Dir(cfg.Ledger.Path), "prefs.json"))

	registry, err := chain.Load(chain.Options{
		OverridesPath:    cfg.Chains.OverridesPath,
		EnvCluster:       cfg.Chains.SolanaCluster,
		DefaultProgramID: cfg.Chains.SolanaProgramID,
		Preference:       prefs,
		Logger:           logger,
	})
	if err != nil {
		logger.Error("failed to load chain registry", "error", err)
		os.Exit(1)
	}
	if prefs.Get("currentChainKey") == "" {
		registry.SetCurrent(cfg.Chains.DefaultChain)
	}

	local, err := ledger.NewFileStore(cfg.Ledger.Path)
	if err != nil {
		logger.Error("failed to open ledger file", "path", cfg.Ledger.Path, "error", err)
		os.Exit(1)
	}

	var remote ledger.RemoteStore
	if cfg.Ledger.RedisURL != "" {
		redisStore, err := ledger.NewRedisStore(cfg.Ledger.RedisURL)
		if err != nil {
			logger.Error("failed to connect to remote ledger", "error", err)
			os.Exit(1)
		}
		remote = redisStore
		logger.Info("remote ledger connected")
	}

	alerter := buildAlerter(cfg, logger)

	reconciler := ledger.NewReconciler(ledger.Options{
		Local:         local,
		Remote:        remote,
		Alerter:       alerter,
		Logger:        logger,
		RemoteTimeout: cfg.Ledger.RemoteTimeout(),
	})

	// Injected providers and the Solana wallet are registered by the
	// embedding runtime; the daemon itself starts with none.
	adapter := wallet.NewAdapter(wallet.Config{
		ConnectWait:    time.Duration(cfg.Wallet.ConnectWaitSec) * time.Second,
		PreferredBrand: wallet.Brand(cfg.Wallet.PreferredBrand),
		Store:          prefs,
		Logger:         logger,
		Events: wallet.Events{
			// Archive the outgoing wallet's record before the session
			// changes hands.
			OnAccountsChanged: func(outgoing, incoming string) {
				reconciler.ArchiveOnDisconnect(context.Background(), outgoing)
			},
			OnDisconnect: func(outgoing string) {
				reconciler.ArchiveOnDisconnect(context.Background(), outgoing)
			},
		},
	})

	// Clients are memoized per chain so one token bucket paces all
	// calls against a given endpoint.
	var clientMu sync.Mutex
	evmClients := make(map[string]*evmrpc.Client)
	solClients := make(map[string]*solrpc.Client)

	orch, err := checkin.New(checkin.Config{
		Registry: registry,
		Wallet:   adapter,
		EVMClient: func(p chain.Profile) evmrpc.RPCClient {
			clientMu.Lock()
			defer clientMu.Unlock()
			if c, ok := evmClients[p.Key]; ok {
				return c
			}
			c := evmrpc.NewClient(p.RPCURL, logger,
				evmrpc.WithRateLimiter(ratelimit.NewLimiter(rpcRatePerSec, rpcBurst, p.Key), p.Key))
			evmClients[p.Key] = c
			return c
		},
		SolanaClient: func(p chain.Profile) solrpc.RPCClient {
			clientMu.Lock()
			defer clientMu.Unlock()
			key := p.Key + ":" + string(p.Cluster)
			if c, ok := solClients[key]; ok {
				return c
			}
			c := solrpc.NewClient(p.RPCURL, logger,
				solrpc.WithRateLimiter(ratelimit.NewLimiter(rpcRatePerSec, rpcBurst, p.Key), p.Key))
			solClients[key] = c
			return c
		},
		Preflight:      preflight.NewChecker(logger),
		Ledger:         reconciler,
		Alerter:        alerter,
		Logger:         logger,
		DefaultReward:  cfg.Checkin.DefaultReward,
		DefaultStreak:  cfg.Checkin.DefaultStreak,
		ConfirmTimeout: cfg.Checkin.ConfirmTimeout(),
		PollInterval:   cfg.Checkin.PollInterval(),
		WatchdogWindow: cfg.Checkin.WatchdogWindow(),
		StatusCacheTTL: cfg.Checkin.StatusCacheTTL(),
	})
	if err != nil {
		logger.Error("failed to build orchestrator", "error", err)
		os.Exit(1)
	}

	adminServer := admin.NewServer(registry, reconciler, logger,
		admin.WithToken(cfg.Server.AdminToken),
		admin.WithStatusProvider(statusBridge{orch: orch}),
	)
	rateLimiter := admin.NewRateLimitMiddleware(logger)
	defer rateLimiter.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/admin/", rateLimiter.Wrap(admin.AuditMiddleware(logger, adminServer.Handler())))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runServer(gctx, cfg.Server.ListenAddr, mux, logger)
	})

	if err := g.Wait(); err != nil {
		logger.Error("orchestrator exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("orchestrator stopped")
}
