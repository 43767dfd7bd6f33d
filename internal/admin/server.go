package admin

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/chain"
	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/domain/model"
)

const maxRequestBodyBytes = 1 << 20 // 1 MB

// timeNow is injectable for tests.
var timeNow = time.Now

// RecordReader looks up a wallet's merged ledger record.
type RecordReader interface {
	LoadOnConnect(ctx context.Context, address string) (*model.Record, error)
}

// StatusProvider reports the contract's view of a wallet on the
// currently selected chain.
type StatusProvider interface {
	CanCheckIn(ctx context.Context, address string) (bool, error)
}

// Server provides the operational HTTP API: chain selection, ledger
// lookups and health.
type Server struct {
	registry *chain.Registry
	ledger   RecordReader
	status   StatusProvider
	token    string
	logger   *slog.Logger
}

// NewServer creates the admin API server. token guards mutating
// endpoints; an empty token disables them.
func NewServer(registry *chain.Registry, ledger RecordReader, logger *slog.Logger, opts ...ServerOption) *Server {
	s := &Server{
		registry: registry,
		ledger:   ledger,
		logger:   logger.With("component", "admin"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServerOption configures optional dependencies for the admin server.
type ServerOption func(*Server)

// WithToken sets the bearer token required for mutating endpoints.
func WithToken(token string) ServerOption {
	return func(s *Server) { s.token = token }
}

// WithStatusProvider wires the check-in status lookup.
func WithStatusProvider(sp StatusProvider) ServerOption {
	return func(s *Server) { s.status = sp }
}

// Handler returns the HTTP handler for the admin API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/v1/chains", s.handleListChains)
	mux.HandleFunc("GET /admin/v1/chains/current", s.handleCurrentChain)
	mux.HandleFunc("POST /admin/v1/chains/current", s.requireToken(s.handleSelectChain))
	mux.HandleFunc("GET /admin/v1/ledger", s.handleLedgerLookup)
	mux.HandleFunc("GET /admin/v1/healthz", s.handleHealthz)
	return mux
}

// writeJSON writes v as JSON with the given HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSONBody reads and decodes a JSON request body into v.
// Returns false (and writes an error response) if decoding fails.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			http.Error(w, `{"error":"mutating endpoints disabled: no admin token configured"}`, http.StatusForbidden)
			return
		}
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

type chainResponse struct {
	Key         string `json:"key"`
	Kind        string `json:"kind"`
	DisplayName string `json:"display_name"`
	ChainID     string `json:"chain_id,omitempty"`
	Cluster     string `json:"cluster,omitempty"`
	Contract    string `json:"contract"`
	Explorer    string `json:"explorer"`
}

func toChainResponse(p chain.Profile) chainResponse {
	return chainResponse{
		Key:         p.Key,
		Kind:        p.Kind.String(),
		DisplayName: p.DisplayName,
		ChainID:     p.ChainIDHex,
		Cluster:     string(p.Cluster),
		Contract:    p.ContractAddress,
		Explorer:    p.ExplorerBaseURL,
	}
}

func (s *Server) handleListChains(w http.ResponseWriter, r *http.Request) {
	keys := []string{chain.KeyBSC, chain.KeyOpBNB, chain.KeyETH, chain.KeyBase, chain.KeySolana}
	out := make([]chainResponse, 0, len(keys))
	for _, key := range keys {
		p, err := s.registry.Profile(key)
		if err != nil {
			continue
		}
		out = append(out, toChainResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCurrentChain(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toChainResponse(s.registry.Current()))
}

type selectChainRequest struct {
	Key     string `json:"key"`
	Cluster string `json:"cluster,omitempty"`
}

func (s *Server) handleSelectChain(w http.ResponseWriter, r *http.Request) {
	var req selectChainRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if _, err := s.registry.Profile(req.Key); err != nil {
		http.Error(w, `{"error":"unknown chain key"}`, http.StatusBadRequest)
		return
	}
	if req.Key == chain.KeySolana && req.Cluster != "" {
		s.registry.SetSolanaCluster(req.Cluster)
	}
	s.registry.SetCurrent(req.Key)
	s.logger.Info("chain selected via admin API", "key", req.Key, "cluster", req.Cluster)
	writeJSON(w, http.StatusOK, toChainResponse(s.registry.Current()))
}

type ledgerResponse struct {
	Address         string `json:"address"`
	Credits         int64  `json:"credits"`
	TotalCheckins   int64  `json:"total_checkins"`
	Streak          int64  `json:"streak"`
	LastCheckinAtMs int64  `json:"last_checkin_at_ms,omitempty"`
	LastCheckinDay  string `json:"last_checkin_day,omitempty"`
	LastCheckinTx   string `json:"last_checkin_tx,omitempty"`
	CanCheckIn      bool   `json:"can_check_in"`
}

func (s *Server) handleLedgerLookup(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimSpace(r.URL.Query().Get("address"))
	if address == "" {
		http.Error(w, `{"error":"address query param required"}`, http.StatusBadRequest)
		return
	}
	profile := s.registry.Current()
	normalized := model.NormalizeAddress(profile.Kind, address)

	rec, err := s.ledger.LoadOnConnect(r.Context(), normalized)
	if err != nil {
		s.logger.Warn("ledger lookup failed", "address", normalized, "error", err)
		http.Error(w, `{"error":"ledger lookup failed"}`, http.StatusInternalServerError)
		return
	}

	canCheckIn := rec.CanCheckIn(timeNow())
	if s.status != nil {
		if ok, err := s.status.CanCheckIn(r.Context(), normalized); err == nil {
			canCheckIn = ok
		}
	}

	writeJSON(w, http.StatusOK, ledgerResponse{
		Address:         rec.Address,
		Credits:         rec.Credits,
		TotalCheckins:   rec.TotalCheckins,
		Streak:          rec.Streak,
		LastCheckinAtMs: rec.LastCheckinAtMs,
		LastCheckinDay:  rec.LastCheckinDay,
		LastCheckinTx:   rec.LastCheckinTx,
		CanCheckIn:      canCheckIn,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"chain":  s.registry.Current().Key,
	})
}
