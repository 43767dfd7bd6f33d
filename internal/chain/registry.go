package chain

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/domain/model"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when a chain key has no profile.
var ErrNotFound = errors.New("chain profile not found")

// ChangeEvent is delivered to subscribed listeners whenever the current
// chain or Solana cluster selection changes.
type ChangeEvent struct {
	Key     string
	Cluster model.Cluster // set only for solana
}

// Listener receives chain/cluster selection changes.
type Listener func(ChangeEvent)

// Preference persists the user's chain and cluster selection across
// sessions. Implementations must tolerate missing values.
type Preference interface {
	Get(key string) string
	Set(key, value string)
}

const (
	prefCurrentChain  = "currentChainKey"
	prefSolanaCluster = "solanaCluster"
)

// Registry holds the immutable chain profile table plus the mutable
// current-selection pointer. Profile data never changes after Load.
type Registry struct {
	mu             sync.RWMutex
	profiles       map[string]Profile
	current        string
	cluster        model.Cluster
	programID      string
	defaultProgram string
	pref           Preference
	listeners      []Listener
	logger         *slog.Logger
}

// Options configures registry construction.
type Options struct {
	// OverridesPath optionally points to a YAML file replacing RPC
	// URLs or contract addresses of built-in profiles.
	OverridesPath string
	// EnvCluster is the environment-supplied default Solana cluster,
	// consulted when no persisted preference exists.
	EnvCluster string
	// DefaultProgramID overrides the built-in default Solana program id.
	DefaultProgramID string
	Preference       Preference
	Logger           *slog.Logger
}

type overrideFile struct {
	Chains []Profile `yaml:"chains"`
}

// Load builds the registry: built-in profiles, optional YAML overrides,
// then Solana cluster resolution (persisted preference > env default >
// devnet) and program id selection from the per-cluster table.
func Load(opts Options) (*Registry, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pref := opts.Preference
	if pref == nil {
		pref = noopPreference{}
	}

	profiles := make(map[string]Profile)
	for _, p := range defaultProfiles() {
		profiles[p.Key] = p
	}

	if opts.OverridesPath != "" {
		raw, err := os.ReadFile(opts.OverridesPath)
		if err != nil {
			return nil, fmt.Errorf("read chain overrides: %w", err)
		}
		var of overrideFile
		if err := yaml.Unmarshal(raw, &of); err != nil {
			return nil, fmt.Errorf("parse chain overrides: %w", err)
		}
		for _, o := range of.Chains {
			key := strings.ToLower(o.Key)
			base, ok := profiles[key]
			if !ok {
				logger.Warn("override for unknown chain ignored", "key", o.Key)
				continue
			}
			if o.RPCURL != "" {
				base.RPCURL = o.RPCURL
			}
			if o.ContractAddress != "" {
				base.ContractAddress = o.ContractAddress
			}
			if o.ExplorerBaseURL != "" {
				base.ExplorerBaseURL = o.ExplorerBaseURL
			}
			profiles[key] = base
		}
	}

	cluster := resolveCluster(pref, opts.EnvCluster)

	defaultProgram := opts.DefaultProgramID
	if defaultProgram == "" {
		defaultProgram = DefaultSolanaProgramID
	}

	r := &Registry{
		profiles:       profiles,
		cluster:        cluster,
		programID:      programIDFor(cluster, defaultProgram),
		defaultProgram: defaultProgram,
		pref:           pref,
		logger:         logger.With("component", "chain_registry"),
	}

	current := pref.Get(prefCurrentChain)
	if current == "" {
		current = KeyBSC
	}
	if _, err := r.Profile(current); err != nil {
		current = KeyBSC
	}
	r.current = strings.ToLower(current)

	r.logger.Info("chain registry loaded",
		"chains", len(profiles)+1,
		"current", r.current,
		"solana_cluster", cluster,
	)
	return r, nil
}

func resolveCluster(pref Preference, envDefault string) model.Cluster {
	if v := pref.Get(prefSolanaCluster); v != "" {
		return model.NormalizeCluster(v)
	}
	if envDefault != "" {
		return model.NormalizeCluster(envDefault)
	}
	return model.ClusterDevnet
}

func programIDFor(cluster model.Cluster, fallback string) string {
	if id, ok := solanaProgramIDs[cluster]; ok && id != "" {
		return id
	}
	return fallback
}

// Profile returns the profile for a case-insensitive chain key. The
// solana profile is assembled from the currently resolved cluster.
func (r *Registry) Profile(key string) (Profile, error) {
	k := strings.ToLower(strings.TrimSpace(key))
	if k == KeySolana {
		return r.solanaProfile(), nil
	}
	r.mu.RLock()
	p, ok := r.profiles[k]
	r.mu.RUnlock()
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return p, nil
}

func (r *Registry) solanaProfile() Profile {
	r.mu.RLock()
	cluster := r.cluster
	programID := r.programID
	r.mu.RUnlock()
	return Profile{
		Key:             KeySolana,
		Kind:            model.KindSolana,
		DisplayName:     "Solana",
		Cluster:         cluster,
		ContractAddress: programID,
		RPCURL:          solanaEndpoints[cluster],
		NativeCurrency:  NativeCurrency{Name: "SOL", Symbol: "SOL", Decimals: 9},
		ExplorerBaseURL: solanaExplorers[cluster],
	}
}

// Current returns the profile of the currently selected chain.
func (r *Registry) Current() Profile {
	r.mu.RLock()
	key := r.current
	r.mu.RUnlock()
	p, _ := r.Profile(key)
	return p
}

// SetCurrent switches the current chain selection and notifies
// listeners. Unknown keys fall back to bsc, matching prior behavior.
func (r *Registry) SetCurrent(key string) {
	k := strings.ToLower(strings.TrimSpace(key))
	if _, err := r.Profile(k); err != nil {
		k = KeyBSC
	}
	r.mu.Lock()
	r.current = k
	listeners := append([]Listener(nil), r.listeners...)
	cluster := r.cluster
	r.mu.Unlock()

	r.pref.Set(prefCurrentChain, k)
	ev := ChangeEvent{Key: k}
	if k == KeySolana {
		ev.Cluster = cluster
	}
	for _, l := range listeners {
		l(ev)
	}
}

// SetSolanaCluster re-resolves the Solana cluster and program id, then
// notifies listeners. The resulting solana Profile values change, but
// each Profile returned to callers remains an immutable snapshot.
func (r *Registry) SetSolanaCluster(raw string) {
	cluster := model.NormalizeCluster(raw)
	r.mu.Lock()
	r.cluster = cluster
	r.programID = programIDFor(cluster, r.defaultProgram)
	listeners := append([]Listener(nil), r.listeners...)
	r.mu.Unlock()

	r.pref.Set(prefSolanaCluster, cluster.String())
	for _, l := range listeners {
		l(ChangeEvent{Key: KeySolana, Cluster: cluster})
	}
}

// Subscribe registers a listener for selection changes.
func (r *Registry) Subscribe(l Listener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, l)
	r.mu.Unlock()
}

type noopPreference struct{}

func (noopPreference) Get(string) string { return "" }
func (noopPreference) Set(string, string) {}
