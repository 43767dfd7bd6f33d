package model

import (
	"strings"
	"time"
)

// Kind distinguishes the two wallet/chain runtimes the orchestrator
// speaks to. Every chain profile and every wallet session carries one.
type Kind string

const (
	KindEVM    Kind = "evm"
	KindSolana Kind = "solana"
)

func (k Kind) String() string {
	return string(k)
}

// Cluster identifies a Solana cluster.
type Cluster string

const (
	ClusterMainnet Cluster = "mainnet"
	ClusterDevnet  Cluster = "devnet"
	ClusterTestnet Cluster = "testnet"
)

func (c Cluster) String() string {
	return string(c)
}

// NormalizeCluster maps user-supplied cluster spellings onto the
// canonical set. Unknown or empty input falls back to devnet.
func NormalizeCluster(raw string) Cluster {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "mainnet", "mainnet-beta", "mainnetbeta":
		return ClusterMainnet
	case "testnet":
		return ClusterTestnet
	default:
		return ClusterDevnet
	}
}

// CooldownWindow is the minimum interval between two check-ins for the
// same address.
const CooldownWindow = 24 * time.Hour

// Record is the durable per-wallet-address ledger aggregate. It exists
// in two copies (local archive, remote document store) keyed by the
// lowercased EVM address or the literal Solana address.
type Record struct {
	Address        string `json:"address"`
	Credits        int64  `json:"credits"`
	TotalCheckins  int64  `json:"totalCheckins"`
	LastCheckinAtMs int64 `json:"lastCheckinAtMs"`
	// LastCheckinDay is a YYYY-MM-DD calendar-day marker kept for
	// records written before precise timestamps were recorded.
	LastCheckinDay string `json:"lastCheckinDay,omitempty"`
	Streak         int64  `json:"streak"`
	LastCheckinTx  string `json:"lastCheckinTx,omitempty"`
}

// NormalizeAddress lowercases EVM addresses; Solana addresses are
// case-sensitive base58 and pass through unchanged.
func NormalizeAddress(kind Kind, address string) string {
	if kind == KindEVM {
		return strings.ToLower(address)
	}
	return address
}

// CanCheckIn reports whether the cooldown window has elapsed for this
// record at the given instant. A record with no precise timestamp falls
// back to the calendar-day marker; a record with neither is a first-ever
// check-in and is always allowed.
func (r *Record) CanCheckIn(now time.Time) bool {
	if r == nil {
		return true
	}
	if r.LastCheckinAtMs > 0 {
		last := time.UnixMilli(r.LastCheckinAtMs)
		return now.Sub(last) >= CooldownWindow
	}
	if r.LastCheckinDay != "" {
		return r.LastCheckinDay != now.UTC().Format("2006-01-02")
	}
	return true
}
