package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/chain"
	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/metrics"
)

// SwitchResult describes how the wallet ended up on the target chain.
type SwitchResult string

const (
	SwitchAlreadyActive SwitchResult = "active"
	SwitchSwitched      SwitchResult = "switched"
	SwitchAdded         SwitchResult = "added"
)

// addChainParams is the wallet_addEthereumChain parameter object,
// populated from the chain profile.
type addChainParams struct {
	ChainID           string               `json:"chainId"`
	ChainName         string               `json:"chainName"`
	RPCURLs           []string             `json:"rpcUrls"`
	NativeCurrency    chain.NativeCurrency `json:"nativeCurrency"`
	BlockExplorerURLs []string             `json:"blockExplorerUrls"`
}

// EnsureChain asks the wallet to move to the profile's chain. A wallet
// that does not know the chain (code 4902) gets wallet_addEthereumChain
// with the profile metadata; the add call itself activates the chain,
// so no second switch is issued.
func EnsureChain(ctx context.Context, provider EIP1193Provider, profile chain.Profile, logger *slog.Logger) (SwitchResult, error) {
	raw, err := provider.Request(ctx, "eth_chainId", nil)
	if err == nil {
		var current string
		if json.Unmarshal(raw, &current) == nil &&
			strings.EqualFold(current, profile.ChainIDHex) {
			return SwitchAlreadyActive, nil
		}
	} else {
		logger.Warn("eth_chainId read failed before switch", "error", err)
	}

	_, err = provider.Request(ctx, "wallet_switchEthereumChain",
		[]interface{}{map[string]string{"chainId": profile.ChainIDHex}})
	if err == nil {
		metrics.ChainSwitchesTotal.WithLabelValues(profile.Key, "switched").Inc()
		return SwitchSwitched, nil
	}

	if !IsUnrecognizedChain(err) {
		metrics.ChainSwitchesTotal.WithLabelValues(profile.Key, "failed").Inc()
		return "", fmt.Errorf("switch to %s: %w", profile.Key, err)
	}

	logger.Info("chain unknown to wallet, adding", "chain", profile.Key)
	_, err = provider.Request(ctx, "wallet_addEthereumChain", []interface{}{addChainParams{
		ChainID:           profile.ChainIDHex,
		ChainName:         profile.DisplayName,
		RPCURLs:           []string{profile.RPCURL},
		NativeCurrency:    profile.NativeCurrency,
		BlockExplorerURLs: []string{profile.ExplorerBaseURL},
	}})
	if err != nil {
		metrics.ChainSwitchesTotal.WithLabelValues(profile.Key, "failed").Inc()
		return "", fmt.Errorf("add chain %s: %w", profile.Key, err)
	}

	metrics.ChainSwitchesTotal.WithLabelValues(profile.Key, "added").Inc()
	return SwitchAdded, nil
}
