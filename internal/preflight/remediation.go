package preflight

import (
	"fmt"
	"strings"

	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/chain"
)

// ActionKind classifies a remediation step a user can take when the
// fee check fails.
type ActionKind string

const (
	ActionSwap    ActionKind = "swap"
	ActionBridge  ActionKind = "bridge"
	ActionDeposit ActionKind = "deposit"
	ActionFaucet  ActionKind = "faucet"
)

// Action is one suggested way to top up the fee token, with the URL
// the UI opens.
type Action struct {
	Kind        ActionKind `json:"kind"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	URL         string     `json:"url"`
}

// RemediationFor returns the ordered top-up suggestions for a chain.
// Pure lookup, safe for any key; unknown keys get the generic set.
func RemediationFor(chainKey, symbol string) []Action {
	if symbol == "" {
		symbol = "ETH"
	}
	switch strings.ToLower(chainKey) {
	case chain.KeyBSC:
		return []Action{
			{ActionSwap, "Swap tokens to BNB", "Use PancakeSwap to exchange tokens", "https://pancakeswap.finance/swap?chain=bsc"},
			{ActionBridge, "Bridge from other chains", "Transfer assets from Ethereum, etc.", "https://www.bnbchain.org/en/bnb-chain-bridge"},
			{ActionDeposit, "Deposit from exchange", "Withdraw BNB from your exchange account", "https://www.binance.com/en/support/faq/list/2"},
		}
	case chain.KeyOpBNB:
		return []Action{
			{ActionSwap, "Swap tokens to BNB", "Use PancakeSwap to exchange tokens", "https://pancakeswap.finance/swap?chain=opbnb"},
			{ActionBridge, "Bridge from other chains", "Transfer assets from Ethereum, etc.", "https://www.bnbchain.org/en/bnb-chain-bridge"},
			{ActionDeposit, "Deposit from exchange", "Withdraw BNB from your exchange account", "https://www.binance.com/en/support/faq/list/2"},
		}
	case chain.KeyETH:
		return []Action{
			{ActionSwap, "Swap tokens to ETH", "Use Uniswap to exchange tokens", "https://app.uniswap.org/swap?chain=mainnet"},
			{ActionBridge, "Bridge from L2 / other chains", "Move ETH to mainnet if needed", "https://www.bnbchain.org/en/bnb-chain-bridge"},
			{ActionDeposit, "Buy / Deposit ETH", "Top up ETH to pay gas", "https://portfolio.metamask.io/buy"},
		}
	case chain.KeyBase:
		return []Action{
			{ActionSwap, "Swap tokens to ETH (Base)", "Use Uniswap on Base", "https://app.uniswap.org/swap?chain=base"},
			{ActionBridge, "Bridge to Base", "Use Base Bridge to move ETH to Base", "https://bridge.base.org/"},
			{ActionDeposit, "Top up ETH on Base", "Ensure your wallet has ETH on Base", "https://portfolio.metamask.io/buy"},
		}
	case chain.KeySolana:
		return []Action{
			{ActionSwap, "Swap tokens to SOL", "Use Jupiter to exchange tokens", "https://jup.ag/"},
			{ActionDeposit, "Deposit from exchange", "Withdraw SOL from your exchange account", "https://www.binance.com/en/support/faq/list/2"},
		}
	default:
		return []Action{
			{ActionSwap, "Swap to native gas token", fmt.Sprintf("Swap tokens to %s", symbol), "https://app.uniswap.org/swap?chain=mainnet"},
			{ActionBridge, "Bridge assets", "Bridge from another network", "https://www.bnbchain.org/en/bnb-chain-bridge"},
			{ActionDeposit, "Top up", fmt.Sprintf("Add %s to your wallet", symbol), "https://portfolio.metamask.io/buy"},
		}
	}
}
