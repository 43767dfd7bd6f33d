package preflight

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/chain"
	evmrpc "github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/chain/evm/rpc"
	solrpc "github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/chain/solana/rpc"
)

// Estimation-failure floors. Gas estimation on a contract the wallet
// has never touched can revert; rather than blocking the attempt, the
// check degrades to a flat minimum of native balance.
var (
	fallbackMinWeiETH = big.NewInt(200_000_000_000_000) // 0.0002 ETH
	fallbackMinWeiBNB = big.NewInt(50_000_000_000_000)  // 0.00005 BNB
)

// Fee plus rent headroom for one check-in instruction.
const minLamports uint64 = 10_000

// gasBufferNum/Den apply a 20% headroom over the raw estimate.
const (
	gasBufferNum = 120
	gasBufferDen = 100
)

// InsufficientBalanceError reports a wallet that cannot cover the
// transaction fee, with the figures the UI layer renders and the
// per-chain remediation actions.
type InsufficientBalanceError struct {
	ChainKey    string
	Symbol      string
	Have        *big.Int // wei or lamports
	Need        *big.Int
	Decimals    int
	Remediation []Action
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance on %s: have %s, need %s",
		e.Symbol, e.ChainKey,
		FormatNative(e.Have, e.Decimals),
		FormatNative(e.Need, e.Decimals))
}

// Checker runs the pre-submission fee check against chain RPC.
type Checker struct {
	logger *slog.Logger
}

func NewChecker(logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{logger: logger.With("component", "preflight")}
}

// CheckEVM verifies the wallet can pay for the check-in transaction.
// Required fee is estimateGas x gasPrice x 1.2; when estimation fails
// the per-chain fallback floor applies instead so a transient RPC
// hiccup cannot dead-end the flow.
func (c *Checker) CheckEVM(ctx context.Context, client evmrpc.RPCClient, profile chain.Profile, from, calldata string) error {
	need := c.requiredWei(ctx, client, profile, from, calldata)

	balance, err := client.GetBalance(ctx, from)
	if err != nil {
		return fmt.Errorf("balance of %s on %s: %w", from, profile.Key, err)
	}

	if balance.Cmp(need) < 0 {
		return &InsufficientBalanceError{
			ChainKey:    profile.Key,
			Symbol:      profile.NativeCurrency.Symbol,
			Have:        balance,
			Need:        need,
			Decimals:    profile.NativeCurrency.Decimals,
			Remediation: RemediationFor(profile.Key, profile.NativeCurrency.Symbol),
		}
	}
	return nil
}

func (c *Checker) requiredWei(ctx context.Context, client evmrpc.RPCClient, profile chain.Profile, from, calldata string) *big.Int {
	msg := evmrpc.CallMsg{
		From:  from,
		To:    profile.ContractAddress,
		Data:  calldata,
		Value: "0x0",
	}
	gas, err := client.EstimateGas(ctx, msg)
	if err != nil {
		c.logger.Warn("gas estimation failed, using fallback floor",
			"chain", profile.Key, "error", err)
		return fallbackFloor(profile)
	}
	price, err := client.GasPrice(ctx)
	if err != nil {
		c.logger.Warn("gas price read failed, using fallback floor",
			"chain", profile.Key, "error", err)
		return fallbackFloor(profile)
	}

	need := new(big.Int).SetUint64(gas)
	need.Mul(need, price)
	need.Mul(need, big.NewInt(gasBufferNum))
	need.Div(need, big.NewInt(gasBufferDen))
	return need
}

func fallbackFloor(profile chain.Profile) *big.Int {
	switch profile.Key {
	case chain.KeyETH, chain.KeyBase:
		return new(big.Int).Set(fallbackMinWeiETH)
	default:
		return new(big.Int).Set(fallbackMinWeiBNB)
	}
}

// CheckSolana applies a flat minimum-lamports floor: one instruction's
// fee plus headroom. No estimation round trip is worth the latency at
// these amounts.
func (c *Checker) CheckSolana(ctx context.Context, client solrpc.RPCClient, pubkey string) error {
	balance, err := client.GetBalance(ctx, pubkey)
	if err != nil {
		return fmt.Errorf("balance of %s: %w", pubkey, err)
	}
	if balance < minLamports {
		return &InsufficientBalanceError{
			ChainKey:    chain.KeySolana,
			Symbol:      "SOL",
			Have:        new(big.Int).SetUint64(balance),
			Need:        new(big.Int).SetUint64(minLamports),
			Decimals:    9,
			Remediation: RemediationFor(chain.KeySolana, "SOL"),
		}
	}
	return nil
}

// FormatNative renders a raw base-unit amount as a decimal string in
// the chain's display unit, trailing zeros trimmed.
func FormatNative(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	if decimals <= 0 {
		return amount.String()
	}
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(amount, unit, new(big.Int))

	fracStr := frac.String()
	for len(fracStr) < decimals {
		fracStr = "0" + fracStr
	}
	for len(fracStr) > 0 && fracStr[len(fracStr)-1] == '0' {
		fracStr = fracStr[:len(fracStr)-1]
	}
	if fracStr == "" {
		return whole.String()
	}
	return whole.String() + "." + fracStr
}
