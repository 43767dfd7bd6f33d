package checkin

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/chain"
	evmrpc "github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/chain/evm/rpc"
	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/wallet"
)

// txRequest is the eth_sendTransaction parameter object. The wallet
// fills in gas and nonce; the orchestrator never signs anything itself.
type txRequest struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
	Data  string `json:"data"`
}

// submitEVM asks the wallet to sign and broadcast the check-in call.
// Returns the transaction hash.
func submitEVM(ctx context.Context, provider wallet.EIP1193Provider, profile chain.Profile, from string) (string, error) {
	raw, err := provider.Request(ctx, "eth_sendTransaction", []interface{}{txRequest{
		From:  from,
		To:    profile.ContractAddress,
		Value: "0x0",
		Data:  CheckInCalldata(),
	}})
	if err != nil {
		return "", err
	}

	var txHash string
	if err := json.Unmarshal(raw, &txHash); err != nil {
		return "", fmt.Errorf("unmarshal tx hash: %w", err)
	}
	if txHash == "" {
		return "", fmt.Errorf("wallet returned empty tx hash")
	}
	return txHash, nil
}

// ErrTxReverted means the transaction confirmed but the contract
// rejected it (status 0x0), most likely an on-chain cooldown miss.
var ErrTxReverted = fmt.Errorf("transaction reverted on-chain")

// awaitEVMReceipt polls for the transaction receipt until the deadline.
// A nil receipt before the deadline means still pending; an expired
// deadline returns context.DeadlineExceeded with no retry, leaving the
// hash for out-of-band verification.
func awaitEVMReceipt(ctx context.Context, client evmrpc.RPCClient, txHash string, timeout, interval time.Duration) (*evmrpc.TransactionReceipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := client.GetTransactionReceipt(waitCtx, txHash)
		if err == nil && receipt != nil {
			if receipt.Status == "0x0" {
				return receipt, ErrTxReverted
			}
			return receipt, nil
		}

		select {
		case <-waitCtx.Done():
			return nil, waitCtx.Err()
		case <-ticker.C:
		}
	}
}
