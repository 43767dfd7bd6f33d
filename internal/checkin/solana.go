package checkin

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	solrpc "github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/chain/solana/rpc"
	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/wallet"
)

// checkInDiscriminator is the Anchor instruction selector: the first 8
// bytes of sha256("global:check_in"). The instruction carries no
// arguments.
func checkInDiscriminator() []byte {
	sum := sha256.Sum256([]byte("global:check_in"))
	return sum[:8]
}

// submitSolana fetches a recent blockhash, hands the program
// instruction to the wallet for signing, and returns the signature.
func submitSolana(ctx context.Context, client solrpc.RPCClient, provider wallet.SolanaProvider, programID string) (string, error) {
	blockhash, err := client.GetLatestBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("latest blockhash: %w", err)
	}

	sig, err := provider.SignAndSendTransaction(ctx, wallet.SolanaTransaction{
		ProgramID:       programID,
		Instruction:     checkInDiscriminator(),
		RecentBlockhash: blockhash,
	})
	if err != nil {
		return "", err
	}
	if sig == "" {
		return "", fmt.Errorf("wallet returned empty signature")
	}
	return sig, nil
}

// awaitSolanaFinality polls signature status until the cluster reports
// the transaction confirmed or finalized. An on-chain error fails the
// attempt; deadline expiry surfaces as context.DeadlineExceeded with
// the signature left for the caller.
func awaitSolanaFinality(ctx context.Context, client solrpc.RPCClient, signature string, timeout, interval time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := client.GetSignatureStatus(waitCtx, signature)
		if err == nil && status != nil {
			if status.Err != nil {
				return fmt.Errorf("transaction failed on-chain: %v", status.Err)
			}
			if status.ConfirmationStatus != nil {
				switch *status.ConfirmationStatus {
				case "confirmed", "finalized":
					return nil
				}
			}
		}

		select {
		case <-waitCtx.Done():
			return waitCtx.Err()
		case <-ticker.C:
		}
	}
}
