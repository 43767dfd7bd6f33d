package rpc

import (
	"context"
	"encoding/json"
	"fmt"
)

func (c *Client) GetBalance(ctx context.Context, pubkey string) (uint64, error) {
	result, err := c.call(ctx, "getBalance", []interface{}{pubkey})
	if err != nil {
		return 0, fmt.Errorf("getBalance(%s): %w", pubkey, err)
	}

	var bal BalanceResult
	if err := json.Unmarshal(result, &bal); err != nil {
		return 0, fmt.Errorf("unmarshal balance: %w", err)
	}
	return bal.Value, nil
}

func (c *Client) GetLatestBlockhash(ctx context.Context) (string, error) {
	params := []interface{}{map[string]string{"commitment": "confirmed"}}
	result, err := c.call(ctx, "getLatestBlockhash", params)
	if err != nil {
		return "", fmt.Errorf("getLatestBlockhash: %w", err)
	}

	var bh BlockhashResult
	if err := json.Unmarshal(result, &bh); err != nil {
		return "", fmt.Errorf("unmarshal blockhash: %w", err)
	}
	return bh.Value.Blockhash, nil
}

// GetSignatureStatus returns the status for a single signature, or nil
// if the cluster does not know the signature yet.
func (c *Client) GetSignatureStatus(ctx context.Context, signature string) (*SignatureStatus, error) {
	params := []interface{}{
		[]string{signature},
		map[string]bool{"searchTransactionHistory": true},
	}
	result, err := c.call(ctx, "getSignatureStatuses", params)
	if err != nil {
		return nil, fmt.Errorf("getSignatureStatuses(%s): %w", signature, err)
	}

	var statuses SignatureStatusesResult
	if err := json.Unmarshal(result, &statuses); err != nil {
		return nil, fmt.Errorf("unmarshal signature statuses: %w", err)
	}
	if len(statuses.Value) == 0 {
		return nil, nil
	}
	return statuses.Value[0], nil
}
