package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

func (c *Client) ChainID(ctx context.Context) (string, error) {
	result, err := c.call(ctx, "eth_chainId", []interface{}{})
	if err != nil {
		return "", fmt.Errorf("eth_chainId: %w", err)
	}

	var hexID string
	if err := json.Unmarshal(result, &hexID); err != nil {
		return "", fmt.Errorf("unmarshal chain id: %w", err)
	}
	return strings.ToLower(hexID), nil
}

func (c *Client) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	result, err := c.call(ctx, "eth_getBalance", []interface{}{address, "latest"})
	if err != nil {
		return nil, fmt.Errorf("eth_getBalance(%s): %w", address, err)
	}

	var hexBal string
	if err := json.Unmarshal(result, &hexBal); err != nil {
		return nil, fmt.Errorf("unmarshal balance: %w", err)
	}
	return ParseHexBig(hexBal)
}

func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	result, err := c.call(ctx, "eth_gasPrice", []interface{}{})
	if err != nil {
		return nil, fmt.Errorf("eth_gasPrice: %w", err)
	}

	var hexPrice string
	if err := json.Unmarshal(result, &hexPrice); err != nil {
		return nil, fmt.Errorf("unmarshal gas price: %w", err)
	}
	return ParseHexBig(hexPrice)
}

func (c *Client) EstimateGas(ctx context.Context, msg CallMsg) (uint64, error) {
	result, err := c.call(ctx, "eth_estimateGas", []interface{}{msg})
	if err != nil {
		return 0, fmt.Errorf("eth_estimateGas: %w", err)
	}

	var hexGas string
	if err := json.Unmarshal(result, &hexGas); err != nil {
		return 0, fmt.Errorf("unmarshal gas estimate: %w", err)
	}
	gas, err := ParseHexUint64(hexGas)
	if err != nil {
		return 0, fmt.Errorf("parse gas estimate: %w", err)
	}
	return gas, nil
}

func (c *Client) Call(ctx context.Context, msg CallMsg) (string, error) {
	result, err := c.call(ctx, "eth_call", []interface{}{msg, "latest"})
	if err != nil {
		return "", fmt.Errorf("eth_call(%s): %w", msg.To, err)
	}

	var hexData string
	if err := json.Unmarshal(result, &hexData); err != nil {
		return "", fmt.Errorf("unmarshal call result: %w", err)
	}
	return hexData, nil
}

func (c *Client) GetTransactionReceipt(ctx context.Context, hash string) (*TransactionReceipt, error) {
	result, err := c.call(ctx, "eth_getTransactionReceipt", []interface{}{hash})
	if err != nil {
		return nil, fmt.Errorf("eth_getTransactionReceipt(%s): %w", hash, err)
	}
	if string(result) == "null" {
		return nil, nil
	}

	var receipt TransactionReceipt
	if err := json.Unmarshal(result, &receipt); err != nil {
		return nil, fmt.Errorf("unmarshal transaction receipt: %w", err)
	}

	return &receipt, nil
}

func ParseHexBig(value string) (*big.Int, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return nil, fmt.Errorf("empty hex value")
	}
	raw = strings.TrimPrefix(strings.ToLower(raw), "0x")
	if raw == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(raw, 16)
	if !ok {
		return nil, fmt.Errorf("parse hex %q", value)
	}
	return parsed, nil
}

func ParseHexUint64(value string) (uint64, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return 0, fmt.Errorf("empty hex value")
	}
	raw = strings.TrimPrefix(strings.ToLower(raw), "0x")
	if raw == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseUint(raw, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse hex %q: %w", value, err)
	}
	return parsed, nil
}

func FormatHexBig(value *big.Int) string {
	return "0x" + value.Text(16)
}
