package preflight

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/chain"
	evmrpc "github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/chain/evm/rpc"
	solrpc "github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/chain/solana/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEVMClient struct {
	balance     *big.Int
	balanceErr  error
	gas         uint64
	gasErr      error
	gasPrice    *big.Int
	gasPriceErr error
}

func (f *fakeEVMClient) ChainID(ctx context.Context) (string, error) { return "0x38", nil }

func (f *fakeEVMClient) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	return f.balance, f.balanceErr
}

func (f *fakeEVMClient) GasPrice(ctx context.Context) (*big.Int, error) {
	return f.gasPrice, f.gasPriceErr
}

func (f *fakeEVMClient) EstimateGas(ctx context.Context, msg evmrpc.CallMsg) (uint64, error) {
	return f.gas, f.gasErr
}

func (f *fakeEVMClient) Call(ctx context.Context, msg evmrpc.CallMsg) (string, error) {
	return "0x", nil
}

func (f *fakeEVMClient) GetTransactionReceipt(ctx context.Context, hash string) (*evmrpc.TransactionReceipt, error) {
	return nil, nil
}

type fakeSolClient struct {
	balance uint64
	err     error
}

func (f *fakeSolClient) GetBalance(ctx context.Context, pubkey string) (uint64, error) {
	return f.balance, f.err
}

func (f *fakeSolClient) GetLatestBlockhash(ctx context.Context) (string, error) {
	return "blockhash", nil
}

func (f *fakeSolClient) GetSignatureStatus(ctx context.Context, sig string) (*solrpc.SignatureStatus, error) {
	return nil, nil
}

func testProfile(key, symbol string) chain.Profile {
	return chain.Profile{
		Key:             key,
		ChainIDHex:      "0x38",
		ContractAddress: "0x1111111111111111111111111111111111111111",
		NativeCurrency:  chain.NativeCurrency{Name: symbol, Symbol: symbol, Decimals: 18},
	}
}

func TestCheckEVM_SufficientWithBuffer(t *testing.T) {
	// gas 100_000 * price 1 gwei = 1e14 wei; 20% buffer -> 1.2e14.
	client := &fakeEVMClient{
		gas:      100_000,
		gasPrice: big.NewInt(1_000_000_000),
		balance:  big.NewInt(120_000_000_000_000),
	}
	c := NewChecker(nil)
	err := c.CheckEVM(context.Background(), client, testProfile(chain.KeyBSC, "BNB"), "0xabc", "0x183ff085")
	assert.NoError(t, err)
}

func TestCheckEVM_InsufficientJustUnderBuffer(t *testing.T) {
	client := &fakeEVMClient{
		gas:      100_000,
		gasPrice: big.NewInt(1_000_000_000),
		balance:  big.NewInt(119_999_999_999_999),
	}
	c := NewChecker(nil)
	err := c.CheckEVM(context.Background(), client, testProfile(chain.KeyBSC, "BNB"), "0xabc", "0x183ff085")

	var ibe *InsufficientBalanceError
	require.ErrorAs(t, err, &ibe)
	assert.Equal(t, "BNB", ibe.Symbol)
	assert.Equal(t, big.NewInt(120_000_000_000_000), ibe.Need)
	assert.NotEmpty(t, ibe.Remediation)
}

func TestCheckEVM_EstimationFailureFallbackETH(t *testing.T) {
	client := &fakeEVMClient{
		gasErr:  errors.New("execution reverted"),
		balance: big.NewInt(100_000_000_000_000), // 0.0001 ETH < 0.0002 floor
	}
	c := NewChecker(nil)
	err := c.CheckEVM(context.Background(), client, testProfile(chain.KeyETH, "ETH"), "0xabc", "0x183ff085")

	var ibe *InsufficientBalanceError
	require.ErrorAs(t, err, &ibe)
	assert.Equal(t, big.NewInt(200_000_000_000_000), ibe.Need)
}

func TestCheckEVM_EstimationFailureFallbackBNB(t *testing.T) {
	client := &fakeEVMClient{
		gasErr:  errors.New("execution reverted"),
		balance: big.NewInt(60_000_000_000_000), // over the 0.00005 BNB floor
	}
	c := NewChecker(nil)
	err := c.CheckEVM(context.Background(), client, testProfile(chain.KeyOpBNB, "BNB"), "0xabc", "0x183ff085")
	assert.NoError(t, err)
}

func TestCheckEVM_BalanceReadFailure(t *testing.T) {
	client := &fakeEVMClient{
		gas:        21_000,
		gasPrice:   big.NewInt(1),
		balanceErr: errors.New("rpc unavailable"),
	}
	c := NewChecker(nil)
	err := c.CheckEVM(context.Background(), client, testProfile(chain.KeyBSC, "BNB"), "0xabc", "0x183ff085")
	require.Error(t, err)
	var ibe *InsufficientBalanceError
	assert.False(t, errors.As(err, &ibe), "RPC failure is not a balance verdict")
}

func TestCheckSolana(t *testing.T) {
	c := NewChecker(nil)

	err := c.CheckSolana(context.Background(), &fakeSolClient{balance: 20_000}, "pubkey")
	assert.NoError(t, err)

	err = c.CheckSolana(context.Background(), &fakeSolClient{balance: 100}, "pubkey")
	var ibe *InsufficientBalanceError
	require.ErrorAs(t, err, &ibe)
	assert.Equal(t, "SOL", ibe.Symbol)
	assert.Equal(t, 9, ibe.Decimals)
}

func TestRemediationFor(t *testing.T) {
	bsc := RemediationFor("bsc", "BNB")
	require.Len(t, bsc, 3)
	assert.Equal(t, ActionSwap, bsc[0].Kind)
	assert.Contains(t, bsc[0].URL, "pancakeswap")

	base := RemediationFor("base", "ETH")
	assert.Contains(t, base[1].URL, "bridge.base.org")

	generic := RemediationFor("unknown", "")
	require.Len(t, generic, 3)
	assert.Contains(t, generic[0].Description, "ETH")
}

func TestFormatNative(t *testing.T) {
	cases := []struct {
		amount   string
		decimals int
		want     string
	}{
		{"0", 18, "0"},
		{"1000000000000000000", 18, "1"},
		{"120000000000000", 18, "0.00012"},
		{"1500000000", 9, "1.5"},
		{"42", 0, "42"},
	}
	for _, tc := range cases {
		amount, ok := new(big.Int).SetString(tc.amount, 10)
		require.True(t, ok)
		assert.Equal(t, tc.want, FormatNative(amount, tc.decimals), tc.amount)
	}
}
