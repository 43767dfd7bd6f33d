package wallet

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/chain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bscProfile() chain.Profile {
	return chain.Profile{
		Key:         chain.KeyBSC,
		DisplayName: "BNB Smart Chain",
		ChainIDHex:  "0x38",
		RPCURL:      "https://bsc-dataseed1.binance.org",
		NativeCurrency: chain.NativeCurrency{
			Name: "BNB", Symbol: "BNB", Decimals: 18,
		},
		ExplorerBaseURL: "https://bscscan.com",
	}
}

func TestEnsureChain_AlreadyActive(t *testing.T) {
	p := newFakeProvider()
	p.stub("eth_chainId", `"0x38"`, nil)

	res, err := EnsureChain(context.Background(), p, bscProfile(), slog.Default())
	require.NoError(t, err)
	assert.Equal(t, SwitchAlreadyActive, res)
	assert.Equal(t, 0, p.callCount("wallet_switchEthereumChain"))
}

func TestEnsureChain_AlreadyActiveCaseInsensitive(t *testing.T) {
	p := newFakeProvider()
	p.stub("eth_chainId", `"0xCC"`, nil)

	profile := bscProfile()
	profile.Key = chain.KeyOpBNB
	profile.ChainIDHex = "0xcc"
	res, err := EnsureChain(context.Background(), p, profile, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, SwitchAlreadyActive, res)
}

func TestEnsureChain_Switches(t *testing.T) {
	p := newFakeProvider()
	p.stub("eth_chainId", `"0x1"`, nil)
	p.stub("wallet_switchEthereumChain", `null`, nil)

	res, err := EnsureChain(context.Background(), p, bscProfile(), slog.Default())
	require.NoError(t, err)
	assert.Equal(t, SwitchSwitched, res)
}

func TestEnsureChain_UnknownChainAdded(t *testing.T) {
	p := newFakeProvider()
	p.stub("eth_chainId", `"0x1"`, nil)
	p.stub("wallet_switchEthereumChain", ``, &ProviderError{Code: CodeUnrecognizedChain, Message: "Unrecognized chain ID"})
	p.stub("wallet_addEthereumChain", `null`, nil)

	res, err := EnsureChain(context.Background(), p, bscProfile(), slog.Default())
	require.NoError(t, err)
	// The add call activates the chain; no second switch is issued.
	assert.Equal(t, SwitchAdded, res)
	assert.Equal(t, 1, p.callCount("wallet_switchEthereumChain"))
	assert.Equal(t, 1, p.callCount("wallet_addEthereumChain"))
}

func TestEnsureChain_AddFails(t *testing.T) {
	p := newFakeProvider()
	p.stub("eth_chainId", `"0x1"`, nil)
	p.stub("wallet_switchEthereumChain", ``, &ProviderError{Code: CodeUnrecognizedChain, Message: "Unrecognized chain ID"})
	p.stub("wallet_addEthereumChain", ``, &ProviderError{Code: CodeUserRejected, Message: "User rejected the request"})

	_, err := EnsureChain(context.Background(), p, bscProfile(), slog.Default())
	require.Error(t, err)
	assert.True(t, IsUserRejection(err))
}

func TestEnsureChain_SwitchRejected(t *testing.T) {
	p := newFakeProvider()
	p.stub("eth_chainId", `"0x1"`, nil)
	p.stub("wallet_switchEthereumChain", ``, &ProviderError{Code: CodeUserRejected, Message: "User rejected the request"})

	_, err := EnsureChain(context.Background(), p, bscProfile(), slog.Default())
	require.Error(t, err)
	assert.True(t, IsUserRejection(err))
	assert.Equal(t, 0, p.callCount("wallet_addEthereumChain"))
}

func TestEnsureChain_ChainIDReadFailureStillSwitches(t *testing.T) {
	p := newFakeProvider()
	p.stub("eth_chainId", ``, errors.New("provider unavailable"))
	p.stub("wallet_switchEthereumChain", `null`, nil)

	res, err := EnsureChain(context.Background(), p, bscProfile(), slog.Default())
	require.NoError(t, err)
	assert.Equal(t, SwitchSwitched, res)
}
