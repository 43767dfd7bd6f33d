package chain

import (
	"fmt"

	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/domain/model"
)

// NativeCurrency describes a chain's gas token the way wallets expect
// it in wallet_addEthereumChain params.
type NativeCurrency struct {
	Name     string `json:"name" yaml:"name"`
	Symbol   string `json:"symbol" yaml:"symbol"`
	Decimals int    `json:"decimals" yaml:"decimals"`
}

// Profile is the immutable per-chain configuration record. Loaded once
// at registry construction and never mutated afterwards.
type Profile struct {
	Key             string         `yaml:"key"`
	Kind            model.Kind     `yaml:"kind"`
	DisplayName     string         `yaml:"displayName"`
	ChainIDHex      string         `yaml:"chainId"`   // EVM only, e.g. "0x38"
	Cluster         model.Cluster  `yaml:"cluster"`   // Solana only
	ContractAddress string         `yaml:"contractAddress"`
	RPCURL          string         `yaml:"rpcUrl"`
	NativeCurrency  NativeCurrency `yaml:"nativeCurrency"`
	ExplorerBaseURL string         `yaml:"explorer"`
}

// ExplorerTxURL returns the explorer link for a tx hash or signature.
func (p Profile) ExplorerTxURL(txRef string) string {
	return fmt.Sprintf("%s/tx/%s", p.ExplorerBaseURL, txRef)
}

const (
	KeyBSC    = "bsc"
	KeyOpBNB  = "opbnb"
	KeyETH    = "eth"
	KeyBase   = "base"
	KeySolana = "solana"
)

// defaultProfiles holds the built-in chain table. Contract addresses
// and RPC endpoints match the production deployment.
func defaultProfiles() []Profile {
	return []Profile{
		{
			Key:             KeyBSC,
			Kind:            model.KindEVM,
			DisplayName:     "BNB Smart Chain Mainnet",
			ChainIDHex:      "0x38",
			ContractAddress: "0x499cEA3f6e1902d8f33b56c37271C85Bac68F6FC",
			RPCURL:          "https://bsc-dataseed1.binance.org/",
			NativeCurrency:  NativeCurrency{Name: "BNB", Symbol: "BNB", Decimals: 18},
			ExplorerBaseURL: "https://bscscan.com",
		},
		{
			Key:             KeyOpBNB,
			Kind:            model.KindEVM,
			DisplayName:     "opBNB Mainnet",
			ChainIDHex:      "0xcc",
			ContractAddress: "0x31C5645Ffd25f9e4Fe984C63A80C72A866f67d35",
			RPCURL:          "https://opbnb-mainnet-rpc.bnbchain.org",
			NativeCurrency:  NativeCurrency{Name: "BNB", Symbol: "BNB", Decimals: 18},
			ExplorerBaseURL: "https://opbnbscan.com",
		},
		{
			Key:             KeyETH,
			Kind:            model.KindEVM,
			DisplayName:     "Ethereum Mainnet",
			ChainIDHex:      "0x1",
			ContractAddress: "0x57Bb2Ae11cbbdEFA7d7eBb522C2e19bA3f73EF79",
			RPCURL:          "https://cloudflare-eth.com",
			NativeCurrency:  NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18},
			ExplorerBaseURL: "https://etherscan.io",
		},
		{
			Key:             KeyBase,
			Kind:            model.KindEVM,
			DisplayName:     "Base Mainnet",
			ChainIDHex:      "0x2105",
			ContractAddress: "0xcB80Fb8a37711b24D10Ddf4dAeD161a9CCE17B79",
			RPCURL:          "https://mainnet.base.org",
			NativeCurrency:  NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18},
			ExplorerBaseURL: "https://basescan.org",
		},
	}
}

// solanaEndpoints maps cluster to public RPC endpoint.
var solanaEndpoints = map[model.Cluster]string{
	model.ClusterMainnet: "https://api.mainnet-beta.solana.com",
	model.ClusterDevnet:  "https://api.devnet.solana.com",
	model.ClusterTestnet: "https://api.testnet.solana.com",
}

// solanaExplorers maps cluster to explorer base URL.
var solanaExplorers = map[model.Cluster]string{
	model.ClusterMainnet: "https://explorer.solana.com",
	model.ClusterDevnet:  "https://explorer.solana.com?cluster=devnet",
	model.ClusterTestnet: "https://explorer.solana.com?cluster=testnet",
}

// solanaProgramIDs maps cluster to the deployed check-in program id.
// Clusters without an explicit entry fall back to the configured
// default program id.
var solanaProgramIDs = map[model.Cluster]string{
	model.ClusterDevnet: "HDNJ2F8CMHksj2EzuutDZiHrduCyi4KLZGabpdCs5BfZ",
}

// DefaultSolanaProgramID is used when a cluster has no explicit entry.
const DefaultSolanaProgramID = "HDNJ2F8CMHksj2EzuutDZiHrduCyi4KLZGabpdCs5BfZ"
