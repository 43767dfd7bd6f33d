package wallet

import (
	"context"
	"encoding/json"
)

// EIP1193Provider is the request/notify surface every EVM wallet
// runtime exposes. Implementations bridge to an injected provider, a
// WalletConnect session, or a test fake.
type EIP1193Provider interface {
	// Request performs a JSON-RPC request against the wallet. Params
	// follow the EIP-1193 convention (positional array or single
	// object, method dependent).
	Request(ctx context.Context, method string, params interface{}) (json.RawMessage, error)

	// On registers a handler for a provider event: "accountsChanged",
	// "chainChanged", "disconnect".
	On(event string, handler func(payload json.RawMessage))
}

// SolanaTransaction is the minimal program call the wallet is asked to
// sign and submit. The wallet owns fee payer and signing.
type SolanaTransaction struct {
	ProgramID       string
	Instruction     []byte
	RecentBlockhash string
}

// SolanaProvider is the Phantom-compatible wallet surface.
type SolanaProvider interface {
	// Connect prompts for approval and returns the base58 public key.
	Connect(ctx context.Context) (string, error)
	Disconnect(ctx context.Context) error
	// SignAndSendTransaction submits the signed transaction and
	// returns its signature.
	SignAndSendTransaction(ctx context.Context, tx SolanaTransaction) (string, error)
	// On registers a handler for "accountChanged" or "disconnect".
	On(event string, handler func(payload json.RawMessage))
}

// Brand is the closed set of recognized EVM wallet identities. Injected
// runtimes advertise duck-typed capability flags (isMetaMask and
// friends); discovery maps those onto this set once and never probes
// flags elsewhere.
type Brand string

const (
	BrandMetaMask    Brand = "metamask"
	BrandCoinbase    Brand = "coinbase"
	BrandBinance     Brand = "binance"
	BrandTrust       Brand = "trust"
	BrandTokenPocket Brand = "tokenpocket"
	BrandGeneric     Brand = "generic"
)

// Injected pairs a provider with the brand flags its runtime advertises.
type Injected struct {
	Provider EIP1193Provider
	Brands   map[Brand]bool
}

func (i Injected) is(b Brand) bool {
	return i.Brands[b]
}

func (i Injected) recognized() bool {
	for _, b := range []Brand{BrandMetaMask, BrandCoinbase, BrandBinance, BrandTrust, BrandTokenPocket} {
		if i.Brands[b] {
			return true
		}
	}
	return false
}

// brandPriority is consulted when the preferred brand is absent.
var brandPriority = []Brand{BrandMetaMask, BrandCoinbase, BrandBinance, BrandTrust, BrandTokenPocket}

// selectProvider picks one provider among the injected set.
//
// Multiple providers: prefer the requested brand, then the priority
// list, then the first available. A single provider is accepted only if
// it advertises at least one recognized flag, avoiding the failure mode
// where an unrelated extension shadows the intended wallet.
func selectProvider(injected []Injected, preferred Brand) (EIP1193Provider, Brand, error) {
	if len(injected) == 0 {
		return nil, "", ErrNoProvider
	}

	if len(injected) > 1 {
		if preferred != "" && preferred != BrandGeneric {
			for _, inj := range injected {
				if inj.is(preferred) {
					return inj.Provider, preferred, nil
				}
			}
		}
		for _, b := range brandPriority {
			for _, inj := range injected {
				if inj.is(b) {
					return inj.Provider, b, nil
				}
			}
		}
		return injected[0].Provider, BrandGeneric, nil
	}

	only := injected[0]
	if !only.recognized() {
		return nil, "", ErrNoProvider
	}
	if preferred != "" && only.is(preferred) {
		return only.Provider, preferred, nil
	}
	for _, b := range brandPriority {
		if only.is(b) {
			return only.Provider, b, nil
		}
	}
	return only.Provider, BrandGeneric, nil
}
