package wallet

import (
	"errors"
	"strings"
)

// Wallet RPC error codes the orchestrator reacts to. EIP-1193/EIP-1474
// assign 4001 to a user rejection and -32002 to an already-pending
// request; 4902 is the MetaMask convention for a chain the wallet does
// not know.
const (
	CodeUserRejected     = 4001
	CodeUnrecognizedChain = 4902
	CodeRequestPending   = -32002
)

var (
	// ErrNoProvider means no usable wallet runtime was found.
	ErrNoProvider = errors.New("no wallet provider available")
	// ErrNotConnected means an operation needs an active session.
	ErrNotConnected = errors.New("wallet not connected")
	// ErrConnectTimeout means the consent prompt was not answered
	// within the connect window. Distinct from a rejection.
	ErrConnectTimeout = errors.New("wallet connect timed out")
	// ErrUserRejected means the user dismissed the wallet prompt.
	ErrUserRejected = errors.New("request rejected by user")
)

// ProviderError is a coded error surfaced by a wallet runtime.
type ProviderError struct {
	Code    int
	Message string
}

func (e *ProviderError) Error() string {
	return e.Message
}

// CodeOf extracts the wallet RPC code from an error chain.
func CodeOf(err error) (int, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return 0, false
}

// IsUserRejection reports whether the error is a wallet-prompt
// rejection, by code or by the message conventions Solana wallets use.
func IsUserRejection(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUserRejected) {
		return true
	}
	if code, ok := CodeOf(err); ok && code == CodeUserRejected {
		return true
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "user rejected") || strings.Contains(lower, "rejected the request")
}

// IsRequestPending reports whether the wallet already has an open
// prompt for this origin (-32002 or the MetaMask RESOURCE_BUSY text).
func IsRequestPending(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := CodeOf(err); ok && code == CodeRequestPending {
		return true
	}
	return strings.Contains(strings.ToUpper(err.Error()), "RESOURCE_BUSY")
}

// IsUnrecognizedChain reports the 4902 add-chain-first condition.
func IsUnrecognizedChain(err error) bool {
	code, ok := CodeOf(err)
	return ok && code == CodeUnrecognizedChain
}

// NotInstalledError is returned when no Solana wallet runtime exists.
// RemedyURL points at the wallet's in-app browser deep link on mobile,
// or its install page on desktop.
type NotInstalledError struct {
	Wallet    string
	RemedyURL string
	Mobile    bool
}

func (e *NotInstalledError) Error() string {
	if e.Mobile {
		return e.Wallet + " wallet not detected; open this page inside the wallet app"
	}
	return e.Wallet + " wallet not installed"
}
