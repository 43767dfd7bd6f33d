package checkin

import "fmt"

// FailureKind is the closed set of terminal check-in failure
// categories. The UI keys messaging and severity off this value: a
// UserRejected is routine, a RemoteSyncFailed is an operator problem.
type FailureKind string

const (
	NotConnected        FailureKind = "not_connected"
	WalletKindMismatch  FailureKind = "wallet_kind_mismatch"
	ChainSwitchFailed   FailureKind = "chain_switch_failed"
	InsufficientBalance FailureKind = "insufficient_balance"
	UserRejected        FailureKind = "user_rejected"
	ConfirmationTimeout FailureKind = "confirmation_timeout"
	EventParseFallback  FailureKind = "event_parse_fallback"
	RemoteSyncFailed    FailureKind = "remote_sync_failed"
	Busy                FailureKind = "busy"
	Internal            FailureKind = "internal"
)

// Error is a terminal check-in failure, tagged with the state the
// pipeline was in and, when the transaction was already submitted, its
// reference so the user can verify out-of-band.
type Error struct {
	Kind  FailureKind
	State State
	// TxRef is set when the failure happened after submission
	// (notably ConfirmationTimeout).
	TxRef string
	Err   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("check-in failed in %s: %s", e.State, e.Kind)
	if e.TxRef != "" {
		msg += fmt.Sprintf(" (tx %s)", e.TxRef)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func failure(kind FailureKind, state State, err error) *Error {
	return &Error{Kind: kind, State: state, Err: err}
}

// KindOf extracts the failure category, Internal for anything foreign.
func KindOf(err error) FailureKind {
	if err == nil {
		return ""
	}
	if ce, ok := err.(*Error); ok {
		return ce.Kind
	}
	return Internal
}
