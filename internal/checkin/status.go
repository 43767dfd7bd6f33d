package checkin

import (
	"context"
	"fmt"

	evmrpc "github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/chain/evm/rpc"
	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/domain/model"
)

// Status returns the contract's view of a wallet on the currently
// selected chain. Results are cached briefly; a successful check-in
// invalidates the entry. Any read failure degrades to a zero state
// that permits checking in: the contract itself is the final gate, and
// a flaky RPC must not lock the user out.
func (o *Orchestrator) Status(ctx context.Context, address string) (*UserStatus, error) {
	profile := o.registry.Current()
	normalized := model.NormalizeAddress(profile.Kind, address)

	if profile.Kind == model.KindSolana {
		return o.solanaStatus(ctx, normalized)
	}

	if cached, ok := o.statusCache.Get(normalized); ok {
		return cached, nil
	}

	status, err := o.fetchEVMStatus(ctx, normalized)
	if err != nil {
		o.logger.Warn("status read failed, degrading to zero state",
			"chain", profile.Key, "address", normalized, "error", err)
		return &UserStatus{CanCheckInToday: true}, nil
	}

	o.statusCache.Put(normalized, status)
	return status, nil
}

func (o *Orchestrator) fetchEVMStatus(ctx context.Context, address string) (*UserStatus, error) {
	if o.evmClient == nil {
		return nil, fmt.Errorf("no EVM RPC client configured")
	}
	profile := o.registry.Current()
	client := o.evmClient(profile)

	calldata, err := UserStatusCalldata(address)
	if err != nil {
		return nil, err
	}
	result, err := client.Call(ctx, evmrpc.CallMsg{
		To:   profile.ContractAddress,
		Data: calldata,
	})
	if err != nil {
		return nil, fmt.Errorf("getUserStatus call: %w", err)
	}
	return DecodeUserStatus(result)
}

// solanaStatus has no contract view to query; the local ledger record
// drives the cooldown answer.
func (o *Orchestrator) solanaStatus(ctx context.Context, address string) (*UserStatus, error) {
	rec, err := o.ledger.LoadOnConnect(ctx, address)
	if err != nil {
		return &UserStatus{CanCheckInToday: true}, nil
	}
	return &UserStatus{
		Streak:          rec.Streak,
		TotalCredits:    rec.Credits,
		NextReward:      o.defaultReward,
		CanCheckInToday: rec.CanCheckIn(o.now()),
	}, nil
}
