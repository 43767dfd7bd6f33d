package checkin

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	evmrpc "github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/chain/evm/rpc"
)

const checkinABIJSON = `[
  {"type":"function","name":"checkIn","stateMutability":"payable","inputs":[],"outputs":[]},
  {"type":"function","name":"getUserStatus","stateMutability":"view",
   "inputs":[{"name":"user","type":"address"}],
   "outputs":[
     {"name":"lastDay","type":"uint256"},
     {"name":"streak","type":"uint256"},
     {"name":"totalCredits","type":"uint256"},
     {"name":"availableCredits","type":"uint256"},
     {"name":"nextReward","type":"uint256"},
     {"name":"canCheckInToday","type":"bool"}]},
  {"type":"event","name":"CheckedIn","anonymous":false,
   "inputs":[
     {"name":"user","type":"address","indexed":true},
     {"name":"dayIndex","type":"uint256","indexed":true},
     {"name":"streak","type":"uint256","indexed":false},
     {"name":"credits","type":"uint256","indexed":false}]}
]`

var checkinABI = mustParseABI(checkinABIJSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse check-in abi: %v", err))
	}
	return parsed
}

// CheckInCalldata returns the hex calldata for a zero-value checkIn().
func CheckInCalldata() string {
	data, err := checkinABI.Pack("checkIn")
	if err != nil {
		// No arguments to mispack; unreachable with a valid ABI.
		panic(fmt.Sprintf("pack checkIn: %v", err))
	}
	return "0x" + hex.EncodeToString(data)
}

// UserStatusCalldata returns the calldata for getUserStatus(user).
func UserStatusCalldata(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("invalid EVM address %q", address)
	}
	data, err := checkinABI.Pack("getUserStatus", common.HexToAddress(address))
	if err != nil {
		return "", fmt.Errorf("pack getUserStatus: %w", err)
	}
	return "0x" + hex.EncodeToString(data), nil
}

// UserStatus is the contract's view of one wallet.
type UserStatus struct {
	LastDay          int64
	Streak           int64
	TotalCredits     int64
	AvailableCredits int64
	NextReward       int64
	CanCheckInToday  bool
}

// DecodeUserStatus parses an eth_call result for getUserStatus.
func DecodeUserStatus(result string) (*UserStatus, error) {
	data, err := decodeHex(result)
	if err != nil {
		return nil, fmt.Errorf("decode getUserStatus result: %w", err)
	}
	vals, err := checkinABI.Unpack("getUserStatus", data)
	if err != nil {
		return nil, fmt.Errorf("unpack getUserStatus: %w", err)
	}
	if len(vals) != 6 {
		return nil, fmt.Errorf("getUserStatus returned %d values, want 6", len(vals))
	}

	nums := make([]int64, 5)
	for i := 0; i < 5; i++ {
		b, ok := vals[i].(*big.Int)
		if !ok {
			return nil, fmt.Errorf("getUserStatus output %d is %T, want *big.Int", i, vals[i])
		}
		nums[i] = b.Int64()
	}
	can, ok := vals[5].(bool)
	if !ok {
		return nil, fmt.Errorf("getUserStatus output 5 is %T, want bool", vals[5])
	}

	return &UserStatus{
		LastDay:          nums[0],
		Streak:           nums[1],
		TotalCredits:     nums[2],
		AvailableCredits: nums[3],
		NextReward:       nums[4],
		CanCheckInToday:  can,
	}, nil
}

// Reward is the (credits, streak) pair minted by one check-in.
type Reward struct {
	Credits int64
	Streak  int64
}

// ParseCheckedInReward scans receipt logs for the CheckedIn event
// emitted by the check-in contract and extracts the minted reward.
// ok is false when no log matches; the caller decides the fallback.
func ParseCheckedInReward(logs []*evmrpc.Log, contractAddress string) (Reward, bool) {
	event := checkinABI.Events["CheckedIn"]
	topic0 := event.ID.Hex()

	for _, log := range logs {
		if log == nil || log.Removed || len(log.Topics) < 3 {
			continue
		}
		if !strings.EqualFold(log.Topics[0], topic0) {
			continue
		}
		if contractAddress != "" && !strings.EqualFold(log.Address, contractAddress) {
			continue
		}

		data, err := decodeHex(log.Data)
		if err != nil {
			continue
		}
		vals, err := event.Inputs.NonIndexed().Unpack(data)
		if err != nil || len(vals) != 2 {
			continue
		}
		streak, okS := vals[0].(*big.Int)
		credits, okC := vals[1].(*big.Int)
		if !okS || !okC {
			continue
		}
		return Reward{Credits: credits.Int64(), Streak: streak.Int64()}, true
	}
	return Reward{}, false
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 != 0 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}
