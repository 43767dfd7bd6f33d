// Command loadtest drives an in-process orchestrator with concurrent
// check-in attempts and status reads. It verifies under load that
// exactly one attempt per cooldown window succeeds while the rest are
// rejected fast, and reports status-read throughput with the cache in
// front of the RPC layer.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/chain"
	evmrpc "github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/chain/evm/rpc"
	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/checkin"
	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/domain/model"
	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/ledger"
	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/preflight"
	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/wallet"
)

const loadAddress = "0xabc0000000000000000000000000000000000001"

// autoProvider approves every wallet prompt instantly.
type autoProvider struct {
	txCount atomic.Int64
}

func (p *autoProvider) Request(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	switch method {
	case "eth_accounts", "eth_requestAccounts":
		return json.RawMessage(`["` + loadAddress + `"]`), nil
	case "eth_chainId":
		return json.RawMessage(`"0x38"`), nil
	case "eth_sendTransaction":
		n := p.txCount.Add(1)
		return json.RawMessage(fmt.Sprintf(`"0x%064x"`, n)), nil
	default:
		return nil, errors.New("unexpected method " + method)
	}
}

func (p *autoProvider) On(event string, handler func(json.RawMessage)) {}

// instantChain confirms every transaction on the first receipt poll.
type instantChain struct {
	rpcReads atomic.Int64
}

func (c *instantChain) ChainID(ctx context.Context) (string, error) { return "0x38", nil }

func (c *instantChain) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	return big.NewInt(1_000_000_000_000_000_000), nil
}

func (c *instantChain) GasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (c *instantChain) EstimateGas(ctx context.Context, msg evmrpc.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (c *instantChain) Call(ctx context.Context, msg evmrpc.CallMsg) (string, error) {
	c.rpcReads.Add(1)
	// getUserStatus: lastDay, streak, totalCredits, availableCredits,
	// nextReward, canCheckInToday.
	return fmt.Sprintf("0x%064x%064x%064x%064x%064x%064x", 20300, 2, 60, 60, 30, 1), nil
}

func (c *instantChain) GetTransactionReceipt(ctx context.Context, hash string) (*evmrpc.TransactionReceipt, error) {
	return &evmrpc.TransactionReceipt{
		TransactionHash: hash,
		Status:          "0x1",
	}, nil
}

func main() {
	var (
		attempts = flag.Int("attempts", 64, "concurrent check-in attempts")
		readers  = flag.Int("readers", 16, "concurrent status readers")
		duration = flag.Duration("duration", 5*time.Second, "status read phase duration")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	registry, err := chain.Load(chain.Options{Logger: logger})
	if err != nil {
		fmt.Fprintln(os.Stderr, "registry:", err)
		os.Exit(1)
	}
	registry.SetCurrent(chain.KeyBSC)

	dir, err := os.MkdirTemp("", "checkin-loadtest-*")
	if err != nil {
		fmt.Fprintln(os.Stderr, "tempdir:", err)
		os.Exit(1)
	}
	defer os.RemoveAll(dir)

	local, err := ledger.NewFileStore(filepath.Join(dir, "ledger.json"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "ledger:", err)
		os.Exit(1)
	}

	provider := &autoProvider{}
	chainClient := &instantChain{}

	adapter := wallet.NewAdapter(wallet.Config{
		Injected: []wallet.Injected{{
			Provider: provider,
			Brands:   map[wallet.Brand]bool{wallet.BrandMetaMask: true},
		}},
		Logger: logger,
	})
	if _, err := adapter.Connect(context.Background(), model.KindEVM, wallet.BrandMetaMask); err != nil {
		fmt.Fprintln(os.Stderr, "connect:", err)
		os.Exit(1)
	}

	orch, err := checkin.New(checkin.Config{
		Registry:     registry,
		Wallet:       adapter,
		EVMClient:    func(chain.Profile) evmrpc.RPCClient { return chainClient },
		Preflight:    preflight.NewChecker(logger),
		Ledger:       ledger.NewReconciler(ledger.Options{Local: local, Logger: logger}),
		Logger:       logger,
		PollInterval: time.Millisecond,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "orchestrator:", err)
		os.Exit(1)
	}

	// Phase 1: storm of concurrent check-in attempts against one guard.
	var successes, busy, cooldown, other atomic.Int64
	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < *attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := orch.CheckIn(context.Background())
			switch checkin.KindOf(err) {
			case "":
				successes.Add(1)
			case checkin.Busy:
				busy.Add(1)
			case checkin.CooldownActive:
				cooldown.Add(1)
			default:
				other.Add(1)
			}
		}()
	}
	wg.Wait()
	checkinElapsed := time.Since(start)

	// Phase 2: status readers racing against the cache.
	readCtx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()
	var reads, readErrs atomic.Int64
	for i := 0; i < *readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for readCtx.Err() == nil {
				if _, err := orch.Status(readCtx, loadAddress); err != nil {
					readErrs.Add(1)
				}
				reads.Add(1)
			}
		}()
	}
	wg.Wait()

	fmt.Printf("check-in storm: %d attempts in %v\n", *attempts, checkinElapsed.Round(time.Millisecond))
	fmt.Printf("  successes=%d busy=%d cooldown=%d other=%d\n",
		successes.Load(), busy.Load(), cooldown.Load(), other.Load())
	fmt.Printf("status phase: %d reads in %v (%d errors, %d RPC calls)\n",
		reads.Load(), *duration, readErrs.Load(), chainClient.rpcReads.Load())

	if successes.Load() != 1 {
		fmt.Fprintf(os.Stderr, "FAIL: expected exactly 1 success, got %d\n", successes.Load())
		os.Exit(1)
	}
	if other.Load() > 0 {
		fmt.Fprintf(os.Stderr, "FAIL: %d attempts failed outside busy/cooldown\n", other.Load())
		os.Exit(1)
	}
	fmt.Println("OK")
}
