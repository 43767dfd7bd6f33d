package checkin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/chain"
	evmrpc "github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/chain/evm/rpc"
	solrpc "github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/chain/solana/rpc"
	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/domain/model"
	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/ledger"
	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/preflight"
	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type scriptedProvider struct {
	mu        sync.Mutex
	responses map[string]func() (json.RawMessage, error)
	calls     map[string]int
}

func newScriptedProvider() *scriptedProvider {
	return &scriptedProvider{
		responses: make(map[string]func() (json.RawMessage, error)),
		calls:     make(map[string]int),
	}
}

func (p *scriptedProvider) stub(method, result string) {
	p.stubFn(method, func() (json.RawMessage, error) {
		return json.RawMessage(result), nil
	})
}

func (p *scriptedProvider) stubErr(method string, err error) {
	p.stubFn(method, func() (json.RawMessage, error) { return nil, err })
}

func (p *scriptedProvider) stubFn(method string, fn func() (json.RawMessage, error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses[method] = fn
}

func (p *scriptedProvider) Request(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	p.mu.Lock()
	p.calls[method]++
	fn := p.responses[method]
	p.mu.Unlock()
	if fn == nil {
		return nil, errors.New("unexpected method " + method)
	}
	return fn()
}

func (p *scriptedProvider) On(event string, handler func(json.RawMessage)) {}

func (p *scriptedProvider) callCount(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[method]
}

type scriptedEVMClient struct {
	mu         sync.Mutex
	balance    *big.Int
	gas        uint64
	gasPrice   *big.Int
	callResult string
	callErr    error
	receipt    *evmrpc.TransactionReceipt
	receiptErr error
	callCount  int
}

func healthyEVMClient() *scriptedEVMClient {
	return &scriptedEVMClient{
		balance:  big.NewInt(1_000_000_000_000_000_000), // 1 BNB
		gas:      100_000,
		gasPrice: big.NewInt(1_000_000_000),
	}
}

func (c *scriptedEVMClient) ChainID(ctx context.Context) (string, error) { return "0x38", nil }

func (c *scriptedEVMClient) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	return c.balance, nil
}

func (c *scriptedEVMClient) GasPrice(ctx context.Context) (*big.Int, error) {
	return c.gasPrice, nil
}

func (c *scriptedEVMClient) EstimateGas(ctx context.Context, msg evmrpc.CallMsg) (uint64, error) {
	return c.gas, nil
}

func (c *scriptedEVMClient) Call(ctx context.Context, msg evmrpc.CallMsg) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callCount++
	return c.callResult, c.callErr
}

func (c *scriptedEVMClient) GetTransactionReceipt(ctx context.Context, hash string) (*evmrpc.TransactionReceipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.receipt, c.receiptErr
}

type scriptedSolClient struct {
	balance uint64
	status  *solrpc.SignatureStatus
}

func (c *scriptedSolClient) GetBalance(ctx context.Context, pubkey string) (uint64, error) {
	return c.balance, nil
}

func (c *scriptedSolClient) GetLatestBlockhash(ctx context.Context) (string, error) {
	return "9sHcv6xwn9YkB8nxTUGKDwPwNnmqVp5oAXxU8Fdkm4J6", nil
}

func (c *scriptedSolClient) GetSignatureStatus(ctx context.Context, sig string) (*solrpc.SignatureStatus, error) {
	return c.status, nil
}

type solWallet struct {
	pubkey  string
	sig     string
	sendErr error
}

func (w *solWallet) Connect(ctx context.Context) (string, error) { return w.pubkey, nil }
func (w *solWallet) Disconnect(ctx context.Context) error        { return nil }
func (w *solWallet) SignAndSendTransaction(ctx context.Context, tx wallet.SolanaTransaction) (string, error) {
	if w.sendErr != nil {
		return "", w.sendErr
	}
	return w.sig, nil
}
func (w *solWallet) On(event string, handler func(json.RawMessage)) {}

type memLocal struct {
	mu      sync.Mutex
	records map[string]*model.Record
}

func newMemLocal() *memLocal {
	return &memLocal{records: make(map[string]*model.Record)}
}

func (m *memLocal) Get(ctx context.Context, address string) (*model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[address]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *memLocal) Put(ctx context.Context, rec *model.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.records[rec.Address] = &cp
	return nil
}

// --- harness ---

type harness struct {
	orch     *Orchestrator
	provider *scriptedProvider
	client   *scriptedEVMClient
	sol      *scriptedSolClient
	local    *memLocal
	registry *chain.Registry
	adapter  *wallet.Adapter

	mu     sync.Mutex
	states []State
	errs   []*Error
	wins   []Result
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		provider: newScriptedProvider(),
		client:   healthyEVMClient(),
		sol:      &scriptedSolClient{balance: 1_000_000},
		local:    newMemLocal(),
	}

	registry, err := chain.Load(chain.Options{Logger: discardLogger()})
	require.NoError(t, err)
	registry.SetCurrent(chain.KeyBSC)
	h.registry = registry

	h.adapter = wallet.NewAdapter(wallet.Config{
		Injected: []wallet.Injected{{
			Provider: h.provider,
			Brands:   map[wallet.Brand]bool{wallet.BrandMetaMask: true},
		}},
		Solana: &solWallet{pubkey: "FkV3qhkPHk3avidaW6hSYknL2hnCNjPEdiEmqP291t5b", sig: "3AbCsig"},
		Logger: discardLogger(),
	})

	rec := ledger.NewReconciler(ledger.Options{Local: h.local, Logger: discardLogger()})

	orch, err := New(Config{
		Registry:     registry,
		Wallet:       h.adapter,
		EVMClient:    func(chain.Profile) evmrpc.RPCClient { return h.client },
		SolanaClient: func(chain.Profile) solrpc.RPCClient { return h.sol },
		Preflight:    preflight.NewChecker(discardLogger()),
		Ledger:       rec,
		Logger:       discardLogger(),
		Events: Events{
			OnState: func(s State) {
				h.mu.Lock()
				h.states = append(h.states, s)
				h.mu.Unlock()
			},
			OnSuccess: func(r Result) {
				h.mu.Lock()
				h.wins = append(h.wins, r)
				h.mu.Unlock()
			},
			OnError: func(e *Error) {
				h.mu.Lock()
				h.errs = append(h.errs, e)
				h.mu.Unlock()
			},
		},
		ConfirmTimeout: 500 * time.Millisecond,
		PollInterval:   10 * time.Millisecond,
	})
	require.NoError(t, err)
	h.orch = orch
	return h
}

func (h *harness) connectEVM(t *testing.T, address string) {
	t.Helper()
	h.provider.stub("eth_accounts", `["`+address+`"]`)
	_, err := h.adapter.Connect(context.Background(), model.KindEVM, wallet.BrandMetaMask)
	require.NoError(t, err)
}

func (h *harness) stubHappyEVMPath(t *testing.T, streak, credits int64) {
	t.Helper()
	profile, err := h.registry.Profile(chain.KeyBSC)
	require.NoError(t, err)

	h.provider.stub("eth_chainId", `"0x38"`)
	h.provider.stub("eth_sendTransaction", `"0xf00dtxhash"`)
	h.client.receipt = &evmrpc.TransactionReceipt{
		TransactionHash: "0xf00dtxhash",
		Status:          "0x1",
		Logs:            []*evmrpc.Log{checkedInLog(profile.ContractAddress, streak, credits)},
	}
}

func kindOfErr(t *testing.T, err error) FailureKind {
	t.Helper()
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	return cerr.Kind
}

// --- tests ---

func TestCheckIn_EVMHappyPath(t *testing.T) {
	h := newHarness(t)
	h.connectEVM(t, "0xAbCdEf0123456789012345678901234567890123")
	h.stubHappyEVMPath(t, 5, 40)

	result, err := h.orch.CheckIn(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 40, result.Credits)
	assert.EqualValues(t, 5, result.Streak)
	assert.Equal(t, "0xf00dtxhash", result.TxRef)
	assert.True(t, result.EventParsed)
	assert.Contains(t, result.ExplorerURL, "bscscan.com/tx/0xf00dtxhash")
	// Address normalized to lowercase for ledger keys.
	assert.Equal(t, "0xabcdef0123456789012345678901234567890123", result.Address)
	assert.EqualValues(t, 40, result.Record.Credits)
	assert.EqualValues(t, 1, result.Record.TotalCheckins)

	assert.Equal(t, []State{
		StateWalletCheck, StateKindGuard, StateSwitchingChain, StatePreflight,
		StateAwaitingSignature, StateConfirming, StateParsingResult,
		StateReconciling, StateDone,
	}, h.states)
	require.Len(t, h.wins, 1)
	assert.Empty(t, h.errs)

	// Guard released: an immediate second attempt is gated by cooldown,
	// not by the busy flag.
	_, err = h.orch.CheckIn(context.Background())
	assert.Equal(t, CooldownActive, kindOfErr(t, err))
}

func TestCheckIn_NotConnected(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.CheckIn(context.Background())
	assert.Equal(t, NotConnected, kindOfErr(t, err))
	require.Len(t, h.errs, 1)
	assert.Equal(t, StateWalletCheck, h.errs[0].State)
}

func TestCheckIn_WalletKindMismatch(t *testing.T) {
	h := newHarness(t)
	h.connectEVM(t, "0xabc0000000000000000000000000000000000001")
	h.registry.SetCurrent(chain.KeySolana)

	_, err := h.orch.CheckIn(context.Background())
	assert.Equal(t, WalletKindMismatch, kindOfErr(t, err))
	// Fast local rejection: the wallet is never prompted.
	assert.Equal(t, 0, h.provider.callCount("wallet_switchEthereumChain"))
	assert.Equal(t, 0, h.provider.callCount("eth_sendTransaction"))
}

func TestCheckIn_CooldownActive(t *testing.T) {
	h := newHarness(t)
	h.connectEVM(t, "0xabc0000000000000000000000000000000000001")

	now := time.Now()
	require.NoError(t, h.local.Put(context.Background(), &model.Record{
		Address:         "0xabc0000000000000000000000000000000000001",
		Credits:         60,
		LastCheckinAtMs: now.Add(-time.Hour).UnixMilli(),
	}))

	_, err := h.orch.CheckIn(context.Background())
	assert.Equal(t, CooldownActive, kindOfErr(t, err))
}

func TestCheckIn_CalendarDayFallbackGate(t *testing.T) {
	h := newHarness(t)
	h.connectEVM(t, "0xabc0000000000000000000000000000000000001")

	// Legacy record: no precise timestamp, only today's day marker.
	require.NoError(t, h.local.Put(context.Background(), &model.Record{
		Address:        "0xabc0000000000000000000000000000000000001",
		LastCheckinDay: time.Now().UTC().Format("2006-01-02"),
	}))

	_, err := h.orch.CheckIn(context.Background())
	assert.Equal(t, CooldownActive, kindOfErr(t, err))
}

func TestCheckIn_ChainSwitchFailed(t *testing.T) {
	h := newHarness(t)
	h.connectEVM(t, "0xabc0000000000000000000000000000000000001")
	h.provider.stub("eth_chainId", `"0x1"`)
	h.provider.stubErr("wallet_switchEthereumChain", errors.New("provider gone"))

	_, err := h.orch.CheckIn(context.Background())
	assert.Equal(t, ChainSwitchFailed, kindOfErr(t, err))
}

func TestCheckIn_SwitchRejectionIsUserRejected(t *testing.T) {
	h := newHarness(t)
	h.connectEVM(t, "0xabc0000000000000000000000000000000000001")
	h.provider.stub("eth_chainId", `"0x1"`)
	h.provider.stubErr("wallet_switchEthereumChain",
		&wallet.ProviderError{Code: wallet.CodeUserRejected, Message: "User rejected the request"})

	_, err := h.orch.CheckIn(context.Background())
	assert.Equal(t, UserRejected, kindOfErr(t, err))
}

func TestCheckIn_InsufficientBalance(t *testing.T) {
	h := newHarness(t)
	h.connectEVM(t, "0xabc0000000000000000000000000000000000001")
	h.provider.stub("eth_chainId", `"0x38"`)
	h.client.balance = big.NewInt(1) // 1 wei

	_, err := h.orch.CheckIn(context.Background())
	assert.Equal(t, InsufficientBalance, kindOfErr(t, err))

	var ibe *preflight.InsufficientBalanceError
	require.ErrorAs(t, err, &ibe)
	assert.NotEmpty(t, ibe.Remediation)
	assert.Equal(t, "BNB", ibe.Symbol)
	// Nothing was submitted.
	assert.Equal(t, 0, h.provider.callCount("eth_sendTransaction"))
}

func TestCheckIn_UserRejectedSignature(t *testing.T) {
	h := newHarness(t)
	h.connectEVM(t, "0xabc0000000000000000000000000000000000001")
	h.provider.stub("eth_chainId", `"0x38"`)
	h.provider.stubErr("eth_sendTransaction",
		&wallet.ProviderError{Code: wallet.CodeUserRejected, Message: "User rejected the request"})

	_, err := h.orch.CheckIn(context.Background())
	assert.Equal(t, UserRejected, kindOfErr(t, err))
}

func TestCheckIn_ConfirmationTimeoutKeepsTxRef(t *testing.T) {
	h := newHarness(t)
	h.connectEVM(t, "0xabc0000000000000000000000000000000000001")
	h.provider.stub("eth_chainId", `"0x38"`)
	h.provider.stub("eth_sendTransaction", `"0xf00dtxhash"`)
	// Receipt never materializes.
	h.client.receipt = nil

	_, err := h.orch.CheckIn(context.Background())
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ConfirmationTimeout, cerr.Kind)
	assert.Equal(t, "0xf00dtxhash", cerr.TxRef, "hash stays available for out-of-band verification")

	// No reward was applied.
	rec, _ := h.local.Get(context.Background(), "0xabc0000000000000000000000000000000000001")
	assert.Nil(t, rec)
}

func TestCheckIn_EventParseFallbackUsesDefaultReward(t *testing.T) {
	h := newHarness(t)
	h.connectEVM(t, "0xabc0000000000000000000000000000000000001")
	h.provider.stub("eth_chainId", `"0x38"`)
	h.provider.stub("eth_sendTransaction", `"0xf00dtxhash"`)
	h.client.receipt = &evmrpc.TransactionReceipt{
		TransactionHash: "0xf00dtxhash",
		Status:          "0x1",
		Logs:            nil, // no CheckedIn event
	}

	result, err := h.orch.CheckIn(context.Background())
	require.NoError(t, err)
	assert.False(t, result.EventParsed)
	assert.EqualValues(t, 30, result.Credits)
	assert.EqualValues(t, 1, result.Streak)
}

func TestCheckIn_RevertedTransactionFails(t *testing.T) {
	h := newHarness(t)
	h.connectEVM(t, "0xabc0000000000000000000000000000000000001")
	h.provider.stub("eth_chainId", `"0x38"`)
	h.provider.stub("eth_sendTransaction", `"0xf00dtxhash"`)
	h.client.receipt = &evmrpc.TransactionReceipt{
		TransactionHash: "0xf00dtxhash",
		Status:          "0x0",
	}

	_, err := h.orch.CheckIn(context.Background())
	assert.Equal(t, Internal, kindOfErr(t, err))
	rec, _ := h.local.Get(context.Background(), "0xabc0000000000000000000000000000000000001")
	assert.Nil(t, rec, "reverted tx must not mint a reward")
}

func TestCheckIn_BusyGuardRejectsConcurrentAttempt(t *testing.T) {
	h := newHarness(t)
	h.connectEVM(t, "0xabc0000000000000000000000000000000000001")
	h.provider.stub("eth_chainId", `"0x38"`)

	entered := make(chan struct{})
	release := make(chan struct{})
	h.provider.stubFn("eth_sendTransaction", func() (json.RawMessage, error) {
		close(entered)
		<-release
		return json.RawMessage(`"0xf00dtxhash"`), nil
	})
	profile, _ := h.registry.Profile(chain.KeyBSC)
	h.client.receipt = &evmrpc.TransactionReceipt{
		TransactionHash: "0xf00dtxhash",
		Status:          "0x1",
		Logs:            []*evmrpc.Log{checkedInLog(profile.ContractAddress, 1, 30)},
	}

	done := make(chan error, 1)
	go func() {
		_, err := h.orch.CheckIn(context.Background())
		done <- err
	}()

	<-entered
	_, err := h.orch.CheckIn(context.Background())
	assert.Equal(t, Busy, kindOfErr(t, err))

	close(release)
	require.NoError(t, <-done)
}

func TestCheckIn_SolanaHappyPath(t *testing.T) {
	h := newHarness(t)
	_, err := h.adapter.Connect(context.Background(), model.KindSolana, "")
	require.NoError(t, err)
	h.registry.SetCurrent(chain.KeySolana)

	confirmed := "confirmed"
	h.sol.status = &solrpc.SignatureStatus{ConfirmationStatus: &confirmed}

	result, err := h.orch.CheckIn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3AbCsig", result.TxRef)
	assert.EqualValues(t, 30, result.Credits)
	assert.False(t, result.EventParsed)
	assert.Contains(t, result.ExplorerURL, "/tx/3AbCsig")
}

func TestCheckIn_SolanaRejection(t *testing.T) {
	h := newHarness(t)
	sol := &solWallet{
		pubkey:  "FkV3qhkPHk3avidaW6hSYknL2hnCNjPEdiEmqP291t5b",
		sendErr: errors.New("User rejected the request"),
	}
	h.adapter = wallet.NewAdapter(wallet.Config{Solana: sol, Logger: discardLogger()})
	// Rebuild the orchestrator around the Solana-only adapter.
	rec := ledger.NewReconciler(ledger.Options{Local: h.local, Logger: discardLogger()})
	orch, err := New(Config{
		Registry:     h.registry,
		Wallet:       h.adapter,
		SolanaClient: func(chain.Profile) solrpc.RPCClient { return h.sol },
		Preflight:    preflight.NewChecker(discardLogger()),
		Ledger:       rec,
		Logger:       discardLogger(),
	})
	require.NoError(t, err)

	_, err = h.adapter.Connect(context.Background(), model.KindSolana, "")
	require.NoError(t, err)
	h.registry.SetCurrent(chain.KeySolana)

	_, err = orch.CheckIn(context.Background())
	assert.Equal(t, UserRejected, kindOfErr(t, err))
}

func TestStatus_FetchDecodeAndCache(t *testing.T) {
	h := newHarness(t)
	h.client.callResult = "0x" + word(20301) + word(3) + word(90) + word(60) + word(30) + word(1)

	status, err := h.orch.Status(context.Background(), "0xAbC0000000000000000000000000000000000001")
	require.NoError(t, err)
	assert.EqualValues(t, 3, status.Streak)
	assert.EqualValues(t, 60, status.AvailableCredits)
	assert.True(t, status.CanCheckInToday)

	// Second read is served from cache.
	_, err = h.orch.Status(context.Background(), "0xabc0000000000000000000000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, 1, h.client.callCount)
}

func TestStatus_CacheTTLConfigurable(t *testing.T) {
	h := newHarness(t)
	h.client.callResult = "0x" + word(20301) + word(3) + word(90) + word(60) + word(30) + word(1)

	orch, err := New(Config{
		Registry:       h.registry,
		Wallet:         h.adapter,
		EVMClient:      func(chain.Profile) evmrpc.RPCClient { return h.client },
		SolanaClient:   func(chain.Profile) solrpc.RPCClient { return h.sol },
		Preflight:      preflight.NewChecker(discardLogger()),
		Ledger:         ledger.NewReconciler(ledger.Options{Local: h.local, Logger: discardLogger()}),
		Logger:         discardLogger(),
		StatusCacheTTL: time.Nanosecond,
	})
	require.NoError(t, err)

	addr := "0xabc0000000000000000000000000000000000001"
	_, err = orch.Status(context.Background(), addr)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)

	// The entry expired, so the second read goes back to the RPC.
	_, err = orch.Status(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, 2, h.client.callCount)
}

func TestStatus_DegradesToZeroState(t *testing.T) {
	h := newHarness(t)
	h.client.callErr = errors.New("rpc unavailable")

	status, err := h.orch.Status(context.Background(), "0xabc0000000000000000000000000000000000001")
	require.NoError(t, err)
	assert.True(t, status.CanCheckInToday, "status failures must not lock the user out")
	assert.EqualValues(t, 0, status.TotalCredits)
}

func TestStatus_SolanaFromLedger(t *testing.T) {
	h := newHarness(t)
	h.registry.SetCurrent(chain.KeySolana)

	addr := "FkV3qhkPHk3avidaW6hSYknL2hnCNjPEdiEmqP291t5b"
	require.NoError(t, h.local.Put(context.Background(), &model.Record{
		Address:         addr,
		Credits:         120,
		Streak:          4,
		LastCheckinAtMs: time.Now().Add(-time.Hour).UnixMilli(),
	}))

	status, err := h.orch.Status(context.Background(), addr)
	require.NoError(t, err)
	assert.EqualValues(t, 120, status.TotalCredits)
	assert.EqualValues(t, 4, status.Streak)
	assert.False(t, status.CanCheckInToday)
}
