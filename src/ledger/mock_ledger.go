package ledger

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/onemorebsmith/psychcoins/src/model"
	"github.com/pkg/errors"
)

type mockAccount struct {
	records    map[model.ActionId]*model.CompletionRecord
	categories map[model.Category]bool
	balance    model.Balance
}

// MockLedger is an in-memory contract used by tests and `use_mock` configs.
// It mints FirstTimeReward for the first completion in a category and
// RepeatReward afterwards.
type MockLedger struct {
	lock      sync.Mutex
	accounts  map[common.Address]*mockAccount
	active    *big.Int
	required  *big.Int
	supported map[uint64]bool
	latency   time.Duration
	failures  map[string][]error
	calls     map[string]int
	nonce     uint64

	RejectSwitch    bool
	FirstTimeReward uint64
	RepeatReward    uint64
}

var _ Client = (*MockLedger)(nil)

// Mock method names that accept injected failures, in addition to the
// contract methods
const (
	MockAwait  = "await"
	MockSwitch = "switch"
	MockChain  = "chainId"
)

func NewMockLedger(requiredChain *big.Int) *MockLedger {
	return &MockLedger{
		accounts:        map[common.Address]*mockAccount{},
		active:          new(big.Int).Set(requiredChain),
		required:        new(big.Int).Set(requiredChain),
		supported:       map[uint64]bool{requiredChain.Uint64(): true},
		failures:        map[string][]error{},
		calls:           map[string]int{},
		FirstTimeReward: 5,
		RepeatReward:    1,
	}
}

// SetActiveChain simulates the user's wallet sitting on another chain
func (ml *MockLedger) SetActiveChain(id *big.Int) {
	ml.lock.Lock()
	defer ml.lock.Unlock()
	ml.active = new(big.Int).Set(id)
	ml.supported[id.Uint64()] = true
}

func (ml *MockLedger) SetLatency(d time.Duration) {
	ml.lock.Lock()
	defer ml.lock.Unlock()
	ml.latency = d
}

// FailNext queues err for the next call of method
func (ml *MockLedger) FailNext(method string, err error) {
	ml.lock.Lock()
	defer ml.lock.Unlock()
	ml.failures[method] = append(ml.failures[method], err)
}

// Calls reports how many times method reached the ledger
func (ml *MockLedger) Calls(method string) int {
	ml.lock.Lock()
	defer ml.lock.Unlock()
	return ml.calls[method]
}

// Seed marks id completed for account without minting, for fixtures
func (ml *MockLedger) Seed(account common.Address, id model.ActionId, count uint64) {
	ml.lock.Lock()
	defer ml.lock.Unlock()
	acct := ml.account(account)
	acct.records[id] = &model.CompletionRecord{HasCompleted: count > 0, CompletionCount: count}
	if count > 0 {
		acct.categories[id.Category()] = true
	}
}

func (ml *MockLedger) account(a common.Address) *mockAccount {
	acct, ok := ml.accounts[a]
	if !ok {
		acct = &mockAccount{
			records:    map[model.ActionId]*model.CompletionRecord{},
			categories: map[model.Category]bool{},
		}
		ml.accounts[a] = acct
	}
	return acct
}

// enter records the call and pops an injected failure. Must hold lock.
func (ml *MockLedger) enter(method string) error {
	ml.calls[method]++
	queued := ml.failures[method]
	if len(queued) == 0 {
		return nil
	}
	ml.failures[method] = queued[1:]
	return queued[0]
}

func (ml *MockLedger) wait(ctx context.Context) error {
	ml.lock.Lock()
	d := ml.latency
	ml.lock.Unlock()
	if d == 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func (ml *MockLedger) Balance(ctx context.Context, account common.Address) (model.Balance, error) {
	if account == (common.Address{}) {
		return model.Balance{}, nil
	}
	if err := ml.wait(ctx); err != nil {
		return model.Balance{}, errors.Wrap(model.ErrConnectivity, err.Error())
	}
	ml.lock.Lock()
	defer ml.lock.Unlock()
	if err := ml.enter(MethodBalanceOf); err != nil {
		return model.Balance{}, err
	}
	return ml.account(account).balance, nil
}

func (ml *MockLedger) CompletionStatus(ctx context.Context, account common.Address, id model.ActionId) (model.CompletionRecord, error) {
	if account == (common.Address{}) || id == "" {
		return model.CompletionRecord{}, nil
	}
	if err := ml.wait(ctx); err != nil {
		return model.CompletionRecord{}, errors.Wrap(model.ErrConnectivity, err.Error())
	}
	ml.lock.Lock()
	defer ml.lock.Unlock()
	if err := ml.enter(MethodHasCompleted); err != nil {
		return model.CompletionRecord{}, err
	}
	if rec, ok := ml.account(account).records[id]; ok {
		return *rec, nil
	}
	return model.CompletionRecord{}, nil
}

func (ml *MockLedger) TotalActionsCompleted(ctx context.Context, account common.Address) (uint64, error) {
	if account == (common.Address{}) {
		return 0, nil
	}
	ml.lock.Lock()
	defer ml.lock.Unlock()
	if err := ml.enter(MethodTotalCompleted); err != nil {
		return 0, err
	}
	total := uint64(0)
	for _, rec := range ml.account(account).records {
		if rec.HasCompleted {
			total++
		}
	}
	return total, nil
}

func (ml *MockLedger) SubmitCompletion(ctx context.Context, account common.Address, id model.ActionId) (*TransactionHandle, error) {
	return ml.submit(account, id, model.WriteComplete)
}

func (ml *MockLedger) SubmitUncompletion(ctx context.Context, account common.Address, id model.ActionId) (*TransactionHandle, error) {
	return ml.submit(account, id, model.WriteUncomplete)
}

func (ml *MockLedger) submit(account common.Address, id model.ActionId, kind model.WriteKind) (*TransactionHandle, error) {
	method := methodFor(kind)
	ml.lock.Lock()
	defer ml.lock.Unlock()
	if err := ml.enter(method); err != nil {
		return nil, err
	}
	if account == (common.Address{}) {
		return nil, errors.Wrap(model.ErrConnectivity, method)
	}
	if ml.active.Cmp(ml.required) != 0 {
		return nil, errors.Wrapf(model.ErrChainMismatch, "%s: active chain %s", method, ml.active)
	}
	ml.nonce++
	return &TransactionHandle{
		Hash:        crypto.Keccak256Hash(account.Bytes(), []byte(id), big.NewInt(int64(ml.nonce)).Bytes()),
		Account:     account,
		ActionId:    id,
		Kind:        kind,
		SubmittedAt: time.Now(),
	}, nil
}

// AwaitConfirmation applies the write, the mock "mines" on await
func (ml *MockLedger) AwaitConfirmation(ctx context.Context, handle *TransactionHandle) error {
	if err := ml.wait(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return errors.Wrapf(model.ErrTimeout, "tx %s", handle.Hash.Hex())
		}
		return errors.Wrap(model.ErrRpc, err.Error())
	}
	ml.lock.Lock()
	defer ml.lock.Unlock()
	if err := ml.enter(MockAwait); err != nil {
		return err
	}
	acct := ml.account(handle.Account)
	rec, ok := acct.records[handle.ActionId]
	if !ok {
		rec = &model.CompletionRecord{}
		acct.records[handle.ActionId] = rec
	}
	switch handle.Kind {
	case model.WriteComplete:
		if rec.HasCompleted {
			return nil // already credited, the contract is idempotent
		}
		rec.HasCompleted = true
		rec.CompletionCount++
		cat := handle.ActionId.Category()
		reward := ml.RepeatReward
		if !acct.categories[cat] {
			reward = ml.FirstTimeReward
			acct.categories[cat] = true
		}
		acct.balance = acct.balance.Add(model.BalanceFromTokens(reward))
	case model.WriteUncomplete:
		rec.HasCompleted = false
	}
	return nil
}

func (ml *MockLedger) ActiveChainID(ctx context.Context) (*big.Int, error) {
	ml.lock.Lock()
	defer ml.lock.Unlock()
	if err := ml.enter(MockChain); err != nil {
		return nil, err
	}
	return new(big.Int).Set(ml.active), nil
}

func (ml *MockLedger) RequestChainSwitch(ctx context.Context, chainID *big.Int) error {
	if err := ml.wait(ctx); err != nil {
		return errors.Wrap(model.ErrSwitchRejected, err.Error())
	}
	ml.lock.Lock()
	defer ml.lock.Unlock()
	if err := ml.enter(MockSwitch); err != nil {
		return err
	}
	if !ml.supported[chainID.Uint64()] {
		return errors.Wrapf(model.ErrUnsupportedChain, "chain %s", chainID)
	}
	if ml.RejectSwitch {
		return errors.Wrapf(model.ErrSwitchRejected, "switch to %s declined", chainID)
	}
	ml.active = new(big.Int).Set(chainID)
	return nil
}
