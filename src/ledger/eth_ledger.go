package ledger

import (
	"context"
	_ "embed"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/onemorebsmith/psychcoins/src/model"
	"github.com/onemorebsmith/psychcoins/src/wallet"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

//go:embed PsychologyCoins.abi.json
var contractABI string

var parsedABI = mustParseABI(contractABI)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(errors.Wrap(err, "embedded contract abi is invalid"))
	}
	return parsed
}

// EthLedger talks to the deployed contract through the wallet session's
// active endpoint
type EthLedger struct {
	session  *wallet.Session
	address  common.Address
	required *big.Int
	// one account, one nonce sequence. Held from nonce read to send.
	nonceLock sync.Mutex
	logger    *zap.Logger
}

var _ Client = (*EthLedger)(nil)

func NewEthLedger(session *wallet.Session, contract string, requiredChain *big.Int, logger *zap.Logger) (*EthLedger, error) {
	if !common.IsHexAddress(contract) {
		return nil, errors.Errorf("invalid contract address %q", contract)
	}
	return &EthLedger{
		session:  session,
		address:  common.HexToAddress(contract),
		required: new(big.Int).Set(requiredChain),
		logger:   logger.With(zap.String("component", "eth_ledger"), zap.String("contract", contract)),
	}, nil
}

func (el *EthLedger) contract() (*bind.BoundContract, wallet.Backend, error) {
	backend, err := el.session.Backend()
	if err != nil {
		return nil, nil, err
	}
	return bind.NewBoundContract(el.address, parsedABI, backend, backend, backend), backend, nil
}

func (el *EthLedger) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	bc, _, err := el.contract()
	if err != nil {
		return nil, err
	}
	var out []interface{}
	if err := bc.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, errors.Wrapf(model.ErrRpc, "%s: %s", method, err)
	}
	return out, nil
}

func (el *EthLedger) Balance(ctx context.Context, account common.Address) (model.Balance, error) {
	if account == (common.Address{}) {
		return model.Balance{}, nil
	}
	out, err := el.call(ctx, MethodBalanceOf, account)
	if err != nil {
		return model.Balance{}, err
	}
	raw, err := decodeUint(MethodBalanceOf, out)
	if err != nil {
		return model.Balance{}, err
	}
	return model.NewBalance(raw), nil
}

func (el *EthLedger) CompletionStatus(ctx context.Context, account common.Address, id model.ActionId) (model.CompletionRecord, error) {
	if account == (common.Address{}) || id == "" {
		return model.CompletionRecord{}, nil // not issued
	}
	out, err := el.call(ctx, MethodHasCompleted, account, string(id))
	if err != nil {
		return model.CompletionRecord{}, err
	}
	done, err := decodeBool(MethodHasCompleted, out)
	if err != nil {
		return model.CompletionRecord{}, err
	}
	out, err = el.call(ctx, MethodCompletionCount, account, string(id))
	if err != nil {
		return model.CompletionRecord{}, err
	}
	count, err := decodeCount(MethodCompletionCount, out)
	if err != nil {
		return model.CompletionRecord{}, err
	}
	return model.CompletionRecord{HasCompleted: done, CompletionCount: count}, nil
}

func (el *EthLedger) TotalActionsCompleted(ctx context.Context, account common.Address) (uint64, error) {
	if account == (common.Address{}) {
		return 0, nil
	}
	out, err := el.call(ctx, MethodTotalCompleted, account)
	if err != nil {
		return 0, err
	}
	return decodeCount(MethodTotalCompleted, out)
}

func (el *EthLedger) SubmitCompletion(ctx context.Context, account common.Address, id model.ActionId) (*TransactionHandle, error) {
	return el.submit(ctx, account, id, model.WriteComplete)
}

func (el *EthLedger) SubmitUncompletion(ctx context.Context, account common.Address, id model.ActionId) (*TransactionHandle, error) {
	return el.submit(ctx, account, id, model.WriteUncomplete)
}

func (el *EthLedger) submit(ctx context.Context, account common.Address, id model.ActionId, kind model.WriteKind) (*TransactionHandle, error) {
	method := methodFor(kind)
	if account == (common.Address{}) || account != el.session.Account() {
		return nil, errors.Wrapf(model.ErrConnectivity, "%s: account %s is not the connected signer", method, account)
	}
	if id == "" {
		return nil, errors.Wrapf(model.ErrUnknownAction, "%s: empty action id", method)
	}
	chain, err := el.session.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	if chain.Cmp(el.required) != 0 {
		return nil, errors.Wrapf(model.ErrChainMismatch, "%s: active chain %s, required %s", method, chain, el.required)
	}
	bc, backend, err := el.contract()
	if err != nil {
		return nil, err
	}
	opts, err := el.session.TransactOpts(ctx, chain, wallet.TxRequest{Method: method, ActionId: string(id)})
	if err != nil {
		return nil, err
	}

	el.nonceLock.Lock()
	defer el.nonceLock.Unlock()
	nonce, err := backend.PendingNonceAt(ctx, account)
	if err != nil {
		return nil, errors.Wrapf(model.ErrRpc, "%s: failed reading nonce: %s", method, err)
	}
	opts.Nonce = new(big.Int).SetUint64(nonce)
	tx, err := bc.Transact(opts, method, string(id))
	if err != nil {
		if errors.Is(err, model.ErrRejected) {
			return nil, err
		}
		return nil, errors.Wrapf(model.ErrRpc, "%s(%s): %s", method, id, err)
	}
	el.logger.Info("submitted write", zap.String("method", method), zap.String("action_id", string(id)),
		zap.String("tx", tx.Hash().Hex()), zap.Uint64("nonce", nonce))
	return &TransactionHandle{
		Hash:        tx.Hash(),
		Account:     account,
		ActionId:    id,
		Kind:        kind,
		SubmittedAt: time.Now(),
		tx:          tx,
	}, nil
}

func (el *EthLedger) AwaitConfirmation(ctx context.Context, handle *TransactionHandle) error {
	if handle == nil || handle.tx == nil {
		return errors.Wrap(model.ErrRpc, "no transaction to await")
	}
	_, backend, err := el.contract()
	if err != nil {
		return err
	}
	receipt, err := bind.WaitMined(ctx, backend, handle.tx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return errors.Wrapf(model.ErrTimeout, "tx %s", handle.Hash.Hex())
		}
		return errors.Wrapf(model.ErrRpc, "waiting for tx %s: %s", handle.Hash.Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return errors.Wrapf(model.ErrRpc, "tx %s reverted in block %s", handle.Hash.Hex(), receipt.BlockNumber)
	}
	el.logger.Info("write confirmed", zap.String("action_id", string(handle.ActionId)),
		zap.String("tx", handle.Hash.Hex()), zap.Duration("latency", time.Since(handle.SubmittedAt)))
	return nil
}

func (el *EthLedger) ActiveChainID(ctx context.Context) (*big.Int, error) {
	return el.session.ChainID(ctx)
}

func (el *EthLedger) RequestChainSwitch(ctx context.Context, chainID *big.Int) error {
	return el.session.SwitchChain(ctx, chainID)
}
