package ledger

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/onemorebsmith/psychcoins/src/model"
)

// Client is a stateless wrapper around the PsychologyCoins contract. Reads
// may be retried freely, writes are never retried here.
type Client interface {
	Balance(ctx context.Context, account common.Address) (model.Balance, error)
	CompletionStatus(ctx context.Context, account common.Address, id model.ActionId) (model.CompletionRecord, error)
	TotalActionsCompleted(ctx context.Context, account common.Address) (uint64, error)

	SubmitCompletion(ctx context.Context, account common.Address, id model.ActionId) (*TransactionHandle, error)
	SubmitUncompletion(ctx context.Context, account common.Address, id model.ActionId) (*TransactionHandle, error)
	AwaitConfirmation(ctx context.Context, handle *TransactionHandle) error

	ActiveChainID(ctx context.Context) (*big.Int, error)
	RequestChainSwitch(ctx context.Context, chainID *big.Int) error
}

// TransactionHandle tracks a submitted write until it is mined
type TransactionHandle struct {
	Hash        common.Hash
	Account     common.Address
	ActionId    model.ActionId
	Kind        model.WriteKind
	SubmittedAt time.Time

	tx *types.Transaction
}

const (
	MethodBalanceOf       = "balanceOf"
	MethodComplete        = "completeAction"
	MethodUncomplete      = "uncompleteAction"
	MethodHasCompleted    = "hasUserCompletedAction"
	MethodCompletionCount = "getCompletionCount"
	MethodTotalCompleted  = "getTotalActionsCompleted"
)

func methodFor(kind model.WriteKind) string {
	if kind == model.WriteUncomplete {
		return MethodUncomplete
	}
	return MethodComplete
}
