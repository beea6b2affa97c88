package network

import (
	"context"
	"math/big"
	"sync/atomic"

	"github.com/onemorebsmith/psychcoins/src/model"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ChainReader is the slice of the ledger client the guard needs
type ChainReader interface {
	ActiveChainID(ctx context.Context) (*big.Int, error)
	RequestChainSwitch(ctx context.Context, chainID *big.Int) error
}

// Guard verifies that writes target the required chain and drives the
// switch flow when they would not.
type Guard struct {
	required  *big.Int
	chain     ChainReader
	switching atomic.Bool
	logger    *zap.Logger
}

func NewGuard(required *big.Int, chain ChainReader, logger *zap.Logger) *Guard {
	return &Guard{
		required: new(big.Int).Set(required),
		chain:    chain,
		logger:   logger.With(zap.String("component", "network_guard")),
	}
}

func (g *Guard) Required() *big.Int {
	return new(big.Int).Set(g.required)
}

// State is computed on each call, nothing is cached between calls. A failed
// chain read reports a nil current chain and IsCorrect=false.
func (g *Guard) State(ctx context.Context) model.NetworkState {
	state := model.NetworkState{
		RequiredChainId: g.Required(),
		IsSwitching:     g.switching.Load(),
	}
	current, err := g.chain.ActiveChainID(ctx)
	if err != nil {
		g.logger.Warn("failed reading active chain", zap.Error(err))
		return state
	}
	state.CurrentChainId = current
	state.IsCorrect = current.Cmp(g.required) == 0
	return state
}

func (g *Guard) IsCorrect(ctx context.Context) (bool, error) {
	current, err := g.chain.ActiveChainID(ctx)
	if err != nil {
		return false, errors.Wrap(err, "failed reading active chain")
	}
	return current.Cmp(g.required) == 0, nil
}

// EnsureCorrectNetwork returns nil when the active chain is the required one,
// otherwise it asks the wallet to switch and re-reads the active chain once.
// Failures come back as *model.NetworkError.
func (g *Guard) EnsureCorrectNetwork(ctx context.Context) error {
	ok, err := g.IsCorrect(ctx)
	if err != nil {
		return &model.NetworkError{Err: err}
	}
	if ok {
		return nil
	}
	if !g.switching.CompareAndSwap(false, true) {
		return &model.NetworkError{Err: errors.Wrap(model.ErrSwitchRejected, "switch already in progress")}
	}
	defer g.switching.Store(false)

	g.logger.Info("requesting chain switch", zap.String("target", g.required.String()))
	if err := g.chain.RequestChainSwitch(ctx, g.Required()); err != nil {
		RecordSwitch(err)
		g.logger.Warn("chain switch failed", zap.Error(err))
		return &model.NetworkError{Err: err}
	}
	ok, err = g.IsCorrect(ctx)
	if err != nil {
		RecordSwitch(err)
		return &model.NetworkError{Err: err}
	}
	if !ok {
		err := errors.Wrapf(model.ErrChainMismatch, "still off chain %s after switch", g.required)
		RecordSwitch(err)
		return &model.NetworkError{Err: err}
	}
	RecordSwitch(nil)
	g.logger.Info("chain switch complete")
	return nil
}
