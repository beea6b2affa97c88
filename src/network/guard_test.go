package network

import (
	"context"
	"math/big"
	"testing"

	"github.com/onemorebsmith/psychcoins/src/ledger"
	"github.com/onemorebsmith/psychcoins/src/model"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newGuard(t *testing.T) (*Guard, *ledger.MockLedger) {
	t.Helper()
	required := big.NewInt(model.DefaultChainID)
	ml := ledger.NewMockLedger(required)
	return NewGuard(required, ml, zap.NewNop()), ml
}

func TestGuardOnCorrectChain(t *testing.T) {
	g, ml := newGuard(t)
	ctx := context.Background()

	state := g.State(ctx)
	require.True(t, state.IsCorrect)
	require.False(t, state.IsSwitching)
	require.Equal(t, int64(model.DefaultChainID), state.CurrentChainId.Int64())

	require.NoError(t, g.EnsureCorrectNetwork(ctx))
	require.Zero(t, ml.Calls(ledger.MockSwitch), "no switch when already correct")
}

func TestGuardSwitchesChain(t *testing.T) {
	g, ml := newGuard(t)
	ctx := context.Background()
	ml.SetActiveChain(big.NewInt(1))

	ok, err := g.IsCorrect(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	require.False(t, g.State(ctx).IsCorrect)

	require.NoError(t, g.EnsureCorrectNetwork(ctx))
	require.Equal(t, 1, ml.Calls(ledger.MockSwitch))
	require.True(t, g.State(ctx).IsCorrect)
}

func TestGuardSwitchDeclined(t *testing.T) {
	g, ml := newGuard(t)
	ctx := context.Background()
	ml.SetActiveChain(big.NewInt(1))
	ml.RejectSwitch = true

	err := g.EnsureCorrectNetwork(ctx)
	require.ErrorIs(t, err, model.ErrNetwork)
	require.ErrorIs(t, err, model.ErrSwitchRejected)
	require.Equal(t, model.KindSwitchRejected, model.KindOf(err))
	require.False(t, g.State(ctx).IsSwitching)
}

func TestGuardChainReadFailure(t *testing.T) {
	g, ml := newGuard(t)
	ctx := context.Background()
	ml.FailNext(ledger.MockChain, model.ErrConnectivity)

	state := g.State(ctx)
	require.False(t, state.IsCorrect)
	require.Nil(t, state.CurrentChainId)

	ml.FailNext(ledger.MockChain, model.ErrConnectivity)
	err := g.EnsureCorrectNetwork(ctx)
	require.ErrorIs(t, err, model.ErrNetwork)
	require.ErrorIs(t, err, model.ErrConnectivity)
}
