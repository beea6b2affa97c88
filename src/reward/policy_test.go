package reward

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/onemorebsmith/psychcoins/src/cache"
	"github.com/onemorebsmith/psychcoins/src/ledger"
	"github.com/onemorebsmith/psychcoins/src/model"
	"github.com/onemorebsmith/psychcoins/src/registry"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var account = common.HexToAddress("0x00000000000000000000000000000000000000b2")

func newPolicy(ml *ledger.MockLedger, h cache.History) *Policy {
	return NewPolicy(ml, registry.Default(), h, 5, 1, zap.NewNop())
}

func TestRewardTiers(t *testing.T) {
	ctx := context.Background()
	ml := ledger.NewMockLedger(big.NewInt(model.DefaultChainID))
	p := newPolicy(ml, nil)

	r, err := p.RewardFor(ctx, model.CategoryStartup, account)
	require.NoError(t, err)
	require.Equal(t, uint64(5), r)

	ml.Seed(account, "startup-2", 1)
	r, err = p.RewardFor(ctx, model.CategoryStartup, account)
	require.NoError(t, err)
	require.Equal(t, uint64(1), r)

	// the other category is independent
	r, err = p.RewardFor(ctx, model.CategoryMind, account)
	require.NoError(t, err)
	require.Equal(t, uint64(5), r)
}

func TestRewardSessionRestart(t *testing.T) {
	// a previously completed then uncompleted action still counts
	ctx := context.Background()
	ml := ledger.NewMockLedger(big.NewInt(model.DefaultChainID))
	h, err := ml.SubmitCompletion(ctx, account, "interna-1")
	require.NoError(t, err)
	require.NoError(t, ml.AwaitConfirmation(ctx, h))
	h, err = ml.SubmitUncompletion(ctx, account, "interna-1")
	require.NoError(t, err)
	require.NoError(t, ml.AwaitConfirmation(ctx, h))

	p := newPolicy(ml, cache.NewMemoryHistory())
	r, err := p.RewardFor(ctx, model.CategoryMind, account)
	require.NoError(t, err)
	require.Equal(t, uint64(1), r)
}

func TestRewardCachesPositives(t *testing.T) {
	ctx := context.Background()
	ml := ledger.NewMockLedger(big.NewInt(model.DefaultChainID))
	history := cache.NewMemoryHistory()
	p := newPolicy(ml, history)

	done, err := p.HasCompletedCategory(ctx, model.CategoryStartup, account)
	require.NoError(t, err)
	require.False(t, done)
	misses := ml.Calls(ledger.MethodHasCompleted)
	require.Equal(t, 3, misses, "negatives read every action of the category")

	p.Remember(ctx, account, "startup-0")
	done, err = p.HasCompletedCategory(ctx, model.CategoryStartup, account)
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, misses, ml.Calls(ledger.MethodHasCompleted), "positives come from the cache")

	require.Equal(t, []model.ActionId{"startup-0"}, p.History(ctx, account)[model.CategoryStartup])
}

func TestRewardLedgerFailure(t *testing.T) {
	ctx := context.Background()
	ml := ledger.NewMockLedger(big.NewInt(model.DefaultChainID))
	ml.FailNext(ledger.MethodHasCompleted, model.ErrRpc)
	p := newPolicy(ml, nil)

	_, err := p.RewardFor(ctx, model.CategoryStartup, account)
	require.ErrorIs(t, err, model.ErrRpc)
}

func TestRewardNoAccount(t *testing.T) {
	ml := ledger.NewMockLedger(big.NewInt(model.DefaultChainID))
	p := newPolicy(ml, nil)
	r, err := p.RewardFor(context.Background(), model.CategoryStartup, common.Address{})
	require.NoError(t, err)
	require.Equal(t, uint64(5), r)
	require.Zero(t, ml.Calls(ledger.MethodHasCompleted))
}
