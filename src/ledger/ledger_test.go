package ledger

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/onemorebsmith/psychcoins/src/model"
	"github.com/stretchr/testify/require"
)

var testAccount = common.HexToAddress("0xcf1c6C722c239bFE818eb9178939FE2338975E79")

func TestEmbeddedABI(t *testing.T) {
	for _, m := range []string{MethodBalanceOf, MethodComplete, MethodUncomplete,
		MethodHasCompleted, MethodCompletionCount, MethodTotalCompleted} {
		if _, ok := parsedABI.Methods[m]; !ok {
			t.Fatalf("abi is missing %s", m)
		}
	}
	if len(parsedABI.Methods[MethodHasCompleted].Outputs) != 1 {
		t.Fatal("hasUserCompletedAction should have a single output")
	}
}

func TestDecodeRejectsMalformedOutputs(t *testing.T) {
	v, err := decodeBool(MethodHasCompleted, []interface{}{true})
	require.NoError(t, err)
	require.True(t, v)

	_, err = decodeBool(MethodHasCompleted, nil)
	require.ErrorIs(t, err, model.ErrRpc)
	_, err = decodeBool(MethodHasCompleted, []interface{}{"true"})
	require.ErrorIs(t, err, model.ErrRpc)
	_, err = decodeBool(MethodHasCompleted, []interface{}{true, false})
	require.ErrorIs(t, err, model.ErrRpc)

	n, err := decodeCount(MethodCompletionCount, []interface{}{big.NewInt(3)})
	require.NoError(t, err)
	require.Equal(t, uint64(3), n)

	_, err = decodeUint(MethodBalanceOf, []interface{}{(*big.Int)(nil)})
	require.ErrorIs(t, err, model.ErrRpc)
	_, err = decodeUint(MethodBalanceOf, []interface{}{uint64(3)})
	require.ErrorIs(t, err, model.ErrRpc)
	_, err = decodeUint(MethodBalanceOf, []interface{}{big.NewInt(-1)})
	require.ErrorIs(t, err, model.ErrRpc)
	huge := new(big.Int).Lsh(big.NewInt(1), 70)
	_, err = decodeCount(MethodCompletionCount, []interface{}{huge})
	require.ErrorIs(t, err, model.ErrRpc)
}

func complete(t *testing.T, ml *MockLedger, id model.ActionId) {
	t.Helper()
	ctx := context.Background()
	h, err := ml.SubmitCompletion(ctx, testAccount, id)
	require.NoError(t, err)
	require.NoError(t, ml.AwaitConfirmation(ctx, h))
}

func TestMockLedgerRewards(t *testing.T) {
	ctx := context.Background()
	ml := NewMockLedger(big.NewInt(model.DefaultChainID))

	complete(t, ml, "startup-0")
	complete(t, ml, "startup-1")
	complete(t, ml, "interna-0")
	complete(t, ml, "startup-1") // idempotent, no second credit

	bal, err := ml.Balance(ctx, testAccount)
	require.NoError(t, err)
	require.Equal(t, "11", bal.String()) // 5 + 1 + 5

	total, err := ml.TotalActionsCompleted(ctx, testAccount)
	require.NoError(t, err)
	require.Equal(t, uint64(3), total)

	h, err := ml.SubmitUncompletion(ctx, testAccount, "startup-0")
	require.NoError(t, err)
	require.NoError(t, ml.AwaitConfirmation(ctx, h))
	rec, err := ml.CompletionStatus(ctx, testAccount, "startup-0")
	require.NoError(t, err)
	require.Equal(t, model.CompletionRecord{HasCompleted: false, CompletionCount: 1}, rec)
	require.True(t, rec.EverCompleted())
}

func TestMockLedgerDisabledReads(t *testing.T) {
	ml := NewMockLedger(big.NewInt(model.DefaultChainID))
	rec, err := ml.CompletionStatus(context.Background(), common.Address{}, "startup-0")
	require.NoError(t, err)
	require.Equal(t, model.CompletionRecord{}, rec)
	bal, err := ml.Balance(context.Background(), common.Address{})
	require.NoError(t, err)
	require.True(t, bal.IsZero())
	require.Zero(t, ml.Calls(MethodHasCompleted)+ml.Calls(MethodBalanceOf))
}

func TestMockLedgerChainMismatch(t *testing.T) {
	ctx := context.Background()
	ml := NewMockLedger(big.NewInt(model.DefaultChainID))
	ml.SetActiveChain(big.NewInt(1))

	_, err := ml.SubmitCompletion(ctx, testAccount, "startup-0")
	require.ErrorIs(t, err, model.ErrChainMismatch)

	require.ErrorIs(t, ml.RequestChainSwitch(ctx, big.NewInt(10)), model.ErrUnsupportedChain)
	ml.RejectSwitch = true
	require.ErrorIs(t, ml.RequestChainSwitch(ctx, big.NewInt(model.DefaultChainID)), model.ErrSwitchRejected)
	ml.RejectSwitch = false
	require.NoError(t, ml.RequestChainSwitch(ctx, big.NewInt(model.DefaultChainID)))
	id, err := ml.ActiveChainID(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(model.DefaultChainID), id.Int64())
}

func TestMockLedgerInjectedFailures(t *testing.T) {
	ctx := context.Background()
	ml := NewMockLedger(big.NewInt(model.DefaultChainID))
	ml.FailNext(MethodComplete, model.ErrRejected)

	_, err := ml.SubmitCompletion(ctx, testAccount, "startup-0")
	require.ErrorIs(t, err, model.ErrRejected)
	require.Equal(t, 1, ml.Calls(MethodComplete))

	complete(t, ml, "startup-0")
	require.Equal(t, 2, ml.Calls(MethodComplete))
}

func TestMockLedgerAwaitTimeout(t *testing.T) {
	ml := NewMockLedger(big.NewInt(model.DefaultChainID))
	h, err := ml.SubmitCompletion(context.Background(), testAccount, "startup-0")
	require.NoError(t, err)

	ml.SetLatency(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, ml.AwaitConfirmation(ctx, h), model.ErrTimeout)

	ml.SetLatency(0)
	rec, err := ml.CompletionStatus(context.Background(), testAccount, "startup-0")
	require.NoError(t, err)
	require.False(t, rec.HasCompleted, "a timed out write must not be applied")
}
