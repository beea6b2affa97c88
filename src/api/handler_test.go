package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/onemorebsmith/psychcoins/src/cache"
	"github.com/onemorebsmith/psychcoins/src/ledger"
	"github.com/onemorebsmith/psychcoins/src/model"
	"github.com/onemorebsmith/psychcoins/src/network"
	"github.com/onemorebsmith/psychcoins/src/reconciler"
	"github.com/onemorebsmith/psychcoins/src/registry"
	"github.com/onemorebsmith/psychcoins/src/reward"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testAccount = common.HexToAddress("0x00000000000000000000000000000000000000d4")

type stubJournal struct {
	entries []*model.JournalEntry
}

func (sj *stubJournal) Entries(_ context.Context, account string, limit int) ([]*model.JournalEntry, error) {
	return sj.entries, nil
}

func setupRouter(t *testing.T, opts RouterOptions) (*gin.Engine, *ledger.MockLedger, *reconciler.Reconciler) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	required := big.NewInt(model.DefaultChainID)
	ml := ledger.NewMockLedger(required)
	reg := registry.Default()
	cfg := reconciler.DefaultConfig()
	cfg.SettleDelay = time.Millisecond
	rec, err := reconciler.New(cfg, reconciler.Deps{
		Ledger:   ml,
		Guard:    network.NewGuard(required, ml, logger),
		Registry: reg,
		Rewards:  reward.NewPolicy(ml, reg, cache.NewMemoryHistory(), 5, 1, logger),
		Account:  testAccount,
		Logger:   logger,
	})
	require.NoError(t, err)
	t.Cleanup(rec.Close)
	require.NoError(t, rec.Refresh(context.Background()))

	journal := &stubJournal{entries: []*model.JournalEntry{
		model.NewJournalEntry(testAccount.Hex(), "startup-0", model.WriteComplete, 5),
	}}
	h := NewHandler(rec, reg, journal, logger)
	return NewRouter(h, opts), ml, rec
}

func do(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestGetView(t *testing.T) {
	router, _, _ := setupRouter(t, RouterOptions{})
	w := do(router, http.MethodGet, "/api/v1/view", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode(t, w)
	require.Equal(t, "Cómo construir un MVP", resp["stage_title"])
	require.Equal(t, float64(6), resp["total_actions"])
	require.Equal(t, false, resp["badge_unlocked"])
	require.Equal(t, "0", resp["balance"])
}

func TestToggleWaits(t *testing.T) {
	router, ml, _ := setupRouter(t, RouterOptions{})
	w := do(router, http.MethodPost, "/api/v1/actions/startup-0/toggle?wait=true", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode(t, w)
	result := resp["result"].(map[string]any)
	require.Equal(t, true, result["value"])
	require.Equal(t, float64(5), result["reward"])
	require.Equal(t, 1, ml.Calls(ledger.MethodComplete))
}

func TestToggleAsyncAccepted(t *testing.T) {
	router, _, rec := setupRouter(t, RouterOptions{})
	w := do(router, http.MethodPost, "/api/v1/actions/interna-1/toggle", nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	require.Eventually(t, func() bool {
		st := rec.View().Actions["interna-1"]
		return st.Status == reconciler.StatusConfirmed && st.Value
	}, 2*time.Second, 5*time.Millisecond)
}

func TestToggleNetworkMismatch(t *testing.T) {
	router, ml, _ := setupRouter(t, RouterOptions{})
	ml.SetActiveChain(big.NewInt(1))

	w := do(router, http.MethodPost, "/api/v1/actions/startup-0/toggle?wait=true", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	resp := decode(t, w)
	require.Equal(t, true, resp["needs_network_switch"])
	require.Equal(t, string(model.KindNetworkMismatch), resp["kind"])
	require.Zero(t, ml.Calls(ledger.MethodComplete))

	w = do(router, http.MethodPost, "/api/v1/network/switch", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	network := decode(t, w)["network"].(map[string]any)
	require.Equal(t, true, network["is_correct"])
}

func TestToggleErrors(t *testing.T) {
	router, ml, _ := setupRouter(t, RouterOptions{})

	w := do(router, http.MethodPost, "/api/v1/actions/garbage/toggle", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodPost, "/api/v1/actions/startup-9/toggle", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, string(model.KindUnknownAction), decode(t, w)["kind"])

	ml.FailNext(ledger.MethodComplete, errors.Wrap(model.ErrRejected, "declined"))
	w = do(router, http.MethodPost, "/api/v1/actions/startup-1/toggle?wait=true", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, string(model.KindRejected), decode(t, w)["kind"])

	w = do(router, http.MethodDelete, "/api/v1/actions/startup-1/error", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Nil(t, decode(t, w)["last_error"])
}

func TestStageEndpoints(t *testing.T) {
	router, _, _ := setupRouter(t, RouterOptions{})

	w := do(router, http.MethodPost, "/api/v1/stage", []byte(`{"index": 0}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(router, http.MethodPost, "/api/v1/stage", []byte(`{"index": 3}`))
	require.Equal(t, http.StatusNotFound, w.Code)

	w = do(router, http.MethodPost, "/api/v1/stage", []byte(`{}`))
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodPost, "/api/v1/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(router, http.MethodPost, "/api/v1/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Nil(t, decode(t, w)["error"])
}

func TestDownloadTool(t *testing.T) {
	router, _, _ := setupRouter(t, RouterOptions{})

	w := do(router, http.MethodGet, "/api/v1/stages/0/tools/startup", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "text/markdown; charset=utf-8", w.Header().Get("Content-Type"))
	require.Contains(t, w.Header().Get("Content-Disposition"), "guia-problemas.md")
	require.NotEmpty(t, w.Body.String())

	w = do(router, http.MethodGet, "/api/v1/stages/0/tools/mind", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Disposition"), "diario-emocional.md")

	w = do(router, http.MethodGet, "/api/v1/stages/4/tools/startup", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	w = do(router, http.MethodGet, "/api/v1/stages/0/tools/other", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJournalAndProbes(t *testing.T) {
	router, _, _ := setupRouter(t, RouterOptions{})

	w := do(router, http.MethodGet, "/api/v1/journal?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode(t, w)["entries"], 1)

	w = do(router, http.MethodGet, "/api/v1/journal?limit=0", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestReadyzReportsFailure(t *testing.T) {
	router, _, _ := setupRouter(t, RouterOptions{Ready: func(context.Context) error {
		return errors.New("redis down")
	}})
	w := do(router, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), "redis down")
}

func TestRateLimit(t *testing.T) {
	router, _, _ := setupRouter(t, RouterOptions{RateLimitRPS: 1, RateLimitBurst: 1})

	w := do(router, http.MethodPost, "/api/v1/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(router, http.MethodPost, "/api/v1/refresh", nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	// reads are not limited
	w = do(router, http.MethodGet, "/api/v1/view", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		errors.Wrap(model.ErrTimeout, "x"):            http.StatusGatewayTimeout,
		errors.Wrap(model.ErrRpc, "x"):                http.StatusBadGateway,
		errors.Wrap(model.ErrUnsupportedChain, "x"):   http.StatusUnprocessableEntity,
		errors.Wrap(registry.ErrStageOutOfRange, "x"): http.StatusNotFound,
		reconciler.ErrClosed:                          http.StatusServiceUnavailable,
		errors.New("boom"):                            http.StatusInternalServerError,
	}
	for err, expected := range cases {
		require.Equal(t, expected, statusFor(err), err.Error())
	}
}
