package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/onemorebsmith/psychcoins/src/model"
	"github.com/onemorebsmith/psychcoins/src/reconciler"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config-dir", t.TempDir(), "--log-level", "error"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestConfigFileAndFlags(t *testing.T) {
	dir := t.TempDir()
	raw := "api_port: \":9000\"\nreconciler:\n  write_mode: category_gated\nledger:\n  chain_id: 8453\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(raw), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--config-dir", dir, "--chain-id", "84532", "--mock", "switch-network"})
	require.NoError(t, rootCmd.Execute())
	require.Contains(t, out.String(), "connected to chain 84532")
	require.Equal(t, ":9000", cfg.APIPort)
	require.Equal(t, "category_gated", cfg.Reconciler.WriteMode)
	require.Equal(t, uint64(84532), cfg.Ledger.ChainID)
	require.True(t, cfg.Ledger.Mock)
}

func TestMockStatusAndToggle(t *testing.T) {
	out, err := execute(t, "--mock", "status")
	require.NoError(t, err)
	require.Contains(t, out, "progress: 0%")
	require.Contains(t, out, "next startup reward: 5")

	out, err = execute(t, "--mock", "toggle", "startup-0", "--yes")
	require.NoError(t, err)
	require.Contains(t, out, "startup-0: set to true")
	require.Contains(t, out, "(+5 coins)")
	require.Contains(t, out, "[x] startup-0")
}

func TestToggleRejectsMalformedIds(t *testing.T) {
	_, err := execute(t, "--mock", "toggle", "bogus")
	require.Error(t, err)
}

func TestPrintResult(t *testing.T) {
	cases := []struct {
		res  reconciler.ToggleResult
		want string
	}{
		{reconciler.ToggleResult{ActionId: "mind-1", Skipped: true}, "already pending"},
		{reconciler.ToggleResult{ActionId: "mind-1", NeedsNetworkSwitch: true}, "switch-network"},
		{reconciler.ToggleResult{ActionId: "mind-1", Value: true, LocalOnly: true}, "once the category is done"},
		{reconciler.ToggleResult{ActionId: "mind-1", Value: true, Written: []model.ActionId{"mind-1"}, Reward: 1}, "(+1 coins)"},
	}
	for _, c := range cases {
		var out bytes.Buffer
		printResult(&out, &c.res)
		require.Contains(t, out.String(), c.want)
	}
}
