package main

import (
	"log"
	"os"

	"github.com/onemorebsmith/psychcoins/src/common"
	"github.com/spf13/cobra"
)

var (
	configDir string
	cfg       common.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "psychcoins",
	Short: "Psychology for Founders action tracker backed by the PsychologyCoins ledger",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return applyFlags(cmd)
	},
	SilenceUsage: true,
}

func init() {
	pwd, _ := os.Getwd()
	cfg = common.DefaultConfig()

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configDir, "config-dir", pwd, "directory holding `config.yaml`")
	pf.String("rpc", "", "json-rpc endpoint of the required chain, default `https://sepolia.base.org`")
	pf.String("prom", "", "address to serve prom stats, default `:2112`")
	pf.String("pg", "", "config string for the postgres journal, empty disables it")
	pf.String("redis", "", "address of the redis history cache, empty uses memory")
	pf.String("log-level", "", "zap log level, default `info`")
	pf.Bool("mock", false, "use the in-memory ledger instead of the contract")
	pf.String("account", "", "account to act as when --mock is set")
	pf.Uint64("chain-id", 0, "required chain id, default 84532 (base sepolia)")
	pf.String("contract", "", "PsychologyCoins contract address")
	pf.String("write-mode", "", "per_action | category_gated")
	pf.String("lock-policy", "", "per_action | global")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(toggleCmd)
	rootCmd.AddCommand(stageCmd)
	rootCmd.AddCommand(switchNetworkCmd)
	rootCmd.AddCommand(toolCmd)
}

// applyFlags loads config.yaml and lays explicitly set flags over it
func applyFlags(cmd *cobra.Command) error {
	loaded, fullPath, err := common.LoadConfig(configDir)
	if err != nil {
		return err
	}
	log.Printf("loading config @ `%s`", fullPath)
	cfg = loaded

	flags := cmd.Flags()
	overrideString := func(name string, target *string) {
		if flags.Changed(name) {
			*target, _ = flags.GetString(name)
		}
	}
	overrideString("rpc", &cfg.RPCServer)
	overrideString("prom", &cfg.PromPort)
	overrideString("pg", &cfg.PostgresConfig)
	overrideString("redis", &cfg.RedisConfig)
	overrideString("log-level", &cfg.LogLevel)
	overrideString("contract", &cfg.Ledger.ContractAddress)
	overrideString("write-mode", &cfg.Reconciler.WriteMode)
	overrideString("lock-policy", &cfg.Reconciler.LockPolicy)
	overrideString("api", &cfg.APIPort)
	overrideString("hcp", &cfg.HealthCheckPort)
	if flags.Changed("mock") {
		cfg.Ledger.Mock, _ = flags.GetBool("mock")
	}
	if flags.Changed("chain-id") {
		cfg.Ledger.ChainID, _ = flags.GetUint64("chain-id")
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
