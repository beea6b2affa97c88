package main

import (
	"context"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/go-redis/redis/v8"
	"github.com/onemorebsmith/psychcoins/src/api"
	"github.com/onemorebsmith/psychcoins/src/cache"
	"github.com/onemorebsmith/psychcoins/src/common"
	"github.com/onemorebsmith/psychcoins/src/ledger"
	"github.com/onemorebsmith/psychcoins/src/network"
	"github.com/onemorebsmith/psychcoins/src/postgres"
	"github.com/onemorebsmith/psychcoins/src/reconciler"
	"github.com/onemorebsmith/psychcoins/src/registry"
	"github.com/onemorebsmith/psychcoins/src/reward"
	"github.com/onemorebsmith/psychcoins/src/wallet"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// demo account used by --mock when no --account is given
const mockAccount = "0x000000000000000000000000000000000000bEEF"

type app struct {
	cfg      common.AppConfig
	logger   *zap.Logger
	registry *registry.Registry
	session  *wallet.Session
	ledger   ledger.Client
	redis    *redis.Client
	journal  api.JournalReader
	engine   *reconciler.Reconciler
}

func buildApp(ctx context.Context, cmd *cobra.Command, approver wallet.Approver) (*app, error) {
	logger := common.ConfigureZap(common.ParseLevel(cfg.LogLevel))
	a := &app{cfg: cfg, logger: logger, registry: registry.Default()}

	rcfg, err := reconciler.ConfigFrom(cfg.Reconciler)
	if err != nil {
		return nil, err
	}
	required := new(big.Int).SetUint64(cfg.Ledger.ChainID)

	var account ethcommon.Address
	if cfg.Ledger.Mock {
		raw, _ := cmd.Flags().GetString("account")
		if raw == "" {
			raw = mockAccount
		}
		if !ethcommon.IsHexAddress(raw) {
			return nil, errors.Errorf("invalid --account %q", raw)
		}
		account = ethcommon.HexToAddress(raw)
		ml := ledger.NewMockLedger(required)
		ml.FirstTimeReward = cfg.Reconciler.FirstTimeReward
		ml.RepeatReward = cfg.Reconciler.RepeatReward
		a.ledger = ml
	} else {
		endpoints := map[uint64]string{}
		for k, v := range cfg.Ledger.Endpoints {
			endpoints[k] = v
		}
		if _, ok := endpoints[cfg.Ledger.ChainID]; !ok && cfg.RPCServer != "" {
			endpoints[cfg.Ledger.ChainID] = cfg.RPCServer
		}
		session, err := wallet.NewSession(ctx, wallet.Config{
			RPCServer:     cfg.RPCServer,
			Endpoints:     endpoints,
			PrivateKeyHex: wallet.KeyFromEnv(cfg.Ledger.PrivateKeyEnv),
		}, approver, logger)
		if err != nil {
			return nil, err
		}
		a.session = session
		account = session.Account()
		if account == (ethcommon.Address{}) {
			logger.Warn("no signing key in $" + cfg.Ledger.PrivateKeyEnv + ", running read only")
		}
		el, err := ledger.NewEthLedger(session, cfg.Ledger.ContractAddress, required, logger)
		if err != nil {
			session.Close()
			return nil, err
		}
		a.ledger = el
	}

	var history cache.History = cache.NewMemoryHistory()
	if cfg.RedisConfig != "" {
		rd, err := cache.ConfigureRedis(cfg.RedisConfig)
		if err != nil {
			a.Close()
			return nil, errors.Wrap(err, "failed connecting to redis")
		}
		a.redis = rd
		history = cache.NewRedisHistory(rd)
	}

	deps := reconciler.Deps{
		Ledger:   a.ledger,
		Guard:    network.NewGuard(required, a.ledger, logger),
		Registry: a.registry,
		Rewards: reward.NewPolicy(a.ledger, a.registry, history,
			cfg.Reconciler.FirstTimeReward, cfg.Reconciler.RepeatReward, logger),
		Account: account,
		Logger:  logger,
	}
	if cfg.PostgresConfig != "" {
		postgres.ConfigurePostgres(cfg.PostgresConfig)
		if err := postgres.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, err
		}
		deps.Journal = postgres.Journal{}
		a.journal = postgres.Journal{}
	}

	engine, err := reconciler.New(rcfg, deps)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.engine = engine
	logger.Info("psychcoins ready",
		zap.String("account", account.Hex()),
		zap.Uint64("chain", cfg.Ledger.ChainID),
		zap.String("contract", cfg.Ledger.ContractAddress),
		zap.Bool("mock", cfg.Ledger.Mock),
		zap.String("write_mode", string(rcfg.WriteMode)),
		zap.String("lock_policy", string(rcfg.LockPolicy)))
	return a, nil
}

// ready pings every configured backend
func (a *app) ready(ctx context.Context) error {
	if postgres.Configured() {
		if err := postgres.Ping(ctx); err != nil {
			return errors.Wrap(err, "failed pinging postgres")
		}
	}
	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return errors.Wrap(err, "failed pinging redis")
		}
	}
	if _, err := a.ledger.ActiveChainID(ctx); err != nil {
		return errors.Wrap(err, "failed reading chain id")
	}
	return nil
}

func (a *app) Close() {
	if a.engine != nil {
		a.engine.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.session != nil {
		a.session.Close()
	}
	a.logger.Sync()
}
