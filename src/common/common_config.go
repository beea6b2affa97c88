package common

import (
	"io/ioutil"
	"path"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

type CommonConfig struct {
	RPCServer       string `yaml:"rpc_address"`
	PromPort        string `yaml:"prom_port"`
	HealthCheckPort string `yaml:"health_check_port"`
	PostgresConfig  string `yaml:"postgres"`
	RedisConfig     string `yaml:"redis"`
	LogLevel        string `yaml:"log_level"`
}

type LedgerConfig struct {
	ContractAddress string            `yaml:"contract_address"`
	ChainID         uint64            `yaml:"chain_id"`
	Endpoints       map[uint64]string `yaml:"endpoints"` // chain id -> rpc url, used for chain switches
	PrivateKeyEnv   string            `yaml:"private_key_env"`
	Mock            bool              `yaml:"use_mock"`
}

type ReconcilerConfig struct {
	WriteMode           string        `yaml:"write_mode"`  // per_action | category_gated
	LockPolicy          string        `yaml:"lock_policy"` // per_action | global
	SettleDelay         time.Duration `yaml:"settle_delay"`
	WriteTimeout        time.Duration `yaml:"write_timeout"`
	CelebrationDuration time.Duration `yaml:"celebration_duration"`
	FirstTimeReward     uint64        `yaml:"first_time_reward"`
	RepeatReward        uint64        `yaml:"repeat_reward"`
}

type AppConfig struct {
	CommonConfig `yaml:",inline"`
	APIPort      string           `yaml:"api_port"`
	Ledger       LedgerConfig     `yaml:"ledger"`
	Reconciler   ReconcilerConfig `yaml:"reconciler"`
}

const DefaultContractAddress = "0xB9b909a81E3E3254F1E7Db59CaA88CA369d8c100"

func DefaultConfig() AppConfig {
	return AppConfig{
		CommonConfig: CommonConfig{
			RPCServer: "https://sepolia.base.org",
			PromPort:  ":2112",
			LogLevel:  "info",
		},
		APIPort: ":8080",
		Ledger: LedgerConfig{
			ContractAddress: DefaultContractAddress,
			ChainID:         84532,
			PrivateKeyEnv:   "PSYCHCOINS_PRIVATE_KEY",
		},
		Reconciler: ReconcilerConfig{
			WriteMode:           "per_action",
			LockPolicy:          "per_action",
			SettleDelay:         4 * time.Second,
			WriteTimeout:        2 * time.Minute,
			CelebrationDuration: 1200 * time.Millisecond,
			FirstTimeReward:     5,
			RepeatReward:        1,
		},
	}
}

// LoadConfig reads `config.yaml` from dir on top of the defaults. A missing
// file is not an error, the defaults target the public deployment.
func LoadConfig(dir string) (AppConfig, string, error) {
	cfg := DefaultConfig()
	fullPath := path.Join(dir, "config.yaml")
	rawCfg, err := ioutil.ReadFile(fullPath)
	if err != nil {
		return cfg, fullPath, nil
	}
	if err := yaml.Unmarshal(rawCfg, &cfg); err != nil {
		return cfg, fullPath, errors.Wrapf(err, "failed parsing config file %s", fullPath)
	}
	return cfg, fullPath, nil
}
