package reconciler

import (
	"fmt"
	"time"

	"github.com/onemorebsmith/psychcoins/src/common"
)

type WriteMode string
type LockPolicy string

const (
	// every toggle writes to the ledger immediately
	WritePerAction WriteMode = "per_action"
	// completions stay local until the whole category of the stage is done
	WriteCategoryGated WriteMode = "category_gated"
)

const (
	LockPerAction LockPolicy = "per_action"
	LockGlobal    LockPolicy = "global"
)

type Config struct {
	WriteMode           WriteMode
	LockPolicy          LockPolicy
	SettleDelay         time.Duration
	WriteTimeout        time.Duration
	CelebrationDuration time.Duration
}

func DefaultConfig() Config {
	return Config{
		WriteMode:           WritePerAction,
		LockPolicy:          LockPerAction,
		SettleDelay:         4 * time.Second,
		WriteTimeout:        2 * time.Minute,
		CelebrationDuration: 1200 * time.Millisecond,
	}
}

// ConfigFrom validates the yaml facing config, empty fields keep defaults
func ConfigFrom(rc common.ReconcilerConfig) (Config, error) {
	cfg := DefaultConfig()
	switch WriteMode(rc.WriteMode) {
	case "":
	case WritePerAction, WriteCategoryGated:
		cfg.WriteMode = WriteMode(rc.WriteMode)
	default:
		return cfg, fmt.Errorf("unknown write_mode %q", rc.WriteMode)
	}
	switch LockPolicy(rc.LockPolicy) {
	case "":
	case LockPerAction, LockGlobal:
		cfg.LockPolicy = LockPolicy(rc.LockPolicy)
	default:
		return cfg, fmt.Errorf("unknown lock_policy %q", rc.LockPolicy)
	}
	if rc.SettleDelay > 0 {
		cfg.SettleDelay = rc.SettleDelay
	}
	if rc.WriteTimeout > 0 {
		cfg.WriteTimeout = rc.WriteTimeout
	}
	if rc.CelebrationDuration > 0 {
		cfg.CelebrationDuration = rc.CelebrationDuration
	}
	return cfg, nil
}
