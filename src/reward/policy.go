package reward

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/onemorebsmith/psychcoins/src/cache"
	"github.com/onemorebsmith/psychcoins/src/model"
	"github.com/onemorebsmith/psychcoins/src/registry"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// StatusReader is the read side of the ledger client
type StatusReader interface {
	CompletionStatus(ctx context.Context, account common.Address, id model.ActionId) (model.CompletionRecord, error)
}

// Policy decides which reward tier the next completion in a category earns.
// The first completion of a category ever (across every stage) earns the
// first time tier, everything after that the repeat tier.
type Policy struct {
	ledger  StatusReader
	stages  []model.Stage
	history cache.History
	first   uint64
	repeat  uint64
	logger  *zap.Logger
}

func NewPolicy(ledger StatusReader, reg *registry.Registry, history cache.History, first, repeat uint64, logger *zap.Logger) *Policy {
	if history == nil {
		history = cache.NewMemoryHistory()
	}
	return &Policy{
		ledger:  ledger,
		stages:  reg.Stages(),
		history: history,
		first:   first,
		repeat:  repeat,
		logger:  logger.With(zap.String("component", "reward_policy")),
	}
}

func (p *Policy) FirstTimeReward() uint64 { return p.first }
func (p *Policy) RepeatReward() uint64    { return p.repeat }

func (p *Policy) RewardFor(ctx context.Context, cat model.Category, account common.Address) (uint64, error) {
	done, err := p.HasCompletedCategory(ctx, cat, account)
	if err != nil {
		return 0, err
	}
	if done {
		return p.repeat, nil
	}
	return p.first, nil
}

// HasCompletedCategory consults the cache first. Cache misses fall through
// to the ledger and positive answers are written back.
func (p *Policy) HasCompletedCategory(ctx context.Context, cat model.Category, account common.Address) (bool, error) {
	if account == (common.Address{}) {
		return false, nil
	}
	if has, err := p.history.HasAny(ctx, account, cat); err != nil {
		p.logger.Warn("history cache read failed, falling back to ledger", zap.Error(err))
	} else if has {
		return true, nil
	}

	for _, id := range registry.ActionsForCategory(p.stages, cat) {
		rec, err := p.ledger.CompletionStatus(ctx, account, id)
		if err != nil {
			return false, errors.Wrapf(err, "failed reading completion of %s", id)
		}
		if rec.EverCompleted() {
			p.Remember(ctx, account, id)
			return true, nil
		}
	}
	return false, nil
}

// Remember records a confirmed completion. Cache failures are logged only,
// the ledger stays the source of truth.
func (p *Policy) Remember(ctx context.Context, account common.Address, id model.ActionId) {
	if err := p.history.Record(ctx, account, id, time.Now()); err != nil {
		p.logger.Warn("failed recording completion in history", zap.String("action", string(id)), zap.Error(err))
	}
}

// History returns the cached completed ids per category, for display
func (p *Policy) History(ctx context.Context, account common.Address) map[model.Category][]model.ActionId {
	out := make(map[model.Category][]model.ActionId, len(model.Categories))
	for _, cat := range model.Categories {
		ids, err := p.history.Completed(ctx, account, cat)
		if err != nil {
			p.logger.Warn("failed reading history", zap.String("category", string(cat)), zap.Error(err))
			continue
		}
		out[cat] = ids
	}
	return out
}
