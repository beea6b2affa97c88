package cache

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-redis/redis/v8"
	"github.com/onemorebsmith/psychcoins/src/model"
	"github.com/pkg/errors"
)

func ConfigureRedis(addr string) (*redis.Client, error) {
	rd := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0, // use default DB
	})
	if err := rd.Ping(context.Background()); err.Err() != nil {
		return nil, errors.Wrap(err.Err(), "failed to ping redis")
	}
	return rd, nil
}

// RedisHistory keeps one zset per account and category, members are the
// completed ActionIds scored by first completion time (unix ms)
type RedisHistory struct {
	client *redis.Client
	prefix string
}

var _ History = (*RedisHistory)(nil)

func NewRedisHistory(client *redis.Client) *RedisHistory {
	return &RedisHistory{client: client, prefix: "history"}
}

func (rh *RedisHistory) key(account common.Address, cat model.Category) string {
	return fmt.Sprintf("%s:%s:%s", rh.prefix, strings.ToLower(account.Hex()), cat)
}

func (rh *RedisHistory) set(account common.Address, cat model.Category) ZSet {
	return NewZSet(rh.client, rh.key(account, cat))
}

func (rh *RedisHistory) HasAny(ctx context.Context, account common.Address, cat model.Category) (bool, error) {
	zs := rh.set(account, cat)
	count, err := zs.Count(ctx)
	if err != nil {
		return false, errors.Wrapf(err, "failed reading history %s", rh.key(account, cat))
	}
	return count > 0, nil
}

func (rh *RedisHistory) Record(ctx context.Context, account common.Address, id model.ActionId, at time.Time) error {
	cat := id.Category()
	if cat == "" {
		return errors.Wrapf(model.ErrUnknownAction, "cannot record %q", id)
	}
	zs := rh.set(account, cat)
	if _, err := zs.AddValuesWithScore(ctx, float64(at.UnixMilli()), string(id)); err != nil {
		return errors.Wrapf(err, "failed recording %s in history", id)
	}
	return nil
}

func (rh *RedisHistory) Completed(ctx context.Context, account common.Address, cat model.Category) ([]model.ActionId, error) {
	zs := rh.set(account, cat)
	vals, err := zs.GetValuesByScore(ctx, 0, math.MaxInt64, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "failed reading history %s", rh.key(account, cat))
	}
	out := make([]model.ActionId, len(vals))
	for i, v := range vals {
		out[i] = model.ActionId(v)
	}
	slices.Sort(out)
	return out, nil
}

// Forget drops the cached facts for an account, used by tests and resets of
// a redeployed contract
func (rh *RedisHistory) Forget(ctx context.Context, account common.Address) error {
	for _, cat := range model.Categories {
		zs := rh.set(account, cat)
		if _, err := zs.Remove(ctx); err != nil {
			return errors.Wrapf(err, "failed clearing history %s", rh.key(account, cat))
		}
	}
	return nil
}
