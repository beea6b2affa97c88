package cache

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

type ZSet struct {
	client *redis.Client
	key    string
}

func NewZSet(cache *redis.Client, key string) ZSet {
	return ZSet{
		key:    key,
		client: cache,
	}
}

// AddValuesWithScore only inserts new members, existing scores are kept
func (zz *ZSet) AddValuesWithScore(ctx context.Context, score float64, keys ...string) (int64, error) {
	zArgs := make([]redis.Z, 0, len(keys))
	for _, k := range keys {
		zArgs = append(zArgs, redis.Z{Member: k, Score: score})
	}
	cmd := zz.client.ZAddArgs(ctx, zz.key, redis.ZAddArgs{
		NX:      true,
		Members: zArgs,
	})
	return cmd.Result()
}

func (zz *ZSet) GetValuesByScore(ctx context.Context, min, max int64, limit int64) ([]string, error) {
	data := zz.client.ZRangeByScore(ctx, zz.key, &redis.ZRangeBy{
		Min:   fmt.Sprintf("%d", min),
		Max:   fmt.Sprintf("%d", max),
		Count: limit,
	})
	if data.Err() != nil {
		return nil, data.Err()
	}
	return data.Val(), nil
}

func (zz *ZSet) Count(ctx context.Context) (int64, error) {
	cmd := zz.client.ZCard(ctx, zz.key)
	return cmd.Val(), cmd.Err()
}

func (zz *ZSet) Remove(ctx context.Context) (int64, error) {
	cmd := zz.client.Del(ctx, zz.key)
	return cmd.Val(), cmd.Err()
}
