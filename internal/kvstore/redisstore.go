package kvstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the external-store implementation of Store. It keeps two client
// handles to the same server: one for ordinary command/publish traffic and a
// second, dedicated to subscriptions, so a blocking Subscribe call never starves
// command throughput — the same duplicated-connection shape the spec calls for and
// that Redis client libraries universally require (a connection in subscribe mode
// cannot issue ordinary commands).
type RedisStore struct {
	cmd *redis.Client
	sub *redis.Client
}

// NewRedisStore dials addr twice: once for commands/publish, once reserved for
// Subscribe.
func NewRedisStore(opts *redis.Options) *RedisStore {
	subOpts := *opts
	return &RedisStore{
		cmd: redis.NewClient(opts),
		sub: redis.NewClient(&subOpts),
	}
}

func (r *RedisStore) Name() string { return "redis" }

// Close releases both underlying connections.
func (r *RedisStore) Close() error {
	err1 := r.cmd.Close()
	err2 := r.sub.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.cmd.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.cmd.Set(ctx, key, value, ttl).Err()
}

func (r *RedisStore) Del(ctx context.Context, key string) error {
	return r.cmd.Del(ctx, key).Err()
}

func (r *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.cmd.Exists(ctx, key).Result()
	return n > 0, err
}

func (r *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.cmd.Expire(ctx, key, ttl).Err()
}

func (r *RedisStore) HGet(ctx context.Context, key, field string) (string, bool, error) {
	v, err := r.cmd.HGet(ctx, key, field).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisStore) HSet(ctx context.Context, key, field, value string) error {
	return r.cmd.HSet(ctx, key, field, value).Err()
}

func (r *RedisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return r.cmd.HGetAll(ctx, key).Result()
}

func (r *RedisStore) HDel(ctx context.Context, key, field string) error {
	return r.cmd.HDel(ctx, key, field).Err()
}

func (r *RedisStore) SAdd(ctx context.Context, key string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return r.cmd.SAdd(ctx, key, args...).Err()
}

func (r *RedisStore) SRem(ctx context.Context, key string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return r.cmd.SRem(ctx, key, args...).Err()
}

func (r *RedisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	return r.cmd.SMembers(ctx, key).Result()
}

func (r *RedisStore) SCard(ctx context.Context, key string) (int64, error) {
	return r.cmd.SCard(ctx, key).Result()
}

func (r *RedisStore) SIsMember(ctx context.Context, key, member string) (bool, error) {
	return r.cmd.SIsMember(ctx, key, member).Result()
}

func (r *RedisStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return r.cmd.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

func (r *RedisStore) ZRem(ctx context.Context, key, member string) error {
	return r.cmd.ZRem(ctx, key, member).Err()
}

func (r *RedisStore) ZRevRangeByRank(ctx context.Context, key string, limit int) ([]ZEntry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	raw, err := r.cmd.ZRevRangeWithScores(ctx, key, 0, stop).Result()
	if err != nil {
		return nil, err
	}
	out := make([]ZEntry, 0, len(raw))
	for _, z := range raw {
		member, _ := z.Member.(string)
		out = append(out, ZEntry{Member: member, Score: z.Score})
	}
	return out, nil
}

func (r *RedisStore) ZScore(ctx context.Context, key, member string) (float64, bool, error) {
	v, err := r.cmd.ZScore(ctx, key, member).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func (r *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	return r.cmd.Incr(ctx, key).Result()
}

func (r *RedisStore) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return r.cmd.IncrBy(ctx, key, delta).Result()
}

func (r *RedisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	return r.cmd.Keys(ctx, pattern).Result()
}

// Publish broadcasts payload on channel using the command connection.
func (r *RedisStore) Publish(ctx context.Context, channel, payload string) error {
	return r.cmd.Publish(ctx, channel, payload).Err()
}

// Subscribe opens a subscription on the dedicated subscribe connection and returns a
// channel of raw message payloads plus a cancel func that closes the subscription.
func (r *RedisStore) Subscribe(ctx context.Context, channel string) (<-chan string, func(), error) {
	ps := r.sub.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, err
	}
	out := make(chan string)
	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			out <- msg.Payload
		}
	}()
	return out, func() { _ = ps.Close() }, nil
}
