package kvstore

import (
	"context"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
)

// ResilientStore wraps a primary Store (normally *RedisStore) with an in-memory
// fallback and a failure Mode. In ModePermissive, any error from the primary is
// logged and the same operation is retried against the fallback, so callers never
// see the primary's failure. In ModeStrict, primary errors are surfaced as
// ErrStoreUnavailable. Reads and writes that already landed in the fallback stay
// there even after the primary recovers — there is no automatic migration, which
// the spec calls out explicitly as a documented limitation (S6).
type ResilientStore struct {
	primary  Store
	fallback Store
	mode     Mode
}

// NewResilientStore wires primary against fallback under mode.
func NewResilientStore(primary, fallback Store, mode Mode) *ResilientStore {
	return &ResilientStore{primary: primary, fallback: fallback, mode: mode}
}

func (r *ResilientStore) Name() string { return "resilient(" + r.primary.Name() + ")" }

func (r *ResilientStore) degrade(ctx context.Context, op string, err error) bool {
	if err == nil {
		return false
	}
	if r.mode == ModeStrict {
		return false
	}
	logx.WithContext(ctx).Errorf("kvstore: primary store op=%s failed, degrading to %s: %v", op, r.fallback.Name(), err)
	return true
}

func (r *ResilientStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := r.primary.Get(ctx, key)
	if err != nil {
		if r.degrade(ctx, "Get", err) {
			return r.fallback.Get(ctx, key)
		}
		return "", false, ErrStoreUnavailable
	}
	return v, ok, nil
}

func (r *ResilientStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.primary.Set(ctx, key, value, ttl); err != nil {
		if r.degrade(ctx, "Set", err) {
			return r.fallback.Set(ctx, key, value, ttl)
		}
		return ErrStoreUnavailable
	}
	return nil
}

func (r *ResilientStore) Del(ctx context.Context, key string) error {
	if err := r.primary.Del(ctx, key); err != nil {
		if r.degrade(ctx, "Del", err) {
			return r.fallback.Del(ctx, key)
		}
		return ErrStoreUnavailable
	}
	return nil
}

func (r *ResilientStore) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := r.primary.Exists(ctx, key)
	if err != nil {
		if r.degrade(ctx, "Exists", err) {
			return r.fallback.Exists(ctx, key)
		}
		return false, ErrStoreUnavailable
	}
	return ok, nil
}

func (r *ResilientStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := r.primary.Expire(ctx, key, ttl); err != nil {
		if r.degrade(ctx, "Expire", err) {
			return r.fallback.Expire(ctx, key, ttl)
		}
		return ErrStoreUnavailable
	}
	return nil
}

func (r *ResilientStore) HGet(ctx context.Context, key, field string) (string, bool, error) {
	v, ok, err := r.primary.HGet(ctx, key, field)
	if err != nil {
		if r.degrade(ctx, "HGet", err) {
			return r.fallback.HGet(ctx, key, field)
		}
		return "", false, ErrStoreUnavailable
	}
	return v, ok, nil
}

func (r *ResilientStore) HSet(ctx context.Context, key, field, value string) error {
	if err := r.primary.HSet(ctx, key, field, value); err != nil {
		if r.degrade(ctx, "HSet", err) {
			return r.fallback.HSet(ctx, key, field, value)
		}
		return ErrStoreUnavailable
	}
	return nil
}

func (r *ResilientStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	v, err := r.primary.HGetAll(ctx, key)
	if err != nil {
		if r.degrade(ctx, "HGetAll", err) {
			return r.fallback.HGetAll(ctx, key)
		}
		return nil, ErrStoreUnavailable
	}
	return v, nil
}

func (r *ResilientStore) HDel(ctx context.Context, key, field string) error {
	if err := r.primary.HDel(ctx, key, field); err != nil {
		if r.degrade(ctx, "HDel", err) {
			return r.fallback.HDel(ctx, key, field)
		}
		return ErrStoreUnavailable
	}
	return nil
}

func (r *ResilientStore) SAdd(ctx context.Context, key string, members ...string) error {
	if err := r.primary.SAdd(ctx, key, members...); err != nil {
		if r.degrade(ctx, "SAdd", err) {
			return r.fallback.SAdd(ctx, key, members...)
		}
		return ErrStoreUnavailable
	}
	return nil
}

func (r *ResilientStore) SRem(ctx context.Context, key string, members ...string) error {
	if err := r.primary.SRem(ctx, key, members...); err != nil {
		if r.degrade(ctx, "SRem", err) {
			return r.fallback.SRem(ctx, key, members...)
		}
		return ErrStoreUnavailable
	}
	return nil
}

func (r *ResilientStore) SMembers(ctx context.Context, key string) ([]string, error) {
	v, err := r.primary.SMembers(ctx, key)
	if err != nil {
		if r.degrade(ctx, "SMembers", err) {
			return r.fallback.SMembers(ctx, key)
		}
		return nil, ErrStoreUnavailable
	}
	return v, nil
}

func (r *ResilientStore) SCard(ctx context.Context, key string) (int64, error) {
	v, err := r.primary.SCard(ctx, key)
	if err != nil {
		if r.degrade(ctx, "SCard", err) {
			return r.fallback.SCard(ctx, key)
		}
		return 0, ErrStoreUnavailable
	}
	return v, nil
}

func (r *ResilientStore) SIsMember(ctx context.Context, key, member string) (bool, error) {
	v, err := r.primary.SIsMember(ctx, key, member)
	if err != nil {
		if r.degrade(ctx, "SIsMember", err) {
			return r.fallback.SIsMember(ctx, key, member)
		}
		return false, ErrStoreUnavailable
	}
	return v, nil
}

func (r *ResilientStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	if err := r.primary.ZAdd(ctx, key, score, member); err != nil {
		if r.degrade(ctx, "ZAdd", err) {
			return r.fallback.ZAdd(ctx, key, score, member)
		}
		return ErrStoreUnavailable
	}
	return nil
}

func (r *ResilientStore) ZRem(ctx context.Context, key, member string) error {
	if err := r.primary.ZRem(ctx, key, member); err != nil {
		if r.degrade(ctx, "ZRem", err) {
			return r.fallback.ZRem(ctx, key, member)
		}
		return ErrStoreUnavailable
	}
	return nil
}

func (r *ResilientStore) ZRevRangeByRank(ctx context.Context, key string, limit int) ([]ZEntry, error) {
	v, err := r.primary.ZRevRangeByRank(ctx, key, limit)
	if err != nil {
		if r.degrade(ctx, "ZRevRangeByRank", err) {
			return r.fallback.ZRevRangeByRank(ctx, key, limit)
		}
		return nil, ErrStoreUnavailable
	}
	return v, nil
}

func (r *ResilientStore) ZScore(ctx context.Context, key, member string) (float64, bool, error) {
	v, ok, err := r.primary.ZScore(ctx, key, member)
	if err != nil {
		if r.degrade(ctx, "ZScore", err) {
			return r.fallback.ZScore(ctx, key, member)
		}
		return 0, false, ErrStoreUnavailable
	}
	return v, ok, nil
}

func (r *ResilientStore) Incr(ctx context.Context, key string) (int64, error) {
	v, err := r.primary.Incr(ctx, key)
	if err != nil {
		if r.degrade(ctx, "Incr", err) {
			return r.fallback.Incr(ctx, key)
		}
		return 0, ErrStoreUnavailable
	}
	return v, nil
}

func (r *ResilientStore) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	v, err := r.primary.IncrBy(ctx, key, delta)
	if err != nil {
		if r.degrade(ctx, "IncrBy", err) {
			return r.fallback.IncrBy(ctx, key, delta)
		}
		return 0, ErrStoreUnavailable
	}
	return v, nil
}

func (r *ResilientStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	v, err := r.primary.Keys(ctx, pattern)
	if err != nil {
		if r.degrade(ctx, "Keys", err) {
			return r.fallback.Keys(ctx, pattern)
		}
		return nil, ErrStoreUnavailable
	}
	return v, nil
}
