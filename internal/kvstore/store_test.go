package kvstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreZRevRangeByRank(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.ZAdd(ctx, "lb:round-1", 100, "alice"))
	require.NoError(t, s.ZAdd(ctx, "lb:round-1", 250, "bob"))
	require.NoError(t, s.ZAdd(ctx, "lb:round-1", 250, "carol"))
	require.NoError(t, s.ZAdd(ctx, "lb:round-1", 10, "dave"))

	entries, err := s.ZRevRangeByRank(ctx, "lb:round-1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	// bob and carol tie at 250; ties break on member name ascending.
	assert.Equal(t, "bob", entries[0].Member)
	assert.Equal(t, "carol", entries[1].Member)
	assert.Equal(t, "alice", entries[2].Member)
	assert.Equal(t, "dave", entries[3].Member)

	top2, err := s.ZRevRangeByRank(ctx, "lb:round-1", 2)
	require.NoError(t, err)
	assert.Len(t, top2, 2)
	assert.Equal(t, "bob", top2[0].Member)
	assert.Equal(t, "carol", top2[1].Member)
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Set(ctx, "round:abc:state", "running", 20*time.Millisecond))

	v, ok, err := s.Get(ctx, "round:abc:state")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "running", v)

	time.Sleep(80 * time.Millisecond)

	_, ok, err = s.Get(ctx, "round:abc:state")
	require.NoError(t, err)
	assert.False(t, ok, "key should have expired")
}

func TestMemoryStoreHashAndSet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.HSet(ctx, "participant:p1", "cash", "10000"))
	require.NoError(t, s.HSet(ctx, "participant:p1", "status", "active"))

	all, err := s.HGetAll(ctx, "participant:p1")
	require.NoError(t, err)
	assert.Equal(t, "10000", all["cash"])
	assert.Equal(t, "active", all["status"])

	require.NoError(t, s.SAdd(ctx, "round:abc:participants", "p1", "p2"))
	isMember, err := s.SIsMember(ctx, "round:abc:participants", "p1")
	require.NoError(t, err)
	assert.True(t, isMember)

	card, err := s.SCard(ctx, "round:abc:participants")
	require.NoError(t, err)
	assert.EqualValues(t, 2, card)
}

// failingStore always errors, simulating an unreachable Redis.
type failingStore struct{}

func (failingStore) Name() string { return "failing" }
func (failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("connection refused")
}
func (failingStore) Set(context.Context, string, string, time.Duration) error {
	return errors.New("connection refused")
}
func (failingStore) Del(context.Context, string) error { return errors.New("connection refused") }
func (failingStore) Exists(context.Context, string) (bool, error) {
	return false, errors.New("connection refused")
}
func (failingStore) Expire(context.Context, string, time.Duration) error {
	return errors.New("connection refused")
}
func (failingStore) HGet(context.Context, string, string) (string, bool, error) {
	return "", false, errors.New("connection refused")
}
func (failingStore) HSet(context.Context, string, string, string) error {
	return errors.New("connection refused")
}
func (failingStore) HGetAll(context.Context, string) (map[string]string, error) {
	return nil, errors.New("connection refused")
}
func (failingStore) HDel(context.Context, string, string) error {
	return errors.New("connection refused")
}
func (failingStore) SAdd(context.Context, string, ...string) error {
	return errors.New("connection refused")
}
func (failingStore) SRem(context.Context, string, ...string) error {
	return errors.New("connection refused")
}
func (failingStore) SMembers(context.Context, string) ([]string, error) {
	return nil, errors.New("connection refused")
}
func (failingStore) SCard(context.Context, string) (int64, error) {
	return 0, errors.New("connection refused")
}
func (failingStore) SIsMember(context.Context, string, string) (bool, error) {
	return false, errors.New("connection refused")
}
func (failingStore) ZAdd(context.Context, string, float64, string) error {
	return errors.New("connection refused")
}
func (failingStore) ZRem(context.Context, string, string) error {
	return errors.New("connection refused")
}
func (failingStore) ZRevRangeByRank(context.Context, string, int) ([]ZEntry, error) {
	return nil, errors.New("connection refused")
}
func (failingStore) ZScore(context.Context, string, string) (float64, bool, error) {
	return 0, false, errors.New("connection refused")
}
func (failingStore) Incr(context.Context, string) (int64, error) {
	return 0, errors.New("connection refused")
}
func (failingStore) IncrBy(context.Context, string, int64) (int64, error) {
	return 0, errors.New("connection refused")
}
func (failingStore) Keys(context.Context, string) ([]string, error) {
	return nil, errors.New("connection refused")
}

func TestResilientStorePermissiveDegrades(t *testing.T) {
	ctx := context.Background()
	fallback := NewMemoryStore()
	rs := NewResilientStore(failingStore{}, fallback, ModePermissive)

	err := rs.Set(ctx, "round:abc:state", "running", 0)
	require.NoError(t, err, "permissive mode must absorb primary failures")

	v, ok, err := rs.Get(ctx, "round:abc:state")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "running", v, "fallback should have served the write")
}

func TestResilientStoreStrictFailsClosed(t *testing.T) {
	ctx := context.Background()
	fallback := NewMemoryStore()
	rs := NewResilientStore(failingStore{}, fallback, ModeStrict)

	err := rs.Set(ctx, "round:abc:state", "running", 0)
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, _, err = rs.Get(ctx, "round:abc:state")
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	// Strict mode never touches the fallback.
	_, ok, _ := fallback.Get(ctx, "round:abc:state")
	assert.False(t, ok)
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeStrict, ParseMode("strict"))
	assert.Equal(t, ModePermissive, ParseMode("permissive"))
	assert.Equal(t, ModePermissive, ParseMode(""))
	assert.Equal(t, ModePermissive, ParseMode("nonsense"))
	assert.Equal(t, "strict", ModeStrict.String())
	assert.Equal(t, "permissive", ModePermissive.String())
}
