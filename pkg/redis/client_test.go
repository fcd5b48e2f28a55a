package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tracebridge-backend/pkg/config"
)

// fakeRedis answers the cmdable subset from maps and records expiries.
type fakeRedis struct {
	values  map[string]string
	counter map[string]int64
	expires map[string]time.Duration
}

func newFakeClient() (*Client, *fakeRedis) {
	f := &fakeRedis{
		values:  map[string]string{},
		counter: map[string]int64{},
		expires: map[string]time.Duration{},
	}
	return &Client{store: f}, f
}

func (f *fakeRedis) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	f.values[key] = fmt.Sprint(value)
	f.expires[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if v, ok := f.values[key]; ok {
		return redis.NewStringResult(v, nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	if _, taken := f.values[key]; taken {
		return redis.NewBoolResult(false, nil)
	}
	f.Set(ctx, key, value, ttl)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Incr(_ context.Context, key string) *redis.IntCmd {
	f.counter[key]++
	return redis.NewIntResult(f.counter[key], nil)
}

func (f *fakeRedis) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	f.expires[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(f.values, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestFixedWindowAllowArmsExpiryOnce(t *testing.T) {
	ctx := context.Background()
	client, fake := newFakeClient()

	var allowed []bool
	for range 3 {
		ok, _, err := client.FixedWindowAllow(ctx, "invites:t1", 2, time.Minute)
		require.NoError(t, err)
		allowed = append(allowed, ok)
	}

	assert.Equal(t, []bool{true, true, false}, allowed)
	assert.Equal(t, int64(3), fake.counter["tb:rate_limit:invites:t1"])
	assert.Equal(t, time.Minute, fake.expires["tb:rate_limit:invites:t1"])
	assert.Len(t, fake.expires, 1)
}

func TestJSONCache(t *testing.T) {
	ctx := context.Background()
	client, fake := newFakeClient()
	type tenant struct {
		Handle string `json:"handle"`
		Type   string `json:"type"`
	}
	key := client.CacheKey("directory", "handle", "acme-textiles")

	var got tenant
	found, err := client.GetJSON(ctx, key, &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, client.SetJSON(ctx, key, tenant{Handle: "acme-textiles", Type: "SUPPLIER"}, time.Minute))
	assert.JSONEq(t, `{"handle":"acme-textiles","type":"SUPPLIER"}`, fake.values[key])

	found, err = client.GetJSON(ctx, key, &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, tenant{Handle: "acme-textiles", Type: "SUPPLIER"}, got)

	require.NoError(t, client.Del(ctx, key))
	_, err = client.Get(ctx, key)
	assert.ErrorIs(t, err, redis.Nil)

	fake.values["tb:cache:broken"] = "{not-json"
	_, err = client.GetJSON(ctx, "tb:cache:broken", &got)
	assert.Error(t, err)
}

func TestNilClientReportsUninitialized(t *testing.T) {
	var client *Client
	assert.ErrorIs(t, client.Ping(context.Background()), errNotInitialized)
	assert.NoError(t, client.Close())
}

func TestOptionsPreferURL(t *testing.T) {
	opts, err := options(config.RedisConfig{URL: "redis://:pw@cache:6380/3", Address: "ignored:6379", PoolSize: 7})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 7, opts.PoolSize)

	_, err = options(config.RedisConfig{})
	assert.Error(t, err)
}

func TestKeyLayout(t *testing.T) {
	client := &Client{}
	assert.Equal(t, "tb:idempotency:scope:id", client.IdempotencyKey("scope", "id"))
	assert.Equal(t, "tb:rate_limit:scope", client.RateLimitKey("scope"))
	assert.Equal(t, "tb:cache:directory:acme", client.CacheKey("directory", " ", "acme"))
}
