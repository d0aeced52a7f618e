package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/assert/v2"
	"github.com/redis/go-redis/v9"
)

func newTestKV(t *testing.T) (*RedisKV, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisKV(client), mr
}

func TestRedisKV_GetSetDel(t *testing.T) {
	kv, mr := newTestKV(t)
	ctx := context.Background()

	_, found, err := kv.Get(ctx, "k")
	assert.Equal(t, nil, err)
	assert.Equal(t, false, found)

	assert.Equal(t, nil, kv.Set(ctx, "k", "v", time.Minute))
	value, found, err := kv.Get(ctx, "k")
	assert.Equal(t, nil, err)
	assert.Equal(t, true, found)
	assert.Equal(t, "v", value)
	assert.Equal(t, time.Minute, mr.TTL("k"))

	mr.FastForward(2 * time.Minute)
	_, found, _ = kv.Get(ctx, "k")
	assert.Equal(t, false, found)

	kv.Set(ctx, "k", "v", 0)
	assert.Equal(t, nil, kv.Del(ctx, "k"))
	assert.Equal(t, false, mr.Exists("k"))
}

func TestRedisKV_Update(t *testing.T) {
	kv, _ := newTestKV(t)
	ctx := context.Background()

	err := kv.Update(ctx, "counter", time.Minute, func(cur string, found bool) (string, error) {
		assert.Equal(t, false, found)
		return "1", nil
	})
	assert.Equal(t, nil, err)

	err = kv.Update(ctx, "counter", time.Minute, func(cur string, found bool) (string, error) {
		assert.Equal(t, true, found)
		return cur + "1", nil
	})
	assert.Equal(t, nil, err)

	value, _, _ := kv.Get(ctx, "counter")
	assert.Equal(t, "11", value)
}

func TestRedisKV_UpdateConflict(t *testing.T) {
	kv, mr := newTestKV(t)
	ctx := context.Background()
	kv.Set(ctx, "k", "a", 0)

	err := kv.Update(ctx, "k", 0, func(cur string, found bool) (string, error) {
		mr.Set("k", "written elsewhere")
		return "b", nil
	})

	assert.Equal(t, true, errors.Is(err, ErrConflict))
	value, _, _ := kv.Get(ctx, "k")
	assert.Equal(t, "written elsewhere", value)
}

func TestRedisKV_UpdateAbortsOnCallbackError(t *testing.T) {
	kv, _ := newTestKV(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := kv.Update(ctx, "k", 0, func(string, bool) (string, error) { return "", boom })

	assert.Equal(t, true, errors.Is(err, boom))
	_, found, _ := kv.Get(ctx, "k")
	assert.Equal(t, false, found)
}
