package db

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/assert/v2"
)

func TestConnectRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	err := ConnectRedis(context.Background(), "redis://"+mr.Addr())
	defer CloseRedis()

	assert.Equal(t, nil, err)
	assert.Equal(t, true, Redis != nil)
}

func TestConnectRedis_PingFailureReleasesClient(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	err := ConnectRedis(context.Background(), "redis://"+addr)

	assert.NotEqual(t, nil, err)
	assert.Equal(t, true, Redis == nil)
}

func TestConnectRedis_MissingURL(t *testing.T) {
	err := ConnectRedis(context.Background(), "")
	assert.NotEqual(t, nil, err)
}
