package acquisition

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a connected cache.
func setupRedis(t *testing.T) (*RedisCache, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	cache, err := NewRedisCache(ctx, fmt.Sprintf("%s:%s", host, port.Port()), "", 0)
	require.NoError(t, err)

	return cache, func() {
		_ = cache.Close()
		_ = container.Terminate(ctx)
	}
}

func TestRedisCache_SetGet(t *testing.T) {
	cache, cleanup := setupRedis(t)
	defer cleanup()
	ctx := context.Background()

	_, err := cache.Get(ctx, "DGS10:2023-01-01:2023-01-31")
	assert.ErrorIs(t, err, ErrCacheMiss)

	points := []SeriesPoint{
		{Date: d(2), Value: math.NaN()},
		{Date: d(3), Value: 3.79},
	}
	require.NoError(t, cache.Set(ctx, "DGS10:2023-01-01:2023-01-31", points, time.Minute))

	got, err := cache.Get(ctx, "DGS10:2023-01-01:2023-01-31")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, d(2), got[0].Date)
	assert.True(t, math.IsNaN(got[0].Value))
	assert.Equal(t, 3.79, got[1].Value)
}
