package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rebatewise/backend/internal/models"
)

func TestBalanceCacheGet(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewBalanceCache(client)

	snapshot := models.BalanceSnapshot{
		UserID:           "U1",
		TotalEarned:      decimal.RequireFromString("25.00"),
		AvailableBalance: decimal.RequireFromString("25.00"),
	}
	data, err := json.Marshal(snapshot)
	require.NoError(t, err)

	t.Run("hit", func(t *testing.T) {
		mock.ExpectGet("balance:U1").SetVal(string(data))

		got, ok := cache.Get(context.Background(), "U1")
		assert.True(t, ok)
		assert.Equal(t, "U1", got.UserID)
		assert.True(t, got.AvailableBalance.Equal(decimal.RequireFromString("25.00")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("miss", func(t *testing.T) {
		mock.ExpectGet("balance:U2").RedisNil()

		_, ok := cache.Get(context.Background(), "U2")
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("corrupt entry treated as miss", func(t *testing.T) {
		mock.ExpectGet("balance:U3").SetVal("{not json")

		_, ok := cache.Get(context.Background(), "U3")
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBalanceCacheSet(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewBalanceCache(client)

	snapshot := models.BalanceSnapshot{
		UserID:           "U1",
		TotalEarned:      decimal.RequireFromString("25.00"),
		AvailableBalance: decimal.RequireFromString("25.00"),
	}
	data, err := json.Marshal(snapshot)
	require.NoError(t, err)

	mock.ExpectSet("balance:U1", data, balanceCacheTTL).SetVal("OK")

	cache.Set(context.Background(), snapshot)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceCacheInvalidate(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewBalanceCache(client)

	mock.ExpectDel("balance:U1").SetVal(1)

	cache.Invalidate(context.Background(), "U1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceCacheDisabled(t *testing.T) {
	cache := NewBalanceCache(nil)

	_, ok := cache.Get(context.Background(), "U1")
	assert.False(t, ok)

	// No-ops; must not panic.
	cache.Set(context.Background(), models.BalanceSnapshot{UserID: "U1"})
	cache.Invalidate(context.Background(), "U1")
}
