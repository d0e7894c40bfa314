package services

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateReferralQR(t *testing.T) {
	viper.Set("portal.base_url", "https://rebatewise.example.com")

	t.Run("link and PNG are produced", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		service := NewReferralService(redisClient)

		redisMock.Regexp().ExpectSet(`referral:.+`, `.*`, 24*time.Hour).SetVal("OK")

		link, qrPNG, err := service.GenerateReferralQR(context.Background(), "U1")
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(link, "https://rebatewise.example.com/r/U1?ref="))

		raw, err := base64.StdEncoding.DecodeString(qrPNG)
		require.NoError(t, err)
		assert.Equal(t, "\x89PNG", string(raw[:4]))

		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("works without redis", func(t *testing.T) {
		service := NewReferralService(nil)

		link, qrPNG, err := service.GenerateReferralQR(context.Background(), "U1")
		require.NoError(t, err)
		assert.NotEmpty(t, link)
		assert.NotEmpty(t, qrPNG)
	})
}

func TestResolveReferral(t *testing.T) {
	t.Run("known nonce resolves to the referrer", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		service := NewReferralService(redisClient)

		redisMock.ExpectGet("referral:abc123").SetVal(`{"userId":"U1","nonce":"abc123"}`)

		userID, ok := service.ResolveReferral(context.Background(), "abc123")
		assert.True(t, ok)
		assert.Equal(t, "U1", userID)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("expired nonce misses", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		service := NewReferralService(redisClient)

		redisMock.ExpectGet("referral:gone").RedisNil()

		_, ok := service.ResolveReferral(context.Background(), "gone")
		assert.False(t, ok)
	})

	t.Run("disabled redis misses", func(t *testing.T) {
		service := NewReferralService(nil)

		_, ok := service.ResolveReferral(context.Background(), "abc123")
		assert.False(t, ok)
	})
}
