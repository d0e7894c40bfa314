package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestAdminKeyMiddleware(t *testing.T) {
	viper.Set("argon2.time", 1)
	viper.Set("argon2.memory", 64*1024)
	viper.Set("argon2.threads", 4)
	viper.Set("argon2.key_length", 32)

	salt := []byte("0123456789abcdef")
	viper.Set("admin.key_hash", HashAdminKey("super-secret-admin-key", salt))

	handler := AdminKeyMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("correct key admitted", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/cashback", nil)
		req.Header.Set("X-Admin-Key", "super-secret-admin-key")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing key rejected", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/cashback", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("wrong key rejected", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/cashback", nil)
		req.Header.Set("X-Admin-Key", "guessed-key")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("garbage stored hash rejects everything", func(t *testing.T) {
		viper.Set("admin.key_hash", "not-a-valid-pair")
		defer viper.Set("admin.key_hash", HashAdminKey("super-secret-admin-key", salt))

		req := httptest.NewRequest("POST", "/cashback", nil)
		req.Header.Set("X-Admin-Key", "super-secret-admin-key")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
