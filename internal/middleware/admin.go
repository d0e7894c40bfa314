package middleware

import (
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/crypto/argon2"
)

// AdminKeyMiddleware guards the privileged routes (status transitions,
// settlement export). The caller presents a plaintext key in X-Admin-Key;
// it is verified against the argon2id hash in config so the key itself is
// never stored.
func AdminKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-Admin-Key")
		if key == "" {
			http.Error(w, "Admin key required", http.StatusForbidden)
			return
		}

		if !verifyAdminKey(key, viper.GetString("admin.key_hash")) {
			http.Error(w, "Invalid admin key", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// verifyAdminKey checks a plaintext key against a "salt$hash" pair of
// base64 strings produced with argon2id.
func verifyAdminKey(key, stored string) bool {
	parts := strings.Split(stored, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}

	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(key), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(len(hash)))
	return subtle.ConstantTimeCompare(hash, computed) == 1
}

// HashAdminKey produces the "salt$hash" value stored in config.
func HashAdminKey(key string, salt []byte) string {
	hash := argon2.IDKey([]byte(key), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return base64.StdEncoding.EncodeToString(salt) + "$" + base64.StdEncoding.EncodeToString(hash)
}
