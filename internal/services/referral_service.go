package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"
	"github.com/spf13/viper"
)

// ReferralService produces shareable referral QR codes. The encoded link
// carries a short-lived nonce stored in Redis so the signup flow can tie
// a scan back to the referrer.
type ReferralService struct {
	redis *redis.Client
}

func NewReferralService(redisClient *redis.Client) *ReferralService {
	return &ReferralService{redis: redisClient}
}

// GenerateReferralQR returns the referral link and a base64 PNG QR code
// for it. The nonce is valid for 24 hours.
func (s *ReferralService) GenerateReferralQR(ctx context.Context, userID string) (string, string, error) {
	nonce := s.generateNonce()

	link := fmt.Sprintf("%s/r/%s?ref=%s", viper.GetString("portal.base_url"), userID, nonce)

	if s.redis != nil {
		payload, err := json.Marshal(map[string]any{
			"userId":    userID,
			"nonce":     nonce,
			"timestamp": time.Now().Unix(),
		})
		if err != nil {
			return "", "", err
		}
		key := fmt.Sprintf("referral:%s", nonce)
		if err := s.redis.Set(ctx, key, payload, 24*time.Hour).Err(); err != nil {
			return "", "", err
		}
	}

	qr, err := qrcode.New(link, qrcode.Medium)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", "", err
	}

	return link, base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ResolveReferral maps a scanned nonce back to the referrer, or returns
// false if the nonce expired.
func (s *ReferralService) ResolveReferral(ctx context.Context, nonce string) (string, bool) {
	if s.redis == nil {
		return "", false
	}
	data, err := s.redis.Get(ctx, fmt.Sprintf("referral:%s", nonce)).Bytes()
	if err != nil {
		return "", false
	}
	var payload struct {
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", false
	}
	return payload.UserID, true
}

func (s *ReferralService) generateNonce() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
