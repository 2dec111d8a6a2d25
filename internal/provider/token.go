package provider

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry extracts the expiry claim from the static provider access
// token without verifying the signature. The signing key belongs to the
// provider; we only want to know when the token will stop working.
func TokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("parse token: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("read exp claim: %w", err)
	}
	if exp == nil {
		return time.Time{}, fmt.Errorf("token has no exp claim")
	}

	return exp.Time, nil
}

// LogTokenStatus logs the token expiry at startup so an operator notices a
// stale token before every cycle starts failing with 401s. Non-JWT tokens
// are logged and otherwise left alone.
func LogTokenStatus(log *slog.Logger, token string) {
	expiry, err := TokenExpiry(token)
	if err != nil {
		log.Warn("provider token expiry unknown", "error", err)
		return
	}

	remaining := time.Until(expiry)
	switch {
	case remaining <= 0:
		log.Error("provider token is expired", "expired_at", expiry)
	case remaining < 7*24*time.Hour:
		log.Warn("provider token expires soon", "expires_at", expiry, "remaining", remaining.Round(time.Hour))
	default:
		log.Info("provider token ok", "expires_at", expiry)
	}
}
