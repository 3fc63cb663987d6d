package services

import (
	"crypto/subtle"
	"time"
)

// StaticTokenValidator checks the opaque stream capability token against
// a configured secret. With a TTL set, the capability expires that long
// after server start (tokens rotate with the process); the gateway
// re-validates on every heartbeat and closes expired streams.
type StaticTokenValidator struct {
	secret   string
	ttl      time.Duration
	issuedAt time.Time
}

func NewStaticTokenValidator(secret string, ttl time.Duration) *StaticTokenValidator {
	return &StaticTokenValidator{
		secret:   secret,
		ttl:      ttl,
		issuedAt: time.Now(),
	}
}

func (v *StaticTokenValidator) Validate(token string, now time.Time) error {
	if v.secret == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(v.secret)) != 1 {
		return ErrTokenInvalid
	}
	if v.ttl > 0 && now.Sub(v.issuedAt) > v.ttl {
		return ErrTokenExpired
	}
	return nil
}
