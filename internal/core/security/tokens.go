package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

const (
	DefaultActivationTTL = 24 * time.Hour
	DefaultResetTTL      = time.Hour

	activationTokenBytes = 32
	resetCodeDigits      = 6
)

// TokenGenerator issues activation tokens and reset codes from crypto/rand.
type TokenGenerator struct {
	activationTTL time.Duration
	resetTTL      time.Duration
}

func NewTokenGenerator(activationTTL, resetTTL time.Duration) *TokenGenerator {
	if activationTTL <= 0 {
		activationTTL = DefaultActivationTTL
	}
	if resetTTL <= 0 {
		resetTTL = DefaultResetTTL
	}
	return &TokenGenerator{activationTTL: activationTTL, resetTTL: resetTTL}
}

// ActivationToken returns 64 hex characters and its expiry.
func (g *TokenGenerator) ActivationToken(now time.Time) (string, time.Time, error) {
	b := make([]byte, activationTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", time.Time{}, fmt.Errorf("activation token: %w", err)
	}
	return hex.EncodeToString(b), now.Add(g.activationTTL), nil
}

// ResetCode returns a 6-digit code without leading zero and its expiry.
func (g *TokenGenerator) ResetCode(now time.Time) (string, time.Time, error) {
	floor := int64(1)
	for i := 1; i < resetCodeDigits; i++ {
		floor *= 10
	}
	n, err := rand.Int(rand.Reader, big.NewInt(9*floor))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("reset code: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+floor), now.Add(g.resetTTL), nil
}
