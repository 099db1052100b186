package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// Referral code format
const (
	ReferralCodeLength   = 8
	referralCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxCodeAttempts      = 100
)

// ErrGenerationExhausted is returned when no free referral code was found
var ErrGenerationExhausted = errors.New("referral code generation exhausted")

// CodeChecker reports whether a referral code is already taken
type CodeChecker interface {
	ReferralCodeExists(ctx context.Context, code string) (bool, error)
}

// CodeGenerator produces unique referral codes
type CodeGenerator struct {
	checker  CodeChecker
	random   func() (string, error)
	attempts int
}

// NewCodeGenerator creates a generator backed by crypto/rand
func NewCodeGenerator(checker CodeChecker) *CodeGenerator {
	return &CodeGenerator{checker: checker, random: randomCode, attempts: maxCodeAttempts}
}

// Generate returns a code not yet present in the store.
// The unique index on referral_code still guards concurrent inserts.
func (g *CodeGenerator) Generate(ctx context.Context) (string, error) {
	for i := 0; i < g.attempts; i++ {
		code, err := g.random()
		if err != nil {
			return "", fmt.Errorf("failed to generate referral code: %w", err)
		}
		taken, err := g.checker.ReferralCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("%d attempts: %w", g.attempts, ErrGenerationExhausted)
}

func randomCode() (string, error) {
	max := big.NewInt(int64(len(referralCodeAlphabet)))
	b := make([]byte, ReferralCodeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = referralCodeAlphabet[n.Int64()]
	}
	return string(b), nil
}

// ValidReferralCode reports whether s has the referral code shape
func ValidReferralCode(s string) bool {
	if len(s) != ReferralCodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
