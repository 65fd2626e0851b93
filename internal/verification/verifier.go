package verification

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"example.com/gymassistant/internal/domain"
)

// DemoCode is the fixed code used when no SMS gateway is configured.
const DemoCode = "123456"

const codeDigits = 6

// Verifier issues codes for phone numbers and checks submitted codes.
type Verifier struct {
	store    CodeStore
	ttl      time.Duration
	demoMode bool
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithTTL sets how long an issued code stays valid.
func WithTTL(ttl time.Duration) Option {
	return func(v *Verifier) {
		if ttl > 0 {
			v.ttl = ttl
		}
	}
}

// WithDemoMode makes every issued code DemoCode.
func WithDemoMode(enabled bool) Option {
	return func(v *Verifier) {
		v.demoMode = enabled
	}
}

// NewVerifier constructs a Verifier.
func NewVerifier(store CodeStore, opts ...Option) *Verifier {
	v := &Verifier{store: store, ttl: 5 * time.Minute}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// DemoMode reports whether issued codes may be echoed to the caller.
func (v *Verifier) DemoMode() bool {
	return v.demoMode
}

// Issue stores a fresh code for phone and returns it.
func (v *Verifier) Issue(ctx context.Context, phone string) (string, error) {
	code := DemoCode
	if !v.demoMode {
		generated, err := randomCode(codeDigits)
		if err != nil {
			return "", err
		}
		code = generated
	}
	if err := v.store.Save(ctx, phone, code, v.ttl); err != nil {
		return "", err
	}
	return code, nil
}

// Match reports whether code is the live code for phone without consuming it. A
// missing, expired or wrong code fails with domain.ErrValidation.
func (v *Verifier) Match(ctx context.Context, phone, code string) error {
	stored, err := v.store.Load(ctx, phone)
	if errors.Is(err, ErrCodeNotFound) {
		if v.demoMode && code == DemoCode {
			return nil
		}
		return fmt.Errorf("%w: invalid verification code", domain.ErrValidation)
	}
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return fmt.Errorf("%w: invalid verification code", domain.ErrValidation)
	}
	return nil
}

// Consume drops the code for phone. Callers consume once the sign-in it guards
// has succeeded, so a failed registration leaves the code usable.
func (v *Verifier) Consume(ctx context.Context, phone string) error {
	return v.store.Delete(ctx, phone)
}

func randomCode(digits int) (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < digits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}
