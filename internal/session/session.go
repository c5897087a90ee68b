// Package session is the phone + OTP login stub. Codes are never sent
// anywhere; they are readable on the admin plane. A verified code yields an
// HS256 session token.
package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wondertwin-ai/twin-qwikbasket/pkg/store"
)

// CodeLength is the number of digits in an OTP.
const CodeLength = 6

const issuer = "twin-qwikbasket"

var (
	ErrInvalidPhone = errors.New("invalid phone number")
	ErrNoChallenge  = errors.New("no pending code for phone")
	ErrCodeExpired  = errors.New("code expired")
	ErrCodeMismatch = errors.New("code does not match")
	ErrInvalidToken = errors.New("invalid session token")
)

// Challenge is an issued, not yet consumed OTP.
type Challenge struct {
	Phone     string    `json:"phone"`
	Code      string    `json:"code"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
}

// Claims are carried in every session token.
type Claims struct {
	Phone string `json:"phone"`
	jwt.RegisteredClaims
}

// Config configures a Manager.
type Config struct {
	Secret   []byte
	CodeTTL  time.Duration // default 5m
	TokenTTL time.Duration // default 24h
	// MaxAttempts consumes the challenge after this many wrong codes. Default 5.
	MaxAttempts int
	Clock       *store.Clock
	Logger      *slog.Logger
}

// Manager issues codes and session tokens.
type Manager struct {
	mu          sync.Mutex
	challenges  map[string]Challenge
	secret      []byte
	codeTTL     time.Duration
	tokenTTL    time.Duration
	maxAttempts int
	clock       *store.Clock
	logger      *slog.Logger
}

// NewManager creates a Manager. An empty secret gets a random one, so tokens
// do not survive a restart.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		cfg.Secret = make([]byte, 32)
		if _, err := rand.Read(cfg.Secret); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 5 * time.Minute
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Clock == nil {
		cfg.Clock = store.NewClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		challenges:  make(map[string]Challenge),
		secret:      cfg.Secret,
		codeTTL:     cfg.CodeTTL,
		tokenTTL:    cfg.TokenTTL,
		maxAttempts: cfg.MaxAttempts,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
	}, nil
}

// NormalizePhone strips spaces and dashes and checks for 10 to 15 digits
// with an optional leading '+'.
func NormalizePhone(phone string) (string, error) {
	p := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(phone))
	digits := strings.TrimPrefix(p, "+")
	if len(digits) < 10 || len(digits) > 15 {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, phone)
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: %q", ErrInvalidPhone, phone)
		}
	}
	return p, nil
}

// Issue creates a fresh code for phone, replacing any pending one.
func (m *Manager) Issue(phone string) (Challenge, error) {
	p, err := NormalizePhone(phone)
	if err != nil {
		return Challenge{}, err
	}
	code, err := generateCode(CodeLength)
	if err != nil {
		return Challenge{}, err
	}
	now := m.clock.Now()
	c := Challenge{Phone: p, Code: code, IssuedAt: now, ExpiresAt: now.Add(m.codeTTL)}

	m.mu.Lock()
	m.challenges[p] = c
	m.mu.Unlock()

	m.logger.Debug("otp issued", "phone", p)
	return c, nil
}

// Verify consumes the pending code for phone and returns a signed token.
func (m *Manager) Verify(phone, code string) (string, error) {
	p, err := NormalizePhone(phone)
	if err != nil {
		return "", err
	}
	now := m.clock.Now()

	m.mu.Lock()
	c, ok := m.challenges[p]
	switch {
	case !ok:
		m.mu.Unlock()
		return "", ErrNoChallenge
	case now.After(c.ExpiresAt):
		delete(m.challenges, p)
		m.mu.Unlock()
		return "", ErrCodeExpired
	case c.Code != strings.TrimSpace(code):
		c.Attempts++
		if c.Attempts >= m.maxAttempts {
			delete(m.challenges, p)
		} else {
			m.challenges[p] = c
		}
		m.mu.Unlock()
		return "", ErrCodeMismatch
	}
	delete(m.challenges, p)
	m.mu.Unlock()

	return m.sign(p, now)
}

func (m *Manager) sign(phone string, now time.Time) (string, error) {
	claims := Claims{
		Phone: phone,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   phone,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Parse validates a token against the simulated clock.
func (m *Manager) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims, nil
}

// Pending returns every unconsumed challenge, expired ones included, oldest
// first. Challenges issued at the same instant are ordered by phone.
func (m *Manager) Pending() []Challenge {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Challenge, 0, len(m.challenges))
	for _, c := range m.challenges {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Challenge) int {
		if c := a.IssuedAt.Compare(b.IssuedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Phone, b.Phone)
	})
	return out
}

// Reset drops all pending challenges.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.challenges = make(map[string]Challenge)
}

type claimsKey struct{}

// WithClaims stores claims on ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// FromContext returns the claims set by the session gate, if any.
func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok
}

func generateCode(n int) (string, error) {
	var b strings.Builder
	for range n {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}
