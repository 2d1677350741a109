// Package csrf issues and validates the short-lived tokens that gate
// attestation writes.
//
// Tokens are HS256 JWTs carrying only an expiry. Nothing is stored server
// side: any replica holding the same secret reaches the same verdict.
package csrf

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/unkn0wn-root/bouncer"
)

// HeaderName carries the token on both the read response and the write request.
const HeaderName = "x-csrf-token"

// DefaultTTL is the lifetime of an issued token.
const DefaultTTL = time.Hour

var (
	// ErrMalformed: the token failed the character-class check and was
	// never handed to the verifier.
	ErrMalformed = errors.New("csrf: malformed token")
	// ErrInvalid: bad signature, wrong algorithm or expired.
	ErrInvalid = errors.New("csrf: invalid token")
)

var tokenFormat = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

type Options struct {
	Secret []byte           // required
	TTL    time.Duration    // 0 => DefaultTTL
	Now    func() time.Time // nil => time.Now
	Hooks  bouncer.Hooks    // if nil, NopHooks is used
}

// Manager is immutable after New and safe for concurrent use.
type Manager struct {
	ttl   time.Duration
	now   func() time.Time
	hooks bouncer.Hooks

	key     []byte
	parser  *jwt.Parser
	keyFunc jwt.Keyfunc
}

func New(opts Options) (*Manager, error) {
	if len(opts.Secret) == 0 {
		return nil, fmt.Errorf("csrf: secret is required")
	}
	m := &Manager{
		ttl:   opts.TTL,
		now:   opts.Now,
		hooks: opts.Hooks,
		key:   append([]byte(nil), opts.Secret...),
	}
	if m.ttl <= 0 {
		m.ttl = DefaultTTL
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.hooks == nil {
		m.hooks = bouncer.NopHooks{}
	}
	m.keyFunc = func(*jwt.Token) (any, error) { return m.key, nil }
	m.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	return m, nil
}

// Generate returns a token valid until now+TTL.
func (m *Manager) Generate() (string, error) {
	claims := jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(m.now().Add(m.ttl)),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("csrf: sign: %w", err)
	}
	return s, nil
}

// Validate returns nil, ErrMalformed or an error matching ErrInvalid.
func (m *Manager) Validate(token string) error {
	if !tokenFormat.MatchString(token) {
		m.hooks.TokenRejected("malformed")
		return ErrMalformed
	}
	var claims jwt.RegisteredClaims
	if _, err := m.parser.ParseWithClaims(token, &claims, m.keyFunc); err != nil {
		m.hooks.TokenRejected("invalid")
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}
