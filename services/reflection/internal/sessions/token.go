package sessions

import (
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"soulreflect/internal/util"
)

const (
	defaultIssuer   = "soulreflect"
	defaultAudience = "soulreflect-session"
)

var (
	ErrTokenSecretRequired = errors.New("session token secret required")
	ErrInvalidToken        = errors.New("invalid session token")
)

// TokenOptions configures claim validation.
type TokenOptions struct {
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// TokenIssuer signs HS256 JWTs whose subject is a session id.
type TokenIssuer struct {
	secret   []byte
	ttl      time.Duration
	issuer   string
	audience string
	leeway   time.Duration
	now      func() time.Time
}

// NewTokenIssuer builds an issuer. The secret must be non-empty.
func NewTokenIssuer(secret string, ttl time.Duration, opts TokenOptions) (*TokenIssuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrTokenSecretRequired
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if strings.TrimSpace(opts.Issuer) == "" {
		opts.Issuer = defaultIssuer
	}
	if strings.TrimSpace(opts.Audience) == "" {
		opts.Audience = defaultAudience
	}
	if opts.Leeway < 0 {
		opts.Leeway = 0
	}
	return &TokenIssuer{
		secret:   []byte(secret),
		ttl:      ttl,
		issuer:   opts.Issuer,
		audience: opts.Audience,
		leeway:   opts.Leeway,
		now:      time.Now,
	}, nil
}

// Issue signs a token for the session id.
func (t *TokenIssuer) Issue(sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", errors.New("session id required")
	}
	now := t.now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   sessionID,
		Issuer:    t.issuer,
		Audience:  jwt.ClaimStrings{t.audience},
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        util.NewID(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// SessionID validates a token and returns its session id.
func (t *TokenIssuer) SessionID(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidToken
	}
	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(t.leeway),
		jwt.WithIssuer(t.issuer),
		jwt.WithAudience(t.audience),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
