package auth

import (
	"context"
	"errors"
	"strings"
)

// ErrSocialSignInFailed is returned by a provider that could not produce an identity.
var ErrSocialSignInFailed = errors.New("social sign-in failed")

// Identity is what a social provider vouches for.
type Identity struct {
	Name  string
	Email string
}

// SocialSignIn abstracts an external identity provider.
type SocialSignIn interface {
	SignIn(ctx context.Context) (Identity, error)
}

const (
	defaultSocialName  = "Soul Traveler"
	defaultSocialEmail = "traveler@gmail.com"
)

// SimulatedGoogle stands in for Google sign-in. It always returns the same
// configured identity, or fails when Fail is set.
type SimulatedGoogle struct {
	Name  string
	Email string
	Fail  bool
}

// NewSimulatedGoogle builds the simulated provider, filling blank fields with defaults.
func NewSimulatedGoogle(name, email string) *SimulatedGoogle {
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultSocialName
	}
	email = strings.TrimSpace(email)
	if email == "" {
		email = defaultSocialEmail
	}
	return &SimulatedGoogle{Name: name, Email: email}
}

// SignIn implements SocialSignIn.
func (g *SimulatedGoogle) SignIn(ctx context.Context) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}
	if g.Fail {
		return Identity{}, ErrSocialSignInFailed
	}
	return Identity{Name: g.Name, Email: g.Email}, nil
}
