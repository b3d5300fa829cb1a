// Package store persists user profiles and their reflection history.
//
// Every backend keeps one record per lower-cased email holding the profile
// and a bcrypt hash of the credential used to create it.
package store

import (
	"context"
	"errors"

	"soulreflect/pkg/domain"
)

var (
	// ErrProfileNotFound is returned by AppendReflection for unknown emails.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrInvalidEmail is returned for blank emails.
	ErrInvalidEmail = errors.New("email required")
)

// ProfileStore is the persistence boundary of the session core.
// LoadByCredential reports (zero, false, nil) both when the email is unknown
// and when the secret does not match.
type ProfileStore interface {
	Exists(ctx context.Context, email string) (bool, error)
	LoadByCredential(ctx context.Context, email, secret string) (domain.UserProfile, bool, error)
	Save(ctx context.Context, profile domain.UserProfile, secret string) error
	AppendReflection(ctx context.Context, email, situation string, diagnostic domain.KarmaDiagnostic) (domain.StoredResult, error)
}

// Lister is implemented by stores that can enumerate their profiles.
type Lister interface {
	ListEmails(ctx context.Context) ([]string, error)
}

// Inspector reads a profile without checking the credential. It is meant for
// operator tooling only, never for sign-in.
type Inspector interface {
	Inspect(ctx context.Context, email string) (domain.UserProfile, bool, error)
}

// Record is the stored document: {"profile": ..., "credential": ...}.
type Record struct {
	Profile    domain.UserProfile `json:"profile"`
	Credential string             `json:"credential"`
}
