package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"soulreflect/pkg/domain"
)

func TestHashSecretAndCheckSecretBcrypt(t *testing.T) {
	hash, err := HashSecret("s3cret")
	if err != nil {
		t.Fatalf("hash secret: %v", err)
	}
	if hash == "" || hash == "s3cret" {
		t.Fatalf("expected opaque hash, got %q", hash)
	}
	if !CheckSecret("s3cret", hash) {
		t.Fatalf("expected bcrypt check to pass")
	}
	if CheckSecret("wrong", hash) {
		t.Fatalf("expected bcrypt check to fail")
	}
	if _, err := HashSecret(""); !errors.Is(err, ErrEmptySecret) {
		t.Fatalf("expected ErrEmptySecret, got %v", err)
	}
}

func TestCheckSecretLongInput(t *testing.T) {
	long := strings.Repeat("k", 100)
	hash, err := HashSecret(long)
	if err != nil {
		t.Fatalf("hash long secret: %v", err)
	}
	if !CheckSecret(long, hash) {
		t.Fatalf("expected long secret to verify")
	}
	if CheckSecret(strings.Repeat("k", 99)+"x", hash) {
		t.Fatalf("secrets differing past byte 72 must not verify")
	}
}

func TestBiometricCredentialDeterministic(t *testing.T) {
	a := BiometricCredential("Me@Example.com ")
	b := BiometricCredential("me@example.com")
	if a != b {
		t.Fatalf("expected same key for same normalized email: %q vs %q", a, b)
	}
	if a == BiometricCredential("other@example.com") {
		t.Fatalf("expected different keys for different emails")
	}
	if !strings.HasPrefix(a, "bio_") {
		t.Fatalf("unexpected key format %q", a)
	}
}

func TestSimulatedGoogle(t *testing.T) {
	g := NewSimulatedGoogle("", "")
	id, err := g.SignIn(context.Background())
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if id.Name != "Soul Traveler" || id.Email != "traveler@gmail.com" {
		t.Fatalf("unexpected identity %+v", id)
	}
	g.Fail = true
	if _, err := g.SignIn(context.Background()); !errors.Is(err, ErrSocialSignInFailed) {
		t.Fatalf("expected ErrSocialSignInFailed, got %v", err)
	}
	if SocialCredential(domain.AuthGoogle) != "social_google" {
		t.Fatalf("unexpected social credential")
	}
}
