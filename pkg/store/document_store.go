package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"soulreflect/pkg/auth"
	"soulreflect/pkg/domain"
	"soulreflect/pkg/storage"
)

// KeyPrefix namespaces profile records inside a shared key space.
const KeyPrefix = "soul_app_v1_"

// DocumentStore implements ProfileStore over any storage.Blobs backend by
// keeping each Record as one JSON document.
// Writes from this process are serialized; separate processes sharing a
// backend can still lose an append when they race on the same profile.
type DocumentStore struct {
	blobs storage.Blobs
	now   func() time.Time
	mu    sync.Mutex
}

// NewDocumentStore wraps a blob backend.
func NewDocumentStore(blobs storage.Blobs) *DocumentStore {
	return &DocumentStore{blobs: blobs, now: time.Now}
}

// NewMemoryStore is a DocumentStore over process memory.
func NewMemoryStore() *DocumentStore {
	return NewDocumentStore(storage.NewMemoryStore())
}

func recordKey(email string) (string, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return "", ErrInvalidEmail
	}
	return KeyPrefix + email, nil
}

func (s *DocumentStore) load(ctx context.Context, email string) (Record, bool, error) {
	key, err := recordKey(email)
	if err != nil {
		return Record{}, false, err
	}
	data, ok, err := s.blobs.Get(ctx, key)
	if err != nil || !ok {
		return Record{}, false, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false, fmt.Errorf("decode profile record: %w", err)
	}
	if rec.Profile.History == nil {
		rec.Profile.History = []domain.StoredResult{}
	}
	return rec, true, nil
}

func (s *DocumentStore) write(ctx context.Context, rec Record) error {
	key, err := recordKey(rec.Profile.Email)
	if err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode profile record: %w", err)
	}
	return s.blobs.Put(ctx, key, data)
}

// Exists implements ProfileStore.
func (s *DocumentStore) Exists(ctx context.Context, email string) (bool, error) {
	_, ok, err := s.load(ctx, email)
	return ok, err
}

// LoadByCredential implements ProfileStore.
func (s *DocumentStore) LoadByCredential(ctx context.Context, email, secret string) (domain.UserProfile, bool, error) {
	rec, ok, err := s.load(ctx, email)
	if err != nil || !ok {
		return domain.UserProfile{}, false, err
	}
	if !auth.CheckSecret(secret, rec.Credential) {
		return domain.UserProfile{}, false, nil
	}
	return rec.Profile, true, nil
}

// Save implements ProfileStore.
func (s *DocumentStore) Save(ctx context.Context, profile domain.UserProfile, secret string) error {
	hash, err := auth.HashSecret(secret)
	if err != nil {
		return err
	}
	profile = profile.Clone()
	profile.Email = strings.TrimSpace(profile.Email)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(ctx, Record{Profile: profile, Credential: hash})
}

// AppendReflection implements ProfileStore.
func (s *DocumentStore) AppendReflection(ctx context.Context, email, situation string, diagnostic domain.KarmaDiagnostic) (domain.StoredResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok, err := s.load(ctx, email)
	if err != nil {
		return domain.StoredResult{}, err
	}
	if !ok {
		return domain.StoredResult{}, ErrProfileNotFound
	}
	result := domain.NewStoredResult(rec.Profile.History, s.now(), situation, diagnostic)
	rec.Profile = rec.Profile.AppendResult(result)
	if err := s.write(ctx, rec); err != nil {
		return domain.StoredResult{}, err
	}
	return result, nil
}

// ListEmails implements Lister.
func (s *DocumentStore) ListEmails(ctx context.Context) ([]string, error) {
	keys, err := s.blobs.List(ctx, KeyPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, KeyPrefix))
	}
	return out, nil
}

// Inspect implements Inspector.
func (s *DocumentStore) Inspect(ctx context.Context, email string) (domain.UserProfile, bool, error) {
	rec, ok, err := s.load(ctx, email)
	return rec.Profile, ok, err
}
