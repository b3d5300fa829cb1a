// Package storage provides small key/value byte stores. Keys are opaque
// strings chosen by the caller; each backend maps them onto its own namespace.
package storage

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// ErrInvalidKey is returned for blank keys or keys a backend cannot represent.
var ErrInvalidKey = errors.New("storage: invalid key")

// Blobs is a flat key/value store of whole documents.
// Get reports (nil, false, nil) when the key is absent.
type Blobs interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

func checkKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	return nil
}

// escapeKey turns a key into a single safe path segment.
func escapeKey(key string) string {
	return url.PathEscape(key)
}

func unescapeKey(seg string) (string, bool) {
	key, err := url.PathUnescape(seg)
	if err != nil {
		return "", false
	}
	return key, true
}
