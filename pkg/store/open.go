package store

import (
	"context"
	"fmt"
	"strings"

	"soulreflect/pkg/storage"
)

// Config selects and configures a profile store backend.
type Config struct {
	Driver      string      `yaml:"driver"`
	Dir         string      `yaml:"dir"`
	DatabaseURL string      `yaml:"databaseURL"`
	RedisAddr   string      `yaml:"redisAddr"`
	RedisPass   string      `yaml:"redisPassword"`
	RedisPrefix string      `yaml:"redisPrefix"`
	Minio       MinioConfig `yaml:"minio"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Folder    string `yaml:"folder"`
	UseSSL    bool   `yaml:"useSSL"`
}

// Backend is an opened profile store plus its optional capabilities and a
// closer for the underlying connections.
type Backend interface {
	ProfileStore
	Lister
	Inspector
}

// Open builds the backend named by cfg.Driver. The returned func releases
// whatever connections the backend holds.
func Open(ctx context.Context, cfg Config) (Backend, func() error, error) {
	noop := func() error { return nil }
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "memory":
		return NewMemoryStore(), noop, nil
	case "file":
		fs, err := storage.NewFileStore(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return NewDocumentStore(fs), noop, nil
	case "redis":
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return nil, nil, fmt.Errorf("store.redisAddr is required for the redis driver")
		}
		prefix := cfg.RedisPrefix
		if prefix == "" {
			prefix = "soulreflect"
		}
		rs := storage.NewRedisStore(cfg.RedisAddr, cfg.RedisPass, prefix)
		if err := rs.Ping(ctx); err != nil {
			return nil, nil, fmt.Errorf("redis profile store: %w", err)
		}
		return NewDocumentStore(rs), rs.Close, nil
	case "object", "minio":
		m := cfg.Minio
		folder := m.Folder
		if folder == "" {
			folder = "profiles"
		}
		ms, err := storage.NewMinioStore(m.Endpoint, m.AccessKey, m.SecretKey, m.Bucket, folder, m.UseSSL)
		if err != nil {
			return nil, nil, err
		}
		return NewDocumentStore(ms), noop, nil
	case "postgres":
		gs, err := NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return gs, gs.Close, nil
	case "sqlite":
		gs, err := NewSQLiteStore(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return gs, gs.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
