package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"soulreflect/pkg/domain"
	"soulreflect/pkg/store"
)

// serviceConfig is the part of the service config soulctl needs.
type serviceConfig struct {
	Store         store.Config `yaml:"store"`
	RedisAddr     string       `yaml:"redisAddr"`
	RedisPassword string       `yaml:"redisPassword"`
}

func loadStoreConfig(path string) (store.Config, error) {
	var cfg serviceConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return store.Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return store.Config{}, fmt.Errorf("parse config: %w", err)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Store.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if cfg.Store.RedisAddr == "" {
		cfg.Store.RedisAddr = cfg.RedisAddr
		cfg.Store.RedisPass = cfg.RedisPassword
	}
	return cfg.Store, nil
}

// withBackend opens the configured store for the duration of fn.
func withBackend(ctx context.Context, configPath string, fn func(store.Backend) error) error {
	cfg, err := loadStoreConfig(configPath)
	if err != nil {
		return err
	}
	backend, closeFn, err := store.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeFn()
	return fn(backend)
}

func newProfilesCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Inspect stored profiles",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List profile emails",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd.Context(), *configPath, func(b store.Backend) error {
				emails, err := b.ListEmails(cmd.Context())
				if err != nil {
					return err
				}
				for _, email := range emails {
					fmt.Fprintln(cmd.OutOrStdout(), email)
				}
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <email>",
		Short: "Print a profile with its history as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), *configPath, func(b store.Backend) error {
				profile, err := inspect(cmd.Context(), b, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), profile)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "summary <email>",
		Short: "Print the dashboard summary of a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), *configPath, func(b store.Backend) error {
				profile, err := inspect(cmd.Context(), b, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), domain.Summarize(profile, time.Now()))
			})
		},
	})
	return cmd
}

func inspect(ctx context.Context, b store.Inspector, email string) (domain.UserProfile, error) {
	profile, ok, err := b.Inspect(ctx, email)
	if err != nil {
		return domain.UserProfile{}, err
	}
	if !ok {
		return domain.UserProfile{}, fmt.Errorf("%s: %w", email, store.ErrProfileNotFound)
	}
	return profile, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
