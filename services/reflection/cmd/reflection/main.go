package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"soulreflect/internal/util"
	"soulreflect/pkg/ai"
	"soulreflect/pkg/auth"
	"soulreflect/pkg/generator"
	"soulreflect/pkg/store"
	"soulreflect/services/reflection/internal/app"
	"soulreflect/services/reflection/internal/config"
	"soulreflect/services/reflection/internal/server"
	"soulreflect/services/reflection/internal/sessions"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}
	callTimeout, err := config.ParseCallTimeout(cfg.CallTimeout)
	if err != nil {
		log.Fatalf("failed to parse call timeout: %v", err)
	}
	leeway, err := config.ParseJWTLeeway(cfg.JWTLeeway)
	if err != nil {
		log.Fatalf("failed to parse jwt leeway: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	profiles, closeProfiles, err := store.Open(ctx, cfg.Store)
	if err != nil {
		log.Fatalf("failed to open profile store: %v", err)
	}
	defer func() {
		if err := closeProfiles(); err != nil {
			logger.Warn("close profile store", "err", err)
		}
	}()

	gen, err := newGenerator(ctx, cfg.Generator)
	if err != nil {
		log.Fatalf("failed to init generator: %v", err)
	}

	var rdb *redis.Client
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
	}
	var sessionStore app.SessionStore = sessions.NewMemoryStore(sessionTTL)
	if strings.EqualFold(strings.TrimSpace(cfg.SessionStore), "redis") {
		sessionStore = sessions.NewRedisStoreWithClient(rdb, "", sessionTTL)
	}

	appCore, err := app.New(app.Config{
		Profiles:    profiles,
		Generator:   gen,
		Social:      auth.NewSimulatedGoogle(cfg.Social.Name, cfg.Social.Email),
		Sessions:    sessionStore,
		CallTimeout: callTimeout,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	tokens, err := sessions.NewTokenIssuer(cfg.SessionSecret, sessionTTL, sessions.TokenOptions{
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		Leeway:   leeway,
	})
	if err != nil {
		log.Fatalf("failed to init session tokens: %v", err)
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		log.Fatalf("invalid trusted proxy CIDRs: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:                          appCore,
		Tokens:                       tokens,
		Redis:                        rdb,
		AuthRateLimitPerMinute:       cfg.AuthRateLimitPerMinute,
		GenerationRateLimitPerMinute: cfg.GenerationRateLimitPerMinute,
		TrustedProxies:               trusted,
		CORSOrigins:                  cfg.CORSOrigins,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: callTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "addr", addr, "store", cfg.Store.Driver, "sessions", cfg.SessionStore, "provider", cfg.Generator.Provider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("server error", "err", err)
	}
}

// newGenerator builds the content generator. The "fake" provider runs the
// flow offline with canned content.
func newGenerator(ctx context.Context, cfg config.GeneratorConfig) (generator.Generator, error) {
	if strings.EqualFold(strings.TrimSpace(cfg.Provider), "fake") {
		return generator.NewFake(), nil
	}
	llm, err := ai.NewStructuredGenerator(ctx, ai.ProviderConfig{
		Provider:    cfg.Provider,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	})
	if err != nil {
		return nil, err
	}
	client, err := generator.New(llm)
	if err != nil {
		return nil, err
	}
	return client, nil
}
