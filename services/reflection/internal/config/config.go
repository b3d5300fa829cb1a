package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"soulreflect/pkg/store"
)

// ConfigPath is the config file read when no explicit path is given.
// REFLECTION_CONFIG overrides it.
var ConfigPath = func() string {
	if v := strings.TrimSpace(os.Getenv("REFLECTION_CONFIG")); v != "" {
		return v
	}
	return "config.yaml"
}()

// GeneratorConfig selects the LLM backend behind the content generator.
type GeneratorConfig struct {
	Provider    string  `yaml:"provider"`
	APIKey      string  `yaml:"apiKey"`
	BaseURL     string  `yaml:"baseURL"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"maxTokens"`
	Temperature float64 `yaml:"temperature"`
}

// SocialConfig is the identity the simulated Google sign-in returns.
type SocialConfig struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                         string          `yaml:"port"`
	LogLevel                     string          `yaml:"logLevel"`
	Store                        store.Config    `yaml:"store"`
	SessionStore                 string          `yaml:"sessionStore"`
	SessionTTL                   string          `yaml:"sessionTTL"`
	SessionSecret                string          `yaml:"sessionSecret"`
	JWTIssuer                    string          `yaml:"jwtIssuer"`
	JWTAudience                  string          `yaml:"jwtAudience"`
	JWTLeeway                    string          `yaml:"jwtLeeway"`
	RedisAddr                    string          `yaml:"redisAddr"`
	RedisPassword                string          `yaml:"redisPassword"`
	Generator                    GeneratorConfig `yaml:"generator"`
	Social                       SocialConfig    `yaml:"social"`
	CallTimeout                  string          `yaml:"callTimeout"`
	TrustedProxyCIDRs            []string        `yaml:"trustedProxyCidrs"`
	CORSOrigins                  []string        `yaml:"corsOrigins"`
	AuthRateLimitPerMinute       int             `yaml:"authRateLimitPerMinute"`
	GenerationRateLimitPerMinute int             `yaml:"generationRateLimitPerMinute"`
}

// Load reads config from path (defaults to ConfigPath) and applies
// environment overrides.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	if v := os.Getenv("REFLECTION_PORT"); v != "" {
		cfg.Port = strings.TrimSpace(v)
	}
	if v := os.Getenv("REFLECTION_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.TrimSpace(v)
	}
	if v := os.Getenv("REFLECTION_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = strings.TrimSpace(v)
	}
	if v := os.Getenv("REFLECTION_DATA_DIR"); v != "" {
		cfg.Store.Dir = strings.TrimSpace(v)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Store.DatabaseURL = v
	}
	if v := os.Getenv("REFLECTION_SESSION_STORE"); v != "" {
		cfg.SessionStore = strings.TrimSpace(v)
	}
	if v := os.Getenv("REFLECTION_SESSION_TTL"); v != "" {
		cfg.SessionTTL = strings.TrimSpace(v)
	}
	if v := os.Getenv("REFLECTION_SESSION_SECRET"); v != "" {
		cfg.SessionSecret = v
	}
	if v := os.Getenv("JWT_ISSUER"); v != "" {
		cfg.JWTIssuer = v
	}
	if v := os.Getenv("JWT_AUDIENCE"); v != "" {
		cfg.JWTAudience = v
	}
	if v := os.Getenv("JWT_LEEWAY"); v != "" {
		cfg.JWTLeeway = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.Store.Minio.Endpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.Store.Minio.AccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.Store.Minio.SecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.Store.Minio.Bucket = v
	}
	if v := os.Getenv("REFLECTION_GENERATOR_PROVIDER"); v != "" {
		cfg.Generator.Provider = strings.TrimSpace(v)
	}
	if v := os.Getenv("REFLECTION_GENERATOR_MODEL"); v != "" {
		cfg.Generator.Model = strings.TrimSpace(v)
	}
	if v := os.Getenv("REFLECTION_GENERATOR_BASE_URL"); v != "" {
		cfg.Generator.BaseURL = strings.TrimSpace(v)
	}
	if cfg.Generator.APIKey == "" {
		cfg.Generator.APIKey = providerAPIKey(cfg.Generator.Provider)
	}
	if v := os.Getenv("REFLECTION_CALL_TIMEOUT"); v != "" {
		cfg.CallTimeout = strings.TrimSpace(v)
	}
	if v := os.Getenv("REFLECTION_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	if v := os.Getenv("REFLECTION_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitCSV(v)
	}
	if v := os.Getenv("REFLECTION_AUTH_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AuthRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("REFLECTION_GENERATION_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.GenerationRateLimitPerMinute = n
		}
	}
	if cfg.Store.RedisAddr == "" {
		cfg.Store.RedisAddr = cfg.RedisAddr
		cfg.Store.RedisPass = cfg.RedisPassword
	}
}

// providerAPIKey reads the conventional key variable of each hosted provider.
func providerAPIKey(provider string) string {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "gemini", "genai":
		return os.Getenv("GEMINI_API_KEY")
	case "openai", "openai-compat":
		return os.Getenv("OPENAI_API_KEY")
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	default:
		return ""
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if strings.TrimSpace(cfg.SessionSecret) == "" {
		return errors.New("config: sessionSecret is required (set in config.yaml or REFLECTION_SESSION_SECRET)")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.SessionStore)) {
	case "", "memory":
	case "redis":
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return errors.New("config: redisAddr is required for the redis session store")
		}
	default:
		return fmt.Errorf("config: unknown sessionStore %q", cfg.SessionStore)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Store.Driver)) {
	case "postgres", "sqlite":
		if strings.TrimSpace(cfg.Store.DatabaseURL) == "" {
			return fmt.Errorf("config: store.databaseURL is required for the %s driver (or DATABASE_URL)", cfg.Store.Driver)
		}
	}
	if cfg.AuthRateLimitPerMinute < 0 || cfg.GenerationRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if _, err := ParseSessionTTL(cfg.SessionTTL); err != nil {
		return err
	}
	if _, err := ParseCallTimeout(cfg.CallTimeout); err != nil {
		return err
	}
	if _, err := ParseJWTLeeway(cfg.JWTLeeway); err != nil {
		return err
	}
	return nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// ParseSessionTTL parses session TTL string with default 24h.
func ParseSessionTTL(ttlStr string) (time.Duration, error) {
	if ttlStr == "" {
		return 24 * time.Hour, nil
	}
	dur, err := time.ParseDuration(ttlStr)
	if err != nil {
		return 0, fmt.Errorf("invalid sessionTTL duration: %w", err)
	}
	if dur <= 0 {
		return 0, errors.New("sessionTTL must be positive")
	}
	return dur, nil
}

// ParseCallTimeout parses the per-call generator timeout, default 60s.
func ParseCallTimeout(timeoutStr string) (time.Duration, error) {
	if timeoutStr == "" {
		return 60 * time.Second, nil
	}
	dur, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return 0, fmt.Errorf("invalid callTimeout duration: %w", err)
	}
	if dur <= 0 {
		return 0, errors.New("callTimeout must be positive")
	}
	return dur, nil
}

// ParseJWTLeeway parses optional JWT leeway duration string.
func ParseJWTLeeway(leewayStr string) (time.Duration, error) {
	if leewayStr == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(leewayStr)
	if err != nil {
		return 0, fmt.Errorf("invalid jwtLeeway duration: %w", err)
	}
	return dur, nil
}
