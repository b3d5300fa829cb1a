package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"soulreflect/internal/ratelimit"
	"soulreflect/internal/util"
	"soulreflect/pkg/domain"
	"soulreflect/services/reflection/internal/app"
	"soulreflect/services/reflection/internal/sessions"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App    *app.App
	Tokens *sessions.TokenIssuer
	// Redis enables per-client rate limiting of auth and generation intents.
	Redis                        *redis.Client
	AuthRateLimitPerMinute       int
	GenerationRateLimitPerMinute int
	TrustedProxies               *util.TrustedProxies
	CORSOrigins                  []string
}

// Server exposes the session flow over HTTP.
type Server struct {
	app               *app.App
	tokens            *sessions.TokenIssuer
	mux               *http.ServeMux
	trustedProxies    *util.TrustedProxies
	corsOrigins       []string
	authLimiter       *ratelimit.FixedWindowLimiter
	generationLimiter *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server: app required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("server: token issuer required")
	}
	s := &Server{
		app:            cfg.App,
		tokens:         cfg.Tokens,
		mux:            http.NewServeMux(),
		trustedProxies: cfg.TrustedProxies,
		corsOrigins:    cfg.CORSOrigins,
	}
	if cfg.Redis != nil {
		authPerMinute := cfg.AuthRateLimitPerMinute
		if authPerMinute <= 0 {
			authPerMinute = 10
		}
		generationPerMinute := cfg.GenerationRateLimitPerMinute
		if generationPerMinute <= 0 {
			generationPerMinute = 20
		}
		newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
			prefix := "soulreflect:reflection:ratelimit:" + name
			limiter, err := ratelimit.NewFixedWindowLimiterWithClient(cfg.Redis, prefix, limit, time.Minute)
			if err != nil {
				return nil, fmt.Errorf("init %s limiter: %w", name, err)
			}
			return limiter, nil
		}
		var err error
		if s.authLimiter, err = newLimiter("auth", authPerMinute); err != nil {
			return nil, err
		}
		if s.generationLimiter, err = newLimiter("generation", generationPerMinute); err != nil {
			return nil, err
		}
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(
		util.WithRequestLog("reflection",
			util.WithSecurityHeaders(util.WithCORS(s.corsOrigins, s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/api/languages", s.handleLanguages)
	s.mux.HandleFunc("/api/sessions", s.handleCreateSession)
	s.mux.HandleFunc("/api/session", s.handleSession)
	for _, in := range s.intents() {
		s.mux.Handle("/api/session/"+in.path, s.intentHandler(in))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type languageItem struct {
	Code domain.LanguageCode `json:"code"`
	Name string              `json:"name"`
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	items := make([]languageItem, 0, len(domain.SupportedLanguages))
	for _, code := range domain.SupportedLanguages {
		items = append(items, languageItem{Code: code, Name: code.NativeName()})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":   items,
		"default": domain.DefaultLanguage,
	})
}

type createSessionResponse struct {
	Token   string      `json:"token"`
	Session sessionView `json:"session"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	sess, err := s.app.Create(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	token, err := s.tokens.Issue(sess.ID)
	if err != nil {
		util.LoggerFromContext(r.Context()).Error("issue session token failed", "session_id", sess.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.audit(r, "reflection.session.create", "success", "session_id", sess.ID)
	writeJSON(w, http.StatusCreated, createSessionResponse{
		Token:   token,
		Session: s.render(sess),
	})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.authorize(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	r = r.WithContext(util.WithSessionID(r.Context(), id))
	switch r.Method {
	case http.MethodGet:
		sess, err := s.app.Get(r.Context(), id)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, s.render(sess))
	case http.MethodDelete:
		if err := s.app.Delete(r.Context(), id); err != nil {
			writeAppError(w, r, err)
			return
		}
		s.audit(r, "reflection.session.delete", "success", "session_id", id)
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

// authorize resolves the bearer token to a session id.
func (s *Server) authorize(r *http.Request) (string, bool) {
	token, ok := bearerToken(r)
	if !ok {
		s.audit(r, "reflection.token.verify", "fail", "reason", "missing_token")
		return "", false
	}
	id, err := s.tokens.SessionID(token)
	if err != nil {
		s.audit(r, "reflection.token.verify", "fail", "reason", "invalid_signature_or_claims")
		return "", false
	}
	return id, true
}

// intentRequest carries the fields of every intent; each route reads the
// ones it needs.
type intentRequest struct {
	Language    string `json:"language"`
	Method      string `json:"method"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Situation   string `json:"situation"`
	Option      string `json:"option"`
	OptionIndex *int   `json:"optionIndex"`
	Mode        string `json:"mode"`
	ResultID    string `json:"resultId"`
}

func (req intentRequest) option() string {
	if req.OptionIndex != nil {
		return strconv.Itoa(*req.OptionIndex)
	}
	return req.Option
}

type limiterKind int

const (
	noLimit limiterKind = iota
	authLimit
	generationLimit
)

type intent struct {
	path  string
	event string
	limit limiterKind
	// audited intents emit a security_event with their outcome.
	audited bool
	run     func(ctx context.Context, a *app.App, id string, req intentRequest) (app.Session, error)
}

func (s *Server) intents() []intent {
	return []intent{
		{path: "language", event: "reflection.language", run: func(ctx context.Context, a *app.App, id string, req intentRequest) (app.Session, error) {
			return a.SelectLanguage(ctx, id, req.Language)
		}},
		{path: "auth/method", event: "reflection.auth.method", limit: authLimit, audited: true, run: func(ctx context.Context, a *app.App, id string, req intentRequest) (app.Session, error) {
			return a.ChooseAuthMethod(ctx, id, req.Method)
		}},
		{path: "auth/signup-form", event: "reflection.auth.signup_form", run: func(ctx context.Context, a *app.App, id string, _ intentRequest) (app.Session, error) {
			return a.ShowSignUp(ctx, id)
		}},
		{path: "auth/signup", event: "reflection.auth.signup", limit: authLimit, audited: true, run: func(ctx context.Context, a *app.App, id string, req intentRequest) (app.Session, error) {
			return a.SignUp(ctx, id, req.Name, req.Email, req.Password)
		}},
		{path: "auth/login", event: "reflection.auth.login", limit: authLimit, audited: true, run: func(ctx context.Context, a *app.App, id string, req intentRequest) (app.Session, error) {
			return a.LogIn(ctx, id, req.Email, req.Password)
		}},
		{path: "auth/biometric", event: "reflection.auth.biometric", limit: authLimit, audited: true, run: func(ctx context.Context, a *app.App, id string, req intentRequest) (app.Session, error) {
			return a.RegisterBiometric(ctx, id, req.Name, req.Email)
		}},
		{path: "auth/signout", event: "reflection.auth.signout", audited: true, run: func(ctx context.Context, a *app.App, id string, _ intentRequest) (app.Session, error) {
			return a.SignOut(ctx, id)
		}},
		{path: "reflection/begin", event: "reflection.begin", run: func(ctx context.Context, a *app.App, id string, _ intentRequest) (app.Session, error) {
			return a.BeginReflection(ctx, id)
		}},
		{path: "reflection/start", event: "reflection.start", limit: generationLimit, run: func(ctx context.Context, a *app.App, id string, req intentRequest) (app.Session, error) {
			return a.StartReflection(ctx, id, req.Situation)
		}},
		{path: "reflection/answer", event: "reflection.answer", limit: generationLimit, run: func(ctx context.Context, a *app.App, id string, req intentRequest) (app.Session, error) {
			return a.AnswerQuestion(ctx, id, req.option())
		}},
		{path: "reflection/finish", event: "reflection.finish", limit: generationLimit, run: func(ctx context.Context, a *app.App, id string, _ intentRequest) (app.Session, error) {
			return a.FinishBatch(ctx, id)
		}},
		{path: "reflection/refine", event: "reflection.refine", limit: generationLimit, run: func(ctx context.Context, a *app.App, id string, req intentRequest) (app.Session, error) {
			return a.Refine(ctx, id, req.Mode)
		}},
		{path: "reflection/reset", event: "reflection.reset", run: func(ctx context.Context, a *app.App, id string, _ intentRequest) (app.Session, error) {
			return a.ResetForNewReflection(ctx, id)
		}},
		{path: "back", event: "reflection.back", run: func(ctx context.Context, a *app.App, id string, _ intentRequest) (app.Session, error) {
			return a.GoBack(ctx, id)
		}},
		{path: "diagnostic/full", event: "reflection.diagnostic.full", limit: generationLimit, run: func(ctx context.Context, a *app.App, id string, _ intentRequest) (app.Session, error) {
			return a.RunFullDiagnostic(ctx, id)
		}},
		{path: "history/view", event: "reflection.history.view", run: func(ctx context.Context, a *app.App, id string, req intentRequest) (app.Session, error) {
			return a.ViewStoredResult(ctx, id, req.ResultID)
		}},
	}
}

func (s *Server) intentHandler(in intent) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		if limiter := s.limiterFor(in.limit); limiter != nil && !s.allowRate(w, r, limiter, "too many requests") {
			s.audit(r, in.event, "rate_limited")
			return
		}
		id, ok := s.authorize(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		r = r.WithContext(util.WithSessionID(r.Context(), id))
		var req intentRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			if in.audited {
				s.audit(r, in.event, "fail", "session_id", id, "reason", "invalid_json")
			}
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		sess, err := in.run(r.Context(), s.app, id, req)
		if err != nil {
			if in.audited {
				s.audit(r, in.event, "fail", "session_id", id, "reason", err.Error())
			}
			writeAppError(w, r, err)
			return
		}
		if in.audited {
			if sess.Error != "" {
				s.audit(r, in.event, "fail", "session_id", id, "reason", sess.Error)
			} else {
				s.audit(r, in.event, "success", "session_id", id, "phase", sess.Phase)
			}
		}
		writeJSON(w, http.StatusOK, s.render(sess))
	})
}

func (s *Server) limiterFor(kind limiterKind) *ratelimit.FixedWindowLimiter {
	switch kind {
	case authLimit:
		return s.authLimiter
	case generationLimit:
		return s.generationLimiter
	default:
		return nil
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeAppError maps errors the session core returns to HTTP statuses.
// Errors the session absorbed never get here; they travel in the view.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrSessionNotFound):
		writeError(w, http.StatusUnauthorized, "session expired")
	case errors.Is(err, app.ErrIntentNotAllowed):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrBusy):
		writeError(w, http.StatusConflict, "a request for this session is already in progress")
	default:
		util.LoggerFromContext(r.Context()).Error("session request failed", "path", r.URL.Path, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":     "internal error",
			"requestId": util.RequestIDFromContext(r.Context()),
		})
	}
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.trustedProxies),
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	key := r.URL.Path + "|" + util.ClientIP(r, s.trustedProxies)
	allowed, retryAfter := limiter.Allow(r.Context(), key)
	if allowed {
		return true
	}
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	slog.Debug("rate limited", "path", r.URL.Path, "retry_after", seconds)
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}
