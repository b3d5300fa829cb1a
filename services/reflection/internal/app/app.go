package app

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"soulreflect/internal/util"
	"soulreflect/pkg/auth"
	"soulreflect/pkg/domain"
	"soulreflect/pkg/generator"
	"soulreflect/pkg/store"
)

// SessionStore persists session snapshots between requests.
type SessionStore interface {
	Load(ctx context.Context, id string) (Session, bool, error)
	Save(ctx context.Context, s Session) error
	Delete(ctx context.Context, id string) error
}

// Config wires the collaborators of the session core.
type Config struct {
	Profiles    store.ProfileStore
	Generator   generator.Generator
	Social      auth.SocialSignIn
	Sessions    SessionStore
	CallTimeout time.Duration
	Now         func() time.Time
	NewID       func() string
}

const lockStripes = 64

// App drives sessions through the reflection flow.
type App struct {
	profiles store.ProfileStore
	gen      generator.Generator
	social   auth.SocialSignIn
	sessions SessionStore
	timeout  time.Duration
	now      func() time.Time
	newID    func() string

	// stripes serialize load-modify-save per session id.
	stripes [lockStripes]sync.Mutex

	mu       sync.Mutex
	inflight map[string]*semaphore.Weighted
}

// New constructs the application core.
func New(cfg Config) (*App, error) {
	if cfg.Profiles == nil {
		return nil, errors.New("profile store required")
	}
	if cfg.Generator == nil {
		return nil, errors.New("content generator required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session store required")
	}
	if cfg.Social == nil {
		cfg.Social = auth.NewSimulatedGoogle("", "")
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 60 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = util.NewID
	}
	return &App{
		profiles: cfg.Profiles,
		gen:      cfg.Generator,
		social:   cfg.Social,
		sessions: cfg.Sessions,
		timeout:  cfg.CallTimeout,
		now:      cfg.Now,
		newID:    cfg.NewID,
		inflight: make(map[string]*semaphore.Weighted),
	}, nil
}

// Create starts a new session on the language selector.
func (a *App) Create(ctx context.Context) (Session, error) {
	s := NewSession(a.newID(), a.now())
	if err := a.sessions.Save(ctx, s); err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}
	return s, nil
}

// Get returns the current snapshot.
func (a *App) Get(ctx context.Context, id string) (Session, error) {
	return a.load(ctx, id)
}

// Delete forgets a session entirely.
func (a *App) Delete(ctx context.Context, id string) error {
	a.mu.Lock()
	delete(a.inflight, id)
	a.mu.Unlock()
	return a.sessions.Delete(ctx, id)
}

// Dashboard summarizes the signed-in profile, or nil when signed out.
func (a *App) Dashboard(s Session) *domain.DashboardSummary {
	if s.User == nil {
		return nil
	}
	summary := domain.Summarize(*s.User, a.now())
	return &summary
}

func (a *App) load(ctx context.Context, id string) (Session, error) {
	s, ok, err := a.sessions.Load(ctx, id)
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

func (a *App) save(ctx context.Context, s Session) (Session, error) {
	s.UpdatedAt = a.now().UTC()
	if err := a.sessions.Save(ctx, s); err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}
	return s, nil
}

func (a *App) lockFor(id string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &a.stripes[h.Sum32()%lockStripes]
}

// tryBegin takes the in-flight guard of a session without waiting.
func (a *App) tryBegin(id string) (func(), bool) {
	a.mu.Lock()
	sem, ok := a.inflight[id]
	if !ok {
		sem = semaphore.NewWeighted(1)
		a.inflight[id] = sem
	}
	a.mu.Unlock()
	if !sem.TryAcquire(1) {
		return nil, false
	}
	return func() { sem.Release(1) }, true
}

// errNoop marks an intent whose precondition makes it do nothing.
var errNoop = errors.New("no-op")

type reducer func(Session) (Session, error)

// navigate applies a reducer without taking the in-flight guard, so back and
// reset work while a collaborator call is running. A reducer returning
// errNoop leaves the stored snapshot untouched.
func (a *App) navigate(ctx context.Context, id string, fn reducer) (Session, error) {
	mu := a.lockFor(id)
	mu.Lock()
	defer mu.Unlock()
	s, err := a.load(ctx, id)
	if err != nil {
		return Session{}, err
	}
	next, err := fn(s)
	if errors.Is(err, errNoop) {
		return s, nil
	}
	if err != nil {
		return s, err
	}
	return a.save(ctx, next)
}

// apply runs a local reducer under the in-flight guard.
func (a *App) apply(ctx context.Context, id string, fn reducer) (Session, error) {
	release, ok := a.tryBegin(id)
	if !ok {
		return Session{}, ErrBusy
	}
	defer release()
	return a.applyHeld(ctx, id, fn)
}

func (a *App) applyHeld(ctx context.Context, id string, fn reducer) (Session, error) {
	mu := a.lockFor(id)
	mu.Lock()
	defer mu.Unlock()
	s, err := a.load(ctx, id)
	if err != nil {
		return Session{}, err
	}
	// The guard is held, so a persisted loading flag is left over from a
	// process that died mid-call.
	s.Loading = false
	next, err := fn(s)
	if err != nil {
		return a.absorb(ctx, s, err)
	}
	next.Error = ""
	next.Loading = false
	return a.save(ctx, next)
}

// absorb turns a session error into Session.Error; other errors are returned.
func (a *App) absorb(ctx context.Context, s Session, err error) (Session, error) {
	if errors.Is(err, errNoop) {
		return s, nil
	}
	var appErr *Error
	if !errors.As(err, &appErr) {
		return s, err
	}
	util.LoggerFromContext(ctx).Info("session input rejected", "session_id", s.ID, "kind", appErr.Kind, "message", appErr.Message)
	return a.save(ctx, s.withError(appErr))
}

// call performs the collaborator work for an async intent. It returns the
// commit to apply to whatever snapshot is current when it finishes.
type call func(ctx context.Context, s Session) (commit, *Error)

// commit folds a call result into the current snapshot. It runs under the
// session lock and only when the epoch is unchanged.
type commit func(ctx context.Context, cur Session) (Session, *Error)

// replace is a commit that only rewrites the snapshot.
func replace(fn func(Session) Session) commit {
	return func(_ context.Context, cur Session) (Session, *Error) {
		return fn(cur), nil
	}
}

// collaborate runs an async intent: check the snapshot, persist a loading
// snapshot, call out with a timeout, then commit unless the session moved on.
func (a *App) collaborate(ctx context.Context, id, op string, check func(Session) error, do call) (Session, error) {
	release, ok := a.tryBegin(id)
	if !ok {
		return Session{}, ErrBusy
	}
	defer release()
	return a.collaborateHeld(ctx, id, op, check, do)
}

func (a *App) collaborateHeld(ctx context.Context, id, op string, check func(Session) error, do call) (Session, error) {
	logger := util.LoggerFromContext(ctx).With("session_id", id, "op", op)
	mu := a.lockFor(id)

	mu.Lock()
	s, err := a.load(ctx, id)
	if err != nil {
		mu.Unlock()
		return Session{}, err
	}
	if err := check(s); err != nil {
		s, err = a.absorb(ctx, s, err)
		mu.Unlock()
		return s, err
	}
	loading := s.Clone()
	loading.Loading = true
	loading.Error = ""
	loading, err = a.save(ctx, loading)
	mu.Unlock()
	if err != nil {
		return s, err
	}
	epoch := loading.Epoch

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	fold, callErr := do(callCtx, loading)
	cancel()

	// The loading flag must be cleared even if the client went away.
	ctx = context.WithoutCancel(ctx)
	mu.Lock()
	defer mu.Unlock()
	cur, err := a.load(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if cur.Epoch != epoch {
		logger.Info("discarding stale result", "started_epoch", epoch, "current_epoch", cur.Epoch)
		return cur, nil
	}
	if callErr != nil {
		logger.Warn("collaborator call failed", "kind", callErr.Kind, "err", callErr.Err)
		return a.save(ctx, cur.withError(callErr))
	}
	next, commitErr := fold(ctx, cur.Clone())
	if commitErr != nil {
		logger.Warn("commit failed", "kind", commitErr.Kind, "err", commitErr.Err)
		return a.save(ctx, cur.withError(commitErr))
	}
	next.Loading = false
	next.Error = ""
	return a.save(ctx, next)
}

func requirePhase(s Session, phases ...Phase) error {
	if !s.Phase.in(phases...) {
		return ErrIntentNotAllowed
	}
	return nil
}
