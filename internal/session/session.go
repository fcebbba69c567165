// Package session derives the client's identity for one scope from the
// persistent store and keeps it in step with the storefront API.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/baghaven/storefront/internal/bus"
	"github.com/baghaven/storefront/internal/logger"
	"github.com/baghaven/storefront/internal/model"
)

// BlockedMessage is shown when a blocked account is detected.
const BlockedMessage = "Your account has been blocked. Please contact support."

// State is what observers see. Resolved is false until the first Load.
type State struct {
	Resolved bool
	Session  model.Session
}

// Options tune the reconciler.
type Options struct {
	// VerifyTimeout bounds each background "who am I" request.
	VerifyTimeout time.Duration
	// RedirectDelay is how long the blocked notice stays before navigating to login.
	RedirectDelay time.Duration
	// RetainTokenOnCorruptUser keeps the token when the cached user cannot be decoded.
	RetainTokenOnCorruptUser bool
}

// DefaultOptions returns the options used by the storefront.
func DefaultOptions() Options {
	return Options{
		VerifyTimeout:            5 * time.Second,
		RedirectDelay:            2 * time.Second,
		RetainTokenOnCorruptUser: true,
	}
}

// Reconciler owns the session of one scope.
type Reconciler struct {
	scope     model.Scope
	store     model.Store
	api       model.AuthAPI
	decoder   model.TokenDecoder
	bus       *bus.Bus
	notifier  model.Notifier
	navigator model.Navigator
	logger    *logger.Logger
	opts      Options
	now       func() time.Time

	mu        sync.RWMutex
	state     State
	nextObs   uint64
	observers map[uint64]func(State)
	// fresh is the last user confirmed by the API for freshTok. freshGen
	// counts confirmations so a Load that raced one can pick it up.
	fresh    model.User
	freshTok string
	freshGen uint64

	verifies singleflight.Group
	wg       sync.WaitGroup
	base     context.Context
	cancel   context.CancelFunc
}

// NewReconciler creates a Reconciler for scope.
func NewReconciler(
	scope model.Scope,
	store model.Store,
	api model.AuthAPI,
	decoder model.TokenDecoder,
	signals *bus.Bus,
	notifier model.Notifier,
	navigator model.Navigator,
	opts Options,
	logger *logger.Logger,
) *Reconciler {
	base, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		scope:     scope,
		store:     store,
		api:       api,
		decoder:   decoder,
		bus:       signals,
		notifier:  notifier,
		navigator: navigator,
		logger:    logger.With("scope", scope.Name),
		opts:      opts,
		now:       time.Now,
		observers: make(map[uint64]func(State)),
		base:      base,
		cancel:    cancel,
	}
}

// Scope returns the scope this reconciler serves.
func (r *Reconciler) Scope() model.Scope {
	return r.scope
}

// State returns the current state.
func (r *Reconciler) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Subscribe registers fn to receive every new state. The returned func
// unsubscribes it.
func (r *Reconciler) Subscribe(fn func(State)) func() {
	r.mu.Lock()
	r.nextObs++
	id := r.nextObs
	r.observers[id] = fn
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.observers, id)
			r.mu.Unlock()
		})
	}
}

func (r *Reconciler) setState(s State) {
	r.update(func(st *State) bool {
		*st = s
		return true
	})
}

// update applies fn to the state under the lock and, when fn reports a
// change, hands the result to every observer.
func (r *Reconciler) update(fn func(st *State) bool) {
	r.mu.Lock()
	if !fn(&r.state) {
		r.mu.Unlock()
		return
	}
	s := r.state
	fns := make([]func(State), 0, len(r.observers))
	for _, obs := range r.observers {
		fns = append(fns, obs)
	}
	r.mu.Unlock()

	for _, obs := range fns {
		obs(s)
	}
}

// Mount loads the session now and again on every auth or storage signal.
func (r *Reconciler) Mount(ctx context.Context) func() {
	off := r.bus.OnAny(func(string) { r.Load(ctx) }, bus.AuthStateChanged, bus.StorageChanged)
	r.Load(ctx)
	return off
}

// Load re-derives the session from the store. An authenticated result is
// trusted immediately and verified against the API in the background.
func (r *Reconciler) Load(ctx context.Context) model.Session {
	r.mu.RLock()
	gen := r.freshGen
	r.mu.RUnlock()

	sess := r.derive(ctx)
	r.update(func(st *State) bool {
		// A verify that landed while the store was being read wins over
		// the user read before it.
		if sess.IsAuthenticated && r.freshGen != gen && r.freshTok == sess.Token {
			u := r.fresh
			sess.User = &u
		}
		*st = State{Resolved: true, Session: sess}
		return true
	})

	if sess.IsAuthenticated {
		r.verify(sess.Token)
	}
	return sess
}

func (r *Reconciler) derive(ctx context.Context) model.Session {
	tok, ok, err := r.store.Get(ctx, r.scope.TokenKey)
	if err != nil {
		r.logger.Error("Session: failed to read token", "error", err)
		return model.Session{}
	}
	if !ok || tok == "" {
		return model.Session{}
	}

	rawUser, ok, err := r.store.Get(ctx, r.scope.UserKey)
	if err != nil {
		r.logger.Error("Session: failed to read user", "error", err)
		return model.Session{}
	}
	if !ok {
		return model.Session{}
	}

	var user model.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		if r.opts.RetainTokenOnCorruptUser {
			r.logger.Warn("Session: cached user is unreadable, keeping token",
				"error", err.Error())
		} else {
			r.logger.Warn("Session: cached user is unreadable, clearing session",
				"error", err.Error())
			r.clear(ctx, r.scope.TokenKey, r.scope.UserKey)
		}
		return model.Session{}
	}

	claims, err := r.decoder.Decode(tok)
	if err != nil {
		r.logger.Info("Session: malformed token, clearing session", "error", err.Error())
		r.clear(ctx, r.scope.TokenKey, r.scope.UserKey)
		return model.Session{}
	}
	if claims.Expired(r.now()) {
		r.logger.Info("Session: token expired, clearing session", "expired_at", claims.ExpiresAt)
		r.clear(ctx, r.scope.TokenKey, r.scope.UserKey)
		return model.Session{}
	}

	role := claims.Role
	if role == "" {
		role = user.Role
	}
	if !r.scope.Satisfies(role) {
		r.logger.Info("Session: token role does not satisfy scope, clearing token",
			"role", role,
			"required", r.scope.RequiredRole)
		r.clear(ctx, r.scope.TokenKey)
		return model.Session{}
	}
	claims.Role = role

	if user.Blocked {
		r.blocked(ctx)
		return model.Session{}
	}

	return model.Session{
		Token:           tok,
		Claims:          claims,
		User:            &user,
		IsAuthenticated: true,
	}
}

func (r *Reconciler) clear(ctx context.Context, keys ...string) {
	if err := r.store.Delete(ctx, keys...); err != nil {
		r.logger.Error("Session: failed to clear keys", "keys", keys, "error", err)
	}
}

// blocked destroys the scope's token, tells the user and sends them to login.
func (r *Reconciler) blocked(ctx context.Context) {
	r.logger.Warn("Session: account is blocked, signing out")
	r.clear(ctx, r.scope.TokenKey)
	r.notifier.Notify(model.LevelError, BlockedMessage)
	r.bus.Emit(bus.AuthStateChanged)
	r.redirect(r.scope.LoginPath)
}

func (r *Reconciler) redirect(path string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		timer := time.NewTimer(r.opts.RedirectDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
			r.navigator.Navigate(path)
		case <-r.base.Done():
		}
	}()
}

// verify asks the API for a fresh copy of the user without blocking the
// caller. Concurrent verifies of the same token share one request.
func (r *Reconciler) verify(tok string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		_, _, _ = r.verifies.Do(tok, func() (any, error) {
			ctx, cancel := context.WithTimeout(r.base, r.opts.VerifyTimeout)
			defer cancel()

			user, err := r.api.Me(ctx)
			if err != nil {
				r.logger.Debug("Session: background verify failed, keeping cached user",
					"error", err.Error())
				return nil, err
			}
			r.applyVerified(ctx, tok, user)
			return nil, nil
		})
	}()
}

func (r *Reconciler) applyVerified(ctx context.Context, tok string, user model.User) {
	current, ok, err := r.store.Get(ctx, r.scope.TokenKey)
	if err != nil || !ok || current != tok {
		r.logger.Debug("Session: token changed during verify, discarding result")
		return
	}

	if err := r.saveUser(ctx, user); err != nil {
		r.logger.Error("Session: failed to store verified user", "error", err)
		return
	}

	if user.Blocked {
		r.blocked(ctx)
		r.setState(State{Resolved: true})
		return
	}

	r.update(func(st *State) bool {
		r.fresh, r.freshTok = user, tok
		r.freshGen++
		if !st.Session.IsAuthenticated || st.Session.Token != tok {
			return false
		}
		u := user
		st.Session.User = &u
		return true
	})
}

// saveUser caches user under the scope's user key. An identical cached copy
// is left alone so other tabs see no change.
func (r *Reconciler) saveUser(ctx context.Context, user model.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	current, ok, err := r.store.Get(ctx, r.scope.UserKey)
	if err != nil {
		return fmt.Errorf("failed to read cached user: %w", err)
	}
	if ok && current == string(raw) {
		return nil
	}
	if err := r.store.Set(ctx, r.scope.UserKey, string(raw)); err != nil {
		return fmt.Errorf("failed to store user: %w", err)
	}
	return nil
}

// Login signs in with email and password.
func (r *Reconciler) Login(ctx context.Context, email, password string) (model.Session, error) {
	res, err := r.api.Login(ctx, email, password)
	if err != nil {
		return model.Session{}, err
	}
	if !r.scope.Satisfies(res.User.Role) {
		return model.Session{}, fmt.Errorf("%w: %s role required", model.ErrForbidden, r.scope.RequiredRole)
	}
	return r.establish(ctx, res)
}

// Register creates an account and signs it in.
func (r *Reconciler) Register(ctx context.Context, params model.RegisterParams) (model.Session, error) {
	res, err := r.api.Register(ctx, params)
	if err != nil {
		return model.Session{}, err
	}
	return r.establish(ctx, res)
}

func (r *Reconciler) establish(ctx context.Context, res model.AuthResult) (model.Session, error) {
	if res.User.Blocked {
		return model.Session{}, model.ErrBlocked
	}
	if err := r.store.Set(ctx, r.scope.TokenKey, res.Token); err != nil {
		return model.Session{}, fmt.Errorf("failed to store token: %w", err)
	}
	if err := r.saveUser(ctx, res.User); err != nil {
		return model.Session{}, err
	}

	r.logger.Info("Session: signed in", "user_id", res.User.ID)
	r.bus.Emit(bus.AuthStateChanged)
	return r.Load(ctx), nil
}

// Logout clears every credential and announces it.
func (r *Reconciler) Logout(ctx context.Context) error {
	if err := r.store.Delete(ctx, model.KeyToken, model.KeyAdminToken, model.KeyUser); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	r.setState(State{Resolved: true})
	r.logger.Info("Session: signed out")
	r.bus.Emit(bus.AuthStateChanged)
	return nil
}

// UpdateProfile saves profile fields remotely and caches the returned user.
func (r *Reconciler) UpdateProfile(ctx context.Context, update model.ProfileUpdate) (model.User, error) {
	user, err := r.api.UpdateProfile(ctx, update)
	if err != nil {
		return model.User{}, err
	}
	if err := r.saveUser(ctx, user); err != nil {
		return model.User{}, err
	}
	r.Load(ctx)
	r.bus.Emit(bus.AuthStateChanged)
	return user, nil
}

// Wait blocks until background verifies and scheduled redirects finish.
func (r *Reconciler) Wait() {
	r.wg.Wait()
}

// Close cancels pending background work and waits for it.
func (r *Reconciler) Close() {
	r.cancel()
	r.wg.Wait()
}
