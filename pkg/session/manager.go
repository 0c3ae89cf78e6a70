// Package session owns the client session lifecycle: login, registration,
// logout, hydration from the persistent store, and the periodic refresh
// that keeps the token alive.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Ayorinde-Codes/databyte-go/pkg/api"
	"github.com/Ayorinde-Codes/databyte-go/pkg/model"
	"github.com/Ayorinde-Codes/databyte-go/pkg/store"
)

// State represents the session lifecycle state.
type State int

const (
	StateUninitialized State = iota // before Init has run
	StateLoading                    // hydrating from the persistent store
	StateAnonymous                  // no valid session held
	StateAuthenticated              // token, user, and company are all present
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// DefaultRefreshInterval keeps the token fresh well under typical expiry.
const DefaultRefreshInterval = 10 * time.Minute

var ErrNotAuthenticated = errors.New("session: not authenticated")

// authPayload is the data portion of login/register/refresh responses.
type authPayload struct {
	Token        string         `json:"token"`
	RefreshToken string         `json:"refresh_token"`
	User         *model.User    `json:"user"`
	Company      *model.Company `json:"company"`
}

// Manager is the single owner of the in-memory session and the only writer
// of session content to the persistent store. The request pipeline may
// still clear the store out-of-band on 401; the manager subscribes to that
// signal and drops its in-memory state to match.
type Manager struct {
	mu sync.RWMutex

	state   State
	session *model.Session

	client          *api.Client
	store           store.SessionStore
	refreshInterval time.Duration

	refreshCancel context.CancelFunc
	unsubscribe   func()

	// OnStateChange is invoked after every state transition. Set it before
	// calling Init. Called outside the manager's lock.
	OnStateChange func(State)
}

// NewManager creates a manager over the given pipeline and store. A
// non-positive refreshInterval falls back to DefaultRefreshInterval.
func NewManager(client *api.Client, st store.SessionStore, refreshInterval time.Duration) *Manager {
	if refreshInterval <= 0 {
		refreshInterval = DefaultRefreshInterval
	}
	return &Manager{
		state:           StateUninitialized,
		client:          client,
		store:           st,
		refreshInterval: refreshInterval,
	}
}

// Init hydrates the session from the persistent store and subscribes to
// the pipeline's unauthorized signal. Malformed or partial persisted state
// is treated as absent and scrubbed.
func (m *Manager) Init() {
	m.setState(StateLoading)

	m.mu.Lock()
	if m.unsubscribe == nil {
		m.unsubscribe = m.client.OnUnauthorized(m.handleUnauthorized)
	}
	m.mu.Unlock()

	sess := m.hydrate()
	if sess == nil {
		// Partial state on disk is never trusted; scrub so the invariant
		// holds for the next run too.
		if err := m.store.Clear(); err != nil {
			slog.Error("scrub partial session", "err", err)
		}
		m.setState(StateAnonymous)
		return
	}

	m.mu.Lock()
	m.session = sess
	m.state = StateAuthenticated
	m.startRefreshLocked()
	m.mu.Unlock()

	slog.Info("session restored", "user", sess.User.Email)
	m.notify(StateAuthenticated)
}

// hydrate reads the four keys and returns a complete session, or nil when
// anything is missing or malformed.
func (m *Manager) hydrate() *model.Session {
	token := m.store.Get(store.KeyAuthToken, "")
	userJSON := m.store.Get(store.KeyUser, "")
	companyJSON := m.store.Get(store.KeyCompany, "")
	if token == "" || userJSON == "" || companyJSON == "" {
		return nil
	}

	user := &model.User{}
	if err := json.Unmarshal([]byte(userJSON), user); err != nil || user.Validate() != nil {
		slog.Warn("persisted user record unreadable", "err", err)
		return nil
	}
	company := &model.Company{}
	if err := json.Unmarshal([]byte(companyJSON), company); err != nil || company.Validate() != nil {
		slog.Warn("persisted company record unreadable", "err", err)
		return nil
	}

	return &model.Session{
		Token:        token,
		RefreshToken: m.store.Get(store.KeyRefreshToken, ""),
		User:         user,
		Company:      company,
	}
}

// Login authenticates with the backend and establishes a session.
func (m *Manager) Login(ctx context.Context, creds model.Credentials) error {
	if err := creds.Validate(); err != nil {
		return fmt.Errorf("session: login: %w", err)
	}
	return m.authenticate(ctx, "/auth/login", creds)
}

// Register creates an account and establishes a session in one step.
func (m *Manager) Register(ctx context.Context, reg model.Registration) error {
	if err := reg.Validate(); err != nil {
		return fmt.Errorf("session: register: %w", err)
	}
	return m.authenticate(ctx, "/auth/register", reg)
}

func (m *Manager) authenticate(ctx context.Context, path string, body any) error {
	env, err := m.client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   body,
		NoAuth: true,
	})
	if err != nil {
		return err
	}

	var payload authPayload
	if err := env.Decode(&payload); err != nil {
		return fmt.Errorf("session: decode auth response: %w", err)
	}

	sess := &model.Session{
		Token:        payload.Token,
		RefreshToken: payload.RefreshToken,
		User:         payload.User,
		Company:      payload.Company,
	}
	if !sess.Complete() {
		// Never hold a partial session; clear everything instead.
		m.clearLocal()
		return errors.New("session: backend returned an incomplete session")
	}

	if err := m.persist(sess); err != nil {
		// A half-written session must not survive: the pipeline would
		// attach its token while the manager stays anonymous.
		m.clearLocal()
		return err
	}

	m.mu.Lock()
	m.session = sess
	m.state = StateAuthenticated
	m.stopRefreshLocked()
	m.startRefreshLocked()
	m.mu.Unlock()

	slog.Info("session established", "user", sess.User.Email, "company", sess.Company.Name)
	m.notify(StateAuthenticated)
	return nil
}

// Logout notifies the backend best-effort, then unconditionally clears the
// local session. A failed server-side logout is logged and swallowed; the
// local session is the user-visible source of truth.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.RLock()
	authenticated := m.state == StateAuthenticated
	m.mu.RUnlock()

	if authenticated {
		if _, err := m.client.Post(ctx, "/auth/logout", nil); err != nil {
			slog.Warn("server logout failed, clearing locally anyway", "err", err)
		}
	}
	m.clearLocal()
}

// Refresh exchanges the current credentials for fresh ones. The backend
// may rotate both tokens and return updated user/company records. A
// failed refresh is fatal to the session: a credential that cannot be
// refreshed cannot be trusted, so the manager logs out before returning
// the error. The one exception is the caller cancelling the call itself
// (teardown, shutdown); cancellation says nothing about the credential
// and leaves the session intact.
func (m *Manager) Refresh(ctx context.Context) error {
	err := m.refresh(ctx)
	switch {
	case err == nil, errors.Is(err, ErrNotAuthenticated):
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
	default:
		slog.Warn("session refresh failed, logging out", "err", err)
		m.Logout(context.Background())
	}
	return err
}

func (m *Manager) refresh(ctx context.Context) error {
	m.mu.RLock()
	if m.state != StateAuthenticated || m.session == nil {
		m.mu.RUnlock()
		return ErrNotAuthenticated
	}
	refreshToken := m.session.RefreshToken
	m.mu.RUnlock()

	env, err := m.client.Post(ctx, "/auth/refresh", map[string]string{
		"refresh_token": refreshToken,
	})
	if err != nil {
		return err
	}

	var payload authPayload
	if err := env.Decode(&payload); err != nil {
		return fmt.Errorf("session: decode refresh response: %w", err)
	}
	if payload.Token == "" {
		return errors.New("session: refresh returned no token")
	}

	m.mu.Lock()
	if m.state != StateAuthenticated || m.session == nil {
		// Invalidated while the refresh was in flight; drop the result.
		m.mu.Unlock()
		return ErrNotAuthenticated
	}
	m.session.Token = payload.Token
	if payload.RefreshToken != "" {
		m.session.RefreshToken = payload.RefreshToken
	}
	if payload.User != nil {
		m.session.User = payload.User
	}
	if payload.Company != nil {
		m.session.Company = payload.Company
	}
	sess := m.session.Clone()
	m.mu.Unlock()

	return m.persist(sess)
}

// startRefreshLocked starts the periodic refresh loop. Caller holds m.mu.
// The loop owns a scoped cancel handle released on every exit path from the
// authenticated state, so a stale timer can never fire against a cleared
// session.
func (m *Manager) startRefreshLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	m.refreshCancel = cancel

	go func() {
		ticker := time.NewTicker(m.refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.Refresh(ctx); err != nil {
					// A real failure already performed logout semantics
					// and a cancelled loop is done anyway; stop either way.
					return
				}
				slog.Debug("session refreshed")
			}
		}
	}()
}

// stopRefreshLocked cancels the refresh loop. Caller holds m.mu.
func (m *Manager) stopRefreshLocked() {
	if m.refreshCancel != nil {
		m.refreshCancel()
		m.refreshCancel = nil
	}
}

// handleUnauthorized reacts to the pipeline's 401 signal. The store is
// already cleared by the pipeline; drop the in-memory session to match.
func (m *Manager) handleUnauthorized() {
	m.mu.Lock()
	if m.state == StateAnonymous {
		m.mu.Unlock()
		return
	}
	m.session = nil
	m.state = StateAnonymous
	m.stopRefreshLocked()
	m.mu.Unlock()

	slog.Info("session invalidated by server")
	m.notify(StateAnonymous)
}

// clearLocal drops the in-memory session and scrubs the store.
func (m *Manager) clearLocal() {
	m.mu.Lock()
	alreadyAnonymous := m.state == StateAnonymous && m.session == nil
	m.session = nil
	m.state = StateAnonymous
	m.stopRefreshLocked()
	m.mu.Unlock()

	if err := m.store.Clear(); err != nil {
		slog.Error("clear session store", "err", err)
	}
	if !alreadyAnonymous {
		m.notify(StateAnonymous)
	}
}

// UpdateUser shallow-merges a partial user record into the session without
// touching the token. No-op when no session is held.
func (m *Manager) UpdateUser(patch model.UserPatch) error {
	m.mu.Lock()
	if m.state != StateAuthenticated || m.session == nil {
		m.mu.Unlock()
		return nil
	}
	patch.Apply(m.session.User)
	user := *m.session.User
	m.mu.Unlock()

	return m.persistRecord(store.KeyUser, user)
}

// UpdateCompany shallow-merges a partial company record into the session
// without touching the token. No-op when no session is held.
func (m *Manager) UpdateCompany(patch model.CompanyPatch) error {
	m.mu.Lock()
	if m.state != StateAuthenticated || m.session == nil {
		m.mu.Unlock()
		return nil
	}
	patch.Apply(m.session.Company)
	company := *m.session.Company
	m.mu.Unlock()

	return m.persistRecord(store.KeyCompany, company)
}

func (m *Manager) persist(sess *model.Session) error {
	if err := m.store.Set(store.KeyAuthToken, sess.Token); err != nil {
		return err
	}
	if sess.RefreshToken != "" {
		if err := m.store.Set(store.KeyRefreshToken, sess.RefreshToken); err != nil {
			return err
		}
	}
	if err := m.persistRecord(store.KeyUser, sess.User); err != nil {
		return err
	}
	return m.persistRecord(store.KeyCompany, sess.Company)
}

func (m *Manager) persistRecord(key string, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("session: marshal %s: %w", key, err)
	}
	return m.store.Set(key, string(data))
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Token returns the current bearer token, or empty when anonymous.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return ""
	}
	return m.session.Token
}

// CurrentUser returns a copy of the authenticated user, or nil.
func (m *Manager) CurrentUser() *model.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil
	}
	return m.session.Clone().User
}

// CurrentCompany returns a copy of the authenticated company, or nil.
func (m *Manager) CurrentCompany() *model.Company {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil
	}
	return m.session.Clone().Company
}

// Session returns a deep copy of the current session, or nil.
func (m *Manager) Session() *model.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.Clone()
}

// Teardown releases the refresh loop and the unauthorized subscription.
// The persisted session is left intact for the next run.
func (m *Manager) Teardown() {
	m.mu.Lock()
	m.stopRefreshLocked()
	unsub := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	m.notify(s)
}

func (m *Manager) notify(s State) {
	if m.OnStateChange != nil {
		m.OnStateChange(s)
	}
}
