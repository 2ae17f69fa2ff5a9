// Package session owns the single active authenticated context: login,
// idle-timeout detection with a grace-period renewal handshake, forced
// logout, and role-based page-access guarding.
package session

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"robodata.org/internal/clock"
	"robodata.org/internal/directory"
	"robodata.org/internal/kv"
	"robodata.org/internal/obs"
)

// Timing constants for the session lifecycle.
const (
	// IdleTimeout is how long a session may stay un-renewed before the
	// renewal handshake starts.
	IdleTimeout = time.Hour
	// CheckInterval is the idle-check cadence.
	CheckInterval = time.Minute
	// RenewalGrace is how long the user has to confirm renewal before
	// forced logout.
	RenewalGrace = time.Minute
)

var (
	ErrInvalidCredentials = errors.New("session: invalid credentials")
	ErrSessionActive      = errors.New("session: a session is already active")
	ErrNoSession          = errors.New("session: no active session")
	ErrUnauthorized       = errors.New("session: unauthorized")
	ErrRoleNotHeld        = errors.New("session: role not held by session")
	ErrRoleActive         = errors.New("session: cannot remove the active role")
	ErrRoleHeld           = errors.New("session: role already held")
	ErrTooManyAttempts    = errors.New("session: too many login attempts")
)

// State is the lifecycle state of the manager.
type State string

const (
	StateNoSession      State = "NoSession"
	StateActive         State = "Active"
	StateRenewalPending State = "RenewalPending"
)

// Session is the single active authenticated context.
type Session struct {
	Username    string           `json:"username"`
	DisplayName string           `json:"display_name"`
	Roles       []directory.Role `json:"roles"`
	ActiveRole  directory.Role   `json:"active_role"`
	LoginAt     time.Time        `json:"login_at"`
	SessionID   string           `json:"session_id"`
	CurrentPage Page             `json:"current_page"`
	Token       string           `json:"token"`
}

func (s Session) clone() Session {
	s.Roles = append([]directory.Role(nil), s.Roles...)
	return s
}

// Config wires a Manager. Zero-value fields get defaults where noted.
type Config struct {
	Clock     clock.Clock // defaults to clock.System
	Store     kv.Store
	Directory directory.Directory
	// TokenSecret signs session tokens. A random secret is generated
	// when absent, which is fine as long as nothing validates tokens
	// across restarts.
	TokenSecret []byte
	// OnRenewalPending fires when the idle check opens the renewal
	// handshake; OnForcedLogout fires when the grace period lapses.
	// Both are called without the manager lock held.
	OnRenewalPending func()
	OnForcedLogout   func()
}

// Manager owns the session state machine. All transitions, including the
// timer-driven ones, run under one mutex so a timeout and a renewal racing
// each other resolve to exactly one outcome.
type Manager struct {
	clk     clock.Clock
	store   kv.Store
	dir     directory.Directory
	secret  []byte
	limiter *rate.Limiter

	onRenewalPending func()
	onForcedLogout   func()

	mu         sync.Mutex
	state      State
	sess       *Session
	idleTimer  clock.Timer
	graceTimer clock.Timer
}

// NewManager builds a manager in NoSession state. Call Restore to reinstate
// a persisted session.
func NewManager(cfg Config) *Manager {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.System{}
	}
	secret := cfg.TokenSecret
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			panic("session: cannot generate token secret: " + err.Error())
		}
	}
	return &Manager{
		clk:              clk,
		store:            cfg.Store,
		dir:              cfg.Directory,
		secret:           secret,
		limiter:          rate.NewLimiter(rate.Every(time.Second), 10),
		onRenewalPending: cfg.OnRenewalPending,
		onForcedLogout:   cfg.OnForcedLogout,
		state:            StateNoSession,
	}
}

// Login authenticates against the directory and activates a session. It
// never reveals whether the username or the password was wrong.
func (m *Manager) Login(ctx context.Context, username, password string) (Session, error) {
	if !m.limiter.Allow() {
		return Session{}, ErrTooManyAttempts
	}

	acct, err := m.dir.FindByCredentials(ctx, username, password)
	if err != nil {
		obs.CountLogin("denied")
		return Session{}, ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess != nil {
		return Session{}, ErrSessionActive
	}

	now := m.clk.Now()
	sess := &Session{
		Username:    acct.Username,
		DisplayName: acct.DisplayName,
		Roles:       append([]directory.Role(nil), acct.Roles...),
		ActiveRole:  acct.Roles[0],
		LoginAt:     now,
		SessionID:   "session_" + uuid.NewString(),
		CurrentPage: DefaultPage(acct.Roles[0]),
	}
	token, err := mintToken(m.secret, sess.Username, roleStrings(sess.Roles), sess.SessionID, now, IdleTimeout)
	if err != nil {
		return Session{}, err
	}
	sess.Token = token

	m.sess = sess
	m.state = StateActive
	if err := m.persistLocked(ctx); err != nil {
		m.teardownLocked(ctx)
		return Session{}, err
	}
	m.armIdleCheckLocked()

	obs.CountLogin("ok")
	obs.LogEvent("session_login", map[string]any{
		"username":   sess.Username,
		"session_id": sess.SessionID,
		"page":       string(sess.CurrentPage),
	})
	return sess.clone(), nil
}

// Logout ends the session explicitly and clears persisted state.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return ErrNoSession
	}
	obs.LogEvent("session_logout", map[string]any{
		"username":   m.sess.Username,
		"session_id": m.sess.SessionID,
	})
	m.teardownLocked(ctx)
	return nil
}

// ContinueSession confirms renewal during the grace period: the login
// timestamp resets to now and the countdown is cancelled. A fresh token is
// minted so its expiry tracks the renewed window.
func (m *Manager) ContinueSession(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return ErrNoSession
	}

	now := m.clk.Now()
	m.sess.LoginAt = now
	token, err := mintToken(m.secret, m.sess.Username, roleStrings(m.sess.Roles), m.sess.SessionID, now, IdleTimeout)
	if err != nil {
		return err
	}
	m.sess.Token = token

	if m.graceTimer != nil {
		m.graceTimer.Stop()
		m.graceTimer = nil
	}
	m.state = StateActive
	return m.persistLocked(ctx)
}

// NavigateTo moves the session to page if any held role reaches it;
// otherwise it reports ErrUnauthorized and changes nothing.
func (m *Manager) NavigateTo(ctx context.Context, page Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return ErrNoSession
	}
	if !PageAllowed(m.sess.Roles, page) {
		return ErrUnauthorized
	}
	m.sess.CurrentPage = page
	return m.persistLocked(ctx)
}

// SwitchRole activates a role the session already holds and moves to that
// role's default workspace.
func (m *Manager) SwitchRole(ctx context.Context, role directory.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return ErrNoSession
	}
	if !hasRole(m.sess.Roles, role) {
		return ErrRoleNotHeld
	}
	m.sess.ActiveRole = role
	m.sess.CurrentPage = DefaultPage(role)
	return m.persistLocked(ctx)
}

// AddRole grants the session an additional role.
func (m *Manager) AddRole(ctx context.Context, role directory.Role) error {
	if !directory.ValidRole(role) {
		return ErrRoleNotHeld
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return ErrNoSession
	}
	if hasRole(m.sess.Roles, role) {
		return ErrRoleHeld
	}
	m.sess.Roles = append(m.sess.Roles, role)
	return m.persistLocked(ctx)
}

// RemoveRole revokes a held role. Removing the active role is rejected, so
// the active role can never fall outside the role set. If the current page
// becomes unreachable the session is redirected to the first remaining
// role's default workspace.
func (m *Manager) RemoveRole(ctx context.Context, role directory.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return ErrNoSession
	}
	if !hasRole(m.sess.Roles, role) {
		return ErrRoleNotHeld
	}
	if role == m.sess.ActiveRole {
		return ErrRoleActive
	}
	kept := m.sess.Roles[:0:0]
	for _, r := range m.sess.Roles {
		if r != role {
			kept = append(kept, r)
		}
	}
	m.sess.Roles = kept
	if !PageAllowed(m.sess.Roles, m.sess.CurrentPage) {
		m.sess.CurrentPage = DefaultPage(m.sess.Roles[0])
	}
	return m.persistLocked(ctx)
}

// Restore reinstates a persisted session if one exists and has not idled
// out. A stored page no longer reachable by the stored roles is silently
// replaced with the first role's default workspace. Corrupt or expired
// snapshots are discarded and the manager stays in NoSession.
func (m *Manager) Restore(ctx context.Context) (Session, bool) {
	raw, err := m.store.Get(ctx, kv.KeySession)
	if err != nil {
		return Session{}, false
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil || len(sess.Roles) == 0 {
		obs.LogEvent("session_snapshot_corrupt", nil)
		_ = m.store.Delete(ctx, kv.KeySession)
		return Session{}, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess != nil {
		return Session{}, false
	}
	if m.clk.Now().Sub(sess.LoginAt) >= IdleTimeout {
		_ = m.store.Delete(ctx, kv.KeySession)
		return Session{}, false
	}
	if !hasRole(sess.Roles, sess.ActiveRole) {
		sess.ActiveRole = sess.Roles[0]
	}
	if !PageAllowed(sess.Roles, sess.CurrentPage) {
		sess.CurrentPage = DefaultPage(sess.Roles[0])
	}

	m.sess = &sess
	m.state = StateActive
	if err := m.persistLocked(ctx); err != nil {
		m.teardownLocked(ctx)
		return Session{}, false
	}
	m.armIdleCheckLocked()

	obs.LogEvent("session_restored", map[string]any{
		"username":   sess.Username,
		"session_id": sess.SessionID,
	})
	return sess.clone(), true
}

// Current returns a copy of the active session.
func (m *Manager) Current() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return Session{}, false
	}
	return m.sess.clone(), true
}

// State reports the lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ParseSessionToken validates a token minted by this manager.
func (m *Manager) ParseSessionToken(token string) (*Claims, error) {
	return ParseToken(m.secret, token)
}

// Close cancels pending timers without ending the persisted session. The
// snapshot survives for the next Restore.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimersLocked()
}

// idleCheck runs on the fixed cadence for the whole session lifetime. While
// the renewal handshake is open it neither resets the countdown nor fires a
// second one.
func (m *Manager) idleCheck() {
	m.mu.Lock()
	if m.sess == nil {
		m.mu.Unlock()
		return
	}

	var opened bool
	if m.state == StateActive && m.clk.Now().Sub(m.sess.LoginAt) >= IdleTimeout {
		m.state = StateRenewalPending
		m.graceTimer = m.clk.AfterFunc(RenewalGrace, m.graceExpired)
		opened = true
	}
	m.armIdleCheckLocked()
	hook := m.onRenewalPending
	m.mu.Unlock()

	if opened && hook != nil {
		hook()
	}
}

// graceExpired ends the session when the countdown reaches zero. A renewal
// or manual logout that got there first already moved the state on, so the
// forced logout happens at most once.
func (m *Manager) graceExpired() {
	m.mu.Lock()
	if m.state != StateRenewalPending || m.sess == nil {
		m.mu.Unlock()
		return
	}
	obs.CountSessionExpired()
	obs.LogEvent("session_expired", map[string]any{
		"username":   m.sess.Username,
		"session_id": m.sess.SessionID,
	})
	m.teardownLocked(context.Background())
	hook := m.onForcedLogout
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
}

func (m *Manager) armIdleCheckLocked() {
	if m.idleTimer != nil {
		m.idleTimer.Stop()
	}
	m.idleTimer = m.clk.AfterFunc(CheckInterval, m.idleCheck)
}

func (m *Manager) stopTimersLocked() {
	if m.idleTimer != nil {
		m.idleTimer.Stop()
		m.idleTimer = nil
	}
	if m.graceTimer != nil {
		m.graceTimer.Stop()
		m.graceTimer = nil
	}
}

func (m *Manager) teardownLocked(ctx context.Context) {
	m.stopTimersLocked()
	m.sess = nil
	m.state = StateNoSession
	_ = m.store.Delete(ctx, kv.KeySession)
}

func (m *Manager) persistLocked(ctx context.Context) error {
	raw, err := json.Marshal(m.sess)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, kv.KeySession, raw)
}

func hasRole(roles []directory.Role, role directory.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func roleStrings(roles []directory.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}
