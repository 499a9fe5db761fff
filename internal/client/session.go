package client

import (
	"context"
	"sync"

	"github.com/kumudkode/lms-apiserver/internal/logging"
	"github.com/kumudkode/lms-apiserver/types"
)

// State is the session lifecycle state.
type State int

const (
	// StateUninitialized is the state before Restore has run.
	StateUninitialized State = iota
	// StateLoading is the state while an auth operation is in flight.
	StateLoading
	// StateAuthenticated means a user is logged in.
	StateAuthenticated
	// StateAnonymous means no valid session exists.
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// Notifier surfaces user-visible notifications for session transitions.
// Implementations must not block; a notification never suppresses the error
// flowing back to the caller.
type Notifier interface {
	Success(message string)
	Error(message string)
	Info(message string)
}

// LogNotifier writes notifications to the application log. It is the
// default when the embedder does not supply its own Notifier.
type LogNotifier struct{}

func (LogNotifier) Success(message string) { logging.Info().Str("notice", message).Msg("session") }
func (LogNotifier) Error(message string)   { logging.Warn().Str("notice", message).Msg("session") }
func (LogNotifier) Info(message string)    { logging.Info().Str("notice", message).Msg("session") }

// SessionManager holds the current session: the persisted token, the
// in-memory user, and the lifecycle state. It is an explicit object owned
// by the embedding application, constructed at startup and discarded at
// shutdown; there is no package-level instance.
//
// Session-mutating operations (Restore, Login, Register, Logout) are
// serialized: a second call while one is in flight fails with ErrBusy.
// This protects the single token slot from lost updates.
type SessionManager struct {
	api      *Client
	tokens   TokenStore
	notifier Notifier

	// OnStateChange, when set before any operation runs, is invoked after
	// every state transition. The embedder uses it to drive navigation
	// (landing view on login, login view on logout).
	OnStateChange func(State)

	mu    sync.Mutex
	busy  bool
	state State
	user  *types.User
}

// NewSessionManager constructs a SessionManager. notifier may be nil, in
// which case notifications go to the application log.
func NewSessionManager(api *Client, tokens TokenStore, notifier Notifier) *SessionManager {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &SessionManager{
		api:      api,
		tokens:   tokens,
		notifier: notifier,
		state:    StateUninitialized,
	}
}

// State returns the current lifecycle state.
func (m *SessionManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// User returns a copy of the current user, or nil when anonymous.
func (m *SessionManager) User() *types.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// Token returns the persisted session token, or empty.
func (m *SessionManager) Token() string {
	token, err := m.tokens.Load()
	if err != nil {
		logging.Warn().Err(err).Msg("load session token")
		return ""
	}
	return token
}

// Restore hydrates the session from the persisted token: present and
// accepted by the server means authenticated; absent or rejected means
// anonymous, and a rejected token is discarded.
func (m *SessionManager) Restore(ctx context.Context) error {
	if err := m.begin(); err != nil {
		return err
	}

	token, err := m.tokens.Load()
	if err != nil || token == "" {
		if err != nil {
			logging.Warn().Err(err).Msg("load session token")
		}
		m.finish(StateAnonymous, nil)
		return nil
	}

	user, err := m.api.Me(ctx, token)
	if err != nil {
		// Any rejection means the token is expired or malformed. Drop it
		// so the next start goes straight to anonymous.
		if clearErr := m.tokens.Clear(); clearErr != nil {
			logging.Warn().Err(clearErr).Msg("clear rejected token")
		}
		m.finish(StateAnonymous, nil)
		return nil
	}

	m.finish(StateAuthenticated, &user)
	return nil
}

// Login authenticates, persists the returned token, and transitions to
// authenticated. On failure the session becomes anonymous, the failure is
// surfaced as a notification, and the error is returned so calling UI can
// react.
func (m *SessionManager) Login(ctx context.Context, email, password string) (types.User, error) {
	if err := m.begin(); err != nil {
		return types.User{}, err
	}

	result, err := m.api.Login(ctx, email, password)
	if err != nil {
		m.notifier.Error(messageOf(err))
		m.finish(StateAnonymous, nil)
		return types.User{}, err
	}

	m.adopt(result)
	m.notifier.Success("Logged in successfully")
	m.finish(StateAuthenticated, &result.User)
	return result.User, nil
}

// Register creates an account. The server issues a token on success, so
// registration transitions straight to authenticated.
func (m *SessionManager) Register(ctx context.Context, input RegisterInput) (types.User, error) {
	if err := m.begin(); err != nil {
		return types.User{}, err
	}

	result, err := m.api.Register(ctx, input)
	if err != nil {
		m.notifier.Error(messageOf(err))
		m.finish(StateAnonymous, nil)
		return types.User{}, err
	}

	m.adopt(result)
	m.notifier.Success("Account created")
	m.finish(StateAuthenticated, &result.User)
	return result.User, nil
}

// Logout discards the persisted token and clears the in-memory user. It
// performs no network call and cannot fail, but it respects the busy gate:
// invoking it while another session operation is in flight returns ErrBusy.
func (m *SessionManager) Logout() error {
	if err := m.begin(); err != nil {
		return err
	}

	if err := m.tokens.Clear(); err != nil {
		logging.Warn().Err(err).Msg("clear session token")
	}
	m.notifier.Info("Logged out")
	m.finish(StateAnonymous, nil)
	return nil
}

// begin acquires the busy gate and moves to loading.
func (m *SessionManager) begin() error {
	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return ErrBusy
	}
	m.busy = true
	m.state = StateLoading
	callback := m.OnStateChange
	m.mu.Unlock()

	if callback != nil {
		callback(StateLoading)
	}
	return nil
}

// finish releases the busy gate and applies the terminal state. It runs on
// every path out of a session operation.
func (m *SessionManager) finish(state State, user *types.User) {
	m.mu.Lock()
	m.busy = false
	m.state = state
	m.user = user
	callback := m.OnStateChange
	m.mu.Unlock()

	if callback != nil {
		callback(state)
	}
}

// adopt persists the token from a successful auth result. Persistence
// failure is logged but does not fail the login: the in-memory session is
// still valid for this run.
func (m *SessionManager) adopt(result AuthResult) {
	if err := m.tokens.Save(result.Token); err != nil {
		logging.Warn().Err(err).Msg("persist session token")
	}
}
