// Package dashboard caches the domain listings of the admin dashboard and
// applies the results of backend calls to them.
package dashboard

import (
	"context"
	"errors"
	"sync"

	"github.com/tyemirov/helpdesk/internal/apiclient"
	"github.com/tyemirov/helpdesk/internal/resources"
	"github.com/tyemirov/helpdesk/internal/session"
	"go.uber.org/zap"
)

const loginFailedMessage = "Login failed"

var (
	// ErrMissingAPI indicates that Config.API was nil.
	ErrMissingAPI = errors.New("dashboard.missing_api")
	// ErrMissingCredentials indicates that Config.Credentials was nil.
	ErrMissingCredentials = errors.New("dashboard.missing_credentials")
	// ErrMissingAuthenticator indicates a login or logout without an authenticator.
	ErrMissingAuthenticator = errors.New("dashboard.missing_authenticator")
)

// Authenticator starts and ends backend sessions.
type Authenticator interface {
	Login(ctx context.Context, email string, password string) (session.User, error)
	Logout()
}

// Listener receives a copy of the state after every change.
type Listener func(State)

// Config wires a Store.
type Config struct {
	API           *resources.API
	Credentials   *session.Store
	Authenticator Authenticator
	Logger        *zap.Logger
}

// Store holds the dashboard state.
type Store struct {
	mutex        sync.RWMutex
	state        State
	api          *resources.API
	credentials  *session.Store
	auth         Authenticator
	logger       *zap.Logger
	listeners    map[uint64]Listener
	nextListener uint64
	stopMirror   func()
}

// NewStore constructs a Store and starts mirroring the credential store into
// the auth slice.
func NewStore(configuration Config) (*Store, error) {
	if configuration.API == nil {
		return nil, ErrMissingAPI
	}
	if configuration.Credentials == nil {
		return nil, ErrMissingCredentials
	}
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	store := &Store{
		state:       InitialState(),
		api:         configuration.API,
		credentials: configuration.Credentials,
		auth:        configuration.Authenticator,
		logger:      logger,
		listeners:   make(map[uint64]Listener),
	}
	store.mirrorCredentials(configuration.Credentials.Snapshot())
	store.stopMirror = configuration.Credentials.Subscribe(store.mirrorCredentials)
	return store, nil
}

// Close stops mirroring the credential store.
func (store *Store) Close() {
	if store.stopMirror != nil {
		store.stopMirror()
	}
}

// State returns a copy of the current state.
func (store *Store) State() State {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	return store.state.Clone()
}

// Subscribe registers listener for state changes and returns its cancel func.
func (store *Store) Subscribe(listener Listener) func() {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	identifier := store.nextListener
	store.nextListener++
	store.listeners[identifier] = listener
	return func() {
		store.mutex.Lock()
		defer store.mutex.Unlock()
		delete(store.listeners, identifier)
	}
}

// Restore replaces the state with a previously persisted one. An
// authenticated auth slice is restored into the credential store too.
func (store *Store) Restore(restored State) {
	snapshot := restored.Clone()
	snapshot.settle()
	store.update(func(state *State) {
		revision := state.Revision
		*state = snapshot
		if state.Revision < revision {
			state.Revision = revision
		}
	})
	if snapshot.Auth.IsAuthenticated && snapshot.Auth.AccessToken != "" {
		store.credentials.Restore(session.Snapshot{
			AccessToken:     snapshot.Auth.AccessToken,
			User:            snapshot.Auth.User,
			IsAuthenticated: true,
		})
	}
}

// update applies mutate under the lock and notifies listeners after unlocking.
func (store *Store) update(mutate func(*State)) {
	store.mutex.Lock()
	mutate(&store.state)
	store.state.Revision++
	snapshot := store.state.Clone()
	listeners := make([]Listener, 0, len(store.listeners))
	for _, listener := range store.listeners {
		listeners = append(listeners, listener)
	}
	store.mutex.Unlock()

	for _, listener := range listeners {
		listener(snapshot)
	}
}

func (store *Store) mirrorCredentials(snapshot session.Snapshot) {
	store.update(func(state *State) {
		state.Auth.User = snapshot.User
		state.Auth.AccessToken = snapshot.AccessToken
		state.Auth.IsAuthenticated = snapshot.IsAuthenticated
		if !snapshot.IsAuthenticated {
			state.Auth.Error = ""
		}
	})
}

// Login authenticates and records the outcome in the auth slice.
func (store *Store) Login(ctx context.Context, email string, password string) (session.User, error) {
	if store.auth == nil {
		return session.User{}, ErrMissingAuthenticator
	}
	store.update(func(state *State) {
		state.Auth.IsLoading = true
		state.Auth.Error = ""
	})
	user, err := store.auth.Login(ctx, email, password)
	store.update(func(state *State) {
		state.Auth.IsLoading = false
		if err != nil {
			state.Auth.Error = apiclient.ErrorMessage(err)
			if state.Auth.Error == "" {
				state.Auth.Error = loginFailedMessage
			}
		}
	})
	if err != nil {
		store.logger.Info("login failed",
			zap.String("code", "dashboard.login.failed"),
			zap.Error(err))
		return session.User{}, err
	}
	return user, nil
}

// Logout ends the session locally.
func (store *Store) Logout() error {
	if store.auth == nil {
		return ErrMissingAuthenticator
	}
	store.auth.Logout()
	return nil
}

func (store *Store) recordFailure(action string, err error) {
	store.logger.Warn("dashboard action failed",
		zap.String("code", "dashboard."+action+".failed"),
		zap.String("message", apiclient.ErrorMessage(err)),
		zap.Error(err))
}

func fetchPage[T keyed](store *Store, ctx context.Context, action string, selectSlice func(*State) *Slice[T], fetch func(context.Context) (resources.Page[T], error)) (resources.Page[T], error) {
	store.update(func(state *State) { selectSlice(state).begin() })
	page, err := fetch(ctx)
	store.update(func(state *State) {
		slice := selectSlice(state)
		if err != nil {
			slice.fail(apiclient.ErrorMessage(err))
			return
		}
		slice.replaceAll(page.Result)
		meta := page.Meta
		slice.Meta = &meta
	})
	if err != nil {
		store.recordFailure(action, err)
	}
	return page, err
}

func fetchList[T any](store *Store, ctx context.Context, action string, selectSlice func(*State) *Slice[T], fetch func(context.Context) ([]T, error)) ([]T, error) {
	store.update(func(state *State) { selectSlice(state).begin() })
	items, err := fetch(ctx)
	store.update(func(state *State) {
		slice := selectSlice(state)
		if err != nil {
			slice.fail(apiclient.ErrorMessage(err))
			return
		}
		slice.replaceAll(items)
	})
	if err != nil {
		store.recordFailure(action, err)
	}
	return items, err
}

func applyResult[T keyed](store *Store, action string, selectSlice func(*State) *Slice[T], item T, err error, apply func(*Slice[T], T)) (T, error) {
	if err != nil {
		store.update(func(state *State) { selectSlice(state).fail(apiclient.ErrorMessage(err)) })
		store.recordFailure(action, err)
		return item, err
	}
	store.update(func(state *State) { apply(selectSlice(state), item) })
	return item, nil
}

func applyRemoval[T keyed](store *Store, action string, selectSlice func(*State) *Slice[T], id int64, err error) error {
	if err != nil {
		store.update(func(state *State) { selectSlice(state).fail(apiclient.ErrorMessage(err)) })
		store.recordFailure(action, err)
		return err
	}
	store.update(func(state *State) { removeItem(selectSlice(state), id) })
	return nil
}
