package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrSessionEnded indicates the session a caller started under was logged out or replaced.
	ErrSessionEnded = errors.New("session.ended")
	// ErrEmptyAccessToken indicates an attempt to store a blank access token.
	ErrEmptyAccessToken = errors.New("session.empty_access_token")
	// ErrNoAccessToken indicates the store holds no access token.
	ErrNoAccessToken = errors.New("session.no_access_token")
)

// Snapshot is an immutable copy of the credential state.
type Snapshot struct {
	AccessToken     string `json:"accessToken"`
	User            *User  `json:"user"`
	IsAuthenticated bool   `json:"isAuthenticated"`
	Epoch           uint64 `json:"-"`
}

// Listener observes credential changes.
type Listener func(Snapshot)

// Store owns the access token and the authenticated user record.
//
// Every login, logout, and restore advances the epoch. Writers that suspended
// across a network call pass the epoch they observed so that a logout in the
// meantime is never undone.
type Store struct {
	mutex         sync.RWMutex
	accessToken   string
	user          *User
	authenticated bool
	epoch         uint64

	listenerMutex  sync.Mutex
	listeners      map[uint64]Listener
	nextListenerID uint64
}

// NewStore constructs an empty credential store.
func NewStore() *Store {
	return &Store{listeners: make(map[uint64]Listener)}
}

// Snapshot returns a copy of the current state.
func (store *Store) Snapshot() Snapshot {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	return store.snapshotLocked()
}

// AccessToken returns the current access token, or an empty string.
func (store *Store) AccessToken() string {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	return store.accessToken
}

// User returns a copy of the authenticated user, or nil.
func (store *Store) User() *User {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	return cloneUser(store.user)
}

// Epoch returns the current session epoch.
func (store *Store) Epoch() uint64 {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	return store.epoch
}

// Login starts a new session and returns its epoch.
func (store *Store) Login(accessToken string, user User) (uint64, error) {
	if strings.TrimSpace(accessToken) == "" {
		return 0, fmt.Errorf("session.login: %w", ErrEmptyAccessToken)
	}
	store.mutex.Lock()
	store.epoch++
	store.accessToken = accessToken
	store.user = cloneUser(&user)
	store.authenticated = true
	snapshot := store.snapshotLocked()
	store.mutex.Unlock()

	store.notify(snapshot)
	return snapshot.Epoch, nil
}

// ReplaceAccessToken swaps the access token while leaving the user record as-is.
// It fails with ErrSessionEnded when the store moved past the supplied epoch.
func (store *Store) ReplaceAccessToken(epoch uint64, accessToken string) error {
	if strings.TrimSpace(accessToken) == "" {
		return fmt.Errorf("session.replace_access_token: %w", ErrEmptyAccessToken)
	}
	store.mutex.Lock()
	if store.epoch != epoch {
		store.mutex.Unlock()
		return fmt.Errorf("session.replace_access_token: %w", ErrSessionEnded)
	}
	store.accessToken = accessToken
	store.authenticated = true
	snapshot := store.snapshotLocked()
	store.mutex.Unlock()

	store.notify(snapshot)
	return nil
}

// Logout clears the session unconditionally.
func (store *Store) Logout() {
	store.mutex.Lock()
	store.clearLocked()
	snapshot := store.snapshotLocked()
	store.mutex.Unlock()

	store.notify(snapshot)
}

// EndSession clears the session only if it is still at the supplied epoch.
// It reports whether the store was cleared.
func (store *Store) EndSession(epoch uint64) bool {
	store.mutex.Lock()
	if store.epoch != epoch {
		store.mutex.Unlock()
		return false
	}
	store.clearLocked()
	snapshot := store.snapshotLocked()
	store.mutex.Unlock()

	store.notify(snapshot)
	return true
}

// Restore loads previously persisted credentials into a new epoch.
func (store *Store) Restore(snapshot Snapshot) {
	store.mutex.Lock()
	store.epoch++
	store.accessToken = snapshot.AccessToken
	store.user = cloneUser(snapshot.User)
	store.authenticated = snapshot.IsAuthenticated && snapshot.AccessToken != ""
	restored := store.snapshotLocked()
	store.mutex.Unlock()

	store.notify(restored)
}

// AccessTokenExpiry reads the exp claim of the stored token without verifying it.
func (store *Store) AccessTokenExpiry() (time.Time, error) {
	token := store.AccessToken()
	if token == "" {
		return time.Time{}, fmt.Errorf("session.access_token_expiry: %w", ErrNoAccessToken)
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("session.access_token_expiry: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}

// Subscribe registers a listener invoked after every change. The returned
// function removes it.
func (store *Store) Subscribe(listener Listener) func() {
	store.listenerMutex.Lock()
	defer store.listenerMutex.Unlock()
	store.nextListenerID++
	listenerID := store.nextListenerID
	store.listeners[listenerID] = listener
	return func() {
		store.listenerMutex.Lock()
		defer store.listenerMutex.Unlock()
		delete(store.listeners, listenerID)
	}
}

func (store *Store) notify(snapshot Snapshot) {
	store.listenerMutex.Lock()
	listeners := make([]Listener, 0, len(store.listeners))
	for _, listener := range store.listeners {
		listeners = append(listeners, listener)
	}
	store.listenerMutex.Unlock()
	for _, listener := range listeners {
		listener(snapshot)
	}
}

func (store *Store) clearLocked() {
	store.epoch++
	store.accessToken = ""
	store.user = nil
	store.authenticated = false
}

func (store *Store) snapshotLocked() Snapshot {
	return Snapshot{
		AccessToken:     store.accessToken,
		User:            cloneUser(store.user),
		IsAuthenticated: store.authenticated,
		Epoch:           store.epoch,
	}
}

func cloneUser(user *User) *User {
	if user == nil {
		return nil
	}
	clone := *user
	return &clone
}
