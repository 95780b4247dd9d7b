package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/tyemirov/helpdesk/internal/statestore"
	"go.uber.org/zap"
)

// StateKey is the statestore key holding the serialized dashboard state.
const StateKey = "dashboard.state"

const persistTimeout = 5 * time.Second

// Persister writes every state change through to a statestore.
type Persister struct {
	backing      statestore.Store
	logger       *zap.Logger
	mutex        sync.Mutex
	lastRevision uint64
	lastErr      error
	unsubscribe  func()
}

// Persist subscribes a Persister to store.
func Persist(store *Store, backing statestore.Store, logger *zap.Logger) *Persister {
	if logger == nil {
		logger = zap.NewNop()
	}
	persister := &Persister{backing: backing, logger: logger}
	persister.unsubscribe = store.Subscribe(persister.write)
	return persister
}

// Stop unsubscribes from the store.
func (persister *Persister) Stop() {
	if persister.unsubscribe != nil {
		persister.unsubscribe()
	}
}

// Err returns the error of the most recent write, if it failed.
func (persister *Persister) Err() error {
	persister.mutex.Lock()
	defer persister.mutex.Unlock()
	return persister.lastErr
}

// write stores state unless a newer revision was already written.
func (persister *Persister) write(state State) {
	persister.mutex.Lock()
	defer persister.mutex.Unlock()
	if state.Revision <= persister.lastRevision {
		return
	}
	payload, err := json.Marshal(state)
	if err != nil {
		persister.lastErr = fmt.Errorf("dashboard.persist.encode: %w", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := persister.backing.Put(ctx, StateKey, payload); err != nil {
		persister.lastErr = fmt.Errorf("dashboard.persist: %w", err)
		persister.logger.Warn("state persistence failed",
			zap.String("code", "dashboard.persist.failed"),
			zap.Uint64("revision", state.Revision),
			zap.Error(err))
		return
	}
	persister.lastRevision = state.Revision
	persister.lastErr = nil
}

// Load reads the persisted state. It returns statestore.ErrNotFound (wrapped)
// when nothing was persisted yet.
func Load(ctx context.Context, backing statestore.Store) (State, error) {
	payload, err := backing.Get(ctx, StateKey)
	if err != nil {
		return State{}, fmt.Errorf("dashboard.load: %w", err)
	}
	state := InitialState()
	if err := json.Unmarshal(payload, &state); err != nil {
		return State{}, fmt.Errorf("dashboard.load.decode: %w", err)
	}
	state.settle()
	return state, nil
}
