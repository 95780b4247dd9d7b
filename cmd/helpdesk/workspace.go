package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tyemirov/helpdesk/internal/apiclient"
	"github.com/tyemirov/helpdesk/internal/dashboard"
	"github.com/tyemirov/helpdesk/internal/resources"
	"github.com/tyemirov/helpdesk/internal/session"
	"github.com/tyemirov/helpdesk/internal/statestore"
	"go.uber.org/zap"
)

// cookiesKey is the statestore key holding the exported refresh cookies.
const cookiesKey = "client.cookies"

// closableStore is a statestore that owns a connection.
type closableStore interface {
	statestore.Store
	Close() error
}

type nopCloser struct {
	statestore.Store
}

func (nopCloser) Close() error { return nil }

// workspace is one invocation's view of the dashboard: the restored cache,
// the client behind it, and the backing store both persist into.
type workspace struct {
	config    cliConfig
	logger    *zap.Logger
	backing   closableStore
	client    *apiclient.Client
	dashboard *dashboard.Store
	persister *dashboard.Persister
}

// openStateStore selects the backing store for stateURL. "memory" keeps the
// state for the current invocation only.
func openStateStore(ctx context.Context, stateURL string) (closableStore, error) {
	if stateURL == stateURLMemory {
		return nopCloser{Store: statestore.NewMemoryStore()}, nil
	}
	return statestore.NewDatabaseStore(ctx, stateURL)
}

func buildLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func openWorkspace(command *cobra.Command) (*workspace, error) {
	configuration, err := configFromCommand(command)
	if err != nil {
		return nil, err
	}
	logger, err := buildLogger(configuration.Verbose)
	if err != nil {
		return nil, err
	}
	ctx := command.Context()

	backing, err := openStateStore(ctx, configuration.StateURL)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	credentials := session.NewStore()
	client, err := apiclient.New(apiclient.Config{
		BaseURL: configuration.APIURL,
		Timeout: configuration.Timeout,
		Logger:  logger,
	}, credentials)
	if err != nil {
		_ = backing.Close()
		return nil, err
	}

	store, err := dashboard.NewStore(dashboard.Config{
		API:           resources.New(client),
		Credentials:   credentials,
		Authenticator: client,
		Logger:        logger,
	})
	if err != nil {
		_ = backing.Close()
		return nil, err
	}

	current := &workspace{
		config:    configuration,
		logger:    logger,
		backing:   backing,
		client:    client,
		dashboard: store,
	}
	if err := current.restore(ctx); err != nil {
		current.release()
		return nil, err
	}
	current.persister = dashboard.Persist(store, backing, logger)
	return current, nil
}

func (current *workspace) restore(ctx context.Context) error {
	state, err := dashboard.Load(ctx, current.backing)
	switch {
	case errors.Is(err, statestore.ErrNotFound):
	case err != nil:
		return err
	default:
		current.dashboard.Restore(state)
	}

	payload, err := current.backing.Get(ctx, cookiesKey)
	switch {
	case errors.Is(err, statestore.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("helpdesk.cookies.load: %w", err)
	}
	var saved []apiclient.SavedCookie
	if err := json.Unmarshal(payload, &saved); err != nil {
		current.logger.Warn("discarding unreadable cookies",
			zap.String("code", "helpdesk.cookies.decode_failed"),
			zap.Error(err))
		return nil
	}
	current.client.ImportCookies(saved)
	return nil
}

// Close writes the cookies back and releases the backing store.
func (current *workspace) Close(ctx context.Context) error {
	saved := current.client.ExportCookies()
	if saved == nil {
		saved = []apiclient.SavedCookie{}
	}
	payload, err := json.Marshal(saved)
	if err == nil {
		err = current.backing.Put(ctx, cookiesKey, payload)
	}
	if err != nil {
		err = fmt.Errorf("helpdesk.cookies.save: %w", err)
	}
	persistErr := current.persister.Err()
	current.persister.Stop()
	current.release()
	return errors.Join(err, persistErr)
}

func (current *workspace) release() {
	current.dashboard.Close()
	if closeErr := current.backing.Close(); closeErr != nil {
		current.logger.Warn("state store close failed",
			zap.String("code", "helpdesk.state.close_failed"),
			zap.Error(closeErr))
	}
	_ = current.logger.Sync()
}

// withWorkspace opens the workspace, runs action, and closes it.
func withWorkspace(command *cobra.Command, action func(ctx context.Context, current *workspace) error) error {
	current, err := openWorkspace(command)
	if err != nil {
		return err
	}
	actionErr := action(command.Context(), current)
	closeErr := current.Close(command.Context())
	return errors.Join(actionErr, closeErr)
}
