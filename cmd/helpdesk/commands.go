package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tyemirov/helpdesk/internal/apiclient"
	"github.com/tyemirov/helpdesk/internal/resources"
	"github.com/tyemirov/helpdesk/internal/session"
)

const accountPath = "/auth/account"

var errInvalidID = errors.New("helpdesk.invalid_id")

// runAndRender opens the workspace, runs action, and renders its result.
func runAndRender(command *cobra.Command, action func(ctx context.Context, current *workspace) (any, error)) error {
	return withWorkspace(command, func(ctx context.Context, current *workspace) error {
		result, err := action(ctx, current)
		if err != nil {
			return err
		}
		if result == nil {
			return nil
		}
		return render(command.OutOrStdout(), current.config.Output, result)
	})
}

func parseID(argument string) (int64, error) {
	identifier, err := strconv.ParseInt(strings.TrimSpace(argument), 10, 64)
	if err != nil || identifier <= 0 {
		return 0, fmt.Errorf("%w: %q", errInvalidID, argument)
	}
	return identifier, nil
}

// addListFlags registers the pagination and filter flags of paged listings.
func addListFlags(command *cobra.Command, pageSize int) {
	command.Flags().Int("page", 1, "Page number")
	command.Flags().Int("page-size", pageSize, "Items per page")
	command.Flags().StringToString("filter", map[string]string{}, "Field filters, e.g. --filter name=printer")
}

func listParams(command *cobra.Command) resources.ListParams {
	page, _ := command.Flags().GetInt("page")
	pageSize, _ := command.Flags().GetInt("page-size")
	filters, _ := command.Flags().GetStringToString("filter")
	return resources.ListParams{Page: page, PageSize: pageSize, Filters: filters}
}

// changedString returns the flag value when the flag was set on the command line.
func changedString(command *cobra.Command, name string) *string {
	if !command.Flags().Changed(name) {
		return nil
	}
	value, _ := command.Flags().GetString(name)
	return &value
}

func changedInt(command *cobra.Command, name string) *int {
	if !command.Flags().Changed(name) {
		return nil
	}
	value, _ := command.Flags().GetInt(name)
	return &value
}

func changedInt64(command *cobra.Command, name string) *int64 {
	if !command.Flags().Changed(name) {
		return nil
	}
	value, _ := command.Flags().GetInt64(name)
	return &value
}

func newLoginCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			email, _ := command.Flags().GetString("email")
			password, _ := command.Flags().GetString("password")
			return runAndRender(command, func(ctx context.Context, current *workspace) (any, error) {
				user, err := current.dashboard.Login(ctx, email, password)
				if err != nil {
					return nil, err
				}
				return user, nil
			})
		},
	}
	command.Flags().String("email", "", "Account email")
	command.Flags().String("password", "", "Account password")
	_ = command.MarkFlagRequired("email")
	_ = command.MarkFlagRequired("password")
	return command
}

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return runAndRender(command, func(ctx context.Context, current *workspace) (any, error) {
				return nil, current.dashboard.Logout()
			})
		},
	}
}

func newWhoAmICommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account as the backend sees it",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return runAndRender(command, func(ctx context.Context, current *workspace) (any, error) {
				var payload struct {
					User session.User `json:"user"`
				}
				if err := current.client.Do(ctx, apiclient.Request{Path: accountPath}, &payload); err != nil {
					return nil, err
				}
				return payload.User, nil
			})
		},
	}
}

func newLeaderboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the gamification leaderboard",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return runAndRender(command, func(ctx context.Context, current *workspace) (any, error) {
				if _, err := current.dashboard.FetchLeaderboard(ctx); err != nil {
					return nil, err
				}
				return current.dashboard.State().Leaderboard, nil
			})
		},
	}
}
