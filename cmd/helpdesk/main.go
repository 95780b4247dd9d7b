package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	outputJSON = "json"
	outputYAML = "yaml"

	defaultStateURL       = "sqlite://helpdesk-state.db"
	defaultRequestTimeout = 30 * time.Second
	stateURLMemory        = "memory"

	configCodeMissingAPIURL     = "config.missing_api_url"
	configCodeInvalidAPIURL     = "config.invalid_api_url"
	configCodeMissingStateURL   = "config.missing_state_url"
	configCodeInvalidTimeout    = "config.invalid_timeout"
	configCodeUnknownOutput     = "config.unknown_output"
	configCodeUninitializedConf = "config.uninitialized_cli_config"
)

const cliConfigContextKey contextKey = "cliConfig"

type contextKey string

// cliConfig is the validated configuration shared by every subcommand.
type cliConfig struct {
	APIURL   string
	StateURL string
	Timeout  time.Duration
	Output   string
	Verbose  bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	configuration := viper.New()
	rootCmd := &cobra.Command{
		Use:          "helpdesk",
		Short:        "Command-line admin dashboard for the helpdesk backend",
		SilenceUsage: true,
	}
	rootCmd.PersistentPreRunE = func(command *cobra.Command, arguments []string) error {
		return prepareCLIConfig(command, configuration)
	}

	flags := rootCmd.PersistentFlags()
	flags.String("api_url", "", "Backend API base URL")
	flags.String("state_url", defaultStateURL, "Dashboard state database (sqlite://, postgres://, or memory)")
	flags.Duration("timeout", defaultRequestTimeout, "Per-request timeout")
	flags.String("output", outputJSON, "Output format: json or yaml")
	flags.Bool("verbose", false, "Development logging on stderr")

	for _, name := range []string{"api_url", "state_url", "timeout", "output", "verbose"} {
		_ = configuration.BindPFlag(name, flags.Lookup(name))
	}
	configuration.SetEnvPrefix("HELPDESK")
	configuration.AutomaticEnv()

	rootCmd.AddCommand(
		newLoginCommand(),
		newLogoutCommand(),
		newWhoAmICommand(),
		newUsersCommand(),
		newRolesCommand(),
		newPermissionsCommand(),
		newDevicesCommand(),
		newIssuesCommand(),
		newMailsCommand(),
		newFilesCommand(),
		newLeaderboardCommand(),
	)
	return rootCmd
}

func prepareCLIConfig(command *cobra.Command, configuration *viper.Viper) error {
	loaded, err := loadCLIConfig(configuration)
	if err != nil {
		return err
	}
	existingContext := command.Context()
	if existingContext == nil {
		existingContext = context.Background()
	}
	command.SetContext(context.WithValue(existingContext, cliConfigContextKey, loaded))
	return nil
}

func configError(code, message string) error {
	return fmt.Errorf("%s: %s", code, message)
}

func loadCLIConfig(configuration *viper.Viper) (cliConfig, error) {
	apiURL := strings.TrimSpace(configuration.GetString("api_url"))
	if apiURL == "" {
		return cliConfig{}, configError(configCodeMissingAPIURL, "api_url must be provided")
	}
	parsed, parseErr := url.Parse(apiURL)
	if parseErr != nil || parsed.Scheme == "" || parsed.Host == "" {
		return cliConfig{}, configError(configCodeInvalidAPIURL, "api_url must be an absolute http(s) URL")
	}

	stateURL := strings.TrimSpace(configuration.GetString("state_url"))
	if stateURL == "" {
		return cliConfig{}, configError(configCodeMissingStateURL, "state_url must be provided")
	}

	timeout := configuration.GetDuration("timeout")
	if timeout <= 0 {
		return cliConfig{}, configError(configCodeInvalidTimeout, "timeout must be greater than zero")
	}

	output := strings.ToLower(strings.TrimSpace(configuration.GetString("output")))
	if output != outputJSON && output != outputYAML {
		return cliConfig{}, configError(configCodeUnknownOutput, "output must be json or yaml")
	}

	return cliConfig{
		APIURL:   apiURL,
		StateURL: stateURL,
		Timeout:  timeout,
		Output:   output,
		Verbose:  configuration.GetBool("verbose"),
	}, nil
}

func configFromCommand(command *cobra.Command) (cliConfig, error) {
	commandContext := command.Context()
	if commandContext == nil {
		return cliConfig{}, configError(configCodeUninitializedConf, "cli configuration not prepared; PersistentPreRunE must execute before RunE")
	}
	loaded, ok := commandContext.Value(cliConfigContextKey).(cliConfig)
	if !ok {
		return cliConfig{}, configError(configCodeUninitializedConf, "cli configuration not prepared; PersistentPreRunE must execute before RunE")
	}
	return loaded, nil
}
