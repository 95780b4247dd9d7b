package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tyemirov/helpdesk/internal/metrics"
	"github.com/tyemirov/helpdesk/internal/mockapi"
	"github.com/tyemirov/helpdesk/internal/mockapi/pgstore"
	"go.uber.org/zap"
)

var serveHTTP = func(server *http.Server) error {
	return server.ListenAndServe()
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "mockapi",
		Short:   "Development backend for the helpdesk dashboard: email/password login, rotating refresh cookies, and in-memory resources",
		PreRunE: prepareServerConfig,
		RunE:    runServer,
	}

	rootCmd.Flags().String("listen_addr", ":8080", "HTTP listen address")
	rootCmd.Flags().String("cookie_domain", "", "Cookie domain; empty for host-only")
	rootCmd.Flags().String("jwt_signing_key", "", "HS256 signing secret for access JWT")
	rootCmd.Flags().Duration("session_ttl", 15*time.Minute, "Access token TTL")
	rootCmd.Flags().Duration("refresh_ttl", 30*24*time.Hour, "Refresh token TTL")
	rootCmd.Flags().Bool("dev_insecure_http", false, "Allow insecure HTTP for local dev")
	rootCmd.Flags().String("database_url", "", "Database URL for refresh tokens (postgres:// or sqlite://)")
	rootCmd.Flags().String("refresh_store_driver", refreshDriverMemory, "Refresh token store: memory, gorm, or pgx")
	rootCmd.Flags().Bool("enable_cors", false, "Enable CORS for the dashboard origin (sets SameSite=None cookies)")
	rootCmd.Flags().StringSlice("cors_allowed_origins", []string{}, "Allowed origins when CORS is enabled (required if enable_cors is true)")

	for _, name := range []string{
		"listen_addr", "cookie_domain", "jwt_signing_key", "session_ttl", "refresh_ttl", "dev_insecure_http",
		"database_url", "refresh_store_driver", "enable_cors", "cors_allowed_origins",
	} {
		_ = viper.BindPFlag(name, rootCmd.Flags().Lookup(name))
	}

	viper.SetEnvPrefix("MOCKAPI")
	viper.AutomaticEnv()

	return rootCmd
}

const (
	refreshDriverMemory = "memory"
	refreshDriverGorm   = "gorm"
	refreshDriverPgx    = "pgx"

	configCodeMissingJWTSigningKey    = "config.missing_jwt_signing_key"
	configCodeInvalidSessionTTL       = "config.invalid_session_ttl"
	configCodeInvalidRefreshTTL       = "config.invalid_refresh_ttl"
	configCodeUnknownRefreshDriver    = "config.unknown_refresh_store_driver"
	configCodeMissingDatabaseURL      = "config.missing_database_url"
	configCodeMissingCORSOrigins      = "config.missing_cors_allowed_origins"
	configCodeUninitializedServerConf = "config.uninitialized_server_config"
)

type contextKey string

const serverConfigContextKey contextKey = "serverConfig"

// serverSettings is the validated command configuration.
type serverSettings struct {
	Auth               mockapi.ServerConfig
	ListenAddr         string
	DatabaseURL        string
	RefreshStoreDriver string
	EnableCORS         bool
	CORSAllowedOrigins []string
}

func prepareServerConfig(command *cobra.Command, arguments []string) error {
	settings, loadErr := LoadServerConfig()
	if loadErr != nil {
		return loadErr
	}
	existingContext := command.Context()
	if existingContext == nil {
		existingContext = context.Background()
	}
	command.SetContext(context.WithValue(existingContext, serverConfigContextKey, settings))
	return nil
}

func configError(code, message string) error {
	return fmt.Errorf("%s: %s", code, message)
}

// LoadServerConfig validates the viper-bound settings.
func LoadServerConfig() (serverSettings, error) {
	jwtSigningKey := viper.GetString("jwt_signing_key")
	if jwtSigningKey == "" {
		return serverSettings{}, configError(configCodeMissingJWTSigningKey, "jwt_signing_key must be provided")
	}

	sessionTTL := viper.GetDuration("session_ttl")
	if sessionTTL <= 0 {
		return serverSettings{}, configError(configCodeInvalidSessionTTL, "session_ttl must be greater than zero")
	}

	refreshTTL := viper.GetDuration("refresh_ttl")
	if refreshTTL <= 0 {
		return serverSettings{}, configError(configCodeInvalidRefreshTTL, "refresh_ttl must be greater than zero")
	}

	driver := strings.ToLower(strings.TrimSpace(viper.GetString("refresh_store_driver")))
	if driver == "" {
		driver = refreshDriverMemory
	}
	databaseURL := strings.TrimSpace(viper.GetString("database_url"))
	switch driver {
	case refreshDriverMemory:
	case refreshDriverGorm, refreshDriverPgx:
		if databaseURL == "" {
			return serverSettings{}, configError(configCodeMissingDatabaseURL, "database_url must be provided for the "+driver+" refresh store")
		}
	default:
		return serverSettings{}, configError(configCodeUnknownRefreshDriver, "refresh_store_driver must be memory, gorm, or pgx")
	}

	enableCORS := viper.GetBool("enable_cors")
	corsAllowedOrigins := viper.GetStringSlice("cors_allowed_origins")
	if enableCORS && len(corsAllowedOrigins) == 0 {
		return serverSettings{}, configError(configCodeMissingCORSOrigins, "cors_allowed_origins must be provided when enable_cors is true")
	}

	sameSite := http.SameSiteStrictMode
	if enableCORS {
		sameSite = http.SameSiteNoneMode
	}

	return serverSettings{
		Auth: mockapi.ServerConfig{
			SigningKey:        []byte(jwtSigningKey),
			Issuer:            mockapi.DefaultIssuer,
			CookieDomain:      viper.GetString("cookie_domain"),
			RefreshCookieName: mockapi.DefaultRefreshCookieName,
			SessionTTL:        sessionTTL,
			RefreshTTL:        refreshTTL,
			SameSiteMode:      sameSite,
			AllowInsecureHTTP: viper.GetBool("dev_insecure_http"),
		},
		ListenAddr:         viper.GetString("listen_addr"),
		DatabaseURL:        databaseURL,
		RefreshStoreDriver: driver,
		EnableCORS:         enableCORS,
		CORSAllowedOrigins: corsAllowedOrigins,
	}, nil
}

func runServer(command *cobra.Command, arguments []string) error {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	commandContext := command.Context()
	var contextValue any
	if commandContext != nil {
		contextValue = commandContext.Value(serverConfigContextKey)
	}
	settings, ok := contextValue.(serverSettings)
	if !ok {
		return configError(configCodeUninitializedServerConf, "server configuration not prepared; PreRunE must execute before RunE")
	}

	refreshStore, closeStore, storeErr := openRefreshStore(commandContext, settings, logger)
	if storeErr != nil {
		return storeErr
	}
	defer closeStore()

	mockapi.ProvideClock(mockapi.NewSystemClock())
	defer mockapi.ProvideClock(nil)
	mockapi.ProvideLogger(logger)
	defer mockapi.ProvideLogger(nil)
	metricsRecorder := metrics.NewCounter()
	mockapi.ProvideMetrics(metricsRecorder)
	defer mockapi.ProvideMetrics(nil)

	directory := mockapi.NewDirectory(0)
	catalog := mockapi.NewCatalog()
	if err := mockapi.Seed(directory, catalog); err != nil {
		return err
	}

	middlewares := []gin.HandlerFunc{zapLoggerMiddleware(logger)}
	if settings.EnableCORS {
		corsMiddleware, corsErr := mockapi.ConfigureCORS(logger, settings.CORSAllowedOrigins)
		if corsErr != nil {
			return corsErr
		}
		middlewares = append(middlewares, corsMiddleware)
	}

	gin.SetMode(gin.ReleaseMode)
	router, routerErr := mockapi.NewRouter(settings.Auth, directory, catalog, refreshStore, middlewares...)
	if routerErr != nil {
		return routerErr
	}

	server := &http.Server{
		Addr:              settings.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()

	go func() {
		stopSignals := make(chan os.Signal, 1)
		signal.Notify(stopSignals, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(stopSignals)
		select {
		case <-stopSignals:
		case <-shutdownCtx.Done():
			return
		}
		graceCtx, graceCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer graceCancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("listening",
		zap.String("addr", settings.ListenAddr),
		zap.String("refresh_store", settings.RefreshStoreDriver),
		zap.String("seed_admin", mockapi.SeedAdminEmail))
	if err := serveHTTP(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen error: %w", err)
	}
	logger.Info("stopped", zap.Any("auth_events", metricsRecorder.Snapshot()))
	return nil
}

func openRefreshStore(ctx context.Context, settings serverSettings, logger *zap.Logger) (mockapi.RefreshTokenStore, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	switch settings.RefreshStoreDriver {
	case refreshDriverGorm:
		store, err := mockapi.NewDatabaseRefreshTokenStore(ctx, settings.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using persistent refresh token store", zap.String("driver", store.Driver()))
		return store, func() { _ = store.Close() }, nil
	case refreshDriverPgx:
		pool, err := pgstore.BuildPool(ctx, settings.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := pgstore.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("using pgx refresh token store")
		return pgstore.NewRefreshTokenStore(pool, nil), pool.Close, nil
	default:
		logger.Info("using in-memory refresh token store")
		return mockapi.NewMemoryRefreshTokenStore(), func() {}, nil
	}
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		startTime := time.Now()
		contextGin.Next()
		logger.Info("http",
			zap.String("method", contextGin.Request.Method),
			zap.String("path", contextGin.Request.URL.Path),
			zap.Int("status", contextGin.Writer.Status()),
			zap.String("ip", contextGin.ClientIP()),
			zap.String("request_id", contextGin.GetString(mockapi.RequestIDKey)),
			zap.Duration("elapsed", time.Since(startTime)),
		)
	}
}
