package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func TestZapLoggerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(zapLoggerMiddleware(zap.NewNop()))
	router.GET("/ping", func(contextGin *gin.Context) {
		contextGin.Status(http.StatusNoContent)
	})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", recorder.Code)
	}
}

func TestRunServerMissingConfig(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	err := runServer(&cobra.Command{}, nil)
	expectedMessage := "config.uninitialized_server_config: server configuration not prepared; PreRunE must execute before RunE"
	if err == nil || err.Error() != expectedMessage {
		t.Fatalf("expected error %q, got %v", expectedMessage, err)
	}
}

func TestLoadServerConfigValidation(t *testing.T) {
	testCases := []struct {
		name            string
		settings        map[string]any
		expectedMessage string
	}{
		{
			name:            "missing signing key",
			settings:        map[string]any{"session_ttl": time.Minute, "refresh_ttl": time.Hour},
			expectedMessage: "config.missing_jwt_signing_key: jwt_signing_key must be provided",
		},
		{
			name:            "non-positive session ttl",
			settings:        map[string]any{"jwt_signing_key": "secret", "session_ttl": 0, "refresh_ttl": time.Hour},
			expectedMessage: "config.invalid_session_ttl: session_ttl must be greater than zero",
		},
		{
			name:            "non-positive refresh ttl",
			settings:        map[string]any{"jwt_signing_key": "secret", "session_ttl": time.Minute, "refresh_ttl": 0},
			expectedMessage: "config.invalid_refresh_ttl: refresh_ttl must be greater than zero",
		},
		{
			name:            "unknown driver",
			settings:        map[string]any{"jwt_signing_key": "secret", "session_ttl": time.Minute, "refresh_ttl": time.Hour, "refresh_store_driver": "redis"},
			expectedMessage: "config.unknown_refresh_store_driver: refresh_store_driver must be memory, gorm, or pgx",
		},
		{
			name:            "gorm without database",
			settings:        map[string]any{"jwt_signing_key": "secret", "session_ttl": time.Minute, "refresh_ttl": time.Hour, "refresh_store_driver": "gorm"},
			expectedMessage: "config.missing_database_url: database_url must be provided for the gorm refresh store",
		},
		{
			name:            "cors without origins",
			settings:        map[string]any{"jwt_signing_key": "secret", "session_ttl": time.Minute, "refresh_ttl": time.Hour, "enable_cors": true},
			expectedMessage: "config.missing_cors_allowed_origins: cors_allowed_origins must be provided when enable_cors is true",
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			viper.Reset()
			defer viper.Reset()
			for key, value := range testCase.settings {
				viper.Set(key, value)
			}
			_, err := LoadServerConfig()
			if err == nil || err.Error() != testCase.expectedMessage {
				t.Fatalf("expected error %q, got %v", testCase.expectedMessage, err)
			}
		})
	}
}

func TestLoadServerConfigCORSUsesSameSiteNone(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("jwt_signing_key", "secret")
	viper.Set("session_ttl", time.Minute)
	viper.Set("refresh_ttl", time.Hour)
	viper.Set("enable_cors", true)
	viper.Set("cors_allowed_origins", []string{"http://localhost:3000"})

	settings, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Auth.SameSiteMode != http.SameSiteNoneMode || settings.RefreshStoreDriver != refreshDriverMemory {
		t.Fatalf("unexpected settings %+v", settings)
	}
}

func TestRunServerWithStores(t *testing.T) {
	testCases := []struct {
		name     string
		settings map[string]any
	}{
		{
			name:     "memory",
			settings: map[string]any{"dev_insecure_http": true},
		},
		{
			name: "gorm sqlite with cors",
			settings: map[string]any{
				"refresh_store_driver": "gorm",
				"database_url":         "sqlite:file:mockapi_command?mode=memory&cache=shared",
				"enable_cors":          true,
				"cors_allowed_origins": []string{"http://localhost:3000"},
			},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			viper.Reset()
			defer viper.Reset()

			restoreServe := withServeHTTPStub(func(server *http.Server) error {
				if server.Handler == nil {
					t.Errorf("expected handler to be configured")
				}
				return http.ErrServerClosed
			})
			defer restoreServe()

			viper.Set("listen_addr", ":0")
			viper.Set("jwt_signing_key", "signing-secret")
			viper.Set("session_ttl", time.Minute)
			viper.Set("refresh_ttl", time.Hour)
			for key, value := range testCase.settings {
				viper.Set(key, value)
			}

			settings, err := LoadServerConfig()
			if err != nil {
				t.Fatalf("expected configuration load to succeed, got %v", err)
			}
			command := &cobra.Command{}
			command.SetContext(context.WithValue(context.Background(), serverConfigContextKey, settings))
			if err := runServer(command, nil); err != nil {
				t.Fatalf("expected runServer to succeed, got %v", err)
			}
		})
	}
}

func TestNewRootCommandHelp(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"--help"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("expected help execution to succeed: %v", err)
	}
}

func withServeHTTPStub(stub func(server *http.Server) error) func() {
	previous := serveHTTP
	serveHTTP = stub
	return func() {
		serveHTTP = previous
	}
}
