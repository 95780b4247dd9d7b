package mockapi

import (
	"net/http"
	"time"
)

// ServerConfig configures token issuance and the refresh cookie.
type ServerConfig struct {
	SigningKey        []byte
	Issuer            string
	CookieDomain      string
	RefreshCookieName string
	SessionTTL        time.Duration
	RefreshTTL        time.Duration
	SameSiteMode      http.SameSite
	AllowInsecureHTTP bool
}

const (
	// DefaultIssuer is used when ServerConfig.Issuer is empty.
	DefaultIssuer = "helpdesk-mockapi"
	// DefaultRefreshCookieName is used when ServerConfig.RefreshCookieName is empty.
	DefaultRefreshCookieName = "refresh_token"

	refreshCookiePath = "/auth"
)

func (configuration ServerConfig) withDefaults() ServerConfig {
	if configuration.Issuer == "" {
		configuration.Issuer = DefaultIssuer
	}
	if configuration.RefreshCookieName == "" {
		configuration.RefreshCookieName = DefaultRefreshCookieName
	}
	if configuration.SessionTTL <= 0 {
		configuration.SessionTTL = 15 * time.Minute
	}
	if configuration.RefreshTTL <= 0 {
		configuration.RefreshTTL = 30 * 24 * time.Hour
	}
	if configuration.SameSiteMode == 0 {
		configuration.SameSiteMode = http.SameSiteStrictMode
	}
	return configuration
}
