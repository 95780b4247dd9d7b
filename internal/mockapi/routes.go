// Package mockapi is a development backend that speaks the helpdesk API
// contract: email/password login, rotating refresh cookies, bearer-protected
// resource collections and the shared response envelope.
package mockapi

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tyemirov/helpdesk/pkg/sessionvalidator"
	"go.uber.org/zap"
)

const (
	metricLoginSuccess   = "auth.login.success"
	metricLoginFailure   = "auth.login.failure"
	metricRefreshSuccess = "auth.refresh.success"
	metricRefreshFailure = "auth.refresh.failure"
	metricLogoutSuccess  = "auth.logout.success"

	// ClaimsKey is the gin context key the bearer middleware stores claims under.
	ClaimsKey = sessionvalidator.DefaultContextKey

	loginFailedMessage   = "Invalid email or password"
	refreshFailedMessage = "Invalid refresh token"
)

var errMissingDirectory = errors.New("mockapi.missing_directory")

// NewBearerMiddleware validates the access token of every request it guards.
// The validator observes clocks installed with ProvideClock.
func NewBearerMiddleware(configuration ServerConfig) (gin.HandlerFunc, error) {
	configuration = configuration.withDefaults()
	validator, err := sessionvalidator.New(sessionvalidator.Config{
		SigningKey: configuration.SigningKey,
		Issuer:     configuration.Issuer,
		Clock:      dynamicClock(),
	})
	if err != nil {
		return nil, fmt.Errorf("mockapi.bearer: %w", err)
	}
	return validator.GinMiddleware(ClaimsKey), nil
}

// MountAuthRoutes registers /auth/login, /auth/refresh, /auth/logout and
// /auth/account.
func MountAuthRoutes(router gin.IRouter, configuration ServerConfig, directory *Directory, refreshTokens RefreshTokenStore) error {
	if directory == nil {
		return errMissingDirectory
	}
	configuration = configuration.withDefaults()
	requireBearer, err := NewBearerMiddleware(configuration)
	if err != nil {
		return err
	}

	router.POST("/auth/login", func(contextGin *gin.Context) {
		logger := currentLogger()
		recorder := currentMetrics()
		var inbound struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := contextGin.ShouldBindJSON(&inbound); err != nil {
			recorder.Increment(metricLoginFailure)
			abortWithMessage(contextGin, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		var missing []string
		if strings.TrimSpace(inbound.Email) == "" {
			missing = append(missing, "email should not be empty")
		}
		if inbound.Password == "" {
			missing = append(missing, "password should not be empty")
		}
		if len(missing) > 0 {
			recorder.Increment(metricLoginFailure)
			abortWithMessage(contextGin, http.StatusBadRequest, missing)
			return
		}
		if !configuration.AllowInsecureHTTP && !isHTTPS(contextGin.Request) {
			recorder.Increment(metricLoginFailure)
			abortWithMessage(contextGin, http.StatusBadRequest, "HTTPS is required")
			return
		}

		user, authErr := directory.Authenticate(inbound.Email, inbound.Password)
		if authErr != nil {
			recorder.Increment(metricLoginFailure)
			logger.Info("login rejected",
				zap.String("code", "auth.login.rejected"),
				zap.String("email", inbound.Email))
			abortWithMessage(contextGin, http.StatusUnauthorized, loginFailedMessage)
			return
		}

		accessToken, _, mintErr := MintAccessToken(user, configuration.Issuer, configuration.SigningKey, configuration.SessionTTL)
		if mintErr != nil {
			recorder.Increment(metricLoginFailure)
			logger.Error("access token mint failed", zap.String("code", "auth.login.mint"), zap.Error(mintErr))
			abortWithMessage(contextGin, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
			return
		}
		refreshExpiresAt := currentClock().Now().Add(configuration.RefreshTTL)
		_, refreshOpaque, issueErr := refreshTokens.Issue(contextGin.Request.Context(), user.ID, refreshExpiresAt.Unix(), "")
		if issueErr != nil || strings.TrimSpace(refreshOpaque) == "" {
			recorder.Increment(metricLoginFailure)
			logger.Error("refresh token issue failed", zap.String("code", "auth.login.issue"), zap.Error(issueErr))
			abortWithMessage(contextGin, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
			return
		}

		writeRefreshCookie(contextGin, configuration, refreshOpaque, refreshExpiresAt)
		recorder.Increment(metricLoginSuccess)
		logger.Info("login succeeded",
			zap.String("code", "auth.login.success"),
			zap.Int64("user_id", user.ID))
		respond(contextGin, http.StatusOK, gin.H{
			"access_token":  accessToken,
			"refresh_token": refreshOpaque,
			"user":          user,
		})
	})

	router.GET("/auth/refresh", func(contextGin *gin.Context) {
		logger := currentLogger()
		recorder := currentMetrics()
		refreshCookie, cookieErr := contextGin.Request.Cookie(configuration.RefreshCookieName)
		if cookieErr != nil || refreshCookie == nil || strings.TrimSpace(refreshCookie.Value) == "" {
			recorder.Increment(metricRefreshFailure)
			abortWithMessage(contextGin, http.StatusUnauthorized, refreshFailedMessage)
			return
		}

		userID, currentTokenID, _, validateErr := refreshTokens.Validate(contextGin.Request.Context(), refreshCookie.Value)
		if validateErr != nil {
			recorder.Increment(metricRefreshFailure)
			logger.Info("refresh rejected",
				zap.String("code", "auth.refresh.rejected"),
				zap.Error(validateErr))
			abortWithMessage(contextGin, http.StatusUnauthorized, refreshFailedMessage)
			return
		}
		user, lookupErr := directory.Lookup(userID)
		if lookupErr != nil {
			recorder.Increment(metricRefreshFailure)
			abortWithMessage(contextGin, http.StatusUnauthorized, refreshFailedMessage)
			return
		}

		accessToken, _, mintErr := MintAccessToken(user, configuration.Issuer, configuration.SigningKey, configuration.SessionTTL)
		if mintErr != nil {
			recorder.Increment(metricRefreshFailure)
			abortWithMessage(contextGin, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
			return
		}
		refreshExpiresAt := currentClock().Now().Add(configuration.RefreshTTL)
		_, newOpaque, issueErr := refreshTokens.Issue(contextGin.Request.Context(), user.ID, refreshExpiresAt.Unix(), currentTokenID)
		if issueErr != nil || strings.TrimSpace(newOpaque) == "" {
			recorder.Increment(metricRefreshFailure)
			abortWithMessage(contextGin, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
			return
		}
		if revokeErr := refreshTokens.Revoke(contextGin.Request.Context(), currentTokenID); revokeErr != nil {
			recorder.Increment(metricRefreshFailure)
			logger.Error("refresh token revoke failed", zap.String("code", "auth.refresh.revoke"), zap.Error(revokeErr))
			abortWithMessage(contextGin, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
			return
		}

		writeRefreshCookie(contextGin, configuration, newOpaque, refreshExpiresAt)
		recorder.Increment(metricRefreshSuccess)
		respond(contextGin, http.StatusOK, gin.H{"access_token": accessToken})
	})

	router.POST("/auth/logout", func(contextGin *gin.Context) {
		refreshCookie, cookieErr := contextGin.Request.Cookie(configuration.RefreshCookieName)
		if cookieErr == nil && refreshCookie != nil && strings.TrimSpace(refreshCookie.Value) != "" {
			_, tokenID, _, validateErr := refreshTokens.Validate(contextGin.Request.Context(), refreshCookie.Value)
			if validateErr == nil && tokenID != "" {
				_ = refreshTokens.Revoke(contextGin.Request.Context(), tokenID)
			}
		}
		clearRefreshCookie(contextGin, configuration)
		currentMetrics().Increment(metricLogoutSuccess)
		respond(contextGin, http.StatusOK, nil)
	})

	router.GET("/auth/account", requireBearer, func(contextGin *gin.Context) {
		claims, ok := sessionvalidator.ClaimsFromContext(contextGin, ClaimsKey)
		if !ok {
			abortWithMessage(contextGin, http.StatusUnauthorized, "Unauthorized")
			return
		}
		user, err := directory.Lookup(claims.GetUserID())
		if err != nil {
			abortWithMessage(contextGin, http.StatusNotFound, "User not found")
			return
		}
		respond(contextGin, http.StatusOK, gin.H{"user": user})
	})
	return nil
}

func writeRefreshCookie(contextGin *gin.Context, configuration ServerConfig, opaque string, expiresAt time.Time) {
	http.SetCookie(contextGin.Writer, &http.Cookie{
		Name:     configuration.RefreshCookieName,
		Value:    opaque,
		Path:     refreshCookiePath,
		Domain:   configuration.CookieDomain,
		Expires:  expiresAt,
		Secure:   !configuration.AllowInsecureHTTP,
		HttpOnly: true,
		SameSite: configuration.SameSiteMode,
	})
}

func clearRefreshCookie(contextGin *gin.Context, configuration ServerConfig) {
	http.SetCookie(contextGin.Writer, &http.Cookie{
		Name:     configuration.RefreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		Domain:   configuration.CookieDomain,
		MaxAge:   -1,
		Secure:   !configuration.AllowInsecureHTTP,
		HttpOnly: true,
		SameSite: configuration.SameSiteMode,
	})
}

func isHTTPS(request *http.Request) bool {
	if request.TLS != nil {
		return true
	}
	if strings.EqualFold(request.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	forwarded := request.Header.Get("Forwarded")
	if forwarded != "" && strings.Contains(strings.ToLower(forwarded), "proto=https") {
		return true
	}
	host, _, splitErr := net.SplitHostPort(request.Host)
	if splitErr == nil && host == "localhost" {
		return true
	}
	return false
}
