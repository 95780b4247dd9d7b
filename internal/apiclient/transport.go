package apiclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tyemirov/helpdesk/internal/metrics"
	"github.com/tyemirov/helpdesk/internal/session"
	"go.uber.org/zap"
)

const (
	metricRequestRetry       = "apiclient.request.retry"
	metricRetryExhausted     = "apiclient.request.retry_exhausted"
	metricRetryNotReplayable = "apiclient.request.not_replayable"

	// maxAttempts bounds every original request to one retry.
	maxAttempts = 2

	drainLimitBytes = 64 << 10
)

// TokenRefresher exchanges the refresh cookie for a new access token on behalf
// of a request sent under the given session epoch.
type TokenRefresher interface {
	Refresh(ctx context.Context, epoch uint64) (string, error)
}

// Transport attaches the bearer credential to outbound requests and recovers
// from a single expired-token 401 by refreshing and replaying the request once.
type Transport struct {
	base        http.RoundTripper
	credentials *session.Store
	refresher   TokenRefresher
	logger      *zap.Logger
	metrics     metrics.Recorder
}

// NewTransport wraps base with the authentication flow.
func NewTransport(base http.RoundTripper, credentials *session.Store, refresher TokenRefresher, logger *zap.Logger, recorder metrics.Recorder) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Transport{
		base:        base,
		credentials: credentials,
		refresher:   refresher,
		logger:      logger,
		metrics:     recorder,
	}
}

// RoundTrip implements http.RoundTripper.
func (transport *Transport) RoundTrip(request *http.Request) (*http.Response, error) {
	snapshot := transport.credentials.Snapshot()
	return transport.dispatch(request, snapshot.AccessToken, snapshot.Epoch, 0)
}

func (transport *Transport) dispatch(original *http.Request, accessToken string, epoch uint64, attempt int) (*http.Response, error) {
	outbound, prepareErr := prepareAttempt(original, accessToken, attempt)
	if prepareErr != nil {
		return nil, prepareErr
	}
	response, err := transport.base.RoundTrip(outbound)
	if err != nil {
		return nil, err
	}
	if response.StatusCode != http.StatusUnauthorized {
		return response, nil
	}

	fields := requestFields(original, attempt)
	if attempt+1 >= maxAttempts {
		transport.metrics.Increment(metricRetryExhausted)
		transport.logger.Warn("unauthorized after retry",
			append(fields, zap.String("code", "apiclient.retry.exhausted"))...)
		return response, nil
	}
	if original.Body != nil && original.Body != http.NoBody && original.GetBody == nil {
		transport.metrics.Increment(metricRetryNotReplayable)
		transport.logger.Warn("unauthorized request cannot be replayed",
			append(fields, zap.String("code", "apiclient.retry.not_replayable"))...)
		return response, nil
	}
	drainAndClose(response.Body)

	refreshedToken, refreshErr := transport.refresher.Refresh(original.Context(), epoch)
	if refreshErr != nil {
		return nil, transport.refreshFailure(original, epoch, attempt, refreshErr)
	}

	transport.metrics.Increment(metricRequestRetry)
	transport.logger.Debug("retrying request with refreshed token",
		append(fields, zap.String("code", "apiclient.retry"))...)
	return transport.dispatch(original, refreshedToken, epoch, attempt+1)
}

func (transport *Transport) refreshFailure(original *http.Request, epoch uint64, attempt int, refreshErr error) error {
	fields := append(requestFields(original, attempt), zap.Error(refreshErr))
	if contextErr := original.Context().Err(); contextErr != nil {
		transport.logger.Debug("request abandoned during refresh",
			append(fields, zap.String("code", "apiclient.retry.abandoned"))...)
		return fmt.Errorf("apiclient.retry: %w", contextErr)
	}
	if errors.Is(refreshErr, session.ErrSessionEnded) {
		transport.logger.Info("session ended while refreshing",
			append(fields, zap.String("code", "apiclient.retry.session_ended"))...)
		return fmt.Errorf("apiclient.retry: %w: %w", ErrAuthExpired, refreshErr)
	}
	cleared := transport.credentials.EndSession(epoch)
	transport.logger.Warn("refresh failed; credentials cleared",
		append(fields, zap.String("code", "apiclient.retry.auth_expired"), zap.Bool("cleared", cleared))...)
	return fmt.Errorf("apiclient.retry: %w: %w", ErrAuthExpired, refreshErr)
}

// prepareAttempt clones the original request for one attempt. The first
// attempt reuses the original body; replays read a fresh copy from GetBody.
func prepareAttempt(original *http.Request, accessToken string, attempt int) (*http.Request, error) {
	outbound := original.Clone(original.Context())
	if attempt > 0 && original.GetBody != nil {
		body, err := original.GetBody()
		if err != nil {
			return nil, fmt.Errorf("apiclient.retry.body: %w", err)
		}
		outbound.Body = body
	}
	if accessToken != "" {
		outbound.Header.Set("Authorization", "Bearer "+accessToken)
	}
	return outbound, nil
}

func requestFields(request *http.Request, attempt int) []zap.Field {
	return []zap.Field{
		zap.String("method", request.Method),
		zap.String("path", request.URL.Path),
		zap.String("request_id", request.Header.Get(requestIDHeader)),
		zap.Int("attempt", attempt),
	}
}

func drainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, drainLimitBytes))
	_ = body.Close()
}
