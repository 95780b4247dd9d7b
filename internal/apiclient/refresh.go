package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/tyemirov/helpdesk/internal/metrics"
	"github.com/tyemirov/helpdesk/internal/session"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	refreshPath = "/auth/refresh"

	metricRefreshSuccess   = "apiclient.refresh.success"
	metricRefreshFailure   = "apiclient.refresh.failure"
	metricRefreshCoalesced = "apiclient.refresh.coalesced"
)

type refreshPayload struct {
	AccessToken string `json:"access_token"`
}

// Refresher exchanges the refresh cookie for a new access token. Concurrent
// callers within one session epoch share a single in-flight refresh call.
type Refresher struct {
	exchange    *exchanger
	credentials *session.Store
	logger      *zap.Logger
	metrics     metrics.Recorder
	group       singleflight.Group
}

func newRefresher(exchange *exchanger, credentials *session.Store, logger *zap.Logger, recorder metrics.Recorder) *Refresher {
	return &Refresher{
		exchange:    exchange,
		credentials: credentials,
		logger:      logger,
		metrics:     recorder,
	}
}

// Refresh obtains a new access token for the session at epoch and writes it
// into the credential store. It never clears the store itself.
func (refresher *Refresher) Refresh(ctx context.Context, epoch uint64) (string, error) {
	key := strconv.FormatUint(epoch, 10)
	resultChannel := refresher.group.DoChan(key, func() (interface{}, error) {
		return refresher.refreshOnce(context.WithoutCancel(ctx), epoch)
	})
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("apiclient.refresh: %w", ctx.Err())
	case result := <-resultChannel:
		if result.Shared {
			refresher.metrics.Increment(metricRefreshCoalesced)
		}
		if result.Err != nil {
			return "", result.Err
		}
		return result.Val.(string), nil
	}
}

func (refresher *Refresher) refreshOnce(ctx context.Context, epoch uint64) (string, error) {
	var payload refreshPayload
	header := http.Header{}
	if accessToken := refresher.credentials.AccessToken(); accessToken != "" {
		header.Set("Authorization", "Bearer "+accessToken)
	}
	if err := refresher.exchange.send(ctx, http.MethodGet, refreshPath, nil, header, nil, "", &payload); err != nil {
		refresher.metrics.Increment(metricRefreshFailure)
		refresher.logger.Warn("refresh request failed",
			zap.String("code", "apiclient.refresh.failed"),
			zap.Error(err))
		return "", fmt.Errorf("apiclient.refresh: %w: %w", ErrRefreshFailed, err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		refresher.metrics.Increment(metricRefreshFailure)
		refresher.logger.Warn("refresh response carried no access token",
			zap.String("code", "apiclient.refresh.empty_token"))
		return "", fmt.Errorf("apiclient.refresh: %w: empty access token", ErrRefreshFailed)
	}
	if err := refresher.credentials.ReplaceAccessToken(epoch, payload.AccessToken); err != nil {
		refresher.metrics.Increment(metricRefreshFailure)
		return "", fmt.Errorf("apiclient.refresh: %w", err)
	}
	refresher.metrics.Increment(metricRefreshSuccess)
	refresher.logger.Debug("access token refreshed",
		zap.String("code", "apiclient.refresh.success"))
	return payload.AccessToken, nil
}
