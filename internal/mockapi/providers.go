package mockapi

import (
	"sync"
	"time"

	"github.com/tyemirov/helpdesk/internal/metrics"
	"go.uber.org/zap"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// NewSystemClock returns a Clock backed by time.Now.
func NewSystemClock() Clock {
	return systemClock{}
}

var (
	providerMutex   sync.RWMutex
	providedClock   Clock
	providedLogger  *zap.Logger
	providedMetrics metrics.Recorder
)

// ProvideClock overrides the clock used by handlers and stores. Nil restores
// the system clock.
func ProvideClock(clock Clock) {
	providerMutex.Lock()
	defer providerMutex.Unlock()
	providedClock = clock
}

// ProvideLogger overrides the handler logger. Nil restores a no-op logger.
func ProvideLogger(logger *zap.Logger) {
	providerMutex.Lock()
	defer providerMutex.Unlock()
	providedLogger = logger
}

// ProvideMetrics overrides the auth event recorder. Nil discards events.
func ProvideMetrics(recorder metrics.Recorder) {
	providerMutex.Lock()
	defer providerMutex.Unlock()
	providedMetrics = recorder
}

func currentClock() Clock {
	providerMutex.RLock()
	defer providerMutex.RUnlock()
	if providedClock == nil {
		return systemClock{}
	}
	return providedClock
}

func currentLogger() *zap.Logger {
	providerMutex.RLock()
	defer providerMutex.RUnlock()
	if providedLogger == nil {
		return zap.NewNop()
	}
	return providedLogger
}

func currentMetrics() metrics.Recorder {
	providerMutex.RLock()
	defer providerMutex.RUnlock()
	if providedMetrics == nil {
		return metrics.Nop{}
	}
	return providedMetrics
}

// clockFunc adapts currentClock for components that capture a Clock once but
// must observe later ProvideClock calls.
type clockFunc func() time.Time

func (function clockFunc) Now() time.Time {
	return function()
}

func dynamicClock() Clock {
	return clockFunc(func() time.Time { return currentClock().Now() })
}
