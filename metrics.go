package goIdent

import "sync/atomic"

// MetricID identifies one engine counter.
type MetricID uint16

const (
	// MetricLoginSuccess counts completed logins (password-only or two-factor).
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts generic credential failures.
	MetricLoginFailure
	// MetricLoginLocked counts attempts rejected inside a lockout window.
	MetricLoginLocked
	// MetricLoginRateLimited counts attempts rejected by the Redis throttle.
	MetricLoginRateLimited
	// MetricAccountLocked counts lockout windows being opened.
	MetricAccountLocked
	// MetricTwoFactorChallenged counts logins that produced a pending challenge.
	MetricTwoFactorChallenged
	// MetricTwoFactorSuccess counts completed two-factor verifications.
	MetricTwoFactorSuccess
	// MetricTwoFactorFailure counts failed two-factor verifications.
	MetricTwoFactorFailure
	// MetricBackupCodeUsed counts backup-code consumptions.
	MetricBackupCodeUsed
	// MetricRegistered counts created accounts.
	MetricRegistered
	// MetricEmailVerified counts pending accounts activated.
	MetricEmailVerified
	// MetricRefreshSuccess counts successful rotations.
	MetricRefreshSuccess
	// MetricRefreshFailure counts rejected refresh attempts.
	MetricRefreshFailure
	// MetricRefreshReuseDetected counts replay detections (family revocations).
	MetricRefreshReuseDetected
	// MetricLogout counts single-token logouts.
	MetricLogout
	// MetricLogoutAll counts all-session revocations.
	MetricLogoutAll
	// MetricPasswordChanged counts successful password changes.
	MetricPasswordChanged
	// MetricPasswordResetRequest counts reset-token issuances.
	MetricPasswordResetRequest
	// MetricPasswordResetConfirm counts completed resets.
	MetricPasswordResetConfirm
	// MetricAPIKeyValidated counts successful API-key validations.
	MetricAPIKeyValidated
	// MetricAPIKeyDenied counts rejected API-key validations.
	MetricAPIKeyDenied
	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed-size, allocation-free counter registry. All methods are
// safe for concurrent use.
type Metrics struct {
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics returns an empty registry.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Inc increments one counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Value reads one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter into a map for export.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, int(metricIDCount)),
	}
	if m == nil {
		return s
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return s
}
