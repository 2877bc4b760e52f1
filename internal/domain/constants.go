package domain

import "time"

// ==== WebSocket Constants ====

// MaxMessageSize is the maximum allowed WebSocket message size in bytes
const MaxMessageSize = 4096

// ==== Presence Constants ====

// DefaultAwayTimeout is the silence window after which an online user
// is demoted to away.
const DefaultAwayTimeout = 30 * time.Second

// ==== History Constants ====

// DefaultHistoryLimit is the maximum number of messages returned for
// initial scope sync.
const DefaultHistoryLimit = 200

// RemovedBody replaces the body of a message whose removal has been
// propagated to subscribers.
const RemovedBody = "[message removed]"

// ==== Session Constants ====

// SessionTTL is the default session cookie time-to-live
const SessionTTL = 24 * time.Hour

// ==== Rate Limit Constants ====

const (
	// DefaultRateLimitAPI is the default rate limit for API endpoints (requests/sec)
	DefaultRateLimitAPI = 10

	// DefaultRateLimitWS is the default rate limit for WebSocket connections (req/sec)
	DefaultRateLimitWS = 5
)
