// Package abuse implements request throttling and pre-auth request guards.
package abuse

import (
	"errors"
	"time"
)

var ErrRateLimited = errors.New("too many requests")

// Result reports a limiter decision.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}
