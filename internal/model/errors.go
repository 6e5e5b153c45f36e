package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRemoteUnavailable means the remote service could not be reached or refused
	// the session. Fatal to the calling operation only.
	ErrRemoteUnavailable = errors.New("remote unavailable")

	// ErrCacheUnavailable means the cache store failed. Callers degrade to remote-only.
	ErrCacheUnavailable = errors.New("cache unavailable")

	// ErrEntityResolution marks a failed sender or entity lookup for a single item.
	ErrEntityResolution = errors.New("entity resolution failed")

	// ErrTopicAmbiguous marks a topic classification that matched nothing.
	ErrTopicAmbiguous = errors.New("topic could not be isolated")
)

// RateLimitedError is returned when the remote service asks the caller to wait.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter)
}

// RetryAfter extracts the wait duration from a rate-limit error anywhere in err's chain.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}
