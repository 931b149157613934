package ratelimit

import "errors"

var (
	// ErrInvalidConfig is returned by New when the limiter parameters cannot produce a usable bucket.
	ErrInvalidConfig = errors.New("ratelimit: invalid configuration")
)
