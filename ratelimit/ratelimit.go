// Package ratelimit defines the shapes shared by the limiter backends.
package ratelimit

import "time"

// Limit is a fixed-window limit: at most Max events per Window.
type Limit struct {
	Window time.Duration
	Max    int
}

// Limits maps bucket names to their limit.
type Limits map[string]Limit
