package sse

import "time"

// Config holds SSE connection settings
type Config struct {
	// KeepAliveInterval is how often a comment line is sent so proxies keep
	// an idle board stream open
	KeepAliveInterval time.Duration
}

// DefaultConfig returns a 15 second keep-alive, below the idle timeout of
// common reverse proxies
func DefaultConfig() *Config {
	return &Config{
		KeepAliveInterval: 15 * time.Second,
	}
}
