package transfer

import (
	"log"
	"time"
)

// DefaultDelay is the pause between single-byte writes. EEPROMs need their
// internal write cycle to finish before the next byte.
const DefaultDelay = 10 * time.Millisecond

// Config holds the transfer driver configuration.
type Config struct {
	// Delay is the pause between consecutive device writes.
	Delay time.Duration

	// Verify compares the post-write dump against the written bytes.
	Verify bool

	// ConfirmDump controls whether a full dump is taken after writing.
	// Verify implies it.
	ConfirmDump bool

	// ProgressCallback is invoked as the transfer advances (optional).
	ProgressCallback ProgressCallback

	// Logger receives per-phase log lines (optional).
	Logger *log.Logger
}

func defaultConfig() Config {
	return Config{
		Delay:       DefaultDelay,
		ConfirmDump: true,
	}
}

// Option is a functional option for configuring the Transfer.
type Option func(*Config)

// WithDelay sets the pause between device writes.
func WithDelay(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.Delay = d
		}
	}
}

// WithVerify enables read-back verification after the write pass.
func WithVerify(verify bool) Option {
	return func(c *Config) {
		c.Verify = verify
	}
}

// WithConfirmDump enables or disables the post-write confirmation dump.
func WithConfirmDump(confirm bool) Option {
	return func(c *Config) {
		c.ConfirmDump = confirm
	}
}

// WithProgressCallback sets a callback to track transfer progress.
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for transfer operations.
func WithLogger(logger *log.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}
