package peertalk

import "time"

// Config tunes one Channel's codec ceiling and write-side backpressure.
// Mirrors smux's Config: a plain value type with a DefaultConfig
// constructor. At construction, zero fields are filled in from the
// defaults once; other values are used as given, without range checks.
type Config struct {
	// MaxPayloadSize bounds payload_size for both reads and writes; a
	// peer-declared payload_size above this is ErrPayloadTooLarge before
	// any allocation (spec.md §3, §8 scenario 5).
	MaxPayloadSize uint32

	// MaxQueuedFrames bounds how many sends may be enqueued and not yet
	// flushed before SendFrame blocks the caller (spec.md §4.3 default: 64).
	MaxQueuedFrames int

	// MaxQueuedBytes bounds the total buffered payload bytes of enqueued,
	// unflushed sends (spec.md §4.3 default: 1 MiB).
	MaxQueuedBytes int

	// DialTimeout bounds ConnectNetwork's non-blocking connect.
	DialTimeout time.Duration
}

// DefaultConfig returns the spec's stated defaults: a 16 MiB payload
// ceiling and a 64-frame/1-MiB write queue.
func DefaultConfig() *Config {
	return &Config{
		MaxPayloadSize:  DefaultPayloadCeiling,
		MaxQueuedFrames: 64,
		MaxQueuedBytes:  1 << 20,
		DialTimeout:     30 * time.Second,
	}
}

func (c *Config) withDefaults() *Config {
	if c == nil {
		return DefaultConfig()
	}
	cfg := *c
	if cfg.MaxPayloadSize == 0 {
		cfg.MaxPayloadSize = DefaultPayloadCeiling
	}
	if cfg.MaxQueuedFrames == 0 {
		cfg.MaxQueuedFrames = 64
	}
	if cfg.MaxQueuedBytes == 0 {
		cfg.MaxQueuedBytes = 1 << 20
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 30 * time.Second
	}
	return &cfg
}
