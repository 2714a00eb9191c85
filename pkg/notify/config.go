package notify

import (
	"os"
	"strconv"
	"time"
)

// BusConfig holds tuning knobs for the notification bus.
type BusConfig struct {
	// SubscriberBuffer is the per-subscriber channel capacity beyond any
	// replayed backlog.
	SubscriberBuffer int
	// ReplayLimit caps how many edits are replayed on a single subscribe.
	ReplayLimit int
	// MaxSubscribers caps concurrent live subscribers.
	MaxSubscribers int
	// Heartbeat is the idle keep-alive interval for streaming responses.
	Heartbeat time.Duration
}

// DefaultBusConfig returns the default bus configuration.
func DefaultBusConfig() *BusConfig {
	return &BusConfig{
		SubscriberBuffer: 64,
		ReplayLimit:      500,
		MaxSubscribers:   256,
		Heartbeat:        15 * time.Second,
	}
}

// BusConfigFromEnv builds a BusConfig from environment variables, falling
// back to defaults for anything unset or unparsable.
func BusConfigFromEnv() *BusConfig {
	cfg := DefaultBusConfig()
	if v := os.Getenv("ROADOPS_NOTIFY_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SubscriberBuffer = n
		}
	}
	if v := os.Getenv("ROADOPS_NOTIFY_REPLAY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ReplayLimit = n
		}
	}
	if v := os.Getenv("ROADOPS_NOTIFY_MAX_SUBSCRIBERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxSubscribers = n
		}
	}
	if v := os.Getenv("ROADOPS_NOTIFY_HEARTBEAT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Heartbeat = d
		}
	}
	return cfg
}

// RetentionConfig controls pruning of the recent-edits log.
type RetentionConfig struct {
	// MaxAge is how long edit records are kept. Zero disables pruning.
	MaxAge time.Duration
	// Interval is how often the pruning pass runs.
	Interval time.Duration
}

// DefaultRetentionConfig returns the default retention configuration:
// keep thirty days of edits, prune hourly.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		MaxAge:   30 * 24 * time.Hour,
		Interval: time.Hour,
	}
}

// RetentionConfigFromEnv builds a RetentionConfig from environment
// variables, falling back to defaults.
func RetentionConfigFromEnv() *RetentionConfig {
	cfg := DefaultRetentionConfig()
	if v := os.Getenv("ROADOPS_EDITS_MAX_AGE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.MaxAge = d
		}
	}
	if v := os.Getenv("ROADOPS_EDITS_PRUNE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Interval = d
		}
	}
	return cfg
}
