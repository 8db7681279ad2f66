// internal/app/system/timeouts/timeouts.go

// Package timeouts holds the per-tier context deadlines handlers put on
// their database work. Pick the tier by the weight of the operation:
// Ping for connectivity probes, Short for single-document lookups, Medium
// for list queries and plain writes, Long for multi-collection writes such
// as invitation acceptance, Batch for cascade deletes and restores.
package timeouts

import (
	"os"
	"sync"
	"time"
)

const (
	DefaultPing   = 2 * time.Second
	DefaultShort  = 5 * time.Second
	DefaultMedium = 10 * time.Second
	DefaultLong   = 30 * time.Second
	DefaultBatch  = 60 * time.Second
)

var (
	mu     sync.RWMutex
	ping   = DefaultPing
	short  = DefaultShort
	medium = DefaultMedium
	long   = DefaultLong
	batch  = DefaultBatch
)

func get(d *time.Duration) time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return *d
}

// Ping is the deadline for health probes.
func Ping() time.Duration { return get(&ping) }

// Short is the deadline for single-document reads.
func Short() time.Duration { return get(&short) }

// Medium is the deadline for list queries and plain writes.
func Medium() time.Duration { return get(&medium) }

// Long is the deadline for transactional, multi-collection writes.
func Long() time.Duration { return get(&long) }

// Batch is the deadline for cascade deletes and restores.
func Batch() time.Duration { return get(&batch) }

// ConfigureFromEnv overrides tiers from TASKHUB_TIMEOUT_* environment
// variables using Go duration syntax ("500ms", "5s", "2m"). Unset, empty,
// non-positive, and unparsable values keep the current tier. Returns the
// number of overrides applied.
func ConfigureFromEnv() int {
	mu.Lock()
	defer mu.Unlock()

	n := 0
	for _, tier := range []struct {
		key string
		dst *time.Duration
	}{
		{"TASKHUB_TIMEOUT_PING", &ping},
		{"TASKHUB_TIMEOUT_SHORT", &short},
		{"TASKHUB_TIMEOUT_MEDIUM", &medium},
		{"TASKHUB_TIMEOUT_LONG", &long},
		{"TASKHUB_TIMEOUT_BATCH", &batch},
	} {
		v := os.Getenv(tier.key)
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*tier.dst = d
			n++
		}
	}
	return n
}
