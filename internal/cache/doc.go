// Package cache holds the node's time-bounded collections.
//
// Every cache stamps entries with the injected clock on insertion and treats
// an entry as absent once now-stamp >= window, whether or not it has been
// swept yet. Sweeping happens lazily on access and through Sweep.
package cache

import "time"

const (
	DefaultFilterExpiry     = 20 * time.Minute
	DefaultPublicIDExpiry   = 10 * time.Minute
	DefaultPublicIDCapacity = 500
	DefaultFreshnessWindow  = 2 * time.Minute
)

func expired(now, stamp time.Time, window time.Duration) bool {
	return now.Sub(stamp) >= window
}
