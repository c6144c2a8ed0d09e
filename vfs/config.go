package vfs

import "time"

// Config carries the knobs a mount process accepts: where to cache files
// locally and how long a reader trusts its own copy before revalidating.
type Config struct {
	CacheDir  string
	Freshness time.Duration
}
