package vfs

import (
	"time"

	"golang.org/x/sys/unix"
)

// Freshness decides whether a read-only session's cached copy can be
// trusted without asking the server. now is injected so tests can drive
// the T-second boundary without sleeping.
type Freshness struct {
	remote *Remote
	now    func() time.Time
}

// NewFreshness builds a Freshness engine around remote, using time.Now
// for the wall clock.
func NewFreshness(remote *Remote) *Freshness {
	return &Freshness{remote: remote, now: time.Now}
}

// Check reports whether path's cache copy at localPath is still fresh
// given the session's last revalidation time tc and the configured
// interval t. When the elapsed time has not reached t, the copy is fresh
// with no remote call. Otherwise it compares server mtime against local
// mtime: equal means fresh (and tc is reported back refreshed to now),
// unequal means stale. Revalidation failures propagate as errors rather
// than being treated as staleness.
func (f *Freshness) Check(path, localPath string, tc time.Time, t time.Duration) (fresh bool, refreshedTc time.Time, err error) {
	now := f.now()
	if now.Sub(tc) < t {
		return true, tc, nil
	}

	st, err := f.remote.Getattr(path)
	if err != nil {
		return false, tc, err
	}
	var local unix.Stat_t
	if err := unix.Stat(localPath, &local); err != nil {
		return false, tc, err
	}
	if st.Mtim.Sec == int64(local.Mtim.Sec) && st.Mtim.Nsec == int64(local.Mtim.Nsec) {
		return true, now, nil
	}
	return false, tc, nil
}
