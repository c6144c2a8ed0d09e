package vfs

import (
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/coherentfs/coherentfs/internal/rpcapi"
)

// entry is one Client Session Table record: the flags a path was opened
// with, its local cache descriptor, the server-assigned handle backing
// that open for the session's lifetime, and the freshness timestamp T_c.
// Same-entry operations serialize on mu; CST-wide operations (insert,
// erase, lookup) serialize on CST.mu instead, so Transfer Engine calls
// made while holding an entry's mu never block unrelated sessions.
type entry struct {
	mu       sync.Mutex
	flags    uint32
	localFd  *os.File
	remoteFI rpcapi.FileHandle
	tc       time.Time
}

func (e *entry) readOnly() bool {
	return e.flags&syscall.O_ACCMODE == syscall.O_RDONLY
}

// CST is the Client Session Table: one record per currently-open
// mount-relative path. A second open on a path already present fails
// with EMFILE, matching the "too many open files" condition the original
// session semantics produce.
type CST struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewCST returns an empty table.
func NewCST() *CST {
	return &CST{entries: make(map[string]*entry)}
}

// Insert performs the atomic find-then-insert: it fails with EMFILE if
// path is already present, otherwise creates and returns a fresh entry.
func (c *CST) Insert(path string, flags uint32, f *os.File, fi rpcapi.FileHandle, now time.Time) (*entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[path]; ok {
		return nil, syscall.EMFILE
	}
	e := &entry{flags: flags, localFd: f, remoteFI: fi, tc: now}
	c.entries[path] = e
	return e, nil
}

// Lookup returns the entry for path, if any, without locking it.
func (c *CST) Lookup(path string) (*entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[path]
	return e, ok
}

// Erase removes path's entry unconditionally. Safe to call even if the
// entry is already gone.
func (c *CST) Erase(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
}

// Len reports the number of live sessions, exposed as a metrics gauge.
func (c *CST) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
