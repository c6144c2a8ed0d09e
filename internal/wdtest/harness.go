// Package wdtest provides an in-process client/server harness for
// integration tests: a real net/rpc listener backed by an arbiter.Service,
// dialed by a real *rpc.Client, so scenario tests exercise the actual wire
// path instead of an in-process fake.
package wdtest

import (
	"net"
	"net/rpc"

	"github.com/coherentfs/coherentfs/arbiter"
	"github.com/coherentfs/coherentfs/internal/rpcapi"
)

// Harness owns a listening arbiter server and a dialed client pointed at
// it, plus the persistence root backing the server.
type Harness struct {
	Root   string
	Somt   *arbiter.SOMT
	Client *rpc.Client

	ln net.Listener
}

// New starts a server rooted at root and dials it, returning a ready
// Harness. Call Close when done.
func New(root string) (*Harness, error) {
	somt := arbiter.NewSOMT()
	svc := arbiter.NewService(root, somt, nil)

	rs := rpc.NewServer()
	if err := rs.RegisterName(rpcapi.ServiceName, svc); err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go rs.ServeConn(conn)
		}
	}()

	client, err := rpc.Dial("tcp", ln.Addr().String())
	if err != nil {
		_ = ln.Close()
		return nil, err
	}

	return &Harness{Root: root, Somt: somt, Client: client, ln: ln}, nil
}

// NewClient dials a second client at the same listener, for tests that
// need two independent sessions racing the same server (single-writer
// exclusion, for instance).
func (h *Harness) NewClient() (*rpc.Client, error) {
	return rpc.Dial("tcp", h.ln.Addr().String())
}

// Close tears down the client and listener.
func (h *Harness) Close() error {
	_ = h.Client.Close()
	return h.ln.Close()
}
