package rpcapi

import (
	"fmt"
	"net"
	"net/rpc"
	"os"
)

// ServerInit binds an ephemeral listener on bindAddr and prints the
// `export SERVER_ADDRESS=...` / `export SERVER_PORT=...` lines to stdout,
// before the caller enters ServerExecute. Nothing may be printed
// to stdout ahead of this call or clients parsing that output will choke.
func ServerInit(bindAddr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(bindAddr, "0"))
	if err != nil {
		return nil, err
	}
	host, port, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		_ = ln.Close()
		return nil, err
	}
	fmt.Printf("export SERVER_ADDRESS=%s\n", host)
	fmt.Printf("export SERVER_PORT=%s\n", port)
	return ln, nil
}

// ServerExecute hands control to the dispatch loop: accept connections and
// serve each on its own goroutine until the listener is closed.
func ServerExecute(ln net.Listener, server *rpc.Server) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go server.ServeConn(conn)
	}
}

// ClientInit dials the server named by the SERVER_ADDRESS/SERVER_PORT
// environment variables, as emitted by ServerInit.
func ClientInit() (*rpc.Client, error) {
	addr := os.Getenv("SERVER_ADDRESS")
	port := os.Getenv("SERVER_PORT")
	if addr == "" || port == "" {
		return nil, fmt.Errorf("rpcapi: SERVER_ADDRESS and SERVER_PORT must be set")
	}
	return rpc.Dial("tcp", net.JoinHostPort(addr, port))
}

// ClientDestroy tears down the client connection.
func ClientDestroy(c *rpc.Client) error {
	return c.Close()
}
