// Package server implements the RESP2 TCP dispatcher: it accepts client
// connections, frames requests and replies with the resp
// package's codec, and routes each command to the engine — either
// directly, or through a per-connection Transaction Controller while a
// MULTI block is open.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/smallnest/redisqlite/engine"
	"github.com/smallnest/redisqlite/log"
)

// Server owns a listener and the set of currently open connections.
type Server struct {
	engine *engine.Engine
	logger log.Logger

	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	listener net.Listener
	group    *errgroup.Group
	cancel   context.CancelFunc
}

// New creates a Server dispatching to e.
func New(e *engine.Engine, logger log.Logger) *Server {
	if logger == nil {
		logger = &log.NoOpLogger{}
	}
	return &Server{
		engine: e,
		logger: logger,
		conns:  make(map[net.Conn]struct{}),
	}
}

// ListenAndServe binds addr and serves connections until ctx is canceled
// or Close is called. It blocks until shutdown completes.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections off ln until ctx is canceled or Close is
// called, dispatching each to its own goroutine under an errgroup so Close
// can wait for every in-flight connection to finish unwinding.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.listener = ln
	s.cancel = cancel
	g, gctx := errgroup.WithContext(ctx)
	s.group = g
	s.mu.Unlock()

	g.Go(func() error {
		<-gctx.Done()
		return ln.Close()
	})

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-gctx.Done():
				return g.Wait()
			default:
				s.logger.Warn("server: accept: %v", err)
				continue
			}
		}
		s.trackConn(conn)
		connID := uuid.New().String()
		s.logger.Debug("server: conn %s accepted from %s", connID, conn.RemoteAddr())
		g.Go(func() error {
			defer s.untrackConn(conn)
			s.handleConn(gctx, conn)
			s.logger.Debug("server: conn %s closed", connID)
			return nil
		})
	}
}

// Close stops accepting new connections, closes every open connection, and
// waits for their handler goroutines to return.
func (s *Server) Close() error {
	s.mu.Lock()
	cancel := s.cancel
	conns := make([]net.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	group := s.group
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, c := range conns {
		c.Close()
	}
	if group != nil {
		return group.Wait()
	}
	return nil
}

func (s *Server) trackConn(c net.Conn) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrackConn(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	c.Close()
}
