// Package server implements the TCP request server.
//
// Each accepted connection carries exactly one length-prefixed JSON
// request and receives exactly one response. Connections are handled by
// a worker pool; the accept loop never blocks on a slow handler.
package server

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kvslab/kvs/internal/engine"
	"github.com/kvslab/kvs/internal/protocol"
	"github.com/kvslab/kvs/pkg/pool"
)

// Config holds the server configuration.
type Config struct {
	// Addr is the TCP bind address.
	Addr string

	// ReadTimeout bounds reading the request (default: 30s).
	ReadTimeout time.Duration
	// WriteTimeout bounds writing the response (default: 30s).
	WriteTimeout time.Duration

	// RateLimit is the maximum requests per second per client IP.
	// Zero disables rate limiting.
	RateLimit int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Addr:         "127.0.0.1:4000",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server serves engine operations over TCP.
type Server struct {
	cfg    Config
	engine engine.Engine
	pool   pool.Pool
	logger *slog.Logger

	ln       net.Listener
	running  atomic.Bool
	stopOnce sync.Once
	wg       sync.WaitGroup

	limiters *ipLimiters
	metrics  serverMetrics
}

// New creates a server over the given engine and worker pool. The
// socket is not bound until Start.
func New(eng engine.Engine, cfg Config, p pool.Pool, logger *slog.Logger) *Server {
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:    cfg,
		engine: eng,
		pool:   p,
		logger: logger,
	}
	if cfg.RateLimit > 0 {
		s.limiters = newIPLimiters(cfg.RateLimit)
	}
	return s
}

// Start binds the listener and launches the accept loop. Bind failures
// are returned synchronously.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.running.Store(true)

	s.logger.Info("server listening", "addr", ln.Addr().String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop()
	}()
	return nil
}

// Addr returns the bound listener address. Valid after Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.cfg.Addr
	}
	return s.ln.Addr().String()
}

// Wait blocks until the accept loop has exited.
func (s *Server) Wait() {
	s.wg.Wait()
}

// Stop requests shutdown: it clears the running flag and opens a no-op
// connection to the bind address to unblock the accept call. In-flight
// handlers run to completion. Idempotent.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.running.Store(false)

		conn, err := net.DialTimeout("tcp", s.Addr(), time.Second)
		if err == nil {
			conn.Close()
			return
		}
		// Self-connect failed; close the listener to break the accept.
		if s.ln != nil {
			s.ln.Close()
		}
	})
}

// Close stops the server and waits for the accept loop to exit.
func (s *Server) Close() {
	s.Stop()
	s.Wait()
}

func (s *Server) acceptLoop() {
	defer s.ln.Close()

	for {
		conn, err := s.ln.Accept()
		if !s.running.Load() {
			if err == nil {
				conn.Close()
			}
			s.logger.Info("server stopped", "addr", s.Addr())
			return
		}
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}

		if s.limiters != nil && !s.limiters.allow(conn.RemoteAddr()) {
			s.metrics.observeRejected()
			conn.Close()
			continue
		}

		connID := ulid.Make().String()
		s.pool.Spawn(func() {
			s.serveConn(conn, connID)
		})
	}
}

// serveConn handles exactly one request/response pair.
func (s *Server) serveConn(conn net.Conn, connID string) {
	defer conn.Close()
	start := time.Now()

	logger := s.logger.With("conn", connID, "remote", conn.RemoteAddr().String())

	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	req, err := protocol.ReadRequest(conn)
	if err != nil {
		// A framing or codec failure aborts this connection only.
		logger.Debug("request decode failed", "error", err)
		s.metrics.observeDecodeError()
		return
	}

	resp := s.dispatch(req, logger)

	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := protocol.WriteResponse(conn, resp); err != nil {
		logger.Debug("response write failed", "error", err)
	}
	s.metrics.observeRequest(req.Op, resp, time.Since(start))
}

// dispatch maps one request to one engine call and its response.
func (s *Server) dispatch(req protocol.Request, logger *slog.Logger) protocol.Response {
	switch req.Op {
	case protocol.OpGet:
		value, ok, err := s.engine.Get(req.Key)
		if err != nil {
			logger.Error("get failed", "key", req.Key, "error", err)
			return protocol.ErrResponse()
		}
		if !ok {
			return protocol.AbsentResponse()
		}
		return protocol.OkResponse(value)

	case protocol.OpSet:
		if err := s.engine.Set(req.Key, req.Value); err != nil {
			logger.Error("set failed", "key", req.Key, "error", err)
			return protocol.ErrResponse()
		}
		return protocol.SuccessResponse()

	case protocol.OpRm:
		err := s.engine.Remove(req.Key)
		if errors.Is(err, engine.ErrKeyNotFound) {
			return protocol.KeyNotFoundResponse()
		}
		if err != nil {
			logger.Error("remove failed", "key", req.Key, "error", err)
			return protocol.ErrResponse()
		}
		return protocol.SuccessResponse()

	default:
		logger.Error("unknown request op", "op", uint8(req.Op))
		return protocol.ErrResponse()
	}
}
