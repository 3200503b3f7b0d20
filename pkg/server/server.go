// Package server is the thin TCP front-end: a bounded worker pool
// accepts connections behind a 1-second poll loop (so shutdown never
// blocks on Accept), rate-limits LOGIN attempts per remote address,
// and exposes buffer pool metrics over HTTP. Connection handling
// itself (parsing frames, running statements) is injected by the
// caller so this package never has to import the SQL/engine layers.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/tokenbucket"
	"go.uber.org/zap"

	"github.com/francodb/francodb/pkg/errors"
)

// Handler processes one accepted connection. It owns the connection's
// full lifetime, including closing it, and runs on a worker goroutine.
type Handler interface {
	HandleConn(ctx context.Context, conn net.Conn)
}

// Config controls a Server's resource shape.
type Config struct {
	Address        string
	Workers        int           // thread pool size; 0 selects a small default
	QueueDepth     int           // pending-connection backlog before Submit blocks
	LoginRateLimit tokenbucket.TokensPerSecond
	LoginBurst     tokenbucket.Tokens
	MetricsAddr    string // empty disables the /metrics listener
	SentryDSN      string // empty disables error reporting
}

// Server is one listening francodb front-end.
type Server struct {
	cfg     Config
	handler Handler
	logger  *zap.Logger

	pool    *workerPool
	limiter *loginLimiter
	metrics *BufferPoolMetrics
	errs    *errorReporter

	listener   *net.TCPListener
	metricsSrv *http.Server

	stop chan struct{}
}

// New builds a Server; it does not start listening until Serve is
// called.
func New(cfg Config, handler Handler, logger *zap.Logger) (*Server, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 16
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 256
	}
	if cfg.LoginRateLimit <= 0 {
		cfg.LoginRateLimit = 2
	}
	if cfg.LoginBurst <= 0 {
		cfg.LoginBurst = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	errs, err := newErrorReporter(cfg.SentryDSN)
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		pool:    newWorkerPool(cfg.Workers, cfg.QueueDepth),
		limiter: newLoginLimiter(cfg.LoginRateLimit, cfg.LoginBurst),
		metrics: NewBufferPoolMetrics(),
		errs:    errs,
		stop:    make(chan struct{}),
	}, nil
}

// Metrics exposes the server's buffer pool metric set so the engine
// facade can feed it live counts from the buffer pool it owns.
func (s *Server) Metrics() *BufferPoolMetrics { return s.metrics }

// LoginAllowed reports whether addr may attempt another LOGIN right
// now; the connection handler calls this before checking credentials.
func (s *Server) LoginAllowed(addr string) bool { return s.limiter.Allow(addr) }

// Serve binds the listener and runs the accept loop until ctx is
// canceled or Stop is called. It blocks until shutdown completes.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return errors.Wrap(errors.IOError, err, "binding server listener")
	}
	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return errors.New(errors.IOError, "server requires a TCP listener")
	}
	s.listener = tcpLn
	s.logger.Info("server listening", zap.String("address", s.cfg.Address))

	if s.cfg.MetricsAddr != "" {
		s.startMetricsServer()
	}

	s.acceptLoop(ctx)

	s.pool.Stop()
	s.errs.Close()
	if s.metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.metricsSrv.Shutdown(shutdownCtx)
	}
	return nil
}

// acceptLoop polls Accept with a 1-second deadline so it can notice
// shutdown without blocking indefinitely on a connection that never
// arrives, the Go analogue of the original's selector-based accept().
func (s *Server) acceptLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.listener.Close()
			return
		case <-s.stop:
			s.listener.Close()
			return
		default:
		}

		s.listener.SetDeadline(time.Now().Add(1 * time.Second))
		conn, err := s.listener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			default:
				s.logger.Warn("accept failed", zap.Error(err))
				s.errs.Report(errors.Wrap(errors.IOError, err, "accepting connection"))
				continue
			}
		}

		addr := conn.RemoteAddr().String()
		s.pool.Submit(func() {
			defer s.limiter.forget(addr)
			s.handler.HandleConn(ctx, conn)
		})
	}
}

// Stop requests a graceful shutdown; Serve returns once the in-flight
// connection handlers drain.
func (s *Server) Stop() {
	close(s.stop)
}
