package healthcheck

import (
	"context"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/rs/zerolog"
)

// ReadyMsg is the single byte written to a client once the profiler's
// shared tables are allocated and its triggers are attached.
const ReadyMsg = 0x01

// Server is the readiness endpoint external collaborators poll to know
// when sampling has started. It listens on a unix domain socket and
// answers each connection with ReadyMsg as soon as readiness is marked.
type Server struct {
	ln         net.Listener
	readyCh    chan struct{}
	socketPath string
	logger     log.Logger
}

func NewServer(socketPath string, logger log.Logger) *Server {
	return &Server{
		socketPath: socketPath,
		readyCh:    make(chan struct{}),
		logger:     logger.With().Str("component", "healthcheck").Logger(),
	}
}

// Listen binds the socket, replacing any stale one, and starts serving
// connections until the context is cancelled.
func (s *Server) Listen(ctx context.Context) error {
	os.Remove(s.socketPath)

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return errors.Wrap(err, "error listening on readiness socket")
	}
	s.ln = ln

	go s.serve(ctx)

	return nil
}

// NotifyReadiness marks the profiler ready. Safe to call once.
func (s *Server) NotifyReadiness() {
	s.logger.Debug().Msg("marking readiness")
	close(s.readyCh)
}

// Shutdown closes the listener and removes the socket file.
func (s *Server) Shutdown() error {
	if s.ln != nil {
		if err := s.ln.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("error closing listener")
		}
	}

	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "error removing readiness socket")
	}

	return nil
}

func (s *Server) serve(ctx context.Context) {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}
			s.logger.Warn().Err(err).Msg("accept error")
			continue
		}

		go s.answer(ctx, conn)
	}
}

// answer holds the connection open until readiness, then writes the
// ready byte and closes.
func (s *Server) answer(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	select {
	case <-s.readyCh:
		conn.SetWriteDeadline(time.Now().Add(time.Second))
		if _, err := conn.Write([]byte{ReadyMsg}); err != nil {
			if !errors.Is(err, syscall.EPIPE) && !errors.Is(err, syscall.ECONNRESET) {
				s.logger.Debug().Err(err).Msg("failed to write ready message")
			}
		}
	case <-ctx.Done():
	}
}
