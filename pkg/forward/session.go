package forward

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"socksfwd/pkg/config"
	"socksfwd/pkg/socks"
)

// dialTimeout bounds each individual connect attempt toward the upstream.
const dialTimeout = 10 * time.Second

var errNoEndpoint = errors.New("no resolved address is available")

// halfCloser is the subset of *net.TCPConn used to shut both directions
// down before closing.
type halfCloser interface {
	CloseRead() error
	CloseWrite() error
}

// Session drives one accepted client connection through upstream
// resolution, connect fallback, the SOCKS5 handshake, and the relay
// phase. Stop is safe to call from any goroutine in any state.
type Session struct {
	id       uuid.UUID
	cfg      *config.Config
	resolver Resolver
	log      zerolog.Logger

	outer net.Conn // accepted client stream, owned for the session lifetime
	inner net.Conn // stream to the upstream proxy, assigned once during connect

	stopOnce sync.Once
	done     chan struct{}
}

// NewSession wraps an accepted stream. The session does nothing until
// Start is called.
func NewSession(outer net.Conn, cfg *config.Config, resolver Resolver, logger zerolog.Logger) *Session {
	id := uuid.New()
	return &Session{
		id:  id,
		cfg: cfg,
		log: logger.With().
			Stringer("session", id).
			Stringer("client", outer.RemoteAddr()).
			Logger(),
		resolver: resolver,
		outer:    outer,
		done:     make(chan struct{}),
	}
}

// Start begins driving the session on its own goroutine and returns
// immediately. The session stops itself on any terminal condition.
func (s *Session) Start() {
	go s.run()
}

// Done is closed once the session has stopped and both streams are closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Stop shuts down both directions of both streams and closes them.
// Idempotent; shutdown errors on an already-dead socket are swallowed
// because they are not a session-level failure.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		shutdownAndClose(s.outer)
		shutdownAndClose(s.inner)
		close(s.done)
	})
}

func shutdownAndClose(conn net.Conn) {
	if conn == nil {
		return
	}
	if hc, ok := conn.(halfCloser); ok {
		_ = hc.CloseRead()
		_ = hc.CloseWrite()
	}
	_ = conn.Close()
}

func (s *Session) run() {
	defer s.Stop()

	if err := s.connectUpstream(); err != nil {
		return
	}
	if err := s.handshake(); err != nil {
		return
	}
	s.relayBoth()
}

// connectUpstream resolves the upstream proxy and dials the resolved
// endpoints in order until one accepts.
func (s *Session) connectUpstream() error {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	endpoints, err := s.resolver.Resolve(ctx, s.cfg.UpstreamHost, s.cfg.UpstreamPort)
	if err != nil {
		s.log.Error().Err(err).Str("host", s.cfg.UpstreamHost).Msg("resolving upstream failed")
		return err
	}

	for _, endpoint := range endpoints {
		conn, err := net.DialTimeout("tcp", endpoint, dialTimeout)
		if err != nil {
			s.log.Debug().Err(err).Str("endpoint", endpoint).Msg("connect attempt failed")
			continue
		}
		s.inner = conn
		return nil
	}

	s.log.Error().Str("host", s.cfg.UpstreamHost).Msg(errNoEndpoint.Error())
	return errNoEndpoint
}

// handshake negotiates NoAuth and issues the CONNECT request for the
// configured target. Any failure here terminates the session before the
// relay phase; a clean EOF is logged at debug only.
func (s *Session) handshake() error {
	if err := writeAll(s.inner, socks.Greeting()); err != nil {
		s.logTerminal(err, "sending greeting failed")
		return err
	}
	if err := socks.ReadMethodSelection(s.inner); err != nil {
		s.logTerminal(err, "method selection failed")
		return err
	}

	req, err := socks.ConnectRequest(s.cfg.Target, s.cfg.TargetPort)
	if err != nil {
		s.log.Error().Err(err).Msg("encoding connect request failed")
		return err
	}
	if err := writeAll(s.inner, req); err != nil {
		s.logTerminal(err, "sending connect request failed")
		return err
	}
	if err := socks.ReadConnectReply(s.inner); err != nil {
		s.logTerminal(err, "connect reply failed")
		return err
	}

	s.log.Debug().
		Str("target", s.cfg.Target.String()).
		Uint16("port", s.cfg.TargetPort).
		Msg("tunnel established")
	return nil
}

// relayBoth runs both relay directions and waits for both to exit.
func (s *Session) relayBoth() {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.relay("outer->inner", s.outer, s.inner)
	}()
	go func() {
		defer wg.Done()
		s.relay("inner->outer", s.inner, s.outer)
	}()
	wg.Wait()
}

// logTerminal maps a terminal error to its log level: clean EOF and
// stop-induced closes are debug, everything else is an error.
func (s *Session) logTerminal(err error, msg string) {
	if isEOF(err) || isClosed(err) {
		s.log.Debug().Err(err).Msg(msg)
		return
	}
	s.log.Error().Err(err).Msg(msg)
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// isClosed reports whether err is the result of Stop closing a socket
// out from under a suspended read or write.
func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}
