package forward

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"socksfwd/pkg/config"
)

// Server accepts client connections on the configured port and hands
// each one to a new Session. IPv4 and IPv6 are bound independently so
// either family may be unavailable without affecting the other.
type Server struct {
	cfg      *config.Config
	resolver Resolver
	log      zerolog.Logger

	listeners []net.Listener
}

func NewServer(cfg *config.Config, resolver Resolver, logger zerolog.Logger) *Server {
	return &Server{cfg: cfg, resolver: resolver, log: logger}
}

// ListenAndServe binds both address families and accepts until the
// context is cancelled. It fails only if neither family could be bound.
func (srv *Server) ListenAndServe(ctx context.Context) error {
	v4, err4 := srv.listen(ctx, "tcp4", false)
	v6, err6 := srv.listen(ctx, "tcp6", true)
	if err4 != nil && err6 != nil {
		return fmt.Errorf("listen: %w", err4)
	}
	if err4 != nil {
		srv.log.Warn().Err(err4).Msg("IPv4 listener unavailable")
	}
	if err6 != nil {
		srv.log.Warn().Err(err6).Msg("IPv6 listener unavailable")
	}

	for _, ln := range []net.Listener{v4, v6} {
		if ln != nil {
			srv.listeners = append(srv.listeners, ln)
		}
	}

	go func() {
		<-ctx.Done()
		for _, ln := range srv.listeners {
			_ = ln.Close()
		}
	}()

	var wg sync.WaitGroup
	for _, ln := range srv.listeners {
		wg.Add(1)
		go func(ln net.Listener) {
			defer wg.Done()
			srv.acceptLoop(ln)
		}(ln)
	}
	wg.Wait()
	return nil
}

// listen binds one address family with SO_REUSEADDR; the IPv6 listener
// additionally sets IPV6_V6ONLY so the two never collide on the port.
func (srv *Server) listen(ctx context.Context, network string, v6only bool) (net.Listener, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var serr error
			if err := c.Control(func(fd uintptr) {
				serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
				if serr != nil || !v6only {
					return
				}
				serr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 1)
			}); err != nil {
				return err
			}
			return serr
		},
	}
	return lc.Listen(ctx, network, fmt.Sprintf(":%d", srv.cfg.ListenPort))
}

// acceptLoop accepts until the listener closes. Accept errors are logged
// and the loop re-arms; they never terminate the acceptor.
func (srv *Server) acceptLoop(ln net.Listener) {
	srv.log.Info().Stringer("addr", ln.Addr()).Msg("listening")
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			srv.log.Error().Err(err).Msg("accept failed")
			continue
		}
		NewSession(conn, srv.cfg, srv.resolver, srv.log).Start()
	}
}
