// Command socksfwd forwards local TCP connections to a fixed target
// through an upstream SOCKS5 proxy.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"socksfwd/pkg/config"
	"socksfwd/pkg/forward"
)

// Exit codes.
const (
	Success        = 0 // clean shutdown
	ErrInvalidArgs = 1 // invalid or missing arguments
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return Success
		}
		fmt.Fprintln(os.Stderr, err)
		return ErrInvalidArgs
	}

	setupLogging(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle SIGINT (CTRL+C) and SIGTERM
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		received := <-sig
		log.Info().Stringer("signal", received).Msg("shutting down")
		cancel()
	}()

	var resolver forward.Resolver = forward.SystemResolver{}
	if cfg.DNSServer != "" {
		resolver = forward.NewDNSResolver(cfg.DNSServer)
	}

	srv := forward.NewServer(cfg, resolver, log.Logger)
	if err := srv.ListenAndServe(ctx); err != nil {
		log.Error().Err(err).Msg("server failed")
		return ErrInvalidArgs
	}
	return Success
}

// setupLogging configures zerolog: console output on stderr by default,
// or a rotating file when one is configured.
func setupLogging(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Log.Filename != "" {
		log.Logger = log.Output(&lumberjack.Logger{
			Filename:   cfg.Log.Filename,
			MaxSize:    cfg.Log.MaxSize,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAge,
			Compress:   cfg.Log.Compress,
		})
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}
