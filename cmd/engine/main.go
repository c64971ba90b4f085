// Command engine runs the DUI protocol dispatcher over stdin/stdout, so a
// DUI client (pkg/dui, or any other implementation of the protocol) can
// drive the adjudicator and RM+ search engine as a subprocess.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tillerman/parley/pkg/engine"
)

func main() {
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info().Msg("received shutdown signal")
		cancel()
	}()

	d := engine.NewDispatcher(log.Logger)
	if err := d.Run(ctx, os.Stdin, os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("engine dispatcher failed")
	}
}
