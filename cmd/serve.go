package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bryan-buckman/frontpage/internal/server"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the story API, the RSS re-feed and metrics",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "Listen address; overrides server.addr",
				EnvVars: []string{"FRONTPAGE_ADDR"},
			},
		},
		Action: func(ctx *cli.Context) error {
			rt, err := setup(ctx)
			if err != nil {
				return err
			}
			defer rt.store.Close()

			addr := rt.cfg.Server.Addr
			if ctx.IsSet("addr") {
				addr = ctx.String("addr")
			}

			srv := server.New(rt.cfg, rt.store, rt.ranker)
			errc := make(chan error, 1)
			go func() {
				errc <- srv.Start(addr)
			}()

			sig, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdownCtx := func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(context.Background(), 30*time.Second)
			}

			select {
			case err := <-errc:
				sctx, cancel := shutdownCtx()
				defer cancel()
				if stopErr := srv.Stop(sctx); stopErr != nil {
					log.Errorf("Error stopping server: %v", stopErr)
				}
				return err
			case <-sig.Done():
			}

			log.Info("Gracefully shutting down...")
			sctx, cancel := shutdownCtx()
			defer cancel()
			return srv.Stop(sctx)
		},
	}
}
