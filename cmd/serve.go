package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"usdo-ledger/api"
	"usdo-ledger/config"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the keeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	n, err := newNode(ctx, cfg)
	if err != nil {
		return err
	}
	defer n.close()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.New(n.gw, n.feeds, n.events, n.now).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logrus.Infof("api listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	})
	if n.head != nil {
		g.Go(func() error { return n.head.Run(ctx) })
	}
	if cfg.Keeper != "" {
		k := newKeeper(n.gw, config.Address(cfg.Keeper), cfg.KeeperInterval)
		g.Go(func() error { return k.run(ctx) })
	}

	return g.Wait()
}
