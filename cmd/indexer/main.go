package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"perp-indexer/internal/api"
	"perp-indexer/internal/config"
	"perp-indexer/internal/indexer"
	"perp-indexer/internal/ingestion"
	"perp-indexer/internal/logging"
	"perp-indexer/internal/observability"
	"perp-indexer/internal/storage"
	"perp-indexer/internal/verification"
)

func main() {
	app := &cli.App{
		Name:  "perp-indexer",
		Usage: "index perpetual exchange events into queryable read models",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "path to the YAML config file",
				EnvVars: []string{config.EnvPrefix + "CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "optional .env file loaded before the config",
			},
		},
		Before: func(c *cli.Context) error {
			return config.LoadEnvFile(c.String("env-file"))
		},
		Commands: []*cli.Command{
			runCommand(),
			replayCommand(),
			verifyCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// setup loads the config and builds the shared logger.
func setup(c *cli.Context) (*config.Config, *log.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// withSignals cancels the returned context on SIGINT/SIGTERM. A second signal,
// or a graceful shutdown longer than 30s, exits the process immediately.
// The returned func must be called once the work has finished.
func withSignals(parent context.Context, logger log.FieldLogger) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.WithField("signal", sig).Info("shutting down")
			cancel()
		case <-done:
			return
		}

		select {
		case sig := <-sigCh:
			logger.WithField("signal", sig).Warn("second signal, forcing exit")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Error("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		close(done)
		cancel()
	}
}

func dispatcherOptions(cfg *config.Config, chain string, logger log.FieldLogger) (indexer.Options, error) {
	resolutions, err := cfg.ParsedResolutions()
	if err != nil {
		return indexer.Options{}, err
	}
	return indexer.Options{
		Chain:       chain,
		Dedupe:      cfg.Dedupe,
		Resolutions: resolutions,
		Logger:      logger,
	}, nil
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "index every configured chain and serve the read API",
		Action: func(c *cli.Context) error {
			cfg, logger, err := setup(c)
			if err != nil {
				return err
			}
			ctx, stop := withSignals(c.Context, logger)
			defer stop()
			return run(ctx, cfg, logger)
		},
	}
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	stores, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStores(stores)

	runners := make([]*ingestion.Runner, 0, len(cfg.Chains))
	apiStores := make(map[string]storage.EntityStore, len(stores))
	for _, cc := range cfg.Chains {
		store := stores[cc.Name]
		apiStores[cc.Name] = store

		opts, err := dispatcherOptions(cfg, cc.Name, logger)
		if err != nil {
			return err
		}
		d, err := indexer.NewDispatcher(store, opts)
		if err != nil {
			return fmt.Errorf("chain %s: %w", cc.Name, err)
		}
		src, err := newSource(cc, logger)
		if err != nil {
			return fmt.Errorf("chain %s: %w", cc.Name, err)
		}
		runners = append(runners, ingestion.NewRunner(ingestion.RunnerOptions{
			Chain:   cc.Name,
			Source:  src,
			Handler: d,
			Logger:  logger,
		}))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := ingestion.RunChains(gctx, runners); err != nil {
			return err
		}
		logger.Info("all sources exhausted, serving until interrupted")
		return nil
	})
	if cfg.MetricsAddr != "" {
		g.Go(func() error { return serveMetrics(gctx, cfg.MetricsAddr, logger) })
	}
	if cfg.APIAddr != "" {
		g.Go(func() error { return api.NewServer(cfg.APIAddr, apiStores, logger).Run(gctx) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// serveMetrics exposes /metrics and /health until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string, logger log.FieldLogger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.WithField("addr", addr).Info("metrics server starting")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

func eventsFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "events",
		Usage: "JSON-lines event log; defaults to the chain's file source path",
	}
}

func chainFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "chain",
		Usage: "chain to operate on; optional when only one chain is configured",
	}
}

// loadEvents reads the event log for a chain from --events or its file source.
func loadEvents(c *cli.Context, cc config.ChainConfig) (string, error) {
	path := c.String("events")
	if path == "" && cc.Source.Type == config.SourceFile {
		path = cc.Source.Path
	}
	if path == "" {
		return "", fmt.Errorf("chain %s has no file source, pass --events", cc.Name)
	}
	return path, nil
}

func replayCommand() *cli.Command {
	return &cli.Command{
		Name:  "replay",
		Usage: "index an event log file into the chain's configured store and exit",
		Flags: []cli.Flag{chainFlag(), eventsFlag()},
		Action: func(c *cli.Context) error {
			cfg, logger, err := setup(c)
			if err != nil {
				return err
			}
			cc, err := selectChain(cfg, c.String("chain"))
			if err != nil {
				return err
			}
			path, err := loadEvents(c, cc)
			if err != nil {
				return err
			}

			ctx, stop := withSignals(c.Context, logger)
			defer stop()

			store, err := openStore(ctx, cc)
			if err != nil {
				return err
			}
			defer store.closer()

			opts, err := dispatcherOptions(cfg, cc.Name, logger)
			if err != nil {
				return err
			}
			d, err := indexer.NewDispatcher(store, opts)
			if err != nil {
				return err
			}
			r := ingestion.NewRunner(ingestion.RunnerOptions{
				Chain:   cc.Name,
				Source:  ingestion.NewFileSource(path),
				Handler: d,
				Logger:  logger,
			})
			if err := r.Run(ctx); err != nil {
				return err
			}
			logger.WithFields(log.Fields{"chain": cc.Name, "events": r.Processed()}).Info("replay complete")
			return nil
		},
	}
}

func verifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "check that indexing an event log is deterministic, or that a store matches it",
		Flags: []cli.Flag{
			chainFlag(),
			eventsFlag(),
			&cli.BoolFlag{
				Name:  "store",
				Usage: "compare against the chain's configured store instead of a second replay",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := setup(c)
			if err != nil {
				return err
			}
			cc, err := selectChain(cfg, c.String("chain"))
			if err != nil {
				return err
			}
			path, err := loadEvents(c, cc)
			if err != nil {
				return err
			}
			evs, err := ingestion.NewFileSource(path).Load()
			if err != nil {
				return err
			}
			opts, err := dispatcherOptions(cfg, cc.Name, logging.Discard())
			if err != nil {
				return err
			}

			ctx := c.Context
			var report *verification.VerificationReport
			if c.Bool("store") {
				store, err := openStore(ctx, cc)
				if err != nil {
					return err
				}
				defer store.closer()
				report, err = verification.VerifyStore(ctx, evs, store, opts)
				if err != nil {
					return err
				}
			} else {
				report, err = verification.VerifyDeterminism(ctx, evs, opts)
				if err != nil {
					return err
				}
			}

			entry := logger.WithFields(log.Fields{
				"chain":       cc.Name,
				"events":      report.Events,
				"records":     report.Records,
				"divergences": len(report.Divergences),
			})
			if report.Match() {
				entry.Info("verification passed")
				return nil
			}
			for _, d := range report.Divergences {
				logger.Warn(d.String())
			}
			entry.Error("verification failed")
			return cli.Exit("verification failed", 1)
		},
	}
}
