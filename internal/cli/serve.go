package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/gateway"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/scheduler"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/watcher"
)

func newServeCmd() *cobra.Command {
	var (
		port    int
		bind    string
		noWatch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server with scheduled re-synthesis",
		Long: "Restore the last snapshot, then keep the fleet profile fresh on a schedule " +
			"(and on workspace changes when synth.watch is set) while serving it over HTTP and WebSocket.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}

			rt, err := newRuntime(cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if restored, err := rt.restoreLatest(ctx); err != nil {
				rt.log.Warn().Err(err).Msg("could not restore latest snapshot")
			} else if restored {
				rt.log.Info().Int("agents", len(rt.synth.Current().Agents)).Msg("serving restored snapshot until the first cycle")
			}

			job := func(ctx context.Context) error {
				if _, err := rt.synth.Synthesize(ctx); err != nil {
					return err
				}
				if _, err := rt.synth.SaveSnapshot(ctx); err != nil {
					return fmt.Errorf("saving snapshot: %w", err)
				}
				return nil
			}
			sched, err := scheduler.New(cfg.Synth, job, rt.log)
			if err != nil {
				return err
			}

			opts := []gateway.ServerOption{gateway.WithHooks(rt.hooks)}
			if rt.decisions != nil {
				opts = append(opts, gateway.WithDecisions(rt.decisions))
			}
			srv := gateway.New(cfg.Gateway, rt.synth, rt.log, opts...)

			if cfg.Synth.Watch && !noWatch {
				w, err := watcher.New(cfg.Synth.Debounce, sched.Trigger, rt.log, cfg.Workspace.Dir, cfg.Workspace.DataDir)
				if err != nil {
					return fmt.Errorf("creating watcher: %w", err)
				}
				if err := w.Start(ctx); err != nil {
					return fmt.Errorf("starting watcher: %w", err)
				}
				defer w.Stop()
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return sched.Run(gctx, true) })
			g.Go(func() error { return srv.Start(gctx) })
			return g.Wait()
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind address (loopback, lan or an IP)")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not re-synthesize on workspace changes")

	return cmd
}
