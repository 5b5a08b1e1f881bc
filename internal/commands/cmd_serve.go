package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/agorabot/agora/internal/core/activity"
	"github.com/agorabot/agora/internal/core/schedule"
	"github.com/agorabot/agora/internal/printer"
	"github.com/agorabot/agora/internal/publish/filepub"
	"github.com/agorabot/agora/internal/server"
	"github.com/agorabot/agora/internal/store/badgerstore"
	"github.com/agorabot/agora/internal/store/sqlite"
)

type ServeCmd struct {
	flags *Flags
}

// NewServeCmd creates a new serve command
func NewServeCmd(flags *Flags) *ServeCmd {
	return &ServeCmd{flags: flags}
}

// Register adds the serve command to the application
func (cmd *ServeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "serve",
		Usage:     "Run the activity daemon",
		UsageText: "agora serve",
		Description: `Runs the HTTP API together with the periodic report and retention
cycles. Reports are regenerated on the configured interval and the
event log is pruned to the retention window.`,
		Action: cmd.run,
	})

	return app
}

func (cmd *ServeCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)
	cfg := cmd.flags.Config

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := badgerstore.Open(cfg.ActivityDir())
	if err != nil {
		return fmt.Errorf("open activity store: %w", err)
	}
	defer store.Close() //nolint:errcheck

	db, err := sqlite.Open(cfg.DatabaseFile())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close() //nolint:errcheck

	var (
		logger = log.With().Str("component", "agora").Logger()
		pub    = filepub.New(cfg.ReportsDir())
		agg    = activity.NewAggregator(store)
		rec    = schedule.NewReconciler(db, pub, logger)
		ready  = make(chan struct{})
	)

	sched := schedule.New(schedule.Config{
		ReportInterval:    cfg.RefreshInterval(),
		RetentionInterval: cfg.CleanupInterval(),
		WindowDays:        cfg.Stats.RetentionDays,
		MaxEntries:        cfg.Stats.MaxEntries,
		Reports:           reportSpecs(cfg),
	}, store, agg, db, rec, logger).
		WithReadySignal(ready)

	srv := server.New(store, agg, db, sched, logger)
	httpSrv := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Listen, err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("listen", cfg.Listen).Msg("http server starting")
		// Jobs wait until the API is accepting connections.
		close(ready)
		if err := httpSrv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("scheduler: %w", err)
		}
		return nil
	})

	p.Infof("agora listening on %s", cfg.Listen)

	if err := g.Wait(); err != nil {
		return err
	}

	p.Successf("Shut down cleanly")
	return nil
}
