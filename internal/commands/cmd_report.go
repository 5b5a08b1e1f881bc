package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/agorabot/agora/internal/core/activity"
	"github.com/agorabot/agora/internal/core/report"
	"github.com/agorabot/agora/internal/core/schedule"
	"github.com/agorabot/agora/internal/printer"
	"github.com/agorabot/agora/internal/publish/filepub"
	"github.com/agorabot/agora/internal/store/badgerstore"
	"github.com/agorabot/agora/internal/store/sqlite"
)

type ReportCmd struct {
	flags *Flags
}

// NewReportCmd creates a new report command
func NewReportCmd(flags *Flags) *ReportCmd {
	return &ReportCmd{flags: flags}
}

// Register adds the report command to the application
func (cmd *ReportCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "report",
		Usage:     "Generate activity reports once and print them",
		UsageText: "agora report [kind] [--publish]",
		Description: `Builds the configured reports from the current counters and prints
them to the terminal. Pass a kind to build a single report.

With --publish the rendered documents are also written through the
publisher, updating the live report messages the same way the daemon
does on its schedule.`,
		Action: cmd.run,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "publish",
				Usage: "also publish the documents to their destinations",
			},
		},
	})

	return app
}

func (cmd *ReportCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)
	cfg := cmd.flags.Config

	specs := reportSpecs(cfg)
	if kind := c.Args().First(); kind != "" {
		found := false
		for _, spec := range specs {
			if spec.Kind == kind {
				specs = []schedule.ReportSpec{spec}
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unknown report kind %q", kind)
		}
	}
	if len(specs) == 0 {
		p.Warnf("No reports configured")
		return nil
	}

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
		logger = log.With().Str("component", "report").Logger()
		agg    = activity.NewAggregator(store)
		rec    = schedule.NewReconciler(db, filepub.New(cfg.ReportsDir()), logger)
	)

	// Configure every report so all destination channels are excluded
	// from scoring, even when only one kind is printed.
	sched := schedule.New(schedule.Config{
		WindowDays: cfg.Stats.RetentionDays,
		MaxEntries: cfg.Stats.MaxEntries,
		Reports:    reportSpecs(cfg),
	}, store, agg, db, rec, logger)

	for _, spec := range specs {
		doc, err := sched.BuildReport(ctx, spec.Kind)
		if err != nil {
			return fmt.Errorf("build report %q: %w", spec.Kind, err)
		}

		p.Printf("%s", report.Terminal(doc))

		if c.Bool("publish") {
			if err := rec.PublishOrUpdate(ctx, spec.Kind, spec.DestinationID, doc); err != nil {
				return fmt.Errorf("publish report %q: %w", spec.Kind, err)
			}
			p.Successf("Published %s", spec.Kind)
		}
	}

	return nil
}
