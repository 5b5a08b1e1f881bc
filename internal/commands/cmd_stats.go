package commands

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/agorabot/agora/internal/core/activity"
	"github.com/agorabot/agora/internal/printer"
	"github.com/agorabot/agora/internal/store/badgerstore"
)

type StatsCmd struct {
	flags *Flags
}

// NewStatsCmd creates a new stats command
func NewStatsCmd(flags *Flags) *StatsCmd {
	return &StatsCmd{flags: flags}
}

// Register adds the stats command to the application
func (cmd *StatsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "stats",
		Usage:     "Show activity counters and scores",
		UsageText: "agora stats [channel-id]",
		Description: `Prints total, recent and score for every tracked channel, highest
score first. Pass a channel id to inspect a single channel.`,
		Action: cmd.run,
	})

	return app
}

func (cmd *StatsCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)
	cfg := cmd.flags.Config

	store, err := badgerstore.Open(cfg.ActivityDir())
	if err != nil {
		return fmt.Errorf("open activity store: %w", err)
	}
	defer store.Close() //nolint:errcheck

	agg := activity.NewAggregator(store)

	if arg := c.Args().First(); arg != "" {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid channel id %q", arg)
		}
		return cmd.printOne(ctx, p, store, agg, id)
	}

	ids, err := store.ListTracked(ctx)
	if err != nil {
		return fmt.Errorf("list tracked channels: %w", err)
	}
	if len(ids) == 0 {
		p.Infof("No activity recorded yet")
		return nil
	}

	type row struct {
		id int64
		m  activity.Metrics
	}
	rows := make([]row, 0, len(ids))
	for _, id := range ids {
		m, err := agg.Metrics(ctx, id)
		if err != nil {
			return fmt.Errorf("metrics for %d: %w", id, err)
		}
		rows = append(rows, row{id: id, m: m})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].m.Score > rows[j].m.Score
	})

	p.Section("Channel Activity")
	for _, r := range rows {
		p.Printf("%d\t%.1f pts\t%d total\t%d recent", r.id, r.m.Score, r.m.Total, r.m.Recent)
	}
	return nil
}

func (cmd *StatsCmd) printOne(ctx context.Context, p *printer.Printer, store *badgerstore.Store, agg *activity.Aggregator, id int64) error {
	m, err := agg.Metrics(ctx, id)
	if err != nil {
		return fmt.Errorf("metrics for %d: %w", id, err)
	}
	counters, err := store.Counters(ctx, id)
	if err != nil {
		return fmt.Errorf("counters for %d: %w", id, err)
	}

	p.Section(fmt.Sprintf("Channel %d", id))
	p.Printf("Score:   %.1f pts", m.Score)
	p.Printf("Total:   %d", m.Total)
	p.Printf("Recent:  %d (last %d days)", m.Recent, activity.DefaultWindowDays)
	if counters.LastEventAt > 0 {
		p.Printf("Last event: %s", time.Unix(counters.LastEventAt, 0).UTC().Format(time.RFC3339))
	} else {
		p.Printf("Last event: never")
	}
	return nil
}
