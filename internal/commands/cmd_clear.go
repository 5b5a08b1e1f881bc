package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/agorabot/agora/internal/printer"
	"github.com/agorabot/agora/internal/store/badgerstore"
)

type ClearCmd struct {
	flags *Flags
}

// NewClearCmd creates a new clear command
func NewClearCmd(flags *Flags) *ClearCmd {
	return &ClearCmd{flags: flags}
}

// Register adds the clear command to the application
func (cmd *ClearCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "clear",
		Usage:     "Reset a channel's activity counters and event log",
		UsageText: "agora clear <channel-id>",
		Description: `Removes the channel's counters and every logged event. The channel
starts from zero on its next event.`,
		Action: cmd.run,
	})

	return app
}

func (cmd *ClearCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	arg := c.Args().First()
	if arg == "" {
		return fmt.Errorf("channel id is required")
	}
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid channel id %q", arg)
	}

	store, err := badgerstore.Open(cmd.flags.Config.ActivityDir())
	if err != nil {
		return fmt.Errorf("open activity store: %w", err)
	}
	defer store.Close() //nolint:errcheck

	if err := store.Clear(ctx, id); err != nil {
		return fmt.Errorf("clear channel %d: %w", id, err)
	}

	p.Successf("Cleared activity for channel %d", id)
	return nil
}
