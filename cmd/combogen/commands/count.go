package commands

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/combogen/pkg/checkpoint"
	"github.com/Sumatoshi-tech/combogen/pkg/engine"
	"github.com/Sumatoshi-tech/combogen/pkg/safeconv"
	"github.com/Sumatoshi-tech/combogen/pkg/sink"
	"github.com/Sumatoshi-tech/combogen/pkg/units"
)

// NewCountCommand creates the count subcommand, a dry run that reports the
// size of the space and of the effective range.
func NewCountCommand(opts *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "count [length]",
		Short: "Show the size of a combination space without generating it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCount(cmd, opts, args)
		},
	}

	registerSpaceFlags(cmd.Flags())

	return cmd
}

func runCount(cmd *cobra.Command, opts *GlobalOptions, args []string) error {
	cfg, err := loadConfig(cmd, opts, args)
	if err != nil {
		return err
	}

	err = cfg.RequireLength()
	if err != nil {
		return err
	}

	alpha, err := cfg.BuildAlphabet()
	if err != nil {
		return err
	}

	limit, limited := cfg.Limit()

	plan := engine.Plan{
		Alphabet: alpha,
		Length:   cfg.Generation.Length,
		Limit:    limit,
		Sink:     sink.NewNull(),
	}

	var mgr *checkpoint.Manager

	if cfg.Checkpoint.Path != "" {
		mgr = checkpoint.NewManager(cfg.Checkpoint.Path)
		plan.Checkpoint = mgr
	}

	eng, err := engine.New(plan)
	if err != nil {
		return err
	}

	start, end, err := eng.Bounds()
	if err != nil {
		return err
	}

	if limited && limit == 0 {
		end = start
	}

	desc := eng.Space()
	planned := end - start

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Property", "Value"})
	tbl.AppendRow(table.Row{"Alphabet size", alpha.Len()})
	tbl.AppendRow(table.Row{"Length", desc.Length})
	tbl.AppendRow(table.Row{"Total", desc.Total})
	tbl.AppendRow(table.Row{"Start rank", start})
	tbl.AppendRow(table.Row{"End rank", end})
	tbl.AppendRow(table.Row{"Combinations", humanize.Comma(safeconv.ClampUint64ToInt64(planned))})
	tbl.AppendRow(table.Row{"Bytes per record", desc.RecordBytes(alpha.MaxWidth())})
	tbl.AppendRow(table.Row{"Estimated size", units.FormatSize(desc.Bytes(planned, alpha.MaxWidth()))})

	if mgr != nil && start > 0 {
		meta, metaErr := mgr.Metadata()
		if metaErr == nil {
			tbl.AppendRow(table.Row{"Resume run", meta.RunID})
			tbl.AppendRow(table.Row{"Resume saved", meta.UpdatedAt})
		}
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), tbl.Render())

	return err
}
