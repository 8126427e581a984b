package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/sarchlab/pagesim/datarecording"
	"github.com/sarchlab/pagesim/instrumentation/recording"
	"github.com/spf13/cobra"
)

var eventKinds = []string{
	recording.KindReference,
	recording.KindFault,
	recording.KindLoad,
	recording.KindSave,
	recording.KindRead,
	recording.KindWrite,
	recording.KindDisturb,
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <recording.sqlite3>",
		Short: "Summarize the simulations stored by run --record.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reader, err := datarecording.NewReader(args[0])
			if err != nil {
				return err
			}
			defer reader.Close()

			return inspect(cmd.Context(), cmd.OutOrStdout(), reader)
		},
	}
}

func inspect(
	ctx context.Context,
	w io.Writer,
	reader datarecording.DataReader,
) error {
	if ctx == nil {
		ctx = context.Background()
	}

	reader.MapTable(recording.WorkloadTable, recording.WorkloadRow{})
	reader.MapTable(recording.PageEventTable, recording.PageEventRow{})
	reader.MapTable(datarecording.ExecTable, datarecording.ExecInfo{})

	results, _, err := reader.Query(ctx, recording.WorkloadTable,
		datarecording.QueryParams{OrderBy: "rowid"})
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", recording.WorkloadTable, err)
	}

	var current string

	for _, r := range results {
		row := r.(*recording.WorkloadRow)

		if row.Simulation != current {
			current = row.Simulation

			fmt.Fprintf(w, "\nSimulation %s (%s, %d frames):\n",
				row.Simulation, row.Algorithm, row.NumFrames)
			fmt.Fprintf(w, "%d loads, %d saves, %d of %d frames used\n",
				row.Loads, row.Saves, row.UsedFrames, row.NumFrames)

			if err := printExecInfo(ctx, w, reader, row.Simulation); err != nil {
				return err
			}

			if err := printEventCounts(ctx, w, reader, row.Simulation); err != nil {
				return err
			}
		}

		fmt.Fprintf(w, "%s: %d page faults, %d resolved references\n",
			row.Workload, row.Faults, row.Resolved)
	}

	return nil
}

func printExecInfo(
	ctx context.Context,
	w io.Writer,
	reader datarecording.DataReader,
	simulationID string,
) error {
	results, _, err := reader.Query(ctx, datarecording.ExecTable,
		datarecording.QueryParams{
			Where:   "Run = ?",
			Args:    []any{simulationID},
			OrderBy: "rowid",
		})
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", datarecording.ExecTable, err)
	}

	for _, r := range results {
		info := r.(*datarecording.ExecInfo)
		fmt.Fprintf(w, "%s: %s\n", info.Property, info.Value)
	}

	return nil
}

func printEventCounts(
	ctx context.Context,
	w io.Writer,
	reader datarecording.DataReader,
	simulationID string,
) error {
	for _, kind := range eventKinds {
		_, count, err := reader.Query(ctx, recording.PageEventTable,
			datarecording.QueryParams{
				Where: "Simulation = ? AND Kind = ?",
				Args:  []any{simulationID, kind},
				Limit: 1,
			})
		if err != nil {
			return fmt.Errorf("failed to read %s: %w",
				recording.PageEventTable, err)
		}

		if count > 0 {
			fmt.Fprintf(w, "%s events: %d\n", kind, count)
		}
	}

	return nil
}
