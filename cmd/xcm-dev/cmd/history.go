package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xcaliburmoon/xcm-dev/devhost/journal"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		limit      int
		prune      time.Duration
		jsonOutput bool
	)
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recent launches from the launch journal",
		Args:  cobra.NoArgs,
		FParseErrWhitelist: cobra.FParseErrWhitelist{
			UnknownFlags: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := opts.projectRoot()
			if err != nil {
				return err
			}
			settings, err := opts.loadSettings(cmd.Flags(), root)
			if err != nil {
				return err
			}
			if settings.Journal == "" {
				return fmt.Errorf("launch journal is disabled")
			}

			j, err := journal.Open(settings.Journal)
			if err != nil {
				return err
			}
			defer j.Close()

			if prune > 0 {
				n, err := j.DeleteOlderThan(prune)
				if err != nil {
					return fmt.Errorf("failed to prune launches: %w", err)
				}
				fmt.Fprintf(opts.stdout, "Removed %d launches older than %s\n", n, prune)
			}

			launches, err := j.Recent(limit)
			if err != nil {
				return fmt.Errorf("failed to list launches: %w", err)
			}
			if jsonOutput {
				data, err := json.MarshalIndent(launches, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(opts.stdout, string(data))
				return nil
			}
			if len(launches) == 0 {
				fmt.Fprintln(opts.stdout, "No launches recorded")
				return nil
			}

			w := tabwriter.NewWriter(opts.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tPORT\tPID\tREADY\tOUTCOME\tEXIT\tDURATION\tROOT")
			for _, l := range launches {
				exit := "-"
				if l.ExitCode.Valid {
					exit = fmt.Sprint(l.ExitCode.Int64)
				}
				duration := "-"
				if l.EndedAt.Valid {
					duration = l.Duration().String()
				}
				started := time.Unix(l.StartedAt, 0).Local().Format(time.DateTime)
				fmt.Fprintf(w, "%s\t%d\t%d\t%t\t%s\t%s\t%s\t%s\n",
					started, l.Port, l.PID, l.Ready, l.Outcome, exit, duration, l.Root)
			}
			return w.Flush()
		},
	}
	historyCmd.Flags().IntVar(&limit, "limit", 20, "Number of launches to show")
	historyCmd.Flags().DurationVar(&prune, "prune", 0, "Delete launches older than this before listing")
	historyCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return historyCmd
}
