package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/apiload/internal/store"
)

var (
	historyLimit int
	historyRun   string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived runs, or the records of one run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		st, err := store.Open(ctx, a.doc.Store)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		out := cmd.OutOrStdout()
		if historyRun != "" {
			run, err := st.GetRun(ctx, historyRun)
			if err != nil {
				return err
			}
			records, err := st.LoadRecords(ctx, historyRun)
			if err != nil {
				return err
			}
			printRun(out, run)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "#\tCONFIG\tMETHOD\tPATH\tRESULT\tDURATION")
			for i, rec := range records {
				result := fmt.Sprintf("%d", rec.StatusCode)
				if !rec.Success {
					result = "error: " + rec.Error
				}
				_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%.1fms\n", i, rec.ConfigName, rec.Method, rec.Path, result, rec.DurationMS)
			}
			return tw.Flush()
		}

		runs, err := st.ListRuns(ctx, historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			_, err := fmt.Fprintln(out, "No archived runs")
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "RUN ID\tEXECUTED AT\tTOTAL\tSUCCEEDED\tFAILED")
		for _, r := range runs {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", r.RunID, r.ExecutedAt.Local().Format(time.DateTime), r.TotalTasks, r.Succeeded, r.Failed)
		}
		return tw.Flush()
	},
}

func printRun(w io.Writer, r store.Run) {
	_, _ = fmt.Fprintf(w, "Run %s at %s: %d task(s), %d succeeded, %d failed\n\n",
		r.RunID, r.ExecutedAt.Local().Format(time.DateTime), r.TotalTasks, r.Succeeded, r.Failed)
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "show up to N latest runs")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "show the records of this run")
}
