package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/loykin/apiload/internal/engine"
	"github.com/loykin/apiload/internal/metrics"
	"github.com/loykin/apiload/internal/store"
)

type runOptions struct {
	stopOnError bool
	output      string
	vars        []string
	archive     bool
	metricsFile string
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run TASKS_FILE",
	Short: "Execute a task file in order and print a report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		variables, err := parseVars(runOpts.vars)
		if err != nil {
			return err
		}

		console := newConsoleSink(cmd.OutOrStdout())
		sinks := engine.MultiSink{console, engine.LogSink{Logger: a.logger}}

		var reg *prometheus.Registry
		if runOpts.metricsFile != "" {
			reg = prometheus.NewRegistry()
			m, err := metrics.New(reg)
			if err != nil {
				return err
			}
			sinks = append(sinks, m)
		}
		if runOpts.archive {
			st, err := store.Open(cmd.Context(), a.doc.Store)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()
			sinks = append(sinks, store.Sink(st, a.logger))
		}

		eng := engine.New(a.apis,
			engine.WithSink(sinks),
			engine.WithLogger(a.logger),
			engine.WithVariables(variables),
		)
		tasks, err := eng.Load(args[0])
		if err != nil {
			return err
		}
		eng.SetTasks(tasks)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		report, runErr := eng.Run(ctx, runOpts.stopOnError)

		if report != nil && runOpts.output != "" {
			if err := report.SaveFile(runOpts.output); err != nil {
				return err
			}
			a.logger.Info("report written", "path", runOpts.output)
		}
		if reg != nil {
			if err := metrics.WriteTextfile(runOpts.metricsFile, reg); err != nil {
				return err
			}
		}
		if runErr != nil {
			return runErr
		}
		if console.Failures() > 0 || (report != nil && report.Failed()) {
			return &ExitCodeError{Code: ExitTasksFailed}
		}
		return nil
	},
}

// parseVars turns repeated k=v flags into engine variables.
func parseVars(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --var %q: want name=value", p)
		}
		out[k] = v
	}
	return out, nil
}

func init() {
	f := runCmd.Flags()
	f.BoolVar(&runOpts.stopOnError, "stop-on-error", false, "stop at the first failed task")
	f.StringVarP(&runOpts.output, "output", "o", "", "write the JSON report to this file")
	f.StringArrayVar(&runOpts.vars, "var", nil, "set a variable as name=value (repeatable)")
	f.BoolVar(&runOpts.archive, "archive", false, "archive the report in the configured store")
	f.StringVar(&runOpts.metricsFile, "metrics-file", "", "write prometheus metrics in textfile format")
}
