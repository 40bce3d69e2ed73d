package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the configured APIs",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the configured APIs; * marks the active one",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		names := a.apis.Names()
		if len(names) == 0 {
			_, err := fmt.Fprintln(out, "No APIs configured")
			return err
		}
		active, _ := a.apis.Active()
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "\tNAME\tBASE URL\tOPENAPI SPEC\tAUTH")
		for _, name := range names {
			cfg, _ := a.apis.Get(name)
			mark := ""
			if name == active.Name {
				mark = "*"
			}
			authType := cfg.Auth.Type
			if authType == "" && cfg.AuthToken != "" {
				authType = "token"
			}
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", mark, name, orDash(cfg.BaseURL), orDash(cfg.OpenAPISpec), orDash(authType))
		}
		return tw.Flush()
	},
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	configCmd.AddCommand(configListCmd)
}
