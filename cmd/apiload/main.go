package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:           "apiload",
	Short:         "Send API requests, inspect OpenAPI documents and run task batches",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	v := viper.GetViper()
	v.SetDefault("config", "")
	v.SetDefault("env_file", "")
	v.SetDefault("log_level", "")

	rootCmd.PersistentFlags().String("config", v.GetString("config"), "path to the apiload config yaml (default ./apiload.yaml when present)")
	rootCmd.PersistentFlags().String("env-file", v.GetString("env_file"), "dotenv file loaded before the config (default ./.env when present)")
	rootCmd.PersistentFlags().String("log-level", v.GetString("log_level"), "override logging.level (error, warn, info, debug)")

	_ = v.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("env_file", rootCmd.PersistentFlags().Lookup("env-file"))
	_ = v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(requestCmd)
	rootCmd.AddCommand(openapiCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	finish(exitHandler, rootCmd.Execute())
}
