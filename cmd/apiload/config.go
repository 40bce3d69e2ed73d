package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loykin/apiload/internal/common"
	"github.com/loykin/apiload/internal/config"
)

const (
	defaultConfigFile = "apiload.yaml"
	defaultEnvFile    = ".env"
)

// app is what every command needs from the config file.
type app struct {
	doc    *config.Document
	logger *common.Logger
	apis   *config.Registry
}

// loadApp loads the dotenv file, then the config document, and builds the
// logger and the API registry from it.
func loadApp(cmd *cobra.Command) (*app, error) {
	v := viper.GetViper()
	if err := loadEnvFile(v.GetString("env_file")); err != nil {
		return nil, err
	}

	doc, err := config.Load(config.NewViper(), configPath(v.GetString("config")))
	if err != nil {
		return nil, err
	}
	if lvl := strings.TrimSpace(v.GetString("log_level")); lvl != "" {
		doc.Logging.Level = lvl
	}
	logger, err := doc.Logging.Logger(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	common.SetDefaultLogger(logger)

	apis, err := config.FromDocument(doc, config.WithRegistryLogger(logger))
	if err != nil {
		return nil, err
	}
	return &app{doc: doc, logger: logger, apis: apis}, nil
}

// loadEnvFile loads path, or ./.env when path is empty and the file exists.
// Variables already set in the environment win.
func loadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		if _, err := os.Stat(defaultEnvFile); err != nil {
			return nil
		}
		path = defaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func configPath(flag string) string {
	if p := strings.TrimSpace(flag); p != "" {
		return p
	}
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile
	} else if !errors.Is(err, fs.ErrNotExist) {
		common.LogWarn("cannot stat default config", "path", defaultConfigFile, "error", err)
	}
	return ""
}
