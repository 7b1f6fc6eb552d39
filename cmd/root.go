// Package cmd provides the command-line interface for the admin styler
// with configuration from flags, environment variables, and config files.
//
// Configuration precedence, highest first:
//  1. Command-line flags (--port, --host, ...)
//  2. ADMINSTYLER_CONFIG_FILE environment variable (custom config path)
//  3. Individual environment variables (ADMINSTYLER_SERVER_PORT, ...)
//  4. .adminstyler.yml in the working directory
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/adminstyler/adminstyler/internal/config"
	"github.com/adminstyler/adminstyler/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "adminstyler",
	Short: "Live styling for admin dashboards with safe, validated settings",
	Long: `Adminstyler turns untrusted style settings into a deterministic admin
stylesheet. Every value passes a per-type sanitizer before it is stored
or rendered, and the preview server pushes regenerated CSS to every
open admin page as settings change.

Quick Start:
  adminstyler serve                 Start the live preview server
  adminstyler generate theme.yml    Render a theme file to CSS
  adminstyler validate theme.yml    Check a theme file without rendering`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .adminstyler.yml, can also use ADMINSTYLER_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig wires viper's config sources. A missing config file is not
// an error; defaults and environment variables still apply.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("ADMINSTYLER_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".adminstyler")
	}

	viper.SetEnvPrefix("ADMINSTYLER")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the process logger from loaded configuration
func newLogger(cfg *config.Config) logging.Logger {
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: "text",
		Output: os.Stderr,
	})
}
