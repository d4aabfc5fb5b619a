// Package cmd provides the CLI commands for paramgate.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/param-gate/paramgate/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "paramgate",
	Short: "paramgate - request parameter validation gateway",
	Long: `paramgate validates request parameters before they reach your handlers.

Actions annotated with a validator are wrapped at mount time: invalid
parameters short-circuit with a structured error response (422 by default),
valid parameters reach the handler with the validated changeset in context.
Rejections are recorded to an audit trail and exposed over a key-protected
endpoint.

Quick start:
  1. Create a config file: paramgate.yaml
  2. Run: paramgate serve

Configuration:
  Config is loaded from paramgate.yaml in the current directory,
  $HOME/.paramgate/, or /etc/paramgate/.

  Environment variables can override config values with the PARAMGATE_ prefix.
  Example: PARAMGATE_SERVER_ADDR=:9090

Commands:
  serve       Start the validation gateway server
  docs        Print the generated OpenAPI document
  hash-key    Generate an Argon2id hash for the admin key
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./paramgate.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
