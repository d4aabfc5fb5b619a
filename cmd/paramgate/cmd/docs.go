package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/param-gate/paramgate/internal/adapter/outbound/cel"
	"github.com/param-gate/paramgate/internal/demo"
	"github.com/param-gate/paramgate/internal/domain/registry"
	"github.com/param-gate/paramgate/internal/service"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Print the generated OpenAPI document",
	Long: `Print the OpenAPI document generated from the registered actions,
their parameter schemas, and their response catalogues.

The same document is served at /docs/openapi.yaml while the server runs.

Example:
  paramgate docs > openapi.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Binding needs a logger but docs output goes to stdout; keep logs out of it.
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))

		engine, err := cel.NewEngine()
		if err != nil {
			return fmt.Errorf("creating rule engine: %w", err)
		}

		reg := registry.New(logger)
		if err := demo.RegisterActions(reg, service.NewSchemaService(engine, logger)); err != nil {
			return fmt.Errorf("registering actions: %w", err)
		}

		doc, err := service.NewDocsService(reg, "paramgate", Version).OpenAPI()
		if err != nil {
			return fmt.Errorf("rendering OpenAPI document: %w", err)
		}

		_, err = cmd.OutOrStdout().Write(doc)
		return err
	},
}

func init() {
	rootCmd.AddCommand(docsCmd)
}
