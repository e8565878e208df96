package main

import (
	"github.com/matiasleandrokruk/calcatalog/internal/mcpserver"
	"github.com/spf13/cobra"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the catalog as MCP tools over stdio",
		Long: `Serve the catalog as Model Context Protocol tools over stdio.

Tools: search_calculators, describe_calculator, execute_calculator.
Logs are written to stderr; stdout carries the protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := loadCLI(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			srv := mcpserver.New(cat.registry, cat.dispatcher, cat.logger)
			return srv.Serve(cmd.Context())
		},
	}
}
