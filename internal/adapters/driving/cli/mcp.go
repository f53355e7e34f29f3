package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can annotate
clinical text and look up concepts in the loaded concept database. The
add_concept and unlink_name tools curate the loaded model for the rest of
the session; nothing is written back to disk.

By default, the server communicates over stdio using JSON-RPC. Use --port
to start an HTTP server instead, for example to test with MCP Inspector.

Examples:
  # Stdio mode
  medcat --cdb cdb.csv --vocab vocab.txt mcp serve

  # HTTP mode
  medcat --cdb cdb.csv --vocab vocab.txt mcp serve --port 8080

Assistant configuration:
  {
    "mcpServers": {
      "medcat": {
        "command": "/path/to/medcat",
        "args": ["--cdb", "/path/to/cdb.csv", "--vocab", "/path/to/vocab.txt", "mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	settings, err := currentSettings()
	if err != nil {
		return err
	}
	model, err := loadModel(cmd, settings, ModelOptions{})
	if err != nil {
		return err
	}
	defer model.Close()

	ports := &mcp.Ports{
		Annotator: model.Annotator,
		Concepts:  model.Concepts,
		Trainer:   model.Trainer,
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
