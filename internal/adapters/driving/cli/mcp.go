package cli

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/webrage/internal/adapters/driving/mcp"
)

var (
	mcpPort     int
	mcpHost     string
	mcpReadOnly bool
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Model Context Protocol integration",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve retrieval tools to MCP clients",
	Long: `Serve webrage to MCP clients such as desktop assistants and agents.

Tools: retrieve, research and (unless --read-only) ingest.
Resources: webrage://store/stats and webrage://chunks/{chunkId}.

Without --port the server speaks JSON-RPC on stdin/stdout, which is what
desktop clients launch. With --port it serves streamable HTTP on --host.

Examples:
  webrage mcp serve
  webrage mcp serve --port 8080 --read-only

Client configuration:
  {"mcpServers": {"webrage": {"command": "webrage", "args": ["mcp", "serve"]}}}`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntVarP(&mcpPort, "port", "p", 0, "serve HTTP on this port instead of stdio")
	mcpServeCmd.Flags().StringVar(&mcpHost, "host", "127.0.0.1", "HTTP bind address")
	mcpServeCmd.Flags().BoolVar(&mcpReadOnly, "read-only", false, "do not expose the ingest tool")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

// mcpPorts maps the loaded application onto the server's ports.
func mcpPorts(a *App, readOnly bool) *mcp.Ports {
	ports := &mcp.Ports{
		Retrieval: a.Retrieval,
		Research:  a.Research,
		Store:     a.Store,
		Prompts:   a.Prompts,
	}
	if !readOnly {
		ports.Ingestion = a.Ingestion
	}
	return ports
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	if mcpPort < 0 || mcpPort > 65535 {
		return fmt.Errorf("invalid port %d", mcpPort)
	}

	a, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}

	server, err := mcp.NewServer(mcpPorts(a, mcpReadOnly))
	if err != nil {
		return err
	}

	if mcpPort == 0 {
		return server.Run(cmd.Context())
	}

	addr := net.JoinHostPort(mcpHost, strconv.Itoa(mcpPort))
	fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://%s\n", addr)
	return server.RunHTTP(cmd.Context(), addr)
}
