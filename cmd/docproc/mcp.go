package main

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docproc/internal/bootstrap"
	"github.com/joseph-ayodele/docproc/internal/repository"
	"github.com/joseph-ayodele/docproc/internal/server"
)

const version = "0.1.0"

func newMCPCmd(a *app) *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the document tools to an MCP client over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			proc, err := bootstrap.NewProcessor(a.cfg, a.logger)
			if err != nil {
				return err
			}
			var repo repository.DocumentRepository
			if save {
				db, r, err := bootstrap.OpenRepository(ctx, a.cfg.Database, a.logger)
				if err != nil {
					return err
				}
				defer db.Close()
				repo = r
			}

			srv := mcp.NewServer(&mcp.Implementation{Name: "docproc", Version: version}, nil)
			server.NewDocumentService(proc, repo, a.logger).RegisterMCP(srv)
			a.logger.Info("mcp server ready", "transport", "stdio", "persist", save)
			return srv.Run(ctx, &mcp.StdioTransport{})
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "store processed documents in the configured database")
	return cmd
}
