package cmd

import (
	"github.com/spf13/cobra"

	"github.com/complaintops/copilot/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for agent integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets MCP-capable agents triage complaints, search SOPs, and work
the review queue natively. Configure with:

  {
    "mcpServers": {
      "copilot": { "command": "copilot", "args": ["mcp"] }
    }
  }

Available tools: copilot_mask_text, copilot_triage_complaint,
copilot_search_sops, copilot_draft_reply, copilot_list_reviews,
copilot_get_review, copilot_resolve_review`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}

		srv := mcp.NewServer(p.store, p.masker, p.classifier, p.gate, p.retriever, p.drafter)
		return srv.ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
