package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/complaintops/copilot/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Ingest SOP documents into the knowledge base",
	Long: `Ingest SOP YAML documents for snippet retrieval.

The path may be a single .yaml file or a directory of them. Without a
path, the configured sop.dir is used. Re-ingesting a document replaces
its stored chunks.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := viper.GetString("sop.dir")
		if len(args) == 1 {
			path = args[0]
		}
		return ingestRun(cmd, path)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func ingestRun(cmd *cobra.Command, path string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	in := ingest.NewIngestor(s)
	ctx := cmd.Context()

	var n int
	if info.IsDir() {
		n, err = in.IngestDir(ctx, path)
	} else {
		n, err = in.IngestFile(ctx, path)
	}
	if err != nil {
		return err
	}

	ui.Success("Ingested %d chunks from %s", n, path)
	return nil
}
