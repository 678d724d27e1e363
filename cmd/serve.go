package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/complaintops/copilot/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the complaint triage HTTP API.

By default it listens on port 8080. Use --port to change it. Endpoints
live under /api/v1/: mask, triage, retrieve, generate, complaints, and
the review queue. When anthropic.api_key is unset the drafter runs in
mock mode and /api/v1/generate returns canned drafts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}

		srv := api.NewServer(p.store, p.masker, p.classifier, p.gate, p.retriever, p.drafter, viper.GetBool("debug"))

		port := viper.GetInt("port")
		addr := fmt.Sprintf(":%d", port)
		if p.drafter.Mock() {
			ui.Warning("anthropic.api_key not set - drafter running in mock mode")
		}
		ui.Info("Serving API at http://localhost%s/api/v1", addr)
		return http.ListenAndServe(addr, srv.Router())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	viper.SetDefault("port", 8080)
	_ = viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
}
