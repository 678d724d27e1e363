package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/complaintops/copilot/internal/draft"
	"github.com/complaintops/copilot/internal/output"
	"github.com/complaintops/copilot/internal/redact"
	"github.com/complaintops/copilot/internal/retrieve"
	"github.com/complaintops/copilot/internal/review"
	"github.com/complaintops/copilot/internal/store"
	"github.com/complaintops/copilot/internal/triage"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store

	verbose bool

	buildVersion string
	buildCommit  string
	buildDate    string
)

var rootCmd = &cobra.Command{
	Use:   "copilot",
	Short: "Complaint triage copilot - mask, classify, and draft replies to bank complaints",
	Long: `copilot triages customer complaints for bank support teams.
It redacts PII, classifies category and urgency, retrieves relevant SOP
passages, drafts a grounded reply, and routes low-confidence results to
a human review queue with a full audit trail.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/copilot/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "copilot")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("COPILOT")
	viper.AutomaticEnv()

	// Defaults via viper.SetDefault()
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "copilot")

	viper.SetDefault("store.backend", "sqlite")
	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "copilot.db"))
	viper.SetDefault("debug", false)
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	viper.SetDefault("review.threshold", review.DefaultThreshold)
	viper.SetDefault("retrieve.top_k", retrieve.DefaultTopK)
	viper.SetDefault("sop.dir", filepath.Join(defaultConfigDir, "sops"))

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose

	// The store is opened lazily so config/version commands run without
	// touching the database.
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	switch backend := viper.GetString("store.backend"); backend {
	case "memory":
		// Ephemeral backend for demos and tests. Nothing survives exit.
		dataStore = store.NewMemoryStore()
		return dataStore, nil
	case "", "sqlite":
	default:
		return nil, fmt.Errorf("unknown store backend: %s (want sqlite or memory)", backend)
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// pipeline bundles the triage components every processing command needs.
type pipeline struct {
	store      store.Store
	masker     *redact.Masker
	classifier *triage.Classifier
	gate       *review.Gate
	retriever  *retrieve.Retriever
	drafter    *draft.Drafter
}

// newPipeline wires the full pipeline from config. The drafter runs in
// mock mode when anthropic.api_key is unset.
func newPipeline() (*pipeline, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}

	masker := redact.NewMasker()
	return &pipeline{
		store:      s,
		masker:     masker,
		classifier: triage.NewClassifier(),
		gate:       review.NewGate(s, viper.GetFloat64("review.threshold")),
		retriever:  retrieve.NewRetriever(s, viper.GetInt("retrieve.top_k")),
		drafter:    draft.NewDrafter(viper.GetString("anthropic.api_key"), viper.GetString("anthropic.model"), masker),
	}, nil
}
