package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hession/filedesk/internal/agent"
	"github.com/hession/filedesk/internal/auth"
	"github.com/hession/filedesk/internal/config"
	"github.com/hession/filedesk/internal/knowledge"
	"github.com/hession/filedesk/internal/llm"
	"github.com/hession/filedesk/internal/logger"
	"github.com/hession/filedesk/internal/server"
	"github.com/hession/filedesk/internal/tools"
	"github.com/hession/filedesk/internal/workspace"
)

var (
	version = "0.1.0"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "filedesk",
		Short: "FileDesk - AI file assistant with a web chat interface",
		Long: `FileDesk is a web chat front end to an AI assistant that can work
with text files in a sandboxed workspace on your behalf.

It can:
  • Answer questions in natural language
  • Read and write text files inside its workspace
  • Search your indexed local documents`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	// ingest subcommand
	ingestCmd := &cobra.Command{
		Use:   "ingest [dir]",
		Short: "Index local documents for the search_documents tool",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) > 0 {
				dir = args[0]
			}
			return runIngest(dir)
		},
	}

	// config subcommand
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show or manage configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			fmt.Println(cfg.String())

			path, _ := config.ConfigPath()
			fmt.Printf("\nConfig file path: %s\n", path)
			return nil
		},
	}

	// version subcommand
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("FileDesk v%s\n", version)
		},
	}

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runServe wires everything together and starts the HTTP server
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !cfg.IsAPIKeyConfigured() {
		return fmt.Errorf("no model API key configured; set model.api_key in the config file or MODEL_API_KEY in .secrets")
	}

	if err := logger.Init(logger.Config{LogDir: config.LogDir(), Level: logger.INFO}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("FileDesk v%s starting", version)

	store, err := workspace.New(cfg.Workspace.Root)
	if err != nil {
		return fmt.Errorf("failed to open workspace: %w", err)
	}
	logger.Info("Workspace root: %s", cfg.Workspace.Root)

	var searcher tools.Searcher
	if cfg.Knowledge.Enabled {
		manager, err := openKnowledge(cfg)
		if err != nil {
			return err
		}
		defer manager.Close()
		searcher = manager

		if stats, err := manager.Stats(); err == nil {
			logger.Info("Knowledge index ready (%d segments)", stats.TotalSegments)
		}
	}

	registry := tools.NewDefaultRegistry(store, searcher)

	promptCfg, err := config.LoadPromptConfig()
	if err != nil {
		return fmt.Errorf("failed to load prompt config: %w", err)
	}

	llmClient := llm.New(
		cfg.Model.APIKey,
		cfg.Model.BaseURL,
		cfg.Model.Model,
		cfg.Model.Temperature,
		cfg.Model.MaxTokens,
	)

	assistant := agent.New(llmClient, registry, promptCfg.GetSystemPrompt(),
		agent.WithMaxToolRounds(cfg.Agent.MaxToolRounds),
		agent.WithToolCallHandler(func(name string, args map[string]any, result string, err error) {
			if err != nil {
				logger.Warn("Tool %s failed: %v", name, err)
				return
			}
			logger.Debug("Tool %s completed (%d chars)", name, len(result))
		}),
	)

	accounts, err := auth.NewStore(cfg.Auth.DBPath, time.Duration(cfg.Auth.SessionTTLMinutes)*time.Minute)
	if err != nil {
		return fmt.Errorf("failed to open account store: %w", err)
	}
	defer accounts.Close()

	log, err := logger.NewLogger(logger.Config{LogDir: config.LogDir(), Level: logger.INFO})
	if err != nil {
		return fmt.Errorf("failed to initialize request logger: %w", err)
	}
	defer log.Close()

	return server.New(cfg, assistant, accounts, log).Run()
}

// runIngest indexes the documents directory into the knowledge store
func runIngest(dir string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.Knowledge.Enabled {
		return fmt.Errorf("knowledge indexing is disabled; set knowledge.enabled: true in the config file")
	}
	if dir == "" {
		dir = cfg.Knowledge.DocsDir
	}

	if err := logger.Init(logger.Config{LogDir: config.LogDir(), Level: logger.INFO, ConsoleOut: true}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	manager, err := openKnowledge(cfg)
	if err != nil {
		return err
	}
	defer manager.Close()

	fmt.Printf("Indexing documents from %s ...\n", dir)
	n, err := manager.IngestDir(context.Background(), dir)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	stats, err := manager.Stats()
	if err != nil {
		return err
	}

	fmt.Printf("Indexed %d segments (%d total in index)\n", n, stats.TotalSegments)
	return nil
}

// openKnowledge builds the knowledge manager from configuration
func openKnowledge(cfg *config.Config) (*knowledge.Manager, error) {
	index, err := knowledge.NewSQLiteVectorIndex(cfg.Knowledge.DBPath, cfg.Knowledge.Embedding.Dimension)
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge index: %w", err)
	}

	embedder := knowledge.NewOpenAIEmbeddingClient(&knowledge.EmbeddingConfig{
		BaseURL:    cfg.Knowledge.Embedding.BaseURL,
		APIKey:     cfg.Knowledge.Embedding.APIKey,
		Model:      cfg.Knowledge.Embedding.Model,
		Dimension:  cfg.Knowledge.Embedding.Dimension,
		TimeoutSec: cfg.Knowledge.Embedding.TimeoutSeconds,
		MaxRetries: cfg.Knowledge.Embedding.MaxRetries,
	})

	return knowledge.NewManager(embedder, index, cfg.Knowledge.TopK, cfg.Knowledge.MinSimilarity), nil
}
