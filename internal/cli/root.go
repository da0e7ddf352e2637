package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"finrag/config"
	"finrag/internal/app"
	"finrag/internal/logger"
)

var (
	cfgFile    string
	cfg        *config.Config
	rootDir    string
	collection string
	verbose    bool
	log        *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "finrag",
	Short: "Financial document retrieval - ingest PDFs and retrieve context for metric analysis",
	Long: `finrag ingests PDF literature into a persistent vector collection and
retrieves the most relevant chunks for a query. The analyze command feeds the
retrieved context to a local language model, one prompt per financial metric.

Example usage:
  finrag ingest ./literature                  # Ingest every PDF in a folder
  finrag query -q "price to earnings" -k 5    # Show the closest chunks
  finrag analyze --ticker AAPL --metric eps   # Retrieval-augmented analysis`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		// A missing .env is normal.
		_ = godotenv.Load()

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		cfg.ApplyEnv()
		if collection != "" {
			cfg.Index.Collection = collection
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		log = logger.New(cfg.Logging, os.Stderr)
		return nil
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./finrag.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "project directory holding config and data (default is current directory)")
	rootCmd.PersistentFlags().StringVarP(&collection, "collection", "c", "", "collection name (default from config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}

func openApp(ctx context.Context) (*app.App, error) {
	return app.Open(ctx, GetConfig(), GetRootDir(), log)
}
