package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/attune/internal/config"
	"github.com/abhisek/attune/internal/logging"
	"github.com/abhisek/attune/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "attune",
	Short: "Learner state and intervention decision engine",
	Long: "Attune fuses behavioral and content signals about a learner, tracks concept\n" +
		"mastery, and decides when and how a tutor should step in.",
	SilenceUsage: true,
}

// Execute runs the command tree. SIGINT and SIGTERM cancel the command's
// context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides ATTUNE_DB env var)")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to config file (overrides ATTUNE_CONFIG env var)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// configPath returns the config file named by --config, ATTUNE_CONFIG or
// the default file, or "" when none exists.
func configPath(cmd *cobra.Command) string {
	p, _ := cmd.Flags().GetString("config")
	return config.Path(p)
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath(cmd))
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then the config file's db setting, then ATTUNE_DB env var, then the
// default XDG path.
func resolveDBPath(cmd *cobra.Command, cfg config.Config) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	if cfg.DB != "" {
		return cfg.DB, store.EnsureDir(cfg.DB)
	}
	return store.DefaultDBPath()
}

// openStore loads the config and opens the journal it points at.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	dbPath, err := resolveDBPath(cmd, cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	return openDB(dbPath)
}

func openDB(path string) (*store.Store, error) {
	s, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}

func newLogger(cfg logging.Config) (*zap.Logger, error) {
	log, err := logging.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return log, nil
}
