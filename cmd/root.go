package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/betagouv/assistant-declaration/src/config"
	"github.com/betagouv/assistant-declaration/src/database"
	"github.com/betagouv/assistant-declaration/src/logger"
	"github.com/betagouv/assistant-declaration/src/storage"
	"github.com/betagouv/assistant-declaration/src/ticketing"
)

var rootCmd = &cobra.Command{
	Use:   "assistant-declaration",
	Short: "Ticketing synchronization and SACEM/SACD declaration backend",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the CLI. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// bootstrap loads configuration and the logger. Every subcommand except
// version starts with it.
func bootstrap() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
}

// openStore initializes the database and wraps it in a store.
func openStore() *storage.Store {
	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	return storage.NewStore(database.DB)
}

func factorySettings() ticketing.FactorySettings {
	return ticketing.FactorySettings{
		UseMock:            config.Cfg.UseMockTicketingSystem,
		MockExcludedEmails: config.Cfg.MockExcludedUserEmails,
		HTTPTimeout:        config.Cfg.HTTPClientTimeout,
	}
}
