package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/betagouv/assistant-declaration/src/agencies"
	"github.com/betagouv/assistant-declaration/src/config"
	"github.com/betagouv/assistant-declaration/src/logger"
)

var (
	sacemCSVPath string
	sacdCSVPath  string
)

var syncSacemAgenciesCmd = &cobra.Command{
	Use:   "sync-sacem-agencies",
	Short: "Import the SACEM delegations directory from its CSV export",
	RunE: func(cmd *cobra.Command, args []string) error {
		bootstrap()
		store := openStore()

		path := sacemCSVPath
		if path == "" {
			path = config.Cfg.SacemAgenciesCSVPath
		}
		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open sacem agencies CSV: %w", err)
		}
		defer file.Close()

		if err := agencies.ImportSacemAgencies(context.Background(), store, file); err != nil {
			return fmt.Errorf("import sacem agencies: %w", err)
		}
		logger.L.Info("SACEM agencies imported", "path", path)
		return nil
	},
}

var syncSacdAgenciesCmd = &cobra.Command{
	Use:   "sync-sacd-agencies",
	Short: "Import the SACD agencies directory from its CSV export",
	RunE: func(cmd *cobra.Command, args []string) error {
		bootstrap()
		store := openStore()

		path := sacdCSVPath
		if path == "" {
			path = config.Cfg.SacdAgenciesCSVPath
		}
		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open sacd agencies CSV: %w", err)
		}
		defer file.Close()

		if err := agencies.ImportSacdAgencies(context.Background(), store, file); err != nil {
			return fmt.Errorf("import sacd agencies: %w", err)
		}
		logger.L.Info("SACD agencies imported", "path", path)
		return nil
	},
}

func init() {
	syncSacemAgenciesCmd.Flags().StringVar(&sacemCSVPath, "csv", "", "Path to the SACEM CSV export (defaults to SACEM_AGENCIES_CSV_PATH)")
	syncSacdAgenciesCmd.Flags().StringVar(&sacdCSVPath, "csv", "", "Path to the SACD CSV export (defaults to SACD_AGENCIES_CSV_PATH)")
	rootCmd.AddCommand(syncSacemAgenciesCmd)
	rootCmd.AddCommand(syncSacdAgenciesCmd)
}
