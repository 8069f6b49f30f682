package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/betagouv/assistant-declaration/src/logger"
	"github.com/betagouv/assistant-declaration/src/services"
)

var (
	syncOrganizationID int64
	syncUserEmail      string
)

var syncTicketingCmd = &cobra.Command{
	Use:   "sync-ticketing",
	Short: "Synchronize ticketing data for one organization, or all of them",
	RunE: func(cmd *cobra.Command, args []string) error {
		bootstrap()
		store := openStore()

		emailService := services.NewEmailService()
		syncService := services.NewTicketingSyncService(store, factorySettings(), emailService)
		ctx := context.Background()

		if syncOrganizationID != 0 {
			return syncService.SynchronizeOrganization(ctx, syncOrganizationID, syncUserEmail)
		}

		organizations, err := store.ListOrganizations(ctx)
		if err != nil {
			return fmt.Errorf("list organizations: %w", err)
		}

		// One failing organization must not block the others; failures are
		// already recorded on the connection rows.
		var failed int
		for _, organization := range organizations {
			if err := syncService.SynchronizeOrganization(ctx, organization.ID, syncUserEmail); err != nil {
				logger.L.Error("Organization synchronization failed", "organizationID", organization.ID, "error", err)
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d organizations failed to synchronize", failed, len(organizations))
		}
		logger.L.Info("All organizations synchronized", "count", len(organizations))
		return nil
	},
}

func init() {
	syncTicketingCmd.Flags().Int64Var(&syncOrganizationID, "organization", 0, "Organization ID to synchronize (0 = all)")
	syncTicketingCmd.Flags().StringVar(&syncUserEmail, "user-email", "", "Email used for mock exclusion and failure notifications")
	rootCmd.AddCommand(syncTicketingCmd)
}
