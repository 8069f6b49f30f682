package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/betagouv/assistant-declaration/src/declaration"
	"github.com/betagouv/assistant-declaration/src/services"
)

var statsOrganizationID int64

var declarationStatsCmd = &cobra.Command{
	Use:   "declaration-stats",
	Short: "Print per-series declaration figures for an organization",
	RunE: func(cmd *cobra.Command, args []string) error {
		bootstrap()
		store := openStore()

		emailService := services.NewEmailService()
		declarationService := services.NewDeclarationService(store, nil, emailService)
		ctx := context.Background()

		connections, err := store.ListTicketingConnections(ctx, statsOrganizationID)
		if err != nil {
			return fmt.Errorf("list connections: %w", err)
		}

		writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "SERIE\tNAME\tEVENTS\tPAID\tFREE\tREVENUE TTC\tREVENUE HT\tTAX")
		for _, connection := range connections {
			series, err := store.ListEventSeries(ctx, connection.ID)
			if err != nil {
				return fmt.Errorf("list series of connection %d: %w", connection.ID, err)
			}
			for _, serie := range series {
				events, err := declarationService.GetFlattenEvents(ctx, serie.ID)
				if err != nil {
					return fmt.Errorf("flatten serie %d: %w", serie.ID, err)
				}
				figures := declaration.ComputeKeyFigures(events)
				fmt.Fprintf(writer, "%d\t%s\t%d\t%d\t%d\t%.2f\t%.2f\t%.2f\n",
					serie.ID, serie.Name, len(events),
					figures.PaidTickets, figures.FreeTickets,
					figures.TicketingRevenueIncludingTaxes,
					figures.TicketingRevenueExcludingTaxes,
					figures.TaxAmount)
			}
		}
		return writer.Flush()
	},
}

func init() {
	declarationStatsCmd.Flags().Int64Var(&statsOrganizationID, "organization", 0, "Organization ID")
	declarationStatsCmd.MarkFlagRequired("organization")
	rootCmd.AddCommand(declarationStatsCmd)
}
