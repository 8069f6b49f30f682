package agencies

import (
	"context"
	"io"
	"regexp"
	"slices"

	"github.com/betagouv/assistant-declaration/src/diff"
	"github.com/betagouv/assistant-declaration/src/logger"
	"github.com/betagouv/assistant-declaration/src/models"
)

// SACD matches organizations by full postal code.
var sacdPostalCodePattern = regexp.MustCompile(`^\d{5}$`)

const (
	sacdEmailColumn      = "email"
	sacdPostalCodeColumn = "code_postal"
)

// SacdStore is the slice of the relational store the SACD import needs.
type SacdStore interface {
	ListSacdAgencies(ctx context.Context) ([]models.SacdAgency, error)
	UpsertSacdAgency(ctx context.Context, agency models.SacdAgency) error
	DeleteSacdAgency(ctx context.Context, email string) error
}

// ImportSacdAgencies mirrors ImportSacemAgencies for the SACD export. The
// two imports stay deliberately parallel rather than sharing a richer
// abstraction; only the columns, matcher shape and target table differ.
func ImportSacdAgencies(ctx context.Context, store SacdStore, file io.Reader) error {
	rows, err := readAgencyCSV(file, sacdEmailColumn, sacdPostalCodeColumn, sacdPostalCodePattern)
	if err != nil {
		return err
	}

	incoming := make(map[string]models.SacdAgency, len(rows))
	for email, codes := range rows {
		incoming[email] = models.SacdAgency{Email: email, MatchingFrenchPostalCodes: codes}
	}

	stored, err := store.ListSacdAgencies(ctx)
	if err != nil {
		return err
	}
	existing := make(map[string]models.SacdAgency, len(stored))
	for _, agency := range stored {
		existing[agency.Email] = agency
	}

	result := diff.Diff(existing, incoming, func(a, b models.SacdAgency) bool {
		return slices.Equal(a.MatchingFrenchPostalCodes, b.MatchingFrenchPostalCodes)
	})
	logger.L.Info("SACD agencies diff computed",
		"added", len(result.Added), "updated", len(result.Updated), "removed", len(result.Removed))

	for _, entry := range result.Added {
		if err := store.UpsertSacdAgency(ctx, entry.Model); err != nil {
			return err
		}
	}
	for _, entry := range result.Updated {
		if err := store.UpsertSacdAgency(ctx, entry.Model); err != nil {
			return err
		}
	}
	for _, entry := range result.Removed {
		if err := store.DeleteSacdAgency(ctx, entry.Key); err != nil {
			return err
		}
	}
	return nil
}
