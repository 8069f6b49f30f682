package agencies

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strings"

	"github.com/betagouv/assistant-declaration/src/diff"
	"github.com/betagouv/assistant-declaration/src/logger"
	"github.com/betagouv/assistant-declaration/src/models"
)

// ErrValidationFailed marks a CSV export that does not match its expected
// schema. The whole import is aborted then: a partial agency directory is
// worse than a failed no-op import.
var ErrValidationFailed = errors.New("agency csv validation failed")

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// SACEM matches organizations by postal-code prefix (2 to 3 digits).
var sacemPostalCodePrefixPattern = regexp.MustCompile(`^\d{2,3}$`)

const (
	sacemEmailColumn      = "email_delegation"
	sacemPostalCodeColumn = "prefixe_code_postal"
)

// SacemStore is the slice of the relational store the SACEM import needs.
type SacemStore interface {
	ListSacemAgencies(ctx context.Context) ([]models.SacemAgency, error)
	UpsertSacemAgency(ctx context.Context, agency models.SacemAgency) error
	DeleteSacemAgency(ctx context.Context, email string) error
}

// ImportSacemAgencies reads the SACEM delegation export (one row per
// (agency, postal-code prefix) pair), groups rows per agency email, and
// reconciles the stored directory against it.
func ImportSacemAgencies(ctx context.Context, store SacemStore, file io.Reader) error {
	rows, err := readAgencyCSV(file, sacemEmailColumn, sacemPostalCodeColumn, sacemPostalCodePrefixPattern)
	if err != nil {
		return err
	}

	incoming := make(map[string]models.SacemAgency, len(rows))
	for email, codes := range rows {
		incoming[email] = models.SacemAgency{Email: email, MatchingFrenchPostalCodes: codes}
	}

	stored, err := store.ListSacemAgencies(ctx)
	if err != nil {
		return err
	}
	existing := make(map[string]models.SacemAgency, len(stored))
	for _, agency := range stored {
		existing[agency.Email] = agency
	}

	result := diff.Diff(existing, incoming, func(a, b models.SacemAgency) bool {
		return slices.Equal(a.MatchingFrenchPostalCodes, b.MatchingFrenchPostalCodes)
	})
	logger.L.Info("SACEM agencies diff computed",
		"added", len(result.Added), "updated", len(result.Updated), "removed", len(result.Removed))

	for _, entry := range result.Added {
		if err := store.UpsertSacemAgency(ctx, entry.Model); err != nil {
			return err
		}
	}
	for _, entry := range result.Updated {
		if err := store.UpsertSacemAgency(ctx, entry.Model); err != nil {
			return err
		}
	}
	for _, entry := range result.Removed {
		if err := store.DeleteSacemAgency(ctx, entry.Key); err != nil {
			return err
		}
	}
	return nil
}

// readAgencyCSV parses a comma-delimited, header-driven agency export and
// returns per-email postal matcher lists, sorted and deduplicated so stored
// and incoming values compare without order-based false positives. Any row
// failing validation aborts the whole read.
func readAgencyCSV(file io.Reader, emailColumn, postalCodeColumn string, postalCodePattern *regexp.Regexp) (map[string][]string, error) {
	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	emailIndex, postalCodeIndex := -1, -1
	for i, column := range header {
		switch strings.TrimSpace(strings.ToLower(column)) {
		case emailColumn:
			emailIndex = i
		case postalCodeColumn:
			postalCodeIndex = i
		}
	}
	if emailIndex == -1 || postalCodeIndex == -1 {
		return nil, fmt.Errorf("%w: missing required columns %q and/or %q", ErrValidationFailed, emailColumn, postalCodeColumn)
	}

	grouped := make(map[string][]string)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record at line %d: %w", line, err)
		}

		email := strings.ToLower(strings.TrimSpace(record[emailIndex]))
		postalCode := strings.TrimSpace(record[postalCodeIndex])

		if !emailPattern.MatchString(email) {
			return nil, fmt.Errorf("%w: invalid email %q at line %d", ErrValidationFailed, email, line)
		}
		if !postalCodePattern.MatchString(postalCode) {
			return nil, fmt.Errorf("%w: invalid postal code matcher %q at line %d", ErrValidationFailed, postalCode, line)
		}

		grouped[email] = append(grouped[email], postalCode)
	}

	for email, codes := range grouped {
		slices.Sort(codes)
		grouped[email] = slices.Compact(codes)
	}
	return grouped, nil
}
