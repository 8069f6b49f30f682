package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/betagouv/assistant-declaration/src/models"
)

// Matcher lists are persisted as a comma-joined string; the importers hand
// them over already sorted, so the stored form is stable across runs.

func joinPostalCodes(codes []string) string {
	return strings.Join(codes, ",")
}

func splitPostalCodes(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ",")
}

func (s *Store) ListSacemAgencies(ctx context.Context) ([]models.SacemAgency, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT email, matching_french_postal_codes FROM sacem_agencies ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("list sacem agencies: %w", err)
	}
	defer rows.Close()

	var agencies []models.SacemAgency
	for rows.Next() {
		var email, joined string
		if err := rows.Scan(&email, &joined); err != nil {
			return nil, fmt.Errorf("scan sacem agency: %w", err)
		}
		agencies = append(agencies, models.SacemAgency{Email: email, MatchingFrenchPostalCodes: splitPostalCodes(joined)})
	}
	return agencies, rows.Err()
}

func (s *Store) UpsertSacemAgency(ctx context.Context, agency models.SacemAgency) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO sacem_agencies (email, matching_french_postal_codes) VALUES (?, ?)
		ON CONFLICT(email) DO UPDATE SET matching_french_postal_codes = excluded.matching_french_postal_codes`,
		agency.Email, joinPostalCodes(agency.MatchingFrenchPostalCodes))
	if err != nil {
		return fmt.Errorf("upsert sacem agency: %w", err)
	}
	return nil
}

func (s *Store) DeleteSacemAgency(ctx context.Context, email string) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM sacem_agencies WHERE email = ?`, email)
	if err != nil {
		return fmt.Errorf("delete sacem agency: %w", err)
	}
	return nil
}

func (s *Store) ListSacdAgencies(ctx context.Context) ([]models.SacdAgency, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT email, matching_french_postal_codes FROM sacd_agencies ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("list sacd agencies: %w", err)
	}
	defer rows.Close()

	var agencies []models.SacdAgency
	for rows.Next() {
		var email, joined string
		if err := rows.Scan(&email, &joined); err != nil {
			return nil, fmt.Errorf("scan sacd agency: %w", err)
		}
		agencies = append(agencies, models.SacdAgency{Email: email, MatchingFrenchPostalCodes: splitPostalCodes(joined)})
	}
	return agencies, rows.Err()
}

func (s *Store) UpsertSacdAgency(ctx context.Context, agency models.SacdAgency) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO sacd_agencies (email, matching_french_postal_codes) VALUES (?, ?)
		ON CONFLICT(email) DO UPDATE SET matching_french_postal_codes = excluded.matching_french_postal_codes`,
		agency.Email, joinPostalCodes(agency.MatchingFrenchPostalCodes))
	if err != nil {
		return fmt.Errorf("upsert sacd agency: %w", err)
	}
	return nil
}

func (s *Store) DeleteSacdAgency(ctx context.Context, email string) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM sacd_agencies WHERE email = ?`, email)
	if err != nil {
		return fmt.Errorf("delete sacd agency: %w", err)
	}
	return nil
}
