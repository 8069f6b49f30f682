package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/betagouv/assistant-declaration/src/models"
)

func (s *Store) GetSerieDeclarationDefaults(ctx context.Context, serieID int64) (models.SerieDeclarationDefaults, error) {
	defaults := models.SerieDeclarationDefaults{EventSerieID: serieID}
	err := s.q.QueryRowContext(ctx, `
		SELECT place, place_postal_code, place_capacity, audience
		FROM serie_declaration_defaults WHERE event_serie_id = ?`, serieID).
		Scan(&defaults.Place, &defaults.PlacePostalCode, &defaults.PlaceCapacity, &defaults.Audience)
	if err != nil {
		if err == sql.ErrNoRows {
			// No defaults entered yet is a valid, displayable state.
			return defaults, nil
		}
		return models.SerieDeclarationDefaults{}, fmt.Errorf("get serie declaration defaults: %w", err)
	}
	return defaults, nil
}

func (s *Store) SaveSerieDeclarationDefaults(ctx context.Context, defaults models.SerieDeclarationDefaults) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO serie_declaration_defaults (event_serie_id, place, place_postal_code, place_capacity, audience)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(event_serie_id) DO UPDATE SET
			place = excluded.place,
			place_postal_code = excluded.place_postal_code,
			place_capacity = excluded.place_capacity,
			audience = excluded.audience`,
		defaults.EventSerieID, defaults.Place, defaults.PlacePostalCode, defaults.PlaceCapacity, defaults.Audience)
	if err != nil {
		return fmt.Errorf("save serie declaration defaults: %w", err)
	}
	return nil
}

func (s *Store) ListEventOverrides(ctx context.Context, serieID int64) ([]models.EventOverride, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT o.event_id, o.place, o.place_postal_code, o.place_capacity, o.audience,
		       o.free_tickets, o.paid_tickets, o.ticketing_revenue_including_taxes
		FROM event_overrides o
		JOIN lite_events e ON e.id = o.event_id
		WHERE e.event_serie_id = ?
		ORDER BY o.event_id`, serieID)
	if err != nil {
		return nil, fmt.Errorf("list event overrides: %w", err)
	}
	defer rows.Close()

	var overrides []models.EventOverride
	for rows.Next() {
		var override models.EventOverride
		var place, placePostalCode, audience sql.NullString
		var placeCapacity, freeTickets, paidTickets sql.NullInt64
		var revenue sql.NullFloat64
		if err := rows.Scan(&override.EventID, &place, &placePostalCode, &placeCapacity, &audience,
			&freeTickets, &paidTickets, &revenue); err != nil {
			return nil, fmt.Errorf("scan event override: %w", err)
		}
		override.Place = nullString(place)
		override.PlacePostalCode = nullString(placePostalCode)
		override.PlaceCapacity = nullInt(placeCapacity)
		override.Audience = nullString(audience)
		override.FreeTickets = nullInt(freeTickets)
		override.PaidTickets = nullInt(paidTickets)
		override.TicketingRevenueIncludingTaxes = nullFloat(revenue)
		overrides = append(overrides, override)
	}
	return overrides, rows.Err()
}

func (s *Store) SaveEventOverride(ctx context.Context, override models.EventOverride) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO event_overrides
			(event_id, place, place_postal_code, place_capacity, audience, free_tickets, paid_tickets, ticketing_revenue_including_taxes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO UPDATE SET
			place = excluded.place,
			place_postal_code = excluded.place_postal_code,
			place_capacity = excluded.place_capacity,
			audience = excluded.audience,
			free_tickets = excluded.free_tickets,
			paid_tickets = excluded.paid_tickets,
			ticketing_revenue_including_taxes = excluded.ticketing_revenue_including_taxes`,
		override.EventID, override.Place, override.PlacePostalCode, override.PlaceCapacity, override.Audience,
		override.FreeTickets, override.PaidTickets, override.TicketingRevenueIncludingTaxes)
	if err != nil {
		return fmt.Errorf("save event override: %w", err)
	}
	return nil
}

func scanSacdDeclaration(row *sql.Row) (models.SacdDeclaration, error) {
	var declaration models.SacdDeclaration
	var rightsTransfer, rightsFees, coProduction, guarantee, expenses sql.NullFloat64
	var producerSiret, presenterSiret, venueSiret, payload sql.NullString
	var transmittedAt sql.NullTime

	err := row.Scan(&declaration.ID, &declaration.EventSerieID, &declaration.ClientReference,
		&declaration.AverageTicketPrice, &rightsTransfer, &rightsFees, &coProduction, &guarantee, &expenses,
		&declaration.ConsumablesRevenue, &declaration.CateringRevenue, &declaration.ProgramSalesRevenue, &declaration.OtherRevenue,
		&declaration.Producer.Name, &declaration.Producer.Street, &declaration.Producer.PostalCode, &declaration.Producer.City, &producerSiret,
		&declaration.Presenter.Name, &declaration.Presenter.Street, &declaration.Presenter.PostalCode, &declaration.Presenter.City, &presenterSiret,
		&declaration.Venue.Name, &declaration.Venue.Street, &declaration.Venue.PostalCode, &declaration.Venue.City, &venueSiret,
		&declaration.Status, &transmittedAt, &payload)
	if err != nil {
		return models.SacdDeclaration{}, err
	}

	declaration.RightsTransferAmount = nullFloat(rightsTransfer)
	declaration.RightsFeesAmount = nullFloat(rightsFees)
	declaration.CoProductionContribution = nullFloat(coProduction)
	declaration.GuaranteeAmount = nullFloat(guarantee)
	declaration.ExpensesAmount = nullFloat(expenses)
	declaration.Producer.Siret = nullString(producerSiret)
	declaration.Presenter.Siret = nullString(presenterSiret)
	declaration.Venue.Siret = nullString(venueSiret)
	declaration.TransmittedAt = nullTime(transmittedAt)
	declaration.LastTransmittedPayload = nullString(payload)
	return declaration, nil
}

const sacdDeclarationColumns = `
	id, event_serie_id, client_reference,
	average_ticket_price, rights_transfer_amount, rights_fees_amount, co_production_contribution, guarantee_amount, expenses_amount,
	consumables_revenue, catering_revenue, program_sales_revenue, other_revenue,
	producer_name, producer_street, producer_postal_code, producer_city, producer_siret,
	presenter_name, presenter_street, presenter_postal_code, presenter_city, presenter_siret,
	venue_name, venue_street, venue_postal_code, venue_city, venue_siret,
	status, transmitted_at, last_transmitted_payload`

func (s *Store) GetSacdDeclaration(ctx context.Context, serieID int64) (models.SacdDeclaration, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+sacdDeclarationColumns+` FROM sacd_declarations WHERE event_serie_id = ?`, serieID)
	declaration, err := scanSacdDeclaration(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.SacdDeclaration{}, ErrNotFound
		}
		return models.SacdDeclaration{}, fmt.Errorf("get sacd declaration: %w", err)
	}
	return declaration, nil
}

func (s *Store) SaveSacdDeclaration(ctx context.Context, declaration models.SacdDeclaration) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO sacd_declarations (`+sacdDeclarationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_serie_id) DO UPDATE SET
			client_reference = excluded.client_reference,
			average_ticket_price = excluded.average_ticket_price,
			rights_transfer_amount = excluded.rights_transfer_amount,
			rights_fees_amount = excluded.rights_fees_amount,
			co_production_contribution = excluded.co_production_contribution,
			guarantee_amount = excluded.guarantee_amount,
			expenses_amount = excluded.expenses_amount,
			consumables_revenue = excluded.consumables_revenue,
			catering_revenue = excluded.catering_revenue,
			program_sales_revenue = excluded.program_sales_revenue,
			other_revenue = excluded.other_revenue,
			producer_name = excluded.producer_name,
			producer_street = excluded.producer_street,
			producer_postal_code = excluded.producer_postal_code,
			producer_city = excluded.producer_city,
			producer_siret = excluded.producer_siret,
			presenter_name = excluded.presenter_name,
			presenter_street = excluded.presenter_street,
			presenter_postal_code = excluded.presenter_postal_code,
			presenter_city = excluded.presenter_city,
			presenter_siret = excluded.presenter_siret,
			venue_name = excluded.venue_name,
			venue_street = excluded.venue_street,
			venue_postal_code = excluded.venue_postal_code,
			venue_city = excluded.venue_city,
			venue_siret = excluded.venue_siret,
			status = excluded.status`,
		declaration.ID, declaration.EventSerieID, declaration.ClientReference,
		declaration.AverageTicketPrice, declaration.RightsTransferAmount, declaration.RightsFeesAmount,
		declaration.CoProductionContribution, declaration.GuaranteeAmount, declaration.ExpensesAmount,
		declaration.ConsumablesRevenue, declaration.CateringRevenue, declaration.ProgramSalesRevenue, declaration.OtherRevenue,
		declaration.Producer.Name, declaration.Producer.Street, declaration.Producer.PostalCode, declaration.Producer.City, declaration.Producer.Siret,
		declaration.Presenter.Name, declaration.Presenter.Street, declaration.Presenter.PostalCode, declaration.Presenter.City, declaration.Presenter.Siret,
		declaration.Venue.Name, declaration.Venue.Street, declaration.Venue.PostalCode, declaration.Venue.City, declaration.Venue.Siret,
		declaration.Status, declaration.TransmittedAt, declaration.LastTransmittedPayload)
	if err != nil {
		return fmt.Errorf("save sacd declaration: %w", err)
	}
	return nil
}

// RecordDeclarationTransmission stores the raw payload for audit/replay and
// flips the declaration to TRANSMITTED.
func (s *Store) RecordDeclarationTransmission(ctx context.Context, declarationID string, payload string, at time.Time) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE sacd_declarations
		SET status = ?, transmitted_at = ?, last_transmitted_payload = ?
		WHERE id = ?`, models.DeclarationStatusTransmitted, at, payload, declarationID)
	if err != nil {
		return fmt.Errorf("record declaration transmission: %w", err)
	}
	return nil
}
