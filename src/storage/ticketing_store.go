package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/betagouv/assistant-declaration/src/models"
)

func (s *Store) GetOrganization(ctx context.Context, id int64) (models.Organization, error) {
	var org models.Organization
	err := s.q.QueryRowContext(ctx, `SELECT id, name FROM organizations WHERE id = ?`, id).
		Scan(&org.ID, &org.Name)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Organization{}, ErrNotFound
		}
		return models.Organization{}, fmt.Errorf("get organization: %w", err)
	}
	return org, nil
}

func (s *Store) ListOrganizations(ctx context.Context) ([]models.Organization, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, name FROM organizations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	var organizations []models.Organization
	for rows.Next() {
		var org models.Organization
		if err := rows.Scan(&org.ID, &org.Name); err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		organizations = append(organizations, org)
	}
	return organizations, rows.Err()
}

func (s *Store) GetTicketingConnection(ctx context.Context, id int64) (models.TicketingConnection, error) {
	var conn models.TicketingConnection
	var lastSyncAt, lastErrorAt sql.NullTime
	var lastError sql.NullString
	err := s.q.QueryRowContext(ctx, `
		SELECT id, organization_id, provider, api_access_key, api_secret_key,
		       last_synchronized_at, last_sync_error, last_sync_error_at
		FROM ticketing_connections WHERE id = ?`, id).
		Scan(&conn.ID, &conn.OrganizationID, &conn.Provider, &conn.APIAccessKey, &conn.APISecretKey,
			&lastSyncAt, &lastError, &lastErrorAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.TicketingConnection{}, ErrNotFound
		}
		return models.TicketingConnection{}, fmt.Errorf("get ticketing connection: %w", err)
	}
	conn.LastSynchronizedAt = nullTime(lastSyncAt)
	conn.LastSyncError = nullString(lastError)
	conn.LastSyncErrorAt = nullTime(lastErrorAt)
	return conn, nil
}

func (s *Store) ListTicketingConnections(ctx context.Context, organizationID int64) ([]models.TicketingConnection, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, organization_id, provider, api_access_key, api_secret_key,
		       last_synchronized_at, last_sync_error, last_sync_error_at
		FROM ticketing_connections WHERE organization_id = ? ORDER BY id`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list ticketing connections: %w", err)
	}
	defer rows.Close()

	var connections []models.TicketingConnection
	for rows.Next() {
		var conn models.TicketingConnection
		var lastSyncAt, lastErrorAt sql.NullTime
		var lastError sql.NullString
		if err := rows.Scan(&conn.ID, &conn.OrganizationID, &conn.Provider, &conn.APIAccessKey, &conn.APISecretKey,
			&lastSyncAt, &lastError, &lastErrorAt); err != nil {
			return nil, fmt.Errorf("scan ticketing connection: %w", err)
		}
		conn.LastSynchronizedAt = nullTime(lastSyncAt)
		conn.LastSyncError = nullString(lastError)
		conn.LastSyncErrorAt = nullTime(lastErrorAt)
		connections = append(connections, conn)
	}
	return connections, rows.Err()
}

// RecordSyncSuccess stamps the connection after a fully-applied run and
// clears any previous error so the UI shows a clean state.
func (s *Store) RecordSyncSuccess(ctx context.Context, connectionID int64, at time.Time) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE ticketing_connections
		SET last_synchronized_at = ?, last_sync_error = NULL, last_sync_error_at = NULL
		WHERE id = ?`, at, connectionID)
	if err != nil {
		return fmt.Errorf("record sync success: %w", err)
	}
	return nil
}

// RecordSyncError keeps the last failure visible to the user; the previous
// successful sync timestamp is preserved.
func (s *Store) RecordSyncError(ctx context.Context, connectionID int64, message string, at time.Time) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE ticketing_connections
		SET last_sync_error = ?, last_sync_error_at = ?
		WHERE id = ?`, message, at, connectionID)
	if err != nil {
		return fmt.Errorf("record sync error: %w", err)
	}
	return nil
}

func (s *Store) ListEventSeries(ctx context.Context, connectionID int64) ([]models.EventSerie, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, ticketing_connection_id, ticketing_system_id, name, start_at, end_at, tax_rate
		FROM lite_event_series WHERE ticketing_connection_id = ? ORDER BY ticketing_system_id`, connectionID)
	if err != nil {
		return nil, fmt.Errorf("list event series: %w", err)
	}
	defer rows.Close()

	var series []models.EventSerie
	for rows.Next() {
		var serie models.EventSerie
		if err := rows.Scan(&serie.ID, &serie.TicketingConnectionID, &serie.TicketingSystemID,
			&serie.Name, &serie.StartAt, &serie.EndAt, &serie.TaxRate); err != nil {
			return nil, fmt.Errorf("scan event serie: %w", err)
		}
		series = append(series, serie)
	}
	return series, rows.Err()
}

func (s *Store) GetEventSerie(ctx context.Context, id int64) (models.EventSerie, error) {
	var serie models.EventSerie
	err := s.q.QueryRowContext(ctx, `
		SELECT id, ticketing_connection_id, ticketing_system_id, name, start_at, end_at, tax_rate
		FROM lite_event_series WHERE id = ?`, id).
		Scan(&serie.ID, &serie.TicketingConnectionID, &serie.TicketingSystemID,
			&serie.Name, &serie.StartAt, &serie.EndAt, &serie.TaxRate)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.EventSerie{}, ErrNotFound
		}
		return models.EventSerie{}, fmt.Errorf("get event serie: %w", err)
	}
	return serie, nil
}

func (s *Store) CreateEventSerie(ctx context.Context, connectionID int64, serie models.LiteEventSerie) (int64, error) {
	result, err := s.q.ExecContext(ctx, `
		INSERT INTO lite_event_series (ticketing_connection_id, ticketing_system_id, name, start_at, end_at, tax_rate)
		VALUES (?, ?, ?, ?, ?, ?)`,
		connectionID, serie.TicketingSystemID, serie.Name, serie.StartAt, serie.EndAt, serie.TaxRate)
	if err != nil {
		return 0, fmt.Errorf("create event serie: %w", err)
	}
	return result.LastInsertId()
}

func (s *Store) UpdateEventSerie(ctx context.Context, connectionID int64, serie models.LiteEventSerie) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE lite_event_series SET name = ?, start_at = ?, end_at = ?, tax_rate = ?
		WHERE ticketing_connection_id = ? AND ticketing_system_id = ?`,
		serie.Name, serie.StartAt, serie.EndAt, serie.TaxRate, connectionID, serie.TicketingSystemID)
	if err != nil {
		return fmt.Errorf("update event serie: %w", err)
	}
	return nil
}

// DeleteEventSerie removes the series and every dependent row. Declarations
// referencing it are removed too; a series that disappeared upstream has
// nothing left to declare.
func (s *Store) DeleteEventSerie(ctx context.Context, id int64) error {
	statements := []string{
		`DELETE FROM sacd_declarations WHERE event_serie_id = ?`,
		`DELETE FROM serie_declaration_defaults WHERE event_serie_id = ?`,
		`DELETE FROM event_overrides WHERE event_id IN (SELECT id FROM lite_events WHERE event_serie_id = ?)`,
		`DELETE FROM lite_sales WHERE event_serie_id = ?`,
		`DELETE FROM lite_ticket_categories WHERE event_serie_id = ?`,
		`DELETE FROM lite_events WHERE event_serie_id = ?`,
		`DELETE FROM lite_event_series WHERE id = ?`,
	}
	for _, statement := range statements {
		if _, err := s.q.ExecContext(ctx, statement, id); err != nil {
			return fmt.Errorf("delete event serie: %w", err)
		}
	}
	return nil
}

func (s *Store) ListEvents(ctx context.Context, serieID int64) ([]models.Event, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, event_serie_id, ticketing_system_id, start_at, end_at
		FROM lite_events WHERE event_serie_id = ? ORDER BY ticketing_system_id`, serieID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var event models.Event
		if err := rows.Scan(&event.ID, &event.EventSerieID, &event.TicketingSystemID, &event.StartAt, &event.EndAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// GetEventSerieIDOfEvent resolves the series an event belongs to.
func (s *Store) GetEventSerieIDOfEvent(ctx context.Context, eventID int64) (int64, error) {
	var serieID int64
	err := s.q.QueryRowContext(ctx, `
		SELECT event_serie_id FROM lite_events WHERE id = ?`, eventID).Scan(&serieID)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get serie of event: %w", err)
	}
	return serieID, nil
}

func (s *Store) CreateEvent(ctx context.Context, serieID int64, event models.LiteEvent) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO lite_events (event_serie_id, ticketing_system_id, start_at, end_at)
		VALUES (?, ?, ?, ?)`, serieID, event.TicketingSystemID, event.StartAt, event.EndAt)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

func (s *Store) UpdateEvent(ctx context.Context, serieID int64, event models.LiteEvent) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE lite_events SET start_at = ?, end_at = ?
		WHERE event_serie_id = ? AND ticketing_system_id = ?`,
		event.StartAt, event.EndAt, serieID, event.TicketingSystemID)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return nil
}

func (s *Store) DeleteEvent(ctx context.Context, serieID int64, ticketingSystemID string) error {
	_, err := s.q.ExecContext(ctx, `
		DELETE FROM event_overrides WHERE event_id IN
			(SELECT id FROM lite_events WHERE event_serie_id = ? AND ticketing_system_id = ?)`,
		serieID, ticketingSystemID)
	if err != nil {
		return fmt.Errorf("delete event overrides: %w", err)
	}
	_, err = s.q.ExecContext(ctx, `
		DELETE FROM lite_events WHERE event_serie_id = ? AND ticketing_system_id = ?`,
		serieID, ticketingSystemID)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

func (s *Store) ListTicketCategories(ctx context.Context, serieID int64) ([]models.TicketCategory, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, event_serie_id, ticketing_system_id, name, description, price
		FROM lite_ticket_categories WHERE event_serie_id = ? ORDER BY ticketing_system_id`, serieID)
	if err != nil {
		return nil, fmt.Errorf("list ticket categories: %w", err)
	}
	defer rows.Close()

	var categories []models.TicketCategory
	for rows.Next() {
		var category models.TicketCategory
		var description sql.NullString
		if err := rows.Scan(&category.ID, &category.EventSerieID, &category.TicketingSystemID,
			&category.Name, &description, &category.Price); err != nil {
			return nil, fmt.Errorf("scan ticket category: %w", err)
		}
		category.Description = nullString(description)
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

func (s *Store) CreateTicketCategory(ctx context.Context, serieID int64, category models.LiteTicketCategory) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO lite_ticket_categories (event_serie_id, ticketing_system_id, name, description, price)
		VALUES (?, ?, ?, ?, ?)`,
		serieID, category.TicketingSystemID, category.Name, category.Description, category.Price)
	if err != nil {
		return fmt.Errorf("create ticket category: %w", err)
	}
	return nil
}

func (s *Store) UpdateTicketCategory(ctx context.Context, serieID int64, category models.LiteTicketCategory) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE lite_ticket_categories SET name = ?, description = ?, price = ?
		WHERE event_serie_id = ? AND ticketing_system_id = ?`,
		category.Name, category.Description, category.Price, serieID, category.TicketingSystemID)
	if err != nil {
		return fmt.Errorf("update ticket category: %w", err)
	}
	return nil
}

func (s *Store) DeleteTicketCategory(ctx context.Context, serieID int64, ticketingSystemID string) error {
	_, err := s.q.ExecContext(ctx, `
		DELETE FROM lite_ticket_categories WHERE event_serie_id = ? AND ticketing_system_id = ?`,
		serieID, ticketingSystemID)
	if err != nil {
		return fmt.Errorf("delete ticket category: %w", err)
	}
	return nil
}

func (s *Store) ListSales(ctx context.Context, serieID int64) ([]models.EventSale, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT event_serie_id, event_ticketing_system_id, ticket_category_ticketing_system_id, total
		FROM lite_sales WHERE event_serie_id = ?
		ORDER BY event_ticketing_system_id, ticket_category_ticketing_system_id`, serieID)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	var sales []models.EventSale
	for rows.Next() {
		var sale models.EventSale
		if err := rows.Scan(&sale.EventSerieID, &sale.EventTicketingSystemID,
			&sale.TicketCategoryTicketingSystemID, &sale.Total); err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

func (s *Store) UpsertSale(ctx context.Context, serieID int64, sale models.LiteSalesRecord) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO lite_sales (event_serie_id, event_ticketing_system_id, ticket_category_ticketing_system_id, total)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(event_serie_id, event_ticketing_system_id, ticket_category_ticketing_system_id)
		DO UPDATE SET total = excluded.total`,
		serieID, sale.EventTicketingSystemID, sale.TicketCategoryTicketingSystemID, sale.Total)
	if err != nil {
		return fmt.Errorf("upsert sale: %w", err)
	}
	return nil
}

func (s *Store) DeleteSale(ctx context.Context, serieID int64, eventTicketingSystemID, categoryTicketingSystemID string) error {
	_, err := s.q.ExecContext(ctx, `
		DELETE FROM lite_sales
		WHERE event_serie_id = ? AND event_ticketing_system_id = ? AND ticket_category_ticketing_system_id = ?`,
		serieID, eventTicketingSystemID, categoryTicketingSystemID)
	if err != nil {
		return fmt.Errorf("delete sale: %w", err)
	}
	return nil
}
