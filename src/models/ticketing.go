package models

import "time"

// Stored counterparts of the Lite entities, as persisted per ticketing
// connection. The synchronization run is the only writer of these rows.

type EventSerie struct {
	ID                    int64     `json:"id"`
	TicketingConnectionID int64     `json:"ticketing_connection_id"`
	TicketingSystemID     string    `json:"ticketing_system_id"`
	Name                  string    `json:"name"`
	StartAt               time.Time `json:"start_at"`
	EndAt                 time.Time `json:"end_at"`
	TaxRate               float64   `json:"tax_rate"`
}

type Event struct {
	ID                int64     `json:"id"`
	EventSerieID      int64     `json:"event_serie_id"`
	TicketingSystemID string    `json:"ticketing_system_id"`
	StartAt           time.Time `json:"start_at"`
	EndAt             time.Time `json:"end_at"`
}

type TicketCategory struct {
	ID                int64   `json:"id"`
	EventSerieID      int64   `json:"event_serie_id"`
	TicketingSystemID string  `json:"ticketing_system_id"`
	Name              string  `json:"name"`
	Description       *string `json:"description"`
	Price             float64 `json:"price"`
}

// EventSale mirrors LiteSalesRecord against stored rows; the pair of
// ticketing-system IDs identifies it within one series.
type EventSale struct {
	EventSerieID                    int64  `json:"event_serie_id"`
	EventTicketingSystemID          string `json:"event_ticketing_system_id"`
	TicketCategoryTicketingSystemID string `json:"ticket_category_ticketing_system_id"`
	Total                           int    `json:"total"`
}
