package models

import "time"

// LiteEventSerie is the unified, provider-agnostic representation of an event
// series. Each ticketing client is responsible for populating it directly from
// the provider's own payloads. Ticketing-system IDs are opaque strings scoped
// to one ticketing connection; they must never be compared across connections.
type LiteEventSerie struct {
	TicketingSystemID string    `json:"ticketing_system_id"`
	Name              string    `json:"name"`
	StartAt           time.Time `json:"start_at"`
	EndAt             time.Time `json:"end_at"`
	TaxRate           float64   `json:"tax_rate"`
}

// LiteEvent is a single dated representation inside a series. Association to
// its series is positional inside the wrapper, not a nested reference.
type LiteEvent struct {
	TicketingSystemID string    `json:"ticketing_system_id"`
	StartAt           time.Time `json:"start_at"`
	EndAt             time.Time `json:"end_at"`
}

// LiteTicketCategory is a priced admission category within a series.
type LiteTicketCategory struct {
	TicketingSystemID string  `json:"ticketing_system_id"`
	Name              string  `json:"name"`
	Description       *string `json:"description"`
	Price             float64 `json:"price"`
}

// LiteSalesRecord is a join fact: how many tickets of one category were sold
// for one event. It has no lifecycle of its own.
type LiteSalesRecord struct {
	EventTicketingSystemID          string `json:"event_ticketing_system_id"`
	TicketCategoryTicketingSystemID string `json:"ticket_category_ticketing_system_id"`
	Total                           int    `json:"total"`
}

// EventSerieWrapper is the unit of transfer from a ticketing client: one
// series fully hydrated with its events, ticket categories and sales facts
// for the pull window.
type EventSerieWrapper struct {
	Serie            LiteEventSerie       `json:"serie"`
	Events           []LiteEvent          `json:"events"`
	TicketCategories []LiteTicketCategory `json:"ticket_categories"`
	Sales            []LiteSalesRecord    `json:"sales"`
}

// Organization is the tenant owning connections, series and declarations.
type Organization struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// TicketingConnection binds an organization to one configured provider,
// carrying its credentials and the last sync outcome for user display.
type TicketingConnection struct {
	ID                 int64      `json:"id"`
	OrganizationID     int64      `json:"organization_id"`
	Provider           string     `json:"provider"`
	APIAccessKey       string     `json:"api_access_key"`
	APISecretKey       string     `json:"api_secret_key"`
	LastSynchronizedAt *time.Time `json:"last_synchronized_at"`
	LastSyncError      *string    `json:"last_sync_error"`
	LastSyncErrorAt    *time.Time `json:"last_sync_error_at"`
}

// SacemAgency is one regional SACEM office. Mail is the identity; the postal
// code prefixes decide which organizations it covers. The directory is owned
// exclusively by the periodic CSV import.
type SacemAgency struct {
	Email                     string   `json:"email"`
	MatchingFrenchPostalCodes []string `json:"matching_french_postal_codes"`
}

// SacdAgency is one regional SACD office, matched by full postal codes.
type SacdAgency struct {
	Email                     string   `json:"email"`
	MatchingFrenchPostalCodes []string `json:"matching_french_postal_codes"`
}
