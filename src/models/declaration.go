package models

import "time"

// Declaration statuses as exposed to callers.
const (
	DeclarationStatusPending     = "PENDING"
	DeclarationStatusTransmitted = "TRANSMITTED"
)

// EventOverride carries per-event values declared by the user that supersede
// the series-level defaults. A nil field means "use the series default".
type EventOverride struct {
	EventID                        int64    `json:"event_id"`
	Place                          *string  `json:"place"`
	PlacePostalCode                *string  `json:"place_postal_code"`
	PlaceCapacity                  *int     `json:"place_capacity"`
	Audience                       *string  `json:"audience"`
	FreeTickets                    *int     `json:"free_tickets"`
	PaidTickets                    *int     `json:"paid_tickets"`
	TicketingRevenueIncludingTaxes *float64 `json:"ticketing_revenue_including_taxes"`
}

// SerieDeclarationDefaults are the series-level values every event falls back
// to when it has no override of its own.
type SerieDeclarationDefaults struct {
	EventSerieID    int64  `json:"event_serie_id"`
	Place           string `json:"place"`
	PlacePostalCode string `json:"place_postal_code"`
	PlaceCapacity   int    `json:"place_capacity"`
	Audience        string `json:"audience"`
}

// FlattenEvent is one event merged with its series defaults: a single
// authoritative value for every overridable attribute, ready for aggregation
// and export.
type FlattenEvent struct {
	EventID                        int64     `json:"event_id"`
	StartAt                        time.Time `json:"start_at"`
	EndAt                          time.Time `json:"end_at"`
	Place                          string    `json:"place"`
	PlacePostalCode                string    `json:"place_postal_code"`
	PlaceCapacity                  int       `json:"place_capacity"`
	Audience                       string    `json:"audience"`
	FreeTickets                    int       `json:"free_tickets"`
	PaidTickets                    int       `json:"paid_tickets"`
	TicketingRevenueIncludingTaxes float64   `json:"ticketing_revenue_including_taxes"`
	TicketingRevenueExcludingTaxes float64   `json:"ticketing_revenue_excluding_taxes"`
}

// DeclarationKeyFigures is a pure reduction over a set of flattened events.
// It is recomputed on demand and never persisted.
type DeclarationKeyFigures struct {
	TicketingRevenueIncludingTaxes float64 `json:"ticketing_revenue_including_taxes"`
	TicketingRevenueExcludingTaxes float64 `json:"ticketing_revenue_excluding_taxes"`
	TaxAmount                      float64 `json:"tax_amount"`
	FreeTickets                    int     `json:"free_tickets"`
	PaidTickets                    int     `json:"paid_tickets"`
}

// SacdKeyFigures extends the common key figures with the non-ticketing
// revenue categories SACD requires.
type SacdKeyFigures struct {
	DeclarationKeyFigures
	ConsumablesRevenue  float64 `json:"consumables_revenue"`
	CateringRevenue     float64 `json:"catering_revenue"`
	ProgramSalesRevenue float64 `json:"program_sales_revenue"`
	OtherRevenue        float64 `json:"other_revenue"`
}

// DeclarationParty identifies one of the parties named in a SACD declaration
// (producer, presenter, venue operator).
type DeclarationParty struct {
	Name       string  `json:"name"`
	Street     string  `json:"street"`
	PostalCode string  `json:"postal_code"`
	City       string  `json:"city"`
	Siret      *string `json:"siret"`
}

// SacdDeclaration is the stored declaration state for one event series. The
// XML payload built from it is a derived artifact; only the transmitted raw
// payload is kept, for audit and replay.
type SacdDeclaration struct {
	ID                       string           `json:"id"`
	EventSerieID             int64            `json:"event_serie_id"`
	ClientReference          string           `json:"client_reference"`
	AverageTicketPrice       float64          `json:"average_ticket_price"`
	RightsTransferAmount     *float64         `json:"rights_transfer_amount"`
	RightsFeesAmount         *float64         `json:"rights_fees_amount"`
	CoProductionContribution *float64         `json:"co_production_contribution"`
	GuaranteeAmount          *float64         `json:"guarantee_amount"`
	ExpensesAmount           *float64         `json:"expenses_amount"`
	ConsumablesRevenue       float64          `json:"consumables_revenue"`
	CateringRevenue          float64          `json:"catering_revenue"`
	ProgramSalesRevenue      float64          `json:"program_sales_revenue"`
	OtherRevenue             float64          `json:"other_revenue"`
	Producer                 DeclarationParty `json:"producer"`
	Presenter                DeclarationParty `json:"presenter"`
	Venue                    DeclarationParty `json:"venue"`
	Status                   string           `json:"status"`
	TransmittedAt            *time.Time       `json:"transmitted_at"`
	LastTransmittedPayload   *string          `json:"last_transmitted_payload"`
}
