package declaration

import (
	"github.com/betagouv/assistant-declaration/src/models"
)

// Coalesce resolves an overridable attribute: the per-event override wins
// when present, otherwise the series-level default applies. The precedence
// lives here, in one named place, instead of being buried in nested
// conditionals.
func Coalesce[T any](override *T, fallback T) T {
	if override != nil {
		return *override
	}
	return fallback
}

// FlattenEvents merges each event of a series with the series-level defaults
// and its own overrides, producing one authoritative value per overridable
// attribute. Amounts not overridden are derived from the synchronized sales
// facts and the series tax rate. A series with zero events yields an empty
// list, which callers must treat as "nothing to declare", not an error.
func FlattenEvents(
	serie models.EventSerie,
	events []models.Event,
	categories []models.TicketCategory,
	sales []models.EventSale,
	defaults models.SerieDeclarationDefaults,
	overrides []models.EventOverride,
) []models.FlattenEvent {
	priceByCategory := make(map[string]float64, len(categories))
	for _, category := range categories {
		priceByCategory[category.TicketingSystemID] = category.Price
	}

	overridesByEvent := make(map[int64]models.EventOverride, len(overrides))
	for _, override := range overrides {
		overridesByEvent[override.EventID] = override
	}

	type salesTotals struct {
		revenue float64
		paid    int
		free    int
	}
	totalsByEvent := make(map[string]salesTotals)
	for _, sale := range sales {
		totals := totalsByEvent[sale.EventTicketingSystemID]
		price := priceByCategory[sale.TicketCategoryTicketingSystemID]
		if price > 0 {
			totals.revenue += float64(sale.Total) * price
			totals.paid += sale.Total
		} else {
			totals.free += sale.Total
		}
		totalsByEvent[sale.EventTicketingSystemID] = totals
	}

	flattened := make([]models.FlattenEvent, 0, len(events))
	for _, event := range events {
		override := overridesByEvent[event.ID]
		totals := totalsByEvent[event.TicketingSystemID]

		revenueIncludingTaxes := Coalesce(override.TicketingRevenueIncludingTaxes, totals.revenue)

		flattened = append(flattened, models.FlattenEvent{
			EventID:                        event.ID,
			StartAt:                        event.StartAt,
			EndAt:                          event.EndAt,
			Place:                          Coalesce(override.Place, defaults.Place),
			PlacePostalCode:                Coalesce(override.PlacePostalCode, defaults.PlacePostalCode),
			PlaceCapacity:                  Coalesce(override.PlaceCapacity, defaults.PlaceCapacity),
			Audience:                       Coalesce(override.Audience, defaults.Audience),
			FreeTickets:                    Coalesce(override.FreeTickets, totals.free),
			PaidTickets:                    Coalesce(override.PaidTickets, totals.paid),
			TicketingRevenueIncludingTaxes: revenueIncludingTaxes,
			TicketingRevenueExcludingTaxes: revenueIncludingTaxes / (1 + serie.TaxRate),
		})
	}
	return flattened
}

// ComputeKeyFigures reduces a set of flattened events to the aggregate
// figures shown on a declaration. The tax amount is derived as
// inclusive minus exclusive, never inclusive times rate, so it stays
// consistent when a rate was not tracked per line.
func ComputeKeyFigures(events []models.FlattenEvent) models.DeclarationKeyFigures {
	var figures models.DeclarationKeyFigures
	for _, event := range events {
		figures.TicketingRevenueIncludingTaxes += event.TicketingRevenueIncludingTaxes
		figures.TicketingRevenueExcludingTaxes += event.TicketingRevenueExcludingTaxes
		figures.FreeTickets += event.FreeTickets
		figures.PaidTickets += event.PaidTickets
	}
	figures.TaxAmount = figures.TicketingRevenueIncludingTaxes - figures.TicketingRevenueExcludingTaxes
	return figures
}

// ComputeSacdKeyFigures adds the non-ticketing revenue categories SACD
// declarations carry on top of the common figures.
func ComputeSacdKeyFigures(events []models.FlattenEvent, declaration models.SacdDeclaration) models.SacdKeyFigures {
	return models.SacdKeyFigures{
		DeclarationKeyFigures: ComputeKeyFigures(events),
		ConsumablesRevenue:    declaration.ConsumablesRevenue,
		CateringRevenue:       declaration.CateringRevenue,
		ProgramSalesRevenue:   declaration.ProgramSalesRevenue,
		OtherRevenue:          declaration.OtherRevenue,
	}
}
