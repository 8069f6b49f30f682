package declaration

import (
	"math"
	"testing"
	"time"

	"github.com/betagouv/assistant-declaration/src/models"
)

const tolerance = 0.005

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < tolerance
}

func intPtr(v int) *int           { return &v }
func strPtr(v string) *string     { return &v }
func floatPtr(v float64) *float64 { return &v }

func sampleSerieData() (models.EventSerie, []models.Event, []models.TicketCategory, []models.EventSale) {
	serie := models.EventSerie{ID: 1, Name: "Tournée", TaxRate: 0.055}
	events := []models.Event{
		{ID: 10, EventSerieID: 1, TicketingSystemID: "event-1",
			StartAt: time.Date(2024, 12, 1, 20, 0, 0, 0, time.UTC),
			EndAt:   time.Date(2024, 12, 1, 22, 0, 0, 0, time.UTC)},
		{ID: 11, EventSerieID: 1, TicketingSystemID: "event-2",
			StartAt: time.Date(2024, 12, 2, 20, 0, 0, 0, time.UTC),
			EndAt:   time.Date(2024, 12, 2, 22, 0, 0, 0, time.UTC)},
	}
	categories := []models.TicketCategory{
		{ID: 20, EventSerieID: 1, TicketingSystemID: "cat-full", Name: "Plein tarif", Price: 100},
		{ID: 21, EventSerieID: 1, TicketingSystemID: "cat-reduced", Name: "Tarif réduit", Price: 50},
		{ID: 22, EventSerieID: 1, TicketingSystemID: "cat-free", Name: "Invitation", Price: 0},
	}
	sales := []models.EventSale{
		{EventSerieID: 1, EventTicketingSystemID: "event-1", TicketCategoryTicketingSystemID: "cat-full", Total: 1},
		{EventSerieID: 1, EventTicketingSystemID: "event-1", TicketCategoryTicketingSystemID: "cat-reduced", Total: 1},
		{EventSerieID: 1, EventTicketingSystemID: "event-1", TicketCategoryTicketingSystemID: "cat-free", Total: 5},
		{EventSerieID: 1, EventTicketingSystemID: "event-2", TicketCategoryTicketingSystemID: "cat-full", Total: 3},
	}
	return serie, events, categories, sales
}

func TestFlattenEvents(t *testing.T) {
	t.Parallel()

	defaults := models.SerieDeclarationDefaults{
		EventSerieID:    1,
		Place:           "Théâtre du Parc",
		PlacePostalCode: "75011",
		PlaceCapacity:   300,
		Audience:        "tout public",
	}

	t.Run("derives amounts from sales facts", func(t *testing.T) {
		t.Parallel()
		serie, events, categories, sales := sampleSerieData()

		flattened := FlattenEvents(serie, events, categories, sales, defaults, nil)
		if len(flattened) != 2 {
			t.Fatalf("expected 2 flattened events, got %d", len(flattened))
		}

		first := flattened[0]
		// 1 x 100 + 1 x 50, the zero-priced category counts as free entries.
		if !almostEqual(first.TicketingRevenueIncludingTaxes, 150) {
			t.Errorf("expected revenue 150, got %g", first.TicketingRevenueIncludingTaxes)
		}
		if !almostEqual(first.TicketingRevenueExcludingTaxes, 142.18) {
			t.Errorf("expected revenue excl. taxes 142.18, got %g", first.TicketingRevenueExcludingTaxes)
		}
		if first.PaidTickets != 2 || first.FreeTickets != 5 {
			t.Errorf("expected 2 paid and 5 free, got %d and %d", first.PaidTickets, first.FreeTickets)
		}
		if first.Place != "Théâtre du Parc" || first.PlaceCapacity != 300 {
			t.Errorf("expected serie defaults applied, got %+v", first)
		}
	})

	t.Run("override wins over defaults and derived values", func(t *testing.T) {
		t.Parallel()
		serie, events, categories, sales := sampleSerieData()
		overrides := []models.EventOverride{
			{
				EventID:                        10,
				Place:                          strPtr("Salle des fêtes"),
				PlaceCapacity:                  intPtr(120),
				PaidTickets:                    intPtr(80),
				TicketingRevenueIncludingTaxes: floatPtr(900),
			},
		}

		flattened := FlattenEvents(serie, events, categories, sales, defaults, overrides)
		first := flattened[0]
		if first.Place != "Salle des fêtes" || first.PlaceCapacity != 120 {
			t.Errorf("expected overridden place values, got %+v", first)
		}
		if first.PaidTickets != 80 {
			t.Errorf("expected overridden paid tickets 80, got %d", first.PaidTickets)
		}
		if !almostEqual(first.TicketingRevenueIncludingTaxes, 900) {
			t.Errorf("expected overridden revenue 900, got %g", first.TicketingRevenueIncludingTaxes)
		}
		// The excl-taxes amount follows the overridden incl-taxes amount.
		if !almostEqual(first.TicketingRevenueExcludingTaxes, 900/1.055) {
			t.Errorf("expected derived excl. taxes %g, got %g", 900/1.055, first.TicketingRevenueExcludingTaxes)
		}
		// Untouched fields keep their fallback.
		if first.FreeTickets != 5 || first.Audience != "tout public" {
			t.Errorf("expected untouched fallbacks, got %+v", first)
		}

		second := flattened[1]
		if second.Place != "Théâtre du Parc" {
			t.Errorf("override of one event must not leak to another, got %+v", second)
		}
	})

	t.Run("serie without events yields an empty list", func(t *testing.T) {
		t.Parallel()
		serie, _, _, _ := sampleSerieData()
		flattened := FlattenEvents(serie, nil, nil, nil, defaults, nil)
		if len(flattened) != 0 {
			t.Errorf("expected no flattened events, got %d", len(flattened))
		}
	})
}

func TestComputeKeyFigures(t *testing.T) {
	t.Parallel()

	t.Run("aggregates over all events with consistent tax", func(t *testing.T) {
		t.Parallel()
		serie, events, categories, sales := sampleSerieData()
		defaults := models.SerieDeclarationDefaults{EventSerieID: 1}

		figures := ComputeKeyFigures(FlattenEvents(serie, events, categories, sales, defaults, nil))
		// 150 + 300 inclusive across the two events.
		if !almostEqual(figures.TicketingRevenueIncludingTaxes, 450) {
			t.Errorf("expected 450 incl. taxes, got %g", figures.TicketingRevenueIncludingTaxes)
		}
		if !almostEqual(figures.TicketingRevenueExcludingTaxes, 426.54) {
			t.Errorf("expected 426.54 excl. taxes, got %g", figures.TicketingRevenueExcludingTaxes)
		}
		if !almostEqual(figures.TaxAmount, 23.46) {
			t.Errorf("expected tax 23.46, got %g", figures.TaxAmount)
		}
		if figures.PaidTickets != 5 || figures.FreeTickets != 5 {
			t.Errorf("expected 5 paid and 5 free, got %d and %d", figures.PaidTickets, figures.FreeTickets)
		}
		// Invariant: inclusive == exclusive + tax.
		if !almostEqual(figures.TicketingRevenueExcludingTaxes+figures.TaxAmount, figures.TicketingRevenueIncludingTaxes) {
			t.Error("expected excl + tax to equal incl")
		}
	})

	t.Run("empty input yields zero figures", func(t *testing.T) {
		t.Parallel()
		figures := ComputeKeyFigures(nil)
		if figures.TicketingRevenueIncludingTaxes != 0 || figures.PaidTickets != 0 {
			t.Errorf("expected zero figures, got %+v", figures)
		}
	})
}

func TestComputeSacdKeyFigures(t *testing.T) {
	t.Parallel()

	serie, events, categories, sales := sampleSerieData()
	flattened := FlattenEvents(serie, events, categories, sales, models.SerieDeclarationDefaults{}, nil)
	declaration := models.SacdDeclaration{
		ConsumablesRevenue:  120,
		CateringRevenue:     80,
		ProgramSalesRevenue: 45.5,
		OtherRevenue:        10,
	}

	figures := ComputeSacdKeyFigures(flattened, declaration)
	if !almostEqual(figures.TicketingRevenueIncludingTaxes, 450) {
		t.Errorf("expected embedded common figures, got %g", figures.TicketingRevenueIncludingTaxes)
	}
	if figures.ConsumablesRevenue != 120 || figures.ProgramSalesRevenue != 45.5 {
		t.Errorf("unexpected non-ticketing revenues: %+v", figures)
	}
}

func TestCoalesce(t *testing.T) {
	t.Parallel()

	if got := Coalesce(nil, "fallback"); got != "fallback" {
		t.Errorf("expected fallback, got %s", got)
	}
	if got := Coalesce(strPtr("override"), "fallback"); got != "override" {
		t.Errorf("expected override, got %s", got)
	}
	// A pointer to the zero value is still an override.
	if got := Coalesce(intPtr(0), 42); got != 0 {
		t.Errorf("expected explicit zero override, got %d", got)
	}
}
