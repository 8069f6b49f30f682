package mock

import (
	"context"
	"time"

	"github.com/betagouv/assistant-declaration/src/models"
)

// Client returns fixed deterministic data so non-production environments can
// exercise the whole synchronization pipeline without touching a real
// ticketing system. The factory substitutes it outside production.
type Client struct{}

func NewClient() *Client {
	return &Client{}
}

func (c *Client) TestConnection(ctx context.Context) (bool, error) {
	return true, nil
}

func (c *Client) GetEventsSeries(ctx context.Context, fromDate time.Time, toDate *time.Time) ([]models.EventSerieWrapper, error) {
	description := "Accès à partir de 12 ans"

	return []models.EventSerieWrapper{
		{
			Serie: models.LiteEventSerie{
				TicketingSystemID: "serie-1",
				Name:              "Mon spectacle synchronisé",
				StartAt:           time.Date(2024, 12, 1, 19, 0, 0, 0, time.UTC),
				EndAt:             time.Date(2024, 12, 20, 23, 0, 0, 0, time.UTC),
				TaxRate:           0.055,
			},
			Events: []models.LiteEvent{
				{
					TicketingSystemID: "event-1",
					StartAt:           time.Date(2024, 12, 1, 19, 0, 0, 0, time.UTC),
					EndAt:             time.Date(2024, 12, 1, 22, 0, 0, 0, time.UTC),
				},
				{
					TicketingSystemID: "event-2",
					StartAt:           time.Date(2024, 12, 20, 19, 0, 0, 0, time.UTC),
					EndAt:             time.Date(2024, 12, 20, 23, 0, 0, 0, time.UTC),
				},
			},
			TicketCategories: []models.LiteTicketCategory{
				{
					TicketingSystemID: "category-1",
					Name:              "Plein tarif",
					Description:       nil,
					Price:             18,
				},
				{
					TicketingSystemID: "category-2",
					Name:              "Tarif réduit",
					Description:       &description,
					Price:             12,
				},
			},
			Sales: []models.LiteSalesRecord{
				{EventTicketingSystemID: "event-1", TicketCategoryTicketingSystemID: "category-1", Total: 130},
				{EventTicketingSystemID: "event-1", TicketCategoryTicketingSystemID: "category-2", Total: 40},
				{EventTicketingSystemID: "event-2", TicketCategoryTicketingSystemID: "category-1", Total: 75},
			},
		},
	}, nil
}
