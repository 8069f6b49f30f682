package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/betagouv/assistant-declaration/src/diff"
	"github.com/betagouv/assistant-declaration/src/logger"
	"github.com/betagouv/assistant-declaration/src/models"
	"github.com/betagouv/assistant-declaration/src/ticketing"
)

// Synchronizer reconciles one ticketing connection's stored entities against
// the provider's fresh data, applying only the writes the diff implies. A
// single connection must not be synchronized by two callers at once; the
// caller is responsible for serializing overlapping triggers.
type Synchronizer struct {
	store Store
	now   func() time.Time
}

func NewSynchronizer(store Store) *Synchronizer {
	return &Synchronizer{store: store, now: time.Now}
}

// SynchronizeConnection pulls from the client and applies the reconciliation.
// Any failure aborts the run without applying further diffs; the error and a
// timestamp are recorded on the connection for later retry and user display.
func (s *Synchronizer) SynchronizeConnection(ctx context.Context, client ticketing.Client, connection models.TicketingConnection) error {
	fromDate := s.now()
	if connection.LastSynchronizedAt != nil {
		fromDate = *connection.LastSynchronizedAt
	}

	logger.L.Info("Starting ticketing synchronization",
		"connectionID", connection.ID, "provider", connection.Provider, "fromDate", fromDate)

	wrappers, err := client.GetEventsSeries(ctx, fromDate, nil)
	if err != nil {
		return s.abort(ctx, connection.ID, fmt.Errorf("fetch events series: %w", err))
	}

	if err := s.reconcile(ctx, connection.ID, wrappers); err != nil {
		return s.abort(ctx, connection.ID, err)
	}

	if err := s.store.RecordSyncSuccess(ctx, connection.ID, s.now()); err != nil {
		return err
	}

	logger.L.Info("Ticketing synchronization finished",
		"connectionID", connection.ID, "seriesCount", len(wrappers))
	return nil
}

func (s *Synchronizer) abort(ctx context.Context, connectionID int64, cause error) error {
	logger.L.Error("Ticketing synchronization aborted", "connectionID", connectionID, "error", cause)
	if recordErr := s.store.RecordSyncError(ctx, connectionID, cause.Error(), s.now()); recordErr != nil {
		logger.L.Error("Failed to record sync error", "connectionID", connectionID, "error", recordErr)
	}
	return cause
}

// reconcile diffs the series set, then the children of every series still
// present upstream. Children of unchanged series are reconciled too: sales
// totals move without touching the series metadata. Each entity family's
// writes are applied in one transaction, so a failure never leaves a
// half-applied bucket while families already committed stay committed.
func (s *Synchronizer) reconcile(ctx context.Context, connectionID int64, wrappers []models.EventSerieWrapper) error {
	storedSeries, err := s.store.ListEventSeries(ctx, connectionID)
	if err != nil {
		return err
	}

	// External IDs are only meaningful within one connection; diffing a
	// single connection's rows keeps keys collision-free across providers.
	existing := make(map[string]models.LiteEventSerie, len(storedSeries))
	serieIDs := make(map[string]int64, len(storedSeries))
	for _, serie := range storedSeries {
		existing[serie.TicketingSystemID] = models.LiteEventSerie{
			TicketingSystemID: serie.TicketingSystemID,
			Name:              serie.Name,
			StartAt:           serie.StartAt,
			EndAt:             serie.EndAt,
			TaxRate:           serie.TaxRate,
		}
		serieIDs[serie.TicketingSystemID] = serie.ID
	}

	incoming := make(map[string]models.LiteEventSerie, len(wrappers))
	for _, wrapper := range wrappers {
		incoming[wrapper.Serie.TicketingSystemID] = wrapper.Serie
	}

	result := diff.Diff(existing, incoming, liteSeriesEqual)
	logger.L.Debug("Event series diff computed", "connectionID", connectionID,
		"added", len(result.Added), "updated", len(result.Updated), "removed", len(result.Removed))

	if !result.Empty() {
		err := s.store.WithinTransaction(ctx, func(tx Store) error {
			for _, entry := range result.Added {
				serieID, err := tx.CreateEventSerie(ctx, connectionID, entry.Model)
				if err != nil {
					return err
				}
				serieIDs[entry.Key] = serieID
			}
			for _, entry := range result.Updated {
				if err := tx.UpdateEventSerie(ctx, connectionID, entry.Model); err != nil {
					return err
				}
			}
			for _, entry := range result.Removed {
				if err := tx.DeleteEventSerie(ctx, serieIDs[entry.Key]); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	for _, wrapper := range wrappers {
		serieID, ok := serieIDs[wrapper.Serie.TicketingSystemID]
		if !ok {
			return fmt.Errorf("missing stored id for serie %s", wrapper.Serie.TicketingSystemID)
		}
		if err := s.reconcileSerieChildren(ctx, serieID, wrapper); err != nil {
			return err
		}
	}
	return nil
}

func (s *Synchronizer) reconcileSerieChildren(ctx context.Context, serieID int64, wrapper models.EventSerieWrapper) error {
	if err := s.reconcileEvents(ctx, serieID, wrapper.Events); err != nil {
		return err
	}
	if err := s.reconcileTicketCategories(ctx, serieID, wrapper.TicketCategories); err != nil {
		return err
	}
	return s.reconcileSales(ctx, serieID, wrapper.Sales)
}

func (s *Synchronizer) reconcileEvents(ctx context.Context, serieID int64, incomingEvents []models.LiteEvent) error {
	storedEvents, err := s.store.ListEvents(ctx, serieID)
	if err != nil {
		return err
	}

	existing := make(map[string]models.LiteEvent, len(storedEvents))
	for _, event := range storedEvents {
		existing[event.TicketingSystemID] = models.LiteEvent{
			TicketingSystemID: event.TicketingSystemID,
			StartAt:           event.StartAt,
			EndAt:             event.EndAt,
		}
	}
	incoming := make(map[string]models.LiteEvent, len(incomingEvents))
	for _, event := range incomingEvents {
		incoming[event.TicketingSystemID] = event
	}

	result := diff.Diff(existing, incoming, liteEventsEqual)
	if result.Empty() {
		return nil
	}
	return s.store.WithinTransaction(ctx, func(tx Store) error {
		for _, entry := range result.Added {
			if err := tx.CreateEvent(ctx, serieID, entry.Model); err != nil {
				return err
			}
		}
		for _, entry := range result.Updated {
			if err := tx.UpdateEvent(ctx, serieID, entry.Model); err != nil {
				return err
			}
		}
		for _, entry := range result.Removed {
			if err := tx.DeleteEvent(ctx, serieID, entry.Key); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Synchronizer) reconcileTicketCategories(ctx context.Context, serieID int64, incomingCategories []models.LiteTicketCategory) error {
	storedCategories, err := s.store.ListTicketCategories(ctx, serieID)
	if err != nil {
		return err
	}

	existing := make(map[string]models.LiteTicketCategory, len(storedCategories))
	for _, category := range storedCategories {
		existing[category.TicketingSystemID] = models.LiteTicketCategory{
			TicketingSystemID: category.TicketingSystemID,
			Name:              category.Name,
			Description:       category.Description,
			Price:             category.Price,
		}
	}
	incoming := make(map[string]models.LiteTicketCategory, len(incomingCategories))
	for _, category := range incomingCategories {
		incoming[category.TicketingSystemID] = category
	}

	result := diff.Diff(existing, incoming, liteTicketCategoriesEqual)
	if result.Empty() {
		return nil
	}
	return s.store.WithinTransaction(ctx, func(tx Store) error {
		for _, entry := range result.Added {
			if err := tx.CreateTicketCategory(ctx, serieID, entry.Model); err != nil {
				return err
			}
		}
		for _, entry := range result.Updated {
			if err := tx.UpdateTicketCategory(ctx, serieID, entry.Model); err != nil {
				return err
			}
		}
		for _, entry := range result.Removed {
			if err := tx.DeleteTicketCategory(ctx, serieID, entry.Key); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Synchronizer) reconcileSales(ctx context.Context, serieID int64, incomingSales []models.LiteSalesRecord) error {
	storedSales, err := s.store.ListSales(ctx, serieID)
	if err != nil {
		return err
	}

	existing := make(map[string]models.LiteSalesRecord, len(storedSales))
	for _, sale := range storedSales {
		record := models.LiteSalesRecord{
			EventTicketingSystemID:          sale.EventTicketingSystemID,
			TicketCategoryTicketingSystemID: sale.TicketCategoryTicketingSystemID,
			Total:                           sale.Total,
		}
		existing[salesKey(record)] = record
	}
	incoming := make(map[string]models.LiteSalesRecord, len(incomingSales))
	for _, sale := range incomingSales {
		incoming[salesKey(sale)] = sale
	}

	result := diff.Diff(existing, incoming, func(a, b models.LiteSalesRecord) bool {
		return a.Total == b.Total
	})
	if result.Empty() {
		return nil
	}
	return s.store.WithinTransaction(ctx, func(tx Store) error {
		for _, entry := range result.Added {
			if err := tx.UpsertSale(ctx, serieID, entry.Model); err != nil {
				return err
			}
		}
		for _, entry := range result.Updated {
			if err := tx.UpsertSale(ctx, serieID, entry.Model); err != nil {
				return err
			}
		}
		for _, entry := range result.Removed {
			if err := tx.DeleteSale(ctx, serieID, entry.Model.EventTicketingSystemID, entry.Model.TicketCategoryTicketingSystemID); err != nil {
				return err
			}
		}
		return nil
	})
}

// salesKey builds the composite identity of a sales fact within one serie.
func salesKey(sale models.LiteSalesRecord) string {
	return sale.EventTicketingSystemID + "|" + sale.TicketCategoryTicketingSystemID
}

func liteSeriesEqual(a, b models.LiteEventSerie) bool {
	return a.Name == b.Name &&
		a.StartAt.Equal(b.StartAt) &&
		a.EndAt.Equal(b.EndAt) &&
		a.TaxRate == b.TaxRate
}

func liteEventsEqual(a, b models.LiteEvent) bool {
	return a.StartAt.Equal(b.StartAt) && a.EndAt.Equal(b.EndAt)
}

func liteTicketCategoriesEqual(a, b models.LiteTicketCategory) bool {
	if a.Name != b.Name || a.Price != b.Price {
		return false
	}
	if (a.Description == nil) != (b.Description == nil) {
		return false
	}
	return a.Description == nil || *a.Description == *b.Description
}
