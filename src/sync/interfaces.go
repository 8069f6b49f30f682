package sync

import (
	"context"
	"time"

	"github.com/betagouv/assistant-declaration/src/models"
	"github.com/betagouv/assistant-declaration/src/storage"
)

// Store is the slice of the relational store the synchronizer needs. It is
// received explicitly so the reconciliation logic stays testable against a
// fake.
type Store interface {
	// WithinTransaction runs fn against a store bound to a single
	// transaction; fn's writes are rolled back when it returns an error.
	WithinTransaction(ctx context.Context, fn func(tx Store) error) error

	ListEventSeries(ctx context.Context, connectionID int64) ([]models.EventSerie, error)
	CreateEventSerie(ctx context.Context, connectionID int64, serie models.LiteEventSerie) (int64, error)
	UpdateEventSerie(ctx context.Context, connectionID int64, serie models.LiteEventSerie) error
	DeleteEventSerie(ctx context.Context, id int64) error

	ListEvents(ctx context.Context, serieID int64) ([]models.Event, error)
	CreateEvent(ctx context.Context, serieID int64, event models.LiteEvent) error
	UpdateEvent(ctx context.Context, serieID int64, event models.LiteEvent) error
	DeleteEvent(ctx context.Context, serieID int64, ticketingSystemID string) error

	ListTicketCategories(ctx context.Context, serieID int64) ([]models.TicketCategory, error)
	CreateTicketCategory(ctx context.Context, serieID int64, category models.LiteTicketCategory) error
	UpdateTicketCategory(ctx context.Context, serieID int64, category models.LiteTicketCategory) error
	DeleteTicketCategory(ctx context.Context, serieID int64, ticketingSystemID string) error

	ListSales(ctx context.Context, serieID int64) ([]models.EventSale, error)
	UpsertSale(ctx context.Context, serieID int64, sale models.LiteSalesRecord) error
	DeleteSale(ctx context.Context, serieID int64, eventTicketingSystemID, categoryTicketingSystemID string) error

	RecordSyncSuccess(ctx context.Context, connectionID int64, at time.Time) error
	RecordSyncError(ctx context.Context, connectionID int64, message string, at time.Time) error
}

// sqlStore bridges the relational store, whose transaction callback is typed
// on the concrete store, to the Store contract above.
type sqlStore struct {
	*storage.Store
}

func (s sqlStore) WithinTransaction(ctx context.Context, fn func(tx Store) error) error {
	return s.Store.WithinTransaction(ctx, func(tx *storage.Store) error {
		return fn(sqlStore{tx})
	})
}

// WrapStore exposes the relational store through the synchronizer's Store
// contract.
func WrapStore(store *storage.Store) Store {
	return sqlStore{store}
}
