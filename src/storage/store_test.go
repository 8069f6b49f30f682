package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/betagouv/assistant-declaration/src/database"
	"github.com/betagouv/assistant-declaration/src/logger"
	"github.com/betagouv/assistant-declaration/src/models"
)

var testStore *Store

func TestMain(m *testing.M) {
	logger.InitLogger("error")

	dir, err := os.MkdirTemp("", "storetest")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	database.InitDB(filepath.Join(dir, "test.db"))
	testStore = NewStore(database.DB)

	code := m.Run()
	database.DB.Close()
	os.RemoveAll(dir)
	os.Exit(code)
}

func createConnection(t *testing.T) models.TicketingConnection {
	t.Helper()
	ctx := context.Background()

	result, err := database.DB.ExecContext(ctx, `INSERT INTO organizations (name) VALUES (?)`, "Compagnie "+t.Name())
	if err != nil {
		t.Fatalf("insert organization: %v", err)
	}
	organizationID, _ := result.LastInsertId()

	result, err = database.DB.ExecContext(ctx, `
		INSERT INTO ticketing_connections (organization_id, provider, api_access_key, api_secret_key)
		VALUES (?, 'billetweb', 'access', 'secret')`, organizationID)
	if err != nil {
		t.Fatalf("insert connection: %v", err)
	}
	connectionID, _ := result.LastInsertId()

	connection, err := testStore.GetTicketingConnection(ctx, connectionID)
	if err != nil {
		t.Fatalf("load connection: %v", err)
	}
	return connection
}

func createSerie(t *testing.T, connectionID int64, externalID string) int64 {
	t.Helper()
	serieID, err := testStore.CreateEventSerie(context.Background(), connectionID, models.LiteEventSerie{
		TicketingSystemID: externalID,
		Name:              "Série " + externalID,
		StartAt:           time.Date(2024, 12, 1, 20, 0, 0, 0, time.UTC),
		EndAt:             time.Date(2024, 12, 20, 23, 0, 0, 0, time.UTC),
		TaxRate:           0.055,
	})
	if err != nil {
		t.Fatalf("create serie: %v", err)
	}
	return serieID
}

func TestSyncBookkeeping(t *testing.T) {
	ctx := context.Background()
	connection := createConnection(t)

	errorAt := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	if err := testStore.RecordSyncError(ctx, connection.ID, "remote unavailable", errorAt); err != nil {
		t.Fatalf("RecordSyncError: %v", err)
	}
	reloaded, err := testStore.GetTicketingConnection(ctx, connection.ID)
	if err != nil {
		t.Fatalf("reload connection: %v", err)
	}
	if reloaded.LastSyncError == nil || *reloaded.LastSyncError != "remote unavailable" {
		t.Errorf("expected recorded error, got %+v", reloaded.LastSyncError)
	}
	if reloaded.LastSynchronizedAt != nil {
		t.Error("an error must not move the last success timestamp")
	}

	successAt := time.Date(2025, 1, 11, 8, 0, 0, 0, time.UTC)
	if err := testStore.RecordSyncSuccess(ctx, connection.ID, successAt); err != nil {
		t.Fatalf("RecordSyncSuccess: %v", err)
	}
	reloaded, err = testStore.GetTicketingConnection(ctx, connection.ID)
	if err != nil {
		t.Fatalf("reload connection: %v", err)
	}
	if reloaded.LastSynchronizedAt == nil || !reloaded.LastSynchronizedAt.Equal(successAt) {
		t.Errorf("expected success timestamp %v, got %+v", successAt, reloaded.LastSynchronizedAt)
	}
	if reloaded.LastSyncError != nil {
		t.Error("a success must clear the previous error")
	}
}

func TestDeleteEventSerieCascades(t *testing.T) {
	ctx := context.Background()
	connection := createConnection(t)
	serieID := createSerie(t, connection.ID, "serie-cascade")

	if err := testStore.CreateEvent(ctx, serieID, models.LiteEvent{
		TicketingSystemID: "event-1",
		StartAt:           time.Date(2024, 12, 1, 20, 0, 0, 0, time.UTC),
		EndAt:             time.Date(2024, 12, 1, 22, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("create event: %v", err)
	}
	if err := testStore.CreateTicketCategory(ctx, serieID, models.LiteTicketCategory{
		TicketingSystemID: "cat-1", Name: "Plein tarif", Price: 18,
	}); err != nil {
		t.Fatalf("create category: %v", err)
	}
	if err := testStore.UpsertSale(ctx, serieID, models.LiteSalesRecord{
		EventTicketingSystemID: "event-1", TicketCategoryTicketingSystemID: "cat-1", Total: 12,
	}); err != nil {
		t.Fatalf("upsert sale: %v", err)
	}

	if err := testStore.DeleteEventSerie(ctx, serieID); err != nil {
		t.Fatalf("DeleteEventSerie: %v", err)
	}

	if _, err := testStore.GetEventSerie(ctx, serieID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	events, err := testStore.ListEvents(ctx, serieID)
	if err != nil || len(events) != 0 {
		t.Errorf("expected no events left, got %d (err %v)", len(events), err)
	}
	sales, err := testStore.ListSales(ctx, serieID)
	if err != nil || len(sales) != 0 {
		t.Errorf("expected no sales left, got %d (err %v)", len(sales), err)
	}
}

func TestUpsertSaleUpdatesTotal(t *testing.T) {
	ctx := context.Background()
	connection := createConnection(t)
	serieID := createSerie(t, connection.ID, "serie-sales")

	sale := models.LiteSalesRecord{EventTicketingSystemID: "event-1", TicketCategoryTicketingSystemID: "cat-1", Total: 10}
	if err := testStore.UpsertSale(ctx, serieID, sale); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	sale.Total = 25
	if err := testStore.UpsertSale(ctx, serieID, sale); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	sales, err := testStore.ListSales(ctx, serieID)
	if err != nil {
		t.Fatalf("ListSales: %v", err)
	}
	if len(sales) != 1 || sales[0].Total != 25 {
		t.Errorf("expected a single sale with total 25, got %+v", sales)
	}
}

func TestAgencyPostalCodesRoundTrip(t *testing.T) {
	ctx := context.Background()

	agency := models.SacemAgency{
		Email:                     "roundtrip@sacem.example",
		MatchingFrenchPostalCodes: []string{"75", "751", "92"},
	}
	if err := testStore.UpsertSacemAgency(ctx, agency); err != nil {
		t.Fatalf("UpsertSacemAgency: %v", err)
	}

	list, err := testStore.ListSacemAgencies(ctx)
	if err != nil {
		t.Fatalf("ListSacemAgencies: %v", err)
	}
	var found *models.SacemAgency
	for i := range list {
		if list[i].Email == agency.Email {
			found = &list[i]
		}
	}
	if found == nil {
		t.Fatal("expected agency to be listed")
	}
	if len(found.MatchingFrenchPostalCodes) != 3 || found.MatchingFrenchPostalCodes[1] != "751" {
		t.Errorf("postal codes lost in round trip: %v", found.MatchingFrenchPostalCodes)
	}

	if err := testStore.DeleteSacemAgency(ctx, agency.Email); err != nil {
		t.Fatalf("DeleteSacemAgency: %v", err)
	}
}

func TestSerieDeclarationDefaultsFallback(t *testing.T) {
	ctx := context.Background()
	connection := createConnection(t)
	serieID := createSerie(t, connection.ID, "serie-defaults")

	// Nothing saved yet: zero defaults, not an error.
	defaults, err := testStore.GetSerieDeclarationDefaults(ctx, serieID)
	if err != nil {
		t.Fatalf("GetSerieDeclarationDefaults: %v", err)
	}
	if defaults.Place != "" || defaults.PlaceCapacity != 0 {
		t.Errorf("expected zero defaults, got %+v", defaults)
	}

	defaults = models.SerieDeclarationDefaults{
		EventSerieID:    serieID,
		Place:           "Théâtre du Parc",
		PlacePostalCode: "75011",
		PlaceCapacity:   300,
		Audience:        "tout public",
	}
	if err := testStore.SaveSerieDeclarationDefaults(ctx, defaults); err != nil {
		t.Fatalf("SaveSerieDeclarationDefaults: %v", err)
	}
	reloaded, err := testStore.GetSerieDeclarationDefaults(ctx, serieID)
	if err != nil {
		t.Fatalf("reload defaults: %v", err)
	}
	if reloaded != defaults {
		t.Errorf("expected %+v, got %+v", defaults, reloaded)
	}
}

func TestSacdDeclarationLifecycle(t *testing.T) {
	ctx := context.Background()
	connection := createConnection(t)
	serieID := createSerie(t, connection.ID, "serie-decl")

	declaration := models.SacdDeclaration{
		ID:              "11111111-2222-3333-4444-555555555555",
		EventSerieID:    serieID,
		ClientReference: "REF-LIFECYCLE",
		Status:          models.DeclarationStatusPending,
		Producer:        models.DeclarationParty{Name: "Compagnie du Nord", City: "Lille"},
	}
	if err := testStore.SaveSacdDeclaration(ctx, declaration); err != nil {
		t.Fatalf("SaveSacdDeclaration: %v", err)
	}

	// Saving again for the same serie updates in place.
	declaration.AverageTicketPrice = 9.5
	if err := testStore.SaveSacdDeclaration(ctx, declaration); err != nil {
		t.Fatalf("second SaveSacdDeclaration: %v", err)
	}
	reloaded, err := testStore.GetSacdDeclaration(ctx, serieID)
	if err != nil {
		t.Fatalf("GetSacdDeclaration: %v", err)
	}
	if reloaded.AverageTicketPrice != 9.5 || reloaded.Producer.Name != "Compagnie du Nord" {
		t.Errorf("unexpected declaration: %+v", reloaded)
	}
	if reloaded.TransmittedAt != nil {
		t.Error("expected no transmission yet")
	}

	transmittedAt := time.Date(2025, 2, 1, 9, 30, 0, 0, time.UTC)
	if err := testStore.RecordDeclarationTransmission(ctx, declaration.ID, "<Declaration></Declaration>", transmittedAt); err != nil {
		t.Fatalf("RecordDeclarationTransmission: %v", err)
	}
	reloaded, err = testStore.GetSacdDeclaration(ctx, serieID)
	if err != nil {
		t.Fatalf("reload declaration: %v", err)
	}
	if reloaded.Status != models.DeclarationStatusTransmitted {
		t.Errorf("expected status TRANSMITTED, got %s", reloaded.Status)
	}
	if reloaded.TransmittedAt == nil || !reloaded.TransmittedAt.Equal(transmittedAt) {
		t.Errorf("expected transmitted timestamp %v, got %+v", transmittedAt, reloaded.TransmittedAt)
	}
	if reloaded.LastTransmittedPayload == nil || *reloaded.LastTransmittedPayload != "<Declaration></Declaration>" {
		t.Error("expected the raw payload to be kept")
	}
}

func TestWithinTransaction(t *testing.T) {
	ctx := context.Background()
	connection := createConnection(t)

	err := testStore.WithinTransaction(ctx, func(tx *Store) error {
		_ = createSerieInTx(t, tx, connection.ID)
		return errors.New("rollback please")
	})
	if err == nil {
		t.Fatal("expected the callback error to surface")
	}

	series, err := testStore.ListEventSeries(ctx, connection.ID)
	if err != nil {
		t.Fatalf("ListEventSeries: %v", err)
	}
	if len(series) != 0 {
		t.Errorf("expected rollback to discard the serie, got %d", len(series))
	}

	err = testStore.WithinTransaction(ctx, func(tx *Store) error {
		return tx.WithinTransaction(ctx, func(*Store) error { return nil })
	})
	if err == nil {
		t.Fatal("expected nested transactions to be rejected")
	}
}

func createSerieInTx(t *testing.T, tx *Store, connectionID int64) int64 {
	t.Helper()
	serieID, err := tx.CreateEventSerie(context.Background(), connectionID, models.LiteEventSerie{
		TicketingSystemID: "serie-tx",
		Name:              "Série transactionnelle",
		StartAt:           time.Date(2024, 12, 1, 20, 0, 0, 0, time.UTC),
		EndAt:             time.Date(2024, 12, 2, 22, 0, 0, 0, time.UTC),
		TaxRate:           0.055,
	})
	if err != nil {
		t.Fatalf("create serie in tx: %v", err)
	}
	return serieID
}
