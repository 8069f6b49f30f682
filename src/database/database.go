package database

import (
	"database/sql"
	stdlog "log"

	"github.com/betagouv/assistant-declaration/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

func InitDB(databasePath string) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	if logger.L != nil {
		logger.L.Info("Checking database migrations", "databasePath", databasePath)
	} else {
		stdlog.Println("Checking database migrations for:", databasePath)
	}

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS organizations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS ticketing_connections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		organization_id INTEGER NOT NULL,
		provider TEXT NOT NULL,
		api_access_key TEXT NOT NULL,
		api_secret_key TEXT NOT NULL,
		last_synchronized_at TIMESTAMP,
		last_sync_error TEXT,
		last_sync_error_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(organization_id) REFERENCES organizations(id)
	);

	CREATE TABLE IF NOT EXISTS lite_event_series (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ticketing_connection_id INTEGER NOT NULL,
		ticketing_system_id TEXT NOT NULL,
		name TEXT NOT NULL,
		start_at TIMESTAMP NOT NULL,
		end_at TIMESTAMP NOT NULL,
		tax_rate REAL NOT NULL,
		FOREIGN KEY(ticketing_connection_id) REFERENCES ticketing_connections(id),
		UNIQUE(ticketing_connection_id, ticketing_system_id)
	);

	CREATE TABLE IF NOT EXISTS lite_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_serie_id INTEGER NOT NULL,
		ticketing_system_id TEXT NOT NULL,
		start_at TIMESTAMP NOT NULL,
		end_at TIMESTAMP NOT NULL,
		FOREIGN KEY(event_serie_id) REFERENCES lite_event_series(id),
		UNIQUE(event_serie_id, ticketing_system_id)
	);

	CREATE TABLE IF NOT EXISTS lite_ticket_categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_serie_id INTEGER NOT NULL,
		ticketing_system_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		price REAL NOT NULL,
		FOREIGN KEY(event_serie_id) REFERENCES lite_event_series(id),
		UNIQUE(event_serie_id, ticketing_system_id)
	);

	CREATE TABLE IF NOT EXISTS lite_sales (
		event_serie_id INTEGER NOT NULL,
		event_ticketing_system_id TEXT NOT NULL,
		ticket_category_ticketing_system_id TEXT NOT NULL,
		total INTEGER NOT NULL,
		FOREIGN KEY(event_serie_id) REFERENCES lite_event_series(id),
		UNIQUE(event_serie_id, event_ticketing_system_id, ticket_category_ticketing_system_id)
	);

	CREATE TABLE IF NOT EXISTS event_overrides (
		event_id INTEGER PRIMARY KEY,
		place TEXT,
		place_postal_code TEXT,
		place_capacity INTEGER,
		audience TEXT,
		free_tickets INTEGER,
		paid_tickets INTEGER,
		ticketing_revenue_including_taxes REAL,
		FOREIGN KEY(event_id) REFERENCES lite_events(id)
	);

	CREATE TABLE IF NOT EXISTS serie_declaration_defaults (
		event_serie_id INTEGER PRIMARY KEY,
		place TEXT NOT NULL DEFAULT '',
		place_postal_code TEXT NOT NULL DEFAULT '',
		place_capacity INTEGER NOT NULL DEFAULT 0,
		audience TEXT NOT NULL DEFAULT '',
		FOREIGN KEY(event_serie_id) REFERENCES lite_event_series(id)
	);

	CREATE TABLE IF NOT EXISTS sacem_agencies (
		email TEXT PRIMARY KEY,
		matching_french_postal_codes TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sacd_agencies (
		email TEXT PRIMARY KEY,
		matching_french_postal_codes TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sacd_declarations (
		id TEXT PRIMARY KEY,
		event_serie_id INTEGER NOT NULL,
		client_reference TEXT NOT NULL,
		average_ticket_price REAL NOT NULL DEFAULT 0,
		rights_transfer_amount REAL,
		rights_fees_amount REAL,
		co_production_contribution REAL,
		guarantee_amount REAL,
		expenses_amount REAL,
		consumables_revenue REAL NOT NULL DEFAULT 0,
		catering_revenue REAL NOT NULL DEFAULT 0,
		program_sales_revenue REAL NOT NULL DEFAULT 0,
		other_revenue REAL NOT NULL DEFAULT 0,
		producer_name TEXT NOT NULL DEFAULT '',
		producer_street TEXT NOT NULL DEFAULT '',
		producer_postal_code TEXT NOT NULL DEFAULT '',
		producer_city TEXT NOT NULL DEFAULT '',
		producer_siret TEXT,
		presenter_name TEXT NOT NULL DEFAULT '',
		presenter_street TEXT NOT NULL DEFAULT '',
		presenter_postal_code TEXT NOT NULL DEFAULT '',
		presenter_city TEXT NOT NULL DEFAULT '',
		presenter_siret TEXT,
		venue_name TEXT NOT NULL DEFAULT '',
		venue_street TEXT NOT NULL DEFAULT '',
		venue_postal_code TEXT NOT NULL DEFAULT '',
		venue_city TEXT NOT NULL DEFAULT '',
		venue_siret TEXT,
		status TEXT NOT NULL DEFAULT 'PENDING',
		transmitted_at TIMESTAMP,
		last_transmitted_payload TEXT,
		FOREIGN KEY(event_serie_id) REFERENCES lite_event_series(id),
		UNIQUE(event_serie_id)
	);
	`

	_, err = DB.Exec(createTableStatement)
	if err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create tables", "error", err)
		}
		stdlog.Fatalf("failed to create tables: %v", err)
	}

	migrateTicketingConnections()

	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.")
	} else {
		stdlog.Println("Database tables ensured/created.")
	}
}

// migrateTicketingConnections adds the sync bookkeeping columns to databases
// created before they existed.
func migrateTicketingConnections() {
	var tableName string
	err := DB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='ticketing_connections'").Scan(&tableName)
	if err != nil {
		if err == sql.ErrNoRows {
			return
		}
		if logger.L != nil {
			logger.L.Error("Error checking for 'ticketing_connections' table", "error", err)
		} else {
			stdlog.Printf("Error checking for 'ticketing_connections' table: %v", err)
		}
		return
	}

	rows, err := DB.Query("PRAGMA table_info(ticketing_connections)")
	if err != nil {
		if logger.L != nil {
			logger.L.Error("Error querying table schema for 'ticketing_connections'", "error", err)
		} else {
			stdlog.Printf("Error querying table schema for 'ticketing_connections': %v", err)
		}
		return
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue interface{}

		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			if logger.L != nil {
				logger.L.Error("Error scanning column info for 'ticketing_connections'", "error", err)
			} else {
				stdlog.Printf("Error scanning column info for 'ticketing_connections': %v", err)
			}
			return
		}
		columnExists[name] = true
	}
	if err = rows.Err(); err != nil {
		if logger.L != nil {
			logger.L.Error("Error iterating over column info for 'ticketing_connections'", "error", err)
		} else {
			stdlog.Printf("Error iterating over column info for 'ticketing_connections': %v", err)
		}
		return
	}

	if _, ok := columnExists["last_synchronized_at"]; !ok {
		_, err := DB.Exec("ALTER TABLE ticketing_connections ADD COLUMN last_synchronized_at TIMESTAMP")
		if err != nil {
			logger.L.Error("Error adding 'last_synchronized_at' column to 'ticketing_connections' table", "error", err)
		} else {
			logger.L.Info("Added 'last_synchronized_at' column to 'ticketing_connections' table")
		}
	}
	if _, ok := columnExists["last_sync_error"]; !ok {
		_, err := DB.Exec("ALTER TABLE ticketing_connections ADD COLUMN last_sync_error TEXT")
		if err != nil {
			logger.L.Error("Error adding 'last_sync_error' column to 'ticketing_connections' table", "error", err)
		} else {
			logger.L.Info("Added 'last_sync_error' column to 'ticketing_connections' table")
		}
	}
	if _, ok := columnExists["last_sync_error_at"]; !ok {
		_, err := DB.Exec("ALTER TABLE ticketing_connections ADD COLUMN last_sync_error_at TIMESTAMP")
		if err != nil {
			logger.L.Error("Error adding 'last_sync_error_at' column to 'ticketing_connections' table", "error", err)
		} else {
			logger.L.Info("Added 'last_sync_error_at' column to 'ticketing_connections' table")
		}
	}
}
