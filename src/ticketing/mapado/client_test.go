package mapado

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClientWithHTTP("secret-token", server.URL, server.Client())
}

func emptyCollection[T any]() mpCollection[T] {
	return mpCollection[T]{Members: []T{}}
}

func TestNewClientUsesConfiguredTimeout(t *testing.T) {
	t.Parallel()
	client := NewClient("", "secret-token", 5*time.Second)
	if client.httpClient.Timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", client.httpClient.Timeout)
	}
}

func TestTestConnection(t *testing.T) {
	t.Parallel()

	t.Run("sends the bearer token", func(t *testing.T) {
		t.Parallel()
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer secret-token" {
				t.Errorf("unexpected authorization header: %q", r.Header.Get("Authorization"))
			}
			json.NewEncoder(w).Encode(emptyCollection[mpEventFamily]())
		}))

		connected, err := client.TestConnection(context.Background())
		if err != nil {
			t.Fatalf("TestConnection: %v", err)
		}
		if !connected {
			t.Error("expected connected=true")
		}
	})

	t.Run("rejected token is not an error", func(t *testing.T) {
		t.Parallel()
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"expired token"}`, http.StatusUnauthorized)
		}))

		connected, err := client.TestConnection(context.Background())
		if err != nil {
			t.Fatalf("TestConnection: %v", err)
		}
		if connected {
			t.Error("expected connected=false on 401")
		}
	})
}

func TestGetEventsSeries(t *testing.T) {
	t.Parallel()

	t.Run("walks paginated event families", func(t *testing.T) {
		t.Parallel()
		mux := http.NewServeMux()
		mux.HandleFunc("/event_families", func(w http.ResponseWriter, r *http.Request) {
			page, _ := strconv.Atoi(r.URL.Query().Get("page"))
			collection := mpCollection[mpEventFamily]{TotalItems: 2}
			family := mpEventFamily{
				Title:     "Saison",
				StartDate: "2024-09-01T20:00:00+02:00",
				EndDate:   "2024-09-30T23:00:00+02:00",
				TaxRate:   0.055,
			}
			// itemsPerPage is ignored here; one member per page forces a
			// second fetch.
			family.ID = int64(page)
			collection.Members = []mpEventFamily{family}
			json.NewEncoder(w).Encode(collection)
		})
		mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(emptyCollection[mpEvent]())
		})
		mux.HandleFunc("/ticket_prices", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(emptyCollection[mpTicketPrice]())
		})
		mux.HandleFunc("/ticket_sales_stats", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(emptyCollection[mpSalesEntry]())
		})
		client := newTestClient(t, mux)

		wrappers, err := client.GetEventsSeries(context.Background(), time.Now(), nil)
		if err != nil {
			t.Fatalf("GetEventsSeries: %v", err)
		}
		if len(wrappers) != 2 {
			t.Fatalf("expected 2 wrappers across pages, got %d", len(wrappers))
		}
	})

	t.Run("walks paginated child collections of one family", func(t *testing.T) {
		t.Parallel()
		const totalEvents = 150

		mux := http.NewServeMux()
		mux.HandleFunc("/event_families", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(mpCollection[mpEventFamily]{
				TotalItems: 1,
				Members: []mpEventFamily{
					{ID: 42, Title: "Saison complète", StartDate: "2024-09-01T20:00:00Z", EndDate: "2025-06-30T23:00:00Z", TaxRate: 0.055},
				},
			})
		})
		mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
			page, _ := strconv.Atoi(r.URL.Query().Get("page"))
			perPage, _ := strconv.Atoi(r.URL.Query().Get("itemsPerPage"))
			collection := mpCollection[mpEvent]{TotalItems: totalEvents, Members: []mpEvent{}}
			for i := (page - 1) * perPage; i < page*perPage && i < totalEvents; i++ {
				collection.Members = append(collection.Members, mpEvent{
					ID:        int64(1000 + i),
					StartDate: "2024-11-01T20:00:00Z",
					EndDate:   "2024-11-01T22:00:00Z",
				})
			}
			json.NewEncoder(w).Encode(collection)
		})
		mux.HandleFunc("/ticket_prices", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(emptyCollection[mpTicketPrice]())
		})
		mux.HandleFunc("/ticket_sales_stats", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(emptyCollection[mpSalesEntry]())
		})
		client := newTestClient(t, mux)

		wrappers, err := client.GetEventsSeries(context.Background(), time.Now(), nil)
		if err != nil {
			t.Fatalf("GetEventsSeries: %v", err)
		}
		if len(wrappers) != 1 {
			t.Fatalf("expected 1 wrapper, got %d", len(wrappers))
		}
		if len(wrappers[0].Events) != totalEvents {
			t.Errorf("expected all %d events hydrated, got %d", totalEvents, len(wrappers[0].Events))
		}
	})

	t.Run("hydrates a family and converts cents", func(t *testing.T) {
		t.Parallel()
		mux := http.NewServeMux()
		mux.HandleFunc("/event_families", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(mpCollection[mpEventFamily]{
				TotalItems: 1,
				Members: []mpEventFamily{
					{ID: 42, Title: "Pièce contemporaine", StartDate: "2024-11-01T20:00:00Z", EndDate: "2024-11-03T22:00:00Z", TaxRate: 0.021},
				},
			})
		})
		mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("eventFamily") != "42" {
				t.Errorf("expected eventFamily=42, got %s", r.URL.Query().Get("eventFamily"))
			}
			json.NewEncoder(w).Encode(mpCollection[mpEvent]{
				TotalItems: 1,
				Members: []mpEvent{
					{ID: 101, StartDate: "2024-11-01T20:00:00Z", EndDate: "2024-11-01T22:00:00Z"},
				},
			})
		})
		mux.HandleFunc("/ticket_prices", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(mpCollection[mpTicketPrice]{
				TotalItems: 1,
				Members: []mpTicketPrice{
					{ID: 7, Name: "Plein tarif", FaceValue: 1850},
				},
			})
		})
		mux.HandleFunc("/ticket_sales_stats", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(mpCollection[mpSalesEntry]{
				TotalItems: 1,
				Members: []mpSalesEntry{
					{EventID: 101, TicketPriceID: 7, Quantity: 64},
				},
			})
		})
		client := newTestClient(t, mux)

		wrappers, err := client.GetEventsSeries(context.Background(), time.Now(), nil)
		if err != nil {
			t.Fatalf("GetEventsSeries: %v", err)
		}
		wrapper := wrappers[0]
		if wrapper.Serie.TicketingSystemID != "42" {
			t.Errorf("expected serie id 42, got %s", wrapper.Serie.TicketingSystemID)
		}
		if len(wrapper.TicketCategories) != 1 || wrapper.TicketCategories[0].Price != 18.50 {
			t.Errorf("expected price 18.50 from 1850 cents, got %+v", wrapper.TicketCategories)
		}
		if len(wrapper.Sales) != 1 || wrapper.Sales[0].Total != 64 {
			t.Errorf("unexpected sales: %+v", wrapper.Sales)
		}
		if wrapper.Sales[0].EventTicketingSystemID != "101" || wrapper.Sales[0].TicketCategoryTicketingSystemID != "7" {
			t.Errorf("unexpected sales identifiers: %+v", wrapper.Sales[0])
		}
	})
}
