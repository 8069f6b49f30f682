package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/betagouv/assistant-declaration/src/logger"
	"github.com/betagouv/assistant-declaration/src/services"
	"github.com/betagouv/assistant-declaration/src/storage"
	"github.com/betagouv/assistant-declaration/src/utils"
)

type TicketingHandler struct {
	store       *storage.Store
	syncService services.TicketingSyncService
}

func NewTicketingHandler(store *storage.Store, syncService services.TicketingSyncService) *TicketingHandler {
	return &TicketingHandler{
		store:       store,
		syncService: syncService,
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return id, nil
}

// HandleListConnections returns the ticketing connections of one
// organization, including their last sync outcome.
func (h *TicketingHandler) HandleListConnections(w http.ResponseWriter, r *http.Request) {
	organizationID, err := pathID(r, "organizationID")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	connections, err := h.store.ListTicketingConnections(r.Context(), organizationID)
	if err != nil {
		logger.L.Error("Failed to list ticketing connections", "organizationID", organizationID, "error", err)
		utils.SendJSONError(w, "failed to list ticketing connections", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(connections)
}

// HandleTestConnection probes the remote ticketing system with the stored
// credentials. A reachable system with bad credentials is a 200 with
// connected=false, not an error.
func (h *TicketingHandler) HandleTestConnection(w http.ResponseWriter, r *http.Request) {
	connectionID, err := pathID(r, "connectionID")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	connected, err := h.syncService.TestConnection(r.Context(), connectionID, r.URL.Query().Get("userEmail"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			utils.SendJSONError(w, "ticketing connection not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Connection test failed", "connectionID", connectionID, "error", err)
		utils.SendJSONError(w, "connection test failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"connected": connected})
}

// HandleSynchronize runs a full reconciliation of every connection of the
// organization. The request blocks until the sync finishes; concurrent
// triggers for the same organization queue behind each other.
func (h *TicketingHandler) HandleSynchronize(w http.ResponseWriter, r *http.Request) {
	organizationID, err := pathID(r, "organizationID")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.syncService.SynchronizeOrganization(r.Context(), organizationID, r.URL.Query().Get("userEmail")); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			utils.SendJSONError(w, "organization not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Synchronization failed", "organizationID", organizationID, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("synchronization failed: %v", err), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "synchronized"})
}

// HandleListEventSeries returns the synchronized series of one connection.
func (h *TicketingHandler) HandleListEventSeries(w http.ResponseWriter, r *http.Request) {
	connectionID, err := pathID(r, "connectionID")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	series, err := h.store.ListEventSeries(r.Context(), connectionID)
	if err != nil {
		logger.L.Error("Failed to list event series", "connectionID", connectionID, "error", err)
		utils.SendJSONError(w, "failed to list event series", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(series)
}
