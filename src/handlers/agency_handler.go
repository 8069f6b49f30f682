package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/betagouv/assistant-declaration/src/agencies"
	"github.com/betagouv/assistant-declaration/src/logger"
	"github.com/betagouv/assistant-declaration/src/storage"
	"github.com/betagouv/assistant-declaration/src/utils"
)

var postalCodeQueryPattern = regexp.MustCompile(`^\d{5}$`)

type AgencyHandler struct {
	store *storage.Store
}

func NewAgencyHandler(store *storage.Store) *AgencyHandler {
	return &AgencyHandler{store: store}
}

func (h *AgencyHandler) HandleListSacemAgencies(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListSacemAgencies(r.Context())
	if err != nil {
		logger.L.Error("Failed to list sacem agencies", "error", err)
		utils.SendJSONError(w, "failed to list sacem agencies", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

func (h *AgencyHandler) HandleListSacdAgencies(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListSacdAgencies(r.Context())
	if err != nil {
		logger.L.Error("Failed to list sacd agencies", "error", err)
		utils.SendJSONError(w, "failed to list sacd agencies", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

// HandleMatchSacemAgency resolves the SACEM delegation in charge of a
// venue's postal code. 404 when no delegation covers it, which happens for
// overseas codes absent from the directory export.
func (h *AgencyHandler) HandleMatchSacemAgency(w http.ResponseWriter, r *http.Request) {
	postalCode := r.URL.Query().Get("postalCode")
	if !postalCodeQueryPattern.MatchString(postalCode) {
		utils.SendJSONError(w, "postalCode must be 5 digits", http.StatusBadRequest)
		return
	}

	list, err := h.store.ListSacemAgencies(r.Context())
	if err != nil {
		logger.L.Error("Failed to list sacem agencies", "error", err)
		utils.SendJSONError(w, "failed to list sacem agencies", http.StatusInternalServerError)
		return
	}

	agency, found := agencies.MatchSacemAgency(list, postalCode)
	if !found {
		utils.SendJSONError(w, "no sacem delegation covers this postal code", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(agency)
}

func (h *AgencyHandler) HandleMatchSacdAgency(w http.ResponseWriter, r *http.Request) {
	postalCode := r.URL.Query().Get("postalCode")
	if !postalCodeQueryPattern.MatchString(postalCode) {
		utils.SendJSONError(w, "postalCode must be 5 digits", http.StatusBadRequest)
		return
	}

	list, err := h.store.ListSacdAgencies(r.Context())
	if err != nil {
		logger.L.Error("Failed to list sacd agencies", "error", err)
		utils.SendJSONError(w, "failed to list sacd agencies", http.StatusInternalServerError)
		return
	}

	agency, found := agencies.MatchSacdAgency(list, postalCode)
	if !found {
		utils.SendJSONError(w, "no sacd agency covers this postal code", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(agency)
}
