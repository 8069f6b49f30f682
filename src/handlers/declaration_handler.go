package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/betagouv/assistant-declaration/src/logger"
	"github.com/betagouv/assistant-declaration/src/models"
	"github.com/betagouv/assistant-declaration/src/services"
	"github.com/betagouv/assistant-declaration/src/storage"
	"github.com/betagouv/assistant-declaration/src/utils"
)

type DeclarationHandler struct {
	declarationService services.DeclarationService
}

func NewDeclarationHandler(declarationService services.DeclarationService) *DeclarationHandler {
	return &DeclarationHandler{declarationService: declarationService}
}

// HandleGetFlattenEvents returns the merged per-event values of a series.
// An empty list is a valid answer for a series with no synchronized event.
func (h *DeclarationHandler) HandleGetFlattenEvents(w http.ResponseWriter, r *http.Request) {
	serieID, err := pathID(r, "serieID")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	events, err := h.declarationService.GetFlattenEvents(r.Context(), serieID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			utils.SendJSONError(w, "event serie not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to flatten events", "serieID", serieID, "error", err)
		utils.SendJSONError(w, "failed to load events", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []models.FlattenEvent{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(events)
}

// HandleGetKeyFigures serves the cached aggregate figures with an ETag so
// the frontend can poll cheaply.
func (h *DeclarationHandler) HandleGetKeyFigures(w http.ResponseWriter, r *http.Request) {
	serieID, err := pathID(r, "serieID")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	figures, err := h.declarationService.GetKeyFigures(r.Context(), serieID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			utils.SendJSONError(w, "event serie not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to compute key figures", "serieID", serieID, "error", err)
		utils.SendJSONError(w, "failed to compute key figures", http.StatusInternalServerError)
		return
	}

	etag, err := utils.GenerateETag(figures)
	if err == nil {
		if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(figures)
}

func (h *DeclarationHandler) HandleGetSacdDeclaration(w http.ResponseWriter, r *http.Request) {
	serieID, err := pathID(r, "serieID")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := h.declarationService.GetSacdDeclarationData(r.Context(), serieID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			utils.SendJSONError(w, "event serie not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to load sacd declaration", "serieID", serieID, "error", err)
		utils.SendJSONError(w, "failed to load declaration", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

// HandleSaveSacdDeclaration upserts the user-entered declaration values.
// The serie in the path is authoritative; a mismatching body is rejected.
func (h *DeclarationHandler) HandleSaveSacdDeclaration(w http.ResponseWriter, r *http.Request) {
	serieID, err := pathID(r, "serieID")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var decl models.SacdDeclaration
	if err := json.NewDecoder(r.Body).Decode(&decl); err != nil {
		utils.SendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if decl.EventSerieID != 0 && decl.EventSerieID != serieID {
		utils.SendJSONError(w, "declaration serie mismatch", http.StatusBadRequest)
		return
	}
	decl.EventSerieID = serieID

	saved, err := h.declarationService.SaveSacdDeclaration(r.Context(), decl)
	if err != nil {
		logger.L.Error("Failed to save sacd declaration", "serieID", serieID, "error", err)
		utils.SendJSONError(w, "failed to save declaration", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(saved)
}

func (h *DeclarationHandler) HandleSaveDeclarationDefaults(w http.ResponseWriter, r *http.Request) {
	serieID, err := pathID(r, "serieID")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var defaults models.SerieDeclarationDefaults
	if err := json.NewDecoder(r.Body).Decode(&defaults); err != nil {
		utils.SendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defaults.EventSerieID = serieID

	if err := h.declarationService.SaveSerieDeclarationDefaults(r.Context(), defaults); err != nil {
		logger.L.Error("Failed to save declaration defaults", "serieID", serieID, "error", err)
		utils.SendJSONError(w, "failed to save declaration defaults", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DeclarationHandler) HandleSaveEventOverride(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "eventID")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var override models.EventOverride
	if err := json.NewDecoder(r.Body).Decode(&override); err != nil {
		utils.SendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	override.EventID = eventID

	if err := h.declarationService.SaveEventOverride(r.Context(), override); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			utils.SendJSONError(w, "event not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to save event override", "eventID", eventID, "error", err)
		utils.SendJSONError(w, "failed to save event override", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleTransmitSacdDeclaration sends the declaration of a series to SACD
// and returns the per-representation acknowledgement.
func (h *DeclarationHandler) HandleTransmitSacdDeclaration(w http.ResponseWriter, r *http.Request) {
	serieID, err := pathID(r, "serieID")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	response, err := h.declarationService.TransmitSacdDeclaration(r.Context(), serieID, r.URL.Query().Get("userEmail"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			utils.SendJSONError(w, "event serie not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to transmit sacd declaration", "serieID", serieID, "error", err)
		utils.SendJSONError(w, "failed to transmit declaration", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
