package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/RodrigoCastroMoura/Tracker/internal/core/service"
)

const defaultEventLimit = 50

type VehicleHandler struct {
	tracking service.TrackingService
}

func NewVehicleHandler(tracking service.TrackingService) *VehicleHandler {
	return &VehicleHandler{tracking: tracking}
}

func (h *VehicleHandler) List(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.tracking.ListVehicles(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, vehicles)
}

func (h *VehicleHandler) Get(w http.ResponseWriter, r *http.Request) {
	imei := r.URL.Query().Get("imei")
	if imei == "" {
		http.Error(w, "IMEI required", http.StatusBadRequest)
		return
	}

	vehicle, err := h.tracking.GetVehicle(r.Context(), imei)
	if errors.Is(err, service.ErrVehicleNotFound) {
		http.Error(w, "Vehicle not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, vehicle)
}

func (h *VehicleHandler) LatestEvents(w http.ResponseWriter, r *http.Request) {
	imei := r.URL.Query().Get("imei")
	if imei == "" {
		http.Error(w, "IMEI required", http.StatusBadRequest)
		return
	}

	limit := int64(defaultEventLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	events, err := h.tracking.LatestEvents(r.Context(), imei, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, events)
}

type blockRequest struct {
	IMEI  string `json:"imei"`
	Block bool   `json:"block"`
}

// Block records the operator's intent; the command goes out the next time the
// device speaks, and Blocked flips only once the device acknowledges.
func (h *VehicleHandler) Block(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.IMEI == "" {
		http.Error(w, "IMEI required", http.StatusBadRequest)
		return
	}

	err := h.tracking.RequestBlock(r.Context(), req.IMEI, req.Block)
	if errors.Is(err, service.ErrVehicleNotFound) {
		http.Error(w, "Vehicle not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"imei":    req.IMEI,
		"block":   req.Block,
		"pending": true,
	})
}

type ipChangeRequest struct {
	IMEI string `json:"imei"`
}

func (h *VehicleHandler) IPChange(w http.ResponseWriter, r *http.Request) {
	var req ipChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.IMEI == "" {
		http.Error(w, "IMEI required", http.StatusBadRequest)
		return
	}

	err := h.tracking.RequestIPChange(r.Context(), req.IMEI)
	if errors.Is(err, service.ErrVehicleNotFound) {
		http.Error(w, "Vehicle not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"imei":    req.IMEI,
		"pending": true,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
