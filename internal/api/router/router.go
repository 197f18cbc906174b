package router

import (
	"encoding/json"
	"net/http"

	"github.com/RodrigoCastroMoura/Tracker/internal/api/handler"
	"github.com/RodrigoCastroMoura/Tracker/internal/api/middleware"
	"github.com/RodrigoCastroMoura/Tracker/internal/core/service"
)

func NewRouter(tracking service.TrackingService, jwtSecret string) http.Handler {
	vehicleHandler := handler.NewVehicleHandler(tracking)
	authMiddleware := middleware.NewAuthMiddleware(jwtSecret)

	mux := http.NewServeMux()

	withMiddleware := func(handler http.Handler) http.Handler {
		return middleware.CORSMiddleware(
			middleware.LoggingMiddleware(
				authMiddleware.Authenticate(handler),
			),
		)
	}

	// Health is the one unauthenticated endpoint, for load balancer probes.
	mux.Handle("/health", middleware.LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})))

	mux.Handle("/api/vehicles", withMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		vehicleHandler.List(w, r)
	})))

	mux.Handle("/api/vehicles/get", withMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		vehicleHandler.Get(w, r)
	})))

	mux.Handle("/api/vehicles/events", withMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		vehicleHandler.LatestEvents(w, r)
	})))

	mux.Handle("/api/vehicles/block", withMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			vehicleHandler.Block(w, r)
		case http.MethodOptions:
			w.WriteHeader(http.StatusOK)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))

	mux.Handle("/api/vehicles/ipchange", withMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			vehicleHandler.IPChange(w, r)
		case http.MethodOptions:
			w.WriteHeader(http.StatusOK)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))

	return mux
}
