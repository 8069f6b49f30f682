package cmd

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/betagouv/assistant-declaration/src/config"
	"github.com/betagouv/assistant-declaration/src/handlers"
	"github.com/betagouv/assistant-declaration/src/logger"
	"github.com/betagouv/assistant-declaration/src/sacd"
	"github.com/betagouv/assistant-declaration/src/services"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000": true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With, If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "ETag")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			logger.L.Debug("Handling OPTIONS preflight request", "path", r.URL.Path, "origin", origin)
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Run: func(cmd *cobra.Command, args []string) {
		bootstrap()
		logger.L.Info("Assistant-declaration backend server starting...")

		store := openStore()
		logger.L.Info("Database initialized successfully.")

		logger.L.Info("Initializing services and handlers...")
		emailService := services.NewEmailService()
		syncService := services.NewTicketingSyncService(store, factorySettings(), emailService)
		sacdClient := sacd.NewClient(config.Cfg.SacdAPIBaseURL, config.Cfg.SacdAPIProviderID, config.Cfg.SacdAPIPassword, config.Cfg.HTTPClientTimeout)
		declarationService := services.NewDeclarationService(store, sacdClient, emailService)

		ticketingHandler := handlers.NewTicketingHandler(store, syncService)
		declarationHandler := handlers.NewDeclarationHandler(declarationService)
		agencyHandler := handlers.NewAgencyHandler(store)

		logger.L.Info("Configuring routes...")
		rootMux := http.NewServeMux()
		apiRouter := http.NewServeMux()

		apiRouter.HandleFunc("GET /api/organizations/{organizationID}/ticketing-connections", ticketingHandler.HandleListConnections)
		apiRouter.HandleFunc("POST /api/organizations/{organizationID}/synchronize", ticketingHandler.HandleSynchronize)
		apiRouter.HandleFunc("GET /api/ticketing-connections/{connectionID}/test", ticketingHandler.HandleTestConnection)
		apiRouter.HandleFunc("GET /api/ticketing-connections/{connectionID}/event-series", ticketingHandler.HandleListEventSeries)

		apiRouter.HandleFunc("GET /api/event-series/{serieID}/events", declarationHandler.HandleGetFlattenEvents)
		apiRouter.HandleFunc("GET /api/event-series/{serieID}/key-figures", declarationHandler.HandleGetKeyFigures)
		apiRouter.HandleFunc("GET /api/event-series/{serieID}/sacd-declaration", declarationHandler.HandleGetSacdDeclaration)
		apiRouter.HandleFunc("PUT /api/event-series/{serieID}/sacd-declaration", declarationHandler.HandleSaveSacdDeclaration)
		apiRouter.HandleFunc("POST /api/event-series/{serieID}/sacd-declaration/transmit", declarationHandler.HandleTransmitSacdDeclaration)
		apiRouter.HandleFunc("PUT /api/event-series/{serieID}/declaration-defaults", declarationHandler.HandleSaveDeclarationDefaults)
		apiRouter.HandleFunc("PUT /api/events/{eventID}/override", declarationHandler.HandleSaveEventOverride)

		apiRouter.HandleFunc("GET /api/agencies/sacem", agencyHandler.HandleListSacemAgencies)
		apiRouter.HandleFunc("GET /api/agencies/sacem/match", agencyHandler.HandleMatchSacemAgency)
		apiRouter.HandleFunc("GET /api/agencies/sacd", agencyHandler.HandleListSacdAgencies)
		apiRouter.HandleFunc("GET /api/agencies/sacd/match", agencyHandler.HandleMatchSacdAgency)

		rootMux.Handle("/api/", apiRouter)

		rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/" && r.Method == http.MethodGet {
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]string{"message": "Assistant-declaration backend is running"})
			} else {
				if !strings.HasPrefix(r.URL.Path, "/api/") {
					logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
					http.NotFound(w, r)
				}
			}
		})

		logger.L.Info("Applying global middleware...")
		finalHandler := enableCORS(rateLimitMiddleware(rootMux))

		serverAddr := ":" + config.Cfg.Port
		server := &http.Server{
			Addr:    serverAddr,
			Handler: finalHandler,
			// Synchronization blocks on throttled remote APIs, so writes
			// get a much longer deadline than reads.
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		logger.L.Info("Server starting", "address", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.L.Error("Failed to start server", "error", err)
			stdlog.Fatalf("Failed to start server: %v", err)
		} else if err == http.ErrServerClosed {
			logger.L.Info("Server stopped gracefully.")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
