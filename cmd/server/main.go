package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"energybalance/internal/config"
	"energybalance/internal/googlefit"
	"energybalance/internal/handlers"
	"energybalance/internal/invite"
	"energybalance/internal/service"
	"energybalance/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		log.Fatal("CLIENT_ID and CLIENT_SECRET must be set")
	}

	st := openStore(cfg)
	defer st.Close(context.Background())

	identity := googlefit.NewIdentity(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.OAuthRedirectURL)
	fitness := googlefit.NewFitness()
	invites := invite.New(cfg.InviteTTL)

	emailService, err := service.NewEmailService(context.Background(), cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName)
	if err != nil {
		log.Fatalf("Failed to initialize email service: %v", err)
	}

	familyService := service.NewFamilyService(st, identity, fitness, invites)

	authHandler := handlers.NewAuthHandler(familyService, cfg.FrontendBaseURL)
	apiHandler := handlers.NewAPIHandler(familyService, emailService, cfg.FrontendBaseURL)

	mux := http.NewServeMux()

	// Front-end assets
	mux.Handle("GET /", http.FileServer(http.Dir(cfg.StaticFilesPath)))

	// OAuth flow
	mux.HandleFunc("GET /auth/login", authHandler.Login)
	mux.HandleFunc("GET /auth/callback", authHandler.Callback)
	mux.HandleFunc("GET /join", authHandler.Join)

	// Dashboard API
	mux.HandleFunc("GET /api/dashboard", apiHandler.Dashboard)
	mux.HandleFunc("POST /api/setup", apiHandler.Setup)
	mux.HandleFunc("GET /api/invite", apiHandler.Invite)
	mux.HandleFunc("POST /api/invite/send", apiHandler.SendInvite)
	mux.HandleFunc("POST /api/update-energy", apiHandler.UpdateEnergy)
	mux.HandleFunc("POST /api/reset-daily-energy", apiHandler.ResetEnergy)
	mux.HandleFunc("GET /ping", apiHandler.Ping)

	handler := handlers.Logging(mux)

	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// A dashboard request may wait on a token refresh plus a fitness
		// fetch, each bounded at 10s.
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost%s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

// openStore connects to MongoDB when configured and reachable, otherwise
// falls back to the in-memory store. The fallback is decided once here;
// nothing downstream distinguishes the two.
func openStore(cfg *config.Config) store.FamilyStore {
	if cfg.MongoURI == "" {
		log.Println("MONGODB_URI not set; using in-memory store (state is lost on restart)")
		return store.NewMemory()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ms, err := store.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Printf("MongoDB unreachable (%v); falling back to in-memory store", err)
		return store.NewMemory()
	}
	log.Printf("MongoDB connected (database: %s)", cfg.MongoDatabase)
	return ms
}
