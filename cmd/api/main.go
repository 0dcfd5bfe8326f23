package main

import (
	"log"
	"net/http"
	"os"
	"time"

	tokenapi "vet-exam-orders/internal/adapters/auth/tokenapi"
	"vet-exam-orders/internal/platform/config"
	"vet-exam-orders/internal/platform/logger"
	"vet-exam-orders/internal/ports/auth"
	"vet-exam-orders/internal/router"

	"github.com/joho/godotenv"
)

// @title vet-exam-orders API
// @version 1.0
// @description Gestión de órdenes de examen veterinario: envíos, pagos y notificaciones por correo.
// @BasePath /
func main() {
	// .env es opcional (dev); en prod las vars vienen del entorno.
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	appLog := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: logger.ParseFormat(cfg.LogFormat),
		App:    "vet-exam-orders",
	})

	// Verifier real solo si está configurado; si no, modo dev con
	// headers X-Debug-User-ID / X-Debug-User-Role.
	var verifier auth.AuthVerifier
	if cfg.AuthBaseURL != "" {
		client, err := tokenapi.NewClient(tokenapi.Config{
			BaseURL: cfg.AuthBaseURL,
			APIKey:  cfg.AuthAPIKey,
		})
		if err != nil {
			log.Fatalf("auth client error: %v", err)
		}
		verifier = tokenapi.NewVerifier(client)
	}

	r := router.NewRouter(router.Options{
		AuthVerifier: verifier,
		Cfg:          cfg,
		Log:          appLog,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	appLog.Info("starting server", map[string]any{"addr": srv.Addr})
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
