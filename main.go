package main

import (
	"context"
	"embed"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"github.com/patientcare/offers/internal/feat/attempts"
	"github.com/patientcare/offers/internal/feat/catalog"
	"github.com/patientcare/offers/internal/feat/offerform"
	"github.com/patientcare/offers/internal/web"
	"github.com/patientcare/offers/pkg/pc/app"
	"github.com/patientcare/offers/pkg/pc/careapi"
	"github.com/patientcare/offers/pkg/pc/config"
	"github.com/patientcare/offers/pkg/pc/database"
	"github.com/patientcare/offers/pkg/pc/logger"
	"github.com/patientcare/offers/pkg/pc/metrics"
	"github.com/patientcare/offers/pkg/pc/middleware"
)

//go:embed assets/migrations/sqlite/*.sql
var migrationsFS embed.FS

//go:embed assets/templates/*.html assets/templates/*/*.html
var templatesFS embed.FS

//go:embed assets/static
var staticFS embed.FS

//go:embed assets/offers.yaml
var offersYAML []byte

func main() {
	ctx := context.Background()

	cfg := config.Load()
	log := logger.New(cfg.Log.Level)

	log.Infof("Starting patient care offers [%s mode]", cfg.Env)
	log.Infof("Database: %s", cfg.Database.Path)

	db := database.New(migrationsFS, cfg, log)
	db.SetMigrationPath("assets/migrations/sqlite")

	m := metrics.New()
	client := careapi.NewClient(cfg.API.CreateURL(), cfg.API.TimeoutDuration())
	log.Infof("Patient service: %s", client.URL())

	catalogService := catalog.NewService(offersYAML, cfg, log)
	attemptService := attempts.NewService(db, cfg, log)
	formService := offerform.NewService(client, attemptService, m, cfg, log)

	catalogHandler := catalog.NewHandler(catalogService, templatesFS, cfg, log)
	formHandler := offerform.NewHandler(formService, catalogService, templatesFS, cfg, log)
	attemptHandler := attempts.NewHandler(attemptService, log)

	health := web.NewHealth(log)
	health.Add("database", db)
	fileServer := web.NewFileServer(staticFS, log)

	router := chi.NewRouter()
	middleware.DefaultStack(router, log, cfg.Forms.ViewTTLDuration())

	deps := []any{
		db, catalogService, attemptService, formService,
		catalogHandler, formHandler, attemptHandler,
		health, m, fileServer,
	}

	lc := app.Setup(log, deps...)
	if err := lc.Start(ctx, router); err != nil {
		log.Errorf("Startup failed: %v", err)
		os.Exit(1)
	}

	srv := app.NewServer(cfg.Server.Addr, router)
	go func() {
		if err := app.Serve(srv); err != nil {
			log.Errorf("Server error: %v", err)
			os.Exit(1)
		}
	}()
	log.Infof("Server listening on %s", cfg.Server.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Shutdown(srv, lc, log)
	log.Info("Server stopped")
}
