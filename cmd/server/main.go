package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dfryer1193/photolog/internal/middleware"
	"github.com/dfryer1193/photolog/internal/rest"
	"github.com/dfryer1193/photolog/photos/application"
	"github.com/dfryer1193/photolog/photos/persistence"
	"github.com/dfryer1193/photolog/shared/config"
	"github.com/dfryer1193/photolog/shared/db/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load .env")
	}

	srvCfg, err := loadServerConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load server config")
	}
	if err := setupLogging(srvCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to configure logging")
	}

	dbCfg, err := sqlite.NewSQLiteConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load database config")
	}

	database := sqlite.NewSQLiteDB(dbCfg)
	if err := database.Connect(); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	photoRepo := persistence.NewPhotoRepository(database.DB(), database.PayloadKind())
	photoService := application.NewPhotoService(photoRepo, nil)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.LoggingMiddleware())
	r.Use(gin.CustomRecovery(middleware.HandlePanics()))
	rest.NewApi(r, photoService, database.PayloadKind())

	srv := &http.Server{
		Addr:    srvCfg.Addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", srvCfg.Addr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown server")
	}

	log.Info().Msg("Server stopped")
}
