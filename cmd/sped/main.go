// cmd/sped/main.go
package main

import (
	"log"

	"sped-service/internal/api"
	"sped-service/internal/api/handlers"
	"sped-service/internal/api/responses"
	"sped-service/internal/config"
	"sped-service/internal/core/pipeline"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Falha ao carregar configuração: ", err)
	}

	logger := responses.InitLogger()
	defer logger.Sync()

	gin.SetMode(cfg.GinMode)

	spedService := pipeline.NewService(logger, cfg.ReadConcurrency)
	spedHandler := handlers.NewSpedHandler(spedService)

	router := api.NewRouter(spedHandler, api.RouterOptions{
		JWTSecret:      []byte(cfg.JWTSecret),
		MaxUploadBytes: cfg.MaxUploadBytes(),
	})

	if !cfg.AuthEnabled() {
		logger.Warn("JWT_SECRET não definido, API sem autenticação")
	}
	logger.Info("SPED Service iniciado", zap.String("addr", cfg.AppAddr))
	if err := router.Run(cfg.AppAddr); err != nil {
		logger.Fatal("Falha ao iniciar o servidor SPED", zap.Error(err))
	}
}
