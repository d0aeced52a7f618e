package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/aashrilshazar/WorldSalesMap/internal/app"
	"github.com/aashrilshazar/WorldSalesMap/internal/config"
	"github.com/aashrilshazar/WorldSalesMap/internal/handler"
	"github.com/aashrilshazar/WorldSalesMap/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	slog.SetDefault(logging.New(cfg.Log.Level, cfg.Log.File))

	if err := cfg.Validate(); err != nil {
		slog.Warn("configuration incomplete", "error", err)
	}

	a, err := app.Setup(context.Background(), cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer a.Close()

	newsHandler := handler.NewNewsHandler(a.Engine, a.KV)

	r := gin.Default()
	r.HandleMethodNotAllowed = true

	allowedOrigins := []string{"http://localhost:3000"}
	if cfg.Server.FrontendURL != "" {
		allowedOrigins = append(allowedOrigins, cfg.Server.FrontendURL)
	}

	slog.Info("AllowOrigins URL:", "urls", allowedOrigins)

	r.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type"},
	}))

	r.NoMethod(newsHandler.MethodNotAllowed)
	r.GET("/news", newsHandler.GetNews)
	r.GET("/health", newsHandler.GetHealth)

	err = r.Run(":" + cfg.Server.Port)
	if err != nil {
		log.Fatalf("error starting server: %v", err)
	}
}
