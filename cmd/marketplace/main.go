// Package main Marketplace API
//
// @title           Marketplace API
// @version         1.0
// @description     API маркетплейса: учётные записи, тарифы и оплата, цепочка поставок, контент
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support
// @contact.url    http://www.swagger.io/support
// @contact.email  support@swagger.io

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	_ "github.com/magabrotheeeer/marketplace-backend/docs"
	"github.com/magabrotheeeer/marketplace-backend/internal/app/marketplace"
	"github.com/magabrotheeeer/marketplace-backend/internal/config"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/logger"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/sl"
)

func main() {
	// .env нужен только для локального запуска
	_ = godotenv.Load()

	cfg := config.MustLoad()
	log := logger.Setup(cfg.Env)

	log.Info("starting marketplace", slog.String("env", cfg.Env))
	log.Debug("config loaded", slog.String("config", cfg.String()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := marketplace.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("app stopped with error", sl.Err(err))
		os.Exit(1)
	}

	log.Info("marketplace stopped gracefully")
}
