package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/config"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/api/handler"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/api/router"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/repository"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/service"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/pkg/database"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/pkg/jwt"
	applogger "github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/pkg/logger"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/pkg/redis"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/pkg/storefront"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// 1. config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// 2. logger
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
	)

	// 3. database + migrations
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("connect database failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("get sql.DB failed", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("database migration failed", zap.Error(err))
	}

	// 4. redis is optional: without it summaries are not cached and rate limits are off
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("redis unavailable, running without summary cache and rate limits", zap.Error(err))
		rdb = nil
	}

	// 5. storefront order history
	var external service.ExternalOrderSource
	if sf := storefront.NewClient(&cfg.Orders, logger); sf != nil {
		external = sf
	} else {
		logger.Info("orders.external_url not set, order history is local only")
	}

	// 6. Repository → Service → Handler
	jwtMgr := jwt.NewManager(&cfg.Auth)
	repo := repository.NewRepository(db)
	svc, err := service.NewService(cfg, repo, rdb, external, logger)
	if err != nil {
		logger.Fatal("init services failed", zap.Error(err))
	}
	h := handler.NewHandler(svc)

	// 7. routes
	engine := router.Setup(cfg, h, jwtMgr, rdb, logger)

	// 8. HTTP server with graceful shutdown
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	sqlDB.Close()
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("server stopped")
}
