package main

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/config"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/repository"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/service"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/pkg/database"
	applogger "github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/pkg/logger"
)

// env what every database-backed command needs
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
}

func loadEnv() (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, db: db}, nil
}

// services without redis or the storefront collaborator
func (e *env) services() (*service.Service, error) {
	return service.NewService(e.cfg, repository.NewRepository(e.db), nil, nil, e.logger)
}

func (e *env) close() {
	if sqlDB, err := e.db.DB(); err == nil {
		sqlDB.Close()
	}
	e.logger.Sync()
}
