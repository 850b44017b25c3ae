package app

import (
	"codegen-app/internal/auth"
	"codegen-app/internal/builder"
	"codegen-app/internal/config"
	"codegen-app/internal/repository/db"
	"codegen-app/internal/service/chatmemory"
	"codegen-app/internal/service/deploy"
	"codegen-app/internal/service/filesaver"
	"codegen-app/internal/service/generation"
	"codegen-app/internal/service/llm"
)

// Config holds all application dependencies and configuration
type Config struct {
	// Database interface for data persistence
	DB db.Database
	// Centralized application configuration
	AppConfig *config.AppConfig

	Tokens       *auth.TokenIssuer
	Memory       *chatmemory.Store
	Saver        *filesaver.Saver
	Orchestrator *generation.Orchestrator
	Deployer     *deploy.Manager
	Sweeper      *deploy.Sweeper
}

// NewConfig wires the generation and deployment services on top of a database and a model backend
func NewConfig(database db.Database, appConfig *config.AppConfig, backend llm.Backend) *Config {
	storage := appConfig.Storage

	memory := chatmemory.NewStore(database, appConfig.Chat.MaxPageSize)
	saver := filesaver.NewSaver(storage.OutputRoot)

	return &Config{
		DB:           database,
		AppConfig:    appConfig,
		Tokens:       auth.NewTokenIssuer(appConfig.Auth),
		Memory:       memory,
		Saver:        saver,
		Orchestrator: generation.NewOrchestrator(database, memory, backend, saver, appConfig.Chat.WindowSize),
		Deployer:     deploy.NewManager(database, saver, builder.NewCommandBuilder(appConfig.Build), storage.DeployRoot, storage.PublicHost),
		Sweeper:      deploy.NewSweeper(database, storage.DeployRoot, storage.SweepGrace),
	}
}
