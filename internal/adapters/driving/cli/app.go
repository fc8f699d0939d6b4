package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/custodia-labs/webrage/internal/adapters/driven/ai"
	"github.com/custodia-labs/webrage/internal/adapters/driven/config/file"
	"github.com/custodia-labs/webrage/internal/core/domain"
	"github.com/custodia-labs/webrage/internal/core/ports/driven"
	"github.com/custodia-labs/webrage/internal/core/ports/driving"
	"github.com/custodia-labs/webrage/internal/core/services"
)

// App holds the services one command runs against.
// Every dependency is passed in explicitly; nothing is reached through globals
// below this layer.
type App struct {
	Ingestion driving.IngestionService
	Retrieval driving.RetrievalService
	Research  driving.ResearchService
	Store     driven.VectorStore
	Prompts   driven.PromptStore
	Warnings  []string

	closer func() error
}

// app is built on first use and closed after the command returns.
// Tests assign it directly.
var app *App

// NewApp wires the core services over initialised adapters.
func NewApp(settings *domain.AppSettings, deps *ai.InitResult, prompts driven.PromptStore) (*App, error) {
	ingestion, err := services.NewIngestionService(
		deps.Store, deps.EmbeddingService, services.IngestionConfigFromSettings(settings))
	if err != nil {
		return nil, err
	}

	retrieval := services.NewRetrievalService(
		deps.Store, deps.EmbeddingService, deps.WebSearcher, deps.Reranker,
		services.RetrievalConfigFromSettings(settings))

	reformulator := services.NewQueryReformulator(
		deps.LLMService, prompts, settings.LLM.Temperature, settings.Timeouts.LLM)

	research := services.NewResearchService(
		retrieval, reformulator, services.ResearchConfigFromSettings(settings))

	return &App{
		Ingestion: ingestion,
		Retrieval: retrieval,
		Research:  research,
		Store:     deps.Store,
		Prompts:   prompts,
		Warnings:  deps.Warnings,
		closer:    deps.Close,
	}, nil
}

// loadApp runs the initialisation phase: settings, prompt store, adapters
// with ping validation, then the services.
func loadApp(ctx context.Context) (*App, error) {
	if app != nil {
		return app, nil
	}
	settings, err := currentSettings()
	if err != nil {
		return nil, err
	}

	prompts, err := openPromptStore()
	if err != nil {
		return nil, err
	}

	deps, err := ai.Init(ctx, settings, ai.InitOptions{
		Ephemeral:   ephemeralFlag,
		PromptStore: prompts,
	})
	if err != nil {
		return nil, err
	}

	a, err := NewApp(settings, deps, prompts)
	if err != nil {
		_ = deps.Close()
		return nil, err
	}
	app = a
	return app, nil
}

// loadStore opens only the vector store, for maintenance commands that
// should not wait on external services.
func loadStore() (driven.VectorStore, error) {
	if app != nil {
		if app.Store == nil {
			return nil, errors.New("vector store not configured")
		}
		return app.Store, nil
	}
	settings, err := currentSettings()
	if err != nil {
		return nil, err
	}
	store, err := ai.OpenVectorStore(settings, ephemeralFlag)
	if err != nil {
		return nil, err
	}
	app = &App{Store: store, closer: store.Close}
	return store, nil
}

func closeApp() error {
	if app == nil || app.closer == nil {
		return nil
	}
	err := app.closer()
	app = nil
	return err
}

func currentSettings() (*domain.AppSettings, error) {
	if settingsService == nil {
		return nil, errors.New("settings service not configured")
	}
	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return settings, nil
}

// openPromptStore returns nil in ephemeral mode so nothing is written to disk.
func openPromptStore() (driven.PromptStore, error) {
	if ephemeralFlag {
		return nil, nil
	}
	dir := ""
	if configFlag != "" {
		dir = filepath.Join(filepath.Dir(configFlag), "prompts")
	}
	prompts, err := file.NewPromptStore(dir)
	if err != nil {
		return nil, fmt.Errorf("open prompt store: %w", err)
	}
	return prompts, nil
}
