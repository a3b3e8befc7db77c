package cli

import (
	"context"
	"fmt"
	"log/slog"

	"tdr-agent/internal/assist"
	"tdr-agent/internal/catalog"
	"tdr-agent/internal/config"
	"tdr-agent/internal/executor"
	"tdr-agent/internal/explain"
	"tdr-agent/internal/llm"
	"tdr-agent/internal/logger"
	"tdr-agent/internal/pipeline"
	"tdr-agent/internal/rules"
)

// modelFactory creates model clients. Tests replace it.
var modelFactory llm.Factory = llm.DefaultFactory

// app holds the components every command is built from
type app struct {
	settings  *config.Settings
	store     *config.Store
	catalog   *catalog.Catalog
	pipeline  *pipeline.Pipeline
	forwarder *executor.Forwarder
	explainer *explain.Explainer
	closeLog  func() error
}

func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	settings, err := config.LoadSettings(opts.settingsPath)
	if err != nil {
		return nil, err
	}
	if opts.runtimePath != "" {
		settings.Runtime.File = opts.runtimePath
	}
	if opts.catalog != "" {
		settings.Catalog.Source = opts.catalog
	}
	if opts.logLevel != "" {
		settings.Logging.Level = opts.logLevel
	}

	closeLog, err := logger.Setup(settings.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	config.LoadDotEnv()
	store := config.NewStore(config.FromEnv(), settings.Runtime.File)
	if _, err := store.LoadFile(); err != nil {
		slog.Warn("ignoring unreadable configuration file", "path", settings.Runtime.File, "error", err)
	}

	cat, err := catalog.Load(ctx, settings.Catalog.Source)
	if err != nil {
		_ = closeLog()
		return nil, err
	}
	slog.Info("catalog loaded", "source", settings.Catalog.Source, "endpoints", cat.Len())

	resolver, err := assist.NewResolver(cat, settings.Model, assist.WithFactory(modelFactory))
	if err != nil {
		_ = closeLog()
		return nil, err
	}
	explainer, err := explain.New(settings.Model, explain.WithFactory(modelFactory))
	if err != nil {
		_ = closeLog()
		return nil, err
	}

	return &app{
		settings:  settings,
		store:     store,
		catalog:   cat,
		pipeline:  pipeline.New(cat, rules.NewResolver(), resolver, store),
		forwarder: executor.NewForwarder(settings.ProxyTimeout()),
		explainer: explainer,
		closeLog:  closeLog,
	}, nil
}

func (a *app) Close() {
	if err := a.closeLog(); err != nil {
		slog.Warn("failed to close log file", "error", err)
	}
}
