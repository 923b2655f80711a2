package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/abelbrown/insight/internal/analytics"
	"github.com/abelbrown/insight/internal/config"
	"github.com/abelbrown/insight/internal/logging"
	"github.com/abelbrown/insight/internal/segment"
	"github.com/abelbrown/insight/internal/store"
)

const dbFile = "insight.db"

// env is what every subcommand shares: resolved paths, config and the
// service dispatcher.
type env struct {
	dataDir    string
	cfg        *config.Config
	client     *analytics.Client
	dispatcher *segment.Dispatcher
}

// setup resolves the data dir, loads config and starts logging. When
// logTo is nil the log goes to the dated file in the data dir.
func setup(logTo io.Writer) (*env, error) {
	config.LoadDotEnv()

	dataDir := dataDirFlag
	if dataDir == "" {
		dataDir = config.DataDir()
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	cfg, err := config.Load(dataDir)
	if err != nil {
		return nil, err
	}
	if apiURLFlag != "" {
		cfg.API.BaseURL = apiURLFlag
	}
	if logLevelFlag != "" {
		cfg.LogLevel = logLevelFlag
	}

	level := logging.ParseLevel(cfg.LogLevel)
	if logTo != nil {
		logging.InitWriter(logTo, level)
	} else if err := logging.Init(dataDir, level); err != nil {
		return nil, err
	}

	client := analytics.NewClient(cfg.API.BaseURL, cfg.Timeout(), cfg.API.RequestsPerSecond)
	logging.Info("starting", "data_dir", dataDir, "api", client.BaseURL())

	return &env{
		dataDir:    dataDir,
		cfg:        cfg,
		client:     client,
		dispatcher: segment.NewDispatcher(client),
	}, nil
}

func (e *env) openStore() (*store.Store, error) {
	return store.Open(filepath.Join(e.dataDir, dbFile))
}
