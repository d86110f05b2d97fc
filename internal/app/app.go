// Package app is the application layer between the CLI and the index core.
// It constructs the index actors from config, exposes the read operations
// the CLI needs, and manages actor/log lifecycle on Close.
package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"hoard/internal/config"
	"hoard/internal/index"
	"hoard/internal/index/chunk"
	"hoard/internal/index/snapshot"
)

// App holds a fully wired index core: both actors plus the flush
// coordinator that commits them in the required order (chunks before
// snapshots).
type App struct {
	cfg         *config.Config
	Snapshots   *snapshot.Index
	Chunks      *chunk.Index
	Coordinator *index.Coordinator
	logger      index.Logger
	logFile     *os.File
}

// NewApp creates an App from the given config. operation identifies the CLI
// command being run (e.g. "Latest", "Families") and tags every log line of
// this invocation. The caller must call Close when done.
func NewApp(cfg *config.Config, operation string) (*App, error) {
	opID := fmt.Sprintf("%s-%s", operation, uuid.New().String()[:8])
	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	snaps, err := snapshot.NewFromConfig(cfg.Index, logger)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening snapshot index: %w", err)
	}

	chunks, err := chunk.NewFromConfig(cfg.Index, logger)
	if err != nil {
		snaps.Close()
		logFile.Close()
		return nil, fmt.Errorf("opening chunk index: %w", err)
	}

	return &App{
		cfg:         cfg,
		Snapshots:   snaps,
		Chunks:      chunks,
		Coordinator: index.NewCoordinator(logger, chunks, snaps),
		logger:      logger,
		logFile:     logFile,
	}, nil
}

// Close shuts down both actors and the log file. Unflushed writes are
// rolled back, which is safe: the CLI surface is read-only and the backup
// driver checkpoints explicitly.
func (a *App) Close() error {
	var firstErr error
	if err := a.Chunks.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := a.Snapshots.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// IndexStatus describes one index database for the status command.
type IndexStatus struct {
	Name string
	Path string
	Err  error // nil when the schema is current
}

// Status checks the schema version of each index database without starting
// actors. Only meaningful for sqlite-backed configs.
func Status(cfg *config.Config) ([]IndexStatus, error) {
	if cfg.Index.Type != "sqlite" {
		return nil, fmt.Errorf("status requires a sqlite index config, got %q", cfg.Index.Type)
	}

	snapPath := filepath.Join(cfg.Index.DataDir, snapshot.DBFileName)
	chunkPath := filepath.Join(cfg.Index.DataDir, chunk.DBFileName)

	return []IndexStatus{
		{Name: "snapshot", Path: snapPath, Err: snapshot.CheckStatus(snapPath)},
		{Name: "chunk", Path: chunkPath, Err: chunk.CheckStatus(chunkPath)},
	}, nil
}
