package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/neilberkman/supportchat/internal/core/chat"
	"github.com/neilberkman/supportchat/internal/core/config"
	"github.com/neilberkman/supportchat/internal/core/db"
	"github.com/neilberkman/supportchat/internal/core/logging"
	"github.com/neilberkman/supportchat/internal/core/remote"
)

// app is everything a command needs, opened from the global flags
type app struct {
	cfg     *config.Config
	db      *db.DB
	client  *remote.Client
	svc     *chat.Service
	log     *log.Logger
	closeFn func() error
}

// openApp loads config, opens the store and bootstraps the chat service.
// Logs go to the configured file. With --verbose, commands that pass a
// console writer log there instead.
func openApp(console io.Writer) (*app, error) {
	// on a parse error cfg holds the defaults; the error is logged below
	cfg, err := config.LoadFrom(configPath)
	if backendURL != "" {
		cfg.BackendURL = strings.TrimRight(backendURL, "/")
	}

	logFile := cfg.LogFile
	if verbose && console != nil {
		logFile = ""
	}
	if logFile == "" && console == nil {
		console = io.Discard
	}
	logger, closeLog, logErr := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		File:    logFile,
		Writer:  console,
		Verbose: verbose,
	})
	if logErr != nil {
		return nil, logErr
	}
	if err != nil {
		logger.Warn("using default config", "err", err)
	}

	database, err := db.New(dbPath)
	if err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	client := remote.New(cfg.BackendURL,
		remote.WithTimeout(cfg.RequestTimeout),
		remote.WithRateLimit(cfg.RequestsPerSecond, int(cfg.RequestsPerSecond)+1),
		remote.WithLogger(logger),
	)
	svc := chat.NewService(client, database,
		chat.WithLogger(logger),
		chat.WithTypingInterval(cfg.TypingInterval),
		chat.WithExportTitle(cfg.ExportTitle),
	)
	if err := svc.Bootstrap(); err != nil {
		_ = database.Close()
		_ = closeLog()
		return nil, err
	}

	return &app{
		cfg:    cfg,
		db:     database,
		client: client,
		svc:    svc,
		log:    logger,
		closeFn: func() error {
			dbErr := database.Close()
			if err := closeLog(); err != nil {
				return err
			}
			return dbErr
		},
	}, nil
}

func (a *app) Close() error {
	return a.closeFn()
}

// requestContext bounds a single command's network work
func (a *app) requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, 2*a.cfg.RequestTimeout)
}
