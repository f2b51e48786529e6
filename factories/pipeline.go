package factories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"pocketsocrates/core"
	"pocketsocrates/realtime"
	"pocketsocrates/runner"
	"pocketsocrates/store"
	"pocketsocrates/transports/websocket"
)

const shutdownTimeout = 10 * time.Second

// Pipeline builds and runs one session pipeline per connected client. All
// sessions share the database handle; everything else is per-connection.
type Pipeline struct {
	settings SettingsConfig
	keys     APIKeys
	db       *store.DB
	logger   *core.Logger
}

func NewPipeline(settings SettingsConfig, keys APIKeys, db *store.DB, logger *core.Logger) *Pipeline {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Pipeline{
		settings: settings,
		keys:     keys,
		db:       db,
		logger:   logger,
	}
}

// Run builds the handler chain and screen for one client and blocks until
// the session ends.
func (p *Pipeline) Run(service *websocket.Service, ctx context.Context) error {
	sessionID := uuid.NewString()
	logger := p.logger.With(map[string]interface{}{"session_id": sessionID})

	if dir := p.settings.Store.SessionLogDir; dir != "" {
		writer, err := core.NewSessionLogWriter(dir, sessionID)
		if err != nil {
			logger.Warnf("session log disabled: %v", err)
		} else {
			defer writer.Close()
			logger = writer.Logger(logger)
		}
	}

	sessionCfg := DefaultSettingsConfig().Session
	if p.settings.Session != nil {
		sessionCfg = p.settings.Session
	}
	cfg := *sessionCfg
	cfg.InjectAPIKeys(p.keys)

	ctx, cancel := context.WithCancel(core.ContextWithSessionLogger(ctx, logger))
	defer cancel()

	var persistence store.Persistence
	var instructions store.InstructionStore
	if p.db != nil {
		persistence = p.db
		sqlInstructions, err := p.db.Instructions(ctx)
		if err != nil {
			logger.Errorf("instruction store unavailable, using defaults: %v", err)
			instructions = store.NewMemoryInstructionStore()
		} else {
			instructions = sqlInstructions
		}
	} else {
		instructions = store.NewMemoryInstructionStore()
	}
	sessionStore := store.NewStore(persistence, logger)

	handlers, err := cfg.BuildHandlers(service, sessionStore, instructions, logger)
	if err != nil {
		return err
	}

	screen := runner.NewScreen(cfg.Screen, sessionStore, instructions, service, logger)
	screen.SetStopFunc(cancel)

	// the screen must be open before the transport starts pumping frames,
	// or an early control frame would hit it without loaded state
	if err := screen.Open(ctx); err != nil {
		return err
	}

	run := runner.NewRunner(handlers.Chain(), screen, logger)
	if err := run.Start(ctx); err != nil {
		return err
	}
	defer run.Stop()

	if p.settings.Realtime != nil && p.settings.Realtime.ConnectURL != "" {
		rtCfg := *p.settings.Realtime
		rtCfg.Logger = logger
		client := realtime.NewClient(rtCfg)
		client.OnInsert = screen.MergeRemoteInsert
		if err := client.Subscribe(ctx); err != nil {
			logger.Warnf("realtime feed unavailable: %v", err)
		} else {
			defer client.Unsubscribe()
		}
	}

	<-ctx.Done()
	return nil
}

// Serve registers the session handler with the provider, starts it and
// blocks until ctx is cancelled.
func (p *Pipeline) Serve(provider *websocket.Provider, ctx context.Context) error {
	provider.RegisterSessionHandler(p.Run)
	if err := provider.Start(); err != nil {
		return err
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return provider.Stop(shutdownCtx)
}
