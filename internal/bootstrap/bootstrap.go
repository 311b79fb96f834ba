package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"gorm.io/gorm"

	"dogtranslator/internal/app/services"
	"dogtranslator/internal/domain/connectivity"
	"dogtranslator/internal/domain/eventbus"
	"dogtranslator/internal/domain/history"
	domainimage "dogtranslator/internal/domain/image"
	"dogtranslator/internal/domain/kv"
	"dogtranslator/internal/domain/queue"
	"dogtranslator/internal/domain/session"
	"dogtranslator/internal/domain/speech"
	platformconfig "dogtranslator/internal/platform/config"
	platformerrors "dogtranslator/internal/platform/errors"
	platformlogging "dogtranslator/internal/platform/logging"
	platformstorage "dogtranslator/internal/platform/storage"
	"dogtranslator/internal/transport/http/api"
)

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

// Options tunes New.
type Options struct {
	// ConfigPath overrides the configuration file location.
	ConfigPath string
	// Config skips loading and uses the given configuration as is.
	Config *platformconfig.Config
	// Console receives the human readable log stream.
	Console io.Writer
	// LogLevel overrides the configured log level.
	LogLevel string
	// Synthesizer replaces the neural TTS backend.
	Synthesizer speech.Synthesizer
}

type appState struct {
	opts       Options
	config     *platformconfig.Config
	configPath string
	logger     *platformlogging.Logger
	db         *gorm.DB
	kv         kv.Store
	session    *session.State
	client     *api.Client
	checker    *connectivity.Checker
	app        *App
}

// App is the wired client: every component the CLI needs.
type App struct {
	Config     *platformconfig.Config
	ConfigPath string
	Logger     *platformlogging.Logger
	DB         *gorm.DB
	KV         kv.Store
	Bus        *eventbus.Bus

	Session  *session.State
	Queue    *queue.Queue
	Replayer *queue.Replayer
	History  *history.Service
	Recorder *history.Recorder

	Client   *api.Client
	Checker  *connectivity.Checker
	Uploader api.Uploader

	Preprocessor *domainimage.Preprocessor
	Analysis     *services.AnalysisService
	Speaker      *speech.Speaker
	Speech       *services.SpeechService
}

// New runs the init graph and returns the wired App. On failure every
// resource opened so far is released.
func New(ctx context.Context, opts Options) (*App, error) {
	state := &appState{opts: opts}
	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		state.release(ctx)
		return nil, err
	}
	if state.app == nil {
		state.release(ctx)
		return nil, platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"app not initialised",
		)
	}
	logBootstrapGraph(steps, state.logger)
	return state.app, nil
}

// Close waits for async event handlers and releases stores and the log file.
func (a *App) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	a.Bus.WaitAsync()

	var errs []error
	if a.KV != nil {
		if err := a.KV.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close kv store: %w", err))
		}
	}
	if err := platformstorage.Close(a.DB); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	if a.Logger != nil {
		if err := a.Logger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close logger: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s *appState) release(ctx context.Context) {
	if s.kv != nil {
		_ = s.kv.Close(ctx)
	}
	_ = platformstorage.Close(s.db)
	if s.logger != nil {
		_ = s.logger.Close()
	}
}

func logBootstrapGraph(steps []initStep, logger *platformlogging.Logger) {
	if logger == nil {
		return
	}
	logger.DebugTag("Bootstrap", "init graph")
	for _, step := range steps {
		logger.DebugTag("Bootstrap", "%s: %s", step.ID, step.Title)
	}
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}

			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindConfig,
			Execute:   initLoggingStep,
		},
		{
			ID:        "storage:open-database",
			Title:     "Open history database",
			DependsOn: []string{"config:load", "logging:init-provider"},
			Kind:      platformerrors.KindStorage,
			Execute:   openDatabaseStep,
		},
		{
			ID:        "kv:init-store",
			Title:     "Initialise key/value store",
			DependsOn: []string{"storage:open-database"},
			Kind:      platformerrors.KindStorage,
			Execute:   initKVStep,
		},
		{
			ID:        "session:load-state",
			Title:     "Load session state",
			DependsOn: []string{"kv:init-store"},
			Kind:      platformerrors.KindStorage,
			Execute:   loadSessionStep,
		},
		{
			ID:        "transport:init-client",
			Title:     "Initialise API client",
			DependsOn: []string{"session:load-state"},
			Kind:      platformerrors.KindTransport,
			Execute:   initClientStep,
		},
		{
			ID:        "services:init-analysis",
			Title:     "Wire analysis pipeline",
			DependsOn: []string{"transport:init-client"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initAnalysisStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	if state.opts.Config != nil {
		state.config = state.opts.Config
	} else {
		result, err := platformconfig.NewLoader().WithPath(state.opts.ConfigPath).Load()
		if err != nil {
			return platformerrors.Wrap(platformerrors.KindConfig, "config:load", "failed to load configuration", err)
		}
		state.config = result.Config
		state.configPath = result.Path
	}
	if state.opts.LogLevel != "" {
		state.config.Log.Level = state.opts.LogLevel
	}
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state.config == nil {
		return platformerrors.New(platformerrors.KindBootstrap, "logging:init-provider", "missing config")
	}
	logger, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
		Console:  state.opts.Console,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindConfig, "logging:init-provider", "failed to initialise logger", err)
	}
	state.logger = logger

	source := state.configPath
	if source == "" {
		source = "defaults"
	}
	logger.DebugTag("Bootstrap", "configuration loaded", map[string]any{
		"source":   source,
		"base_url": state.config.API.ResolvedBaseURL(),
		"data_dir": state.config.Storage.DataDir,
		"kv":       state.config.Storage.KV.Driver,
	})
	return nil
}

func openDatabaseStep(_ context.Context, state *appState) error {
	db, err := platformstorage.Open(state.config.DatabasePath())
	if err != nil {
		return err
	}
	state.db = db
	return nil
}

func initKVStep(_ context.Context, state *appState) error {
	kvCfg := state.config.Storage.KV
	driver, err := kv.ParseDriver(kvCfg.Driver)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindConfig, "kv:init-store", "invalid kv driver", err)
	}
	cfg := kv.Config{Driver: driver}
	if driver == kv.DriverRedis {
		cfg.Redis = &kv.RedisConfig{
			Addr:     kvCfg.Redis.Addr,
			Username: kvCfg.Redis.Username,
			Password: kvCfg.Redis.Password,
			DB:       kvCfg.Redis.DB,
			Prefix:   kvCfg.Redis.Prefix,
		}
	}
	store, err := kv.New(cfg, kv.Dependencies{SQLiteDB: state.db})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "kv:init-store", "failed to create kv store", err)
	}
	state.kv = store
	return nil
}

func loadSessionStep(ctx context.Context, state *appState) error {
	st, err := session.Load(ctx, state.kv, session.Options{
		DailyLimit: state.config.Scans.DailyFreeLimit,
		Logger:     state.logger,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "session:load-state", "failed to load session", err)
	}
	state.session = st
	return nil
}

func initClientStep(_ context.Context, state *appState) error {
	apiCfg := state.config.API
	state.client = api.NewClient(api.Options{
		BaseURL:     apiCfg.ResolvedBaseURL(),
		Timeout:     apiCfg.Timeout,
		Bearer:      api.TokenSourceFunc(state.session.Token),
		Attestation: api.WithTimeout(api.StaticTokenSource(apiCfg.AttestationToken), apiCfg.AttestationTimeout),
		Logger:      state.logger,
	})

	checker, err := connectivity.NewChecker(apiCfg.ResolvedBaseURL(), connectivity.Options{
		ProbeTimeout:     state.config.Offline.ProbeTimeout,
		RequireInterface: state.config.Offline.RequireInterface,
		Logger:           state.logger,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindConfig, "transport:init-client", "invalid backend address", err)
	}
	state.checker = checker
	return nil
}

func initAnalysisStep(_ context.Context, state *appState) error {
	cfg := state.config
	logger := state.logger
	bus := eventbus.New()

	q := queue.New(state.kv, logger)

	retry := api.NewRetryUploader(state.client, cfg.API.RetryDelay, logger)
	var uploader api.Uploader = retry
	if cfg.Offline.Enabled {
		uploader = api.NewOfflineUploader(retry, api.OfflineOptions{
			Checker:             state.checker,
			Queue:               q,
			QueueOnNetworkError: cfg.Offline.QueueOnNetworkError,
			Logger:              logger,
		})
	}

	pre, err := domainimage.NewPreprocessor(domainimage.Options{Image: cfg.Image, Logger: logger})
	if err != nil {
		return err
	}

	analysis, err := services.NewAnalysisService(&services.AnalysisConfig{
		Preprocessor:   pre,
		Uploader:       uploader,
		ReplayUploader: retry,
		Gate:           state.session,
		Bus:            bus,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	hist := history.NewService(history.Options{
		Repository: platformstorage.NewHistoryRepository(state.db),
		DataDir:    filepath.Clean(cfg.Storage.DataDir),
		Remote:     state.client,
		Logger:     logger,
	})
	recorder := history.NewRecorder(hist, logger)
	if err := recorder.Attach(bus); err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "services:init-analysis", "failed to attach history recorder", err)
	}

	speaker := speech.NewSpeaker(cfg.Speech, state.opts.Synthesizer, logger)
	var speechSvc *services.SpeechService
	if cfg.Speech.Enabled {
		speechSvc = services.NewSpeechService(&services.SpeechConfig{
			Speaker:  speaker,
			Settings: state.session,
			Logger:   logger,
		})
		if err := speechSvc.Attach(bus); err != nil {
			return platformerrors.Wrap(platformerrors.KindBootstrap, "services:init-analysis", "failed to attach speech service", err)
		}
	}

	state.app = &App{
		Config:       cfg,
		ConfigPath:   state.configPath,
		Logger:       logger,
		DB:           state.db,
		KV:           state.kv,
		Bus:          bus,
		Session:      state.session,
		Queue:        q,
		Replayer:     queue.NewReplayer(q, analysis, bus, logger),
		History:      hist,
		Recorder:     recorder,
		Client:       state.client,
		Checker:      state.checker,
		Uploader:     uploader,
		Preprocessor: pre,
		Analysis:     analysis,
		Speaker:      speaker,
		Speech:       speechSvc,
	}
	logger.DebugTag("Bootstrap", "analysis pipeline ready", map[string]any{
		"offline_queue": cfg.Offline.Enabled,
		"auto_speak":    state.session.AutoSpeak(),
	})
	return nil
}
