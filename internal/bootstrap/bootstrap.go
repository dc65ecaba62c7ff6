// Package bootstrap builds the recorder, speech engine and HTTP server from
// configuration. Native bindings (PortAudio, whisper.cpp, the speaker) are
// only linked through here.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"time"

	"voxbridge/internal/audio"
	"voxbridge/internal/capture"
	"voxbridge/internal/config"
	"voxbridge/internal/history"
	"voxbridge/internal/notify"
	"voxbridge/internal/pipeline"
	"voxbridge/internal/proxy"
	"voxbridge/internal/server"
	"voxbridge/internal/telemetry"
	"voxbridge/internal/transcribe"
	"voxbridge/pkg/stt"
)

// App owns every long-lived resource of the daemon.
type App struct {
	Config config.Config
	Server *server.Server

	closers []func() error
}

func New(ctx context.Context, cfg config.Config, version string) (*App, error) {
	app := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	rec, closeRec, err := NewRecorder(cfg.Capture)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, closeRec)
	log.Debug("Loaded recorder", "backend", rec.Name())

	engine, closeEngine, err := NewEngine(cfg.Transcribe)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, closeEngine)
	log.Debug("Loaded engine", "engine", engine.Name())

	var (
		hooks []capture.Hook
		opts  []pipeline.Option
		deps  server.Deps
	)

	if cfg.Metrics.Enabled {
		metrics, err := telemetry.New(ctx, "voxbridge", version)
		if err != nil {
			return nil, fmt.Errorf("init metrics: %w", err)
		}
		app.closers = append(app.closers, func() error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return metrics.Shutdown(shutdownCtx)
		})
		hooks = append(hooks, metrics)
		opts = append(opts, pipeline.WithObserver(metrics))
		deps.Metrics = metrics.Handler()
	}

	if cfg.History.Enabled {
		store, err := history.Open(ctx, cfg.History.Path, cfg.History.MaxEntries)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		app.closers = append(app.closers, store.Close)
		opts = append(opts, pipeline.WithObserver(store))
		deps.History = store
		log.Debug("Opened history", "path", cfg.History.Path)
	}

	capt := NewCapturer(cfg.Capture, rec, hooks...)
	tr := transcribe.New(engine, transcribe.Options{MinBytes: cfg.Transcribe.MinBytes})
	deps.Pipeline = pipeline.New(capt, tr, opts...)

	app.Server = server.New(deps)
	ok = true
	return app, nil
}

func (a *App) Run(ctx context.Context) error {
	return a.Server.ListenAndServe(ctx, a.Config.Addr())
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewRecorder returns the configured capture backend and its cleanup.
func NewRecorder(cfg config.CaptureConfig) (capture.Recorder, func() error, error) {
	switch cfg.Backend {
	case "portaudio":
		rec := audio.NewRecorder()
		if err := rec.Init(); err != nil {
			return nil, nil, err
		}
		return rec, func() error { rec.Close(); return nil }, nil
	case "arecord", "":
		return capture.NewArecord(cfg.Binary, cfg.Env), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown capture backend %q", cfg.Backend)
	}
}

// NewCapturer wraps rec with the single recording slot and the configured
// cue and ducking hooks. extra hooks run innermost.
func NewCapturer(cfg config.CaptureConfig, rec capture.Recorder, extra ...capture.Hook) *capture.Capturer {
	var hooks []capture.Hook
	if cfg.CuePath != "" {
		hooks = append(hooks, notify.NewCue(cfg.CuePath))
	}
	if cfg.Duck.Enabled {
		hooks = append(hooks, capture.NewDucker(
			cfg.Duck.SelfNames,
			cfg.Duck.Factor,
			cfg.Duck.MinVolume,
			time.Duration(cfg.Duck.FadeMS)*time.Millisecond,
		))
	}
	hooks = append(hooks, extra...)

	return capture.New(rec, capture.Options{
		Device:     cfg.Device,
		MaxSeconds: cfg.MaxSeconds,
		MinBytes:   cfg.MinBytes,
		TempDir:    cfg.TempDir,
		Policy:     capture.Policy(cfg.BusyPolicy),
		Hooks:      hooks,
	})
}

// NewEngine loads the configured speech engine once.
func NewEngine(cfg config.TranscribeConfig) (transcribe.Engine, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Engine {
	case "whisper":
		t, err := stt.NewTranscriber(cfg.ModelPath)
		if err != nil {
			return nil, nil, fmt.Errorf("init whisper: %w", err)
		}
		opt := stt.Options{
			Language:      cfg.Language,
			Threads:       cfg.Threads,
			InitialPrompt: cfg.InitialPrompt,
			BeamSize:      cfg.BeamSize,
		}
		return &whisperEngine{t: t, opt: opt}, t.Close, nil
	case "openai":
		httpClient, err := proxy.NewHTTPClient(cfg.OpenAI.Proxy)
		if err != nil {
			return nil, nil, fmt.Errorf("init proxy: %w", err)
		}
		e, err := transcribe.NewOpenAIEngine(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.Language, cfg.InitialPrompt, httpClient)
		if err != nil {
			return nil, nil, err
		}
		return e, noop, nil
	case "exec":
		e, err := transcribe.NewExecEngine(cfg.Command, cfg.Language)
		if err != nil {
			return nil, nil, err
		}
		return e, noop, nil
	case "mock":
		return transcribe.MockEngine{}, noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown transcribe engine %q", cfg.Engine)
	}
}

type whisperEngine struct {
	t   *stt.Transcriber
	opt stt.Options
}

func (w *whisperEngine) Name() string { return "whisper" }

func (w *whisperEngine) Recognize(ctx context.Context, path string) (transcribe.Recognition, error) {
	res, err := w.t.TranscribeFile(ctx, path, w.opt)
	if err != nil {
		return transcribe.Recognition{}, err
	}
	return transcribe.Recognition{Text: res.Text, Language: res.Language, Confidence: res.Confidence}, nil
}
