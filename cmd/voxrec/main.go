// voxrec runs a single recording, transcription or device listing and prints
// the outcome as JSON on stdout.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"voxbridge/internal/audio"
	"voxbridge/internal/bootstrap"
	"voxbridge/internal/capture"
	"voxbridge/internal/config"
	"voxbridge/internal/logging"
	"voxbridge/internal/pipeline"
	"voxbridge/internal/transcribe"
	"voxbridge/pkg/audioconv"
)

type failure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type recordResult struct {
	Success   bool   `json:"success"`
	File      string `json:"file"`
	Duration  int    `json:"duration"`
	SizeBytes int64  `json:"size_bytes"`
	Message   string `json:"message"`
}

type devicesResult struct {
	Success bool           `json:"success"`
	Devices []audio.Device `json:"devices"`
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: voxrec record|transcribe|devices [flags]")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var code int
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "record":
		code = runRecord(ctx, args)
	case "transcribe":
		code = runTranscribe(ctx, args)
	case "devices":
		code = runDevices()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		code = 2
	}
	stop()
	os.Exit(code)
}

func emit(v any) {
	enc := json.NewEncoder(os.Stdout)
	if err := enc.Encode(v); err != nil {
		log.Error("Failed to write result", "err", err)
	}
}

func fail(err error) {
	emit(failure{Error: err.Error()})
}

// loadConfig parses the shared flags and returns the effective config.
func loadConfig(fs *cli.FlagSet, args []string) (config.Config, error) {
	configPath := fs.StringP("config", "c", "", "YAML config file")
	envFile := fs.StringP("env", "e", ".env", "Env file path")
	logLevel := fs.StringP("log", "l", "warn", "Log level")
	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}

	if _, err := logging.ParseLevel(*logLevel); err != nil {
		return config.Config{}, err
	}
	logging.Setup(os.Stderr, *logLevel)
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("Failed to load env file", "path", *envFile, "err", err)
	}
	return config.Load(*configPath)
}

func runRecord(ctx context.Context, args []string) int {
	fs := cli.NewFlagSet("record", cli.ContinueOnError)
	duration := fs.StringP("duration", "d", "3", "Recording length in seconds (fractions are truncated)")
	out := fs.StringP("output", "o", "temp_audio.wav", "Output WAV file")
	cfg, err := loadConfig(fs, args)
	if err != nil {
		fail(err)
		return 1
	}
	if fs.NArg() > 0 {
		*duration = fs.Arg(0)
	}

	seconds, err := capture.ParseSeconds(*duration)
	if err != nil || seconds <= 0 || seconds > cfg.Capture.MaxSeconds {
		fail(fmt.Errorf("invalid duration: %q", *duration))
		return 1
	}

	rec, closeRec, err := bootstrap.NewRecorder(cfg.Capture)
	if err != nil {
		fail(err)
		return 0
	}
	defer closeRec()

	// record next to the target so the final rename stays on one filesystem
	cfg.Capture.TempDir = filepath.Dir(*out)
	path, err := bootstrap.NewCapturer(cfg.Capture, rec).Capture(ctx, seconds)
	if err != nil {
		fail(err)
		return 0
	}
	if err := os.Rename(path, *out); err != nil {
		os.Remove(path)
		fail(fmt.Errorf("move recording: %w", err))
		return 0
	}

	info, err := os.Stat(*out)
	if err != nil {
		fail(err)
		return 0
	}
	emit(recordResult{
		Success:   true,
		File:      *out,
		Duration:  seconds,
		SizeBytes: info.Size(),
		Message:   "audio recorded successfully",
	})
	return 0
}

func runTranscribe(ctx context.Context, args []string) int {
	fs := cli.NewFlagSet("transcribe", cli.ContinueOnError)
	cfg, err := loadConfig(fs, args)
	if err != nil {
		fail(err)
		return 1
	}
	if fs.NArg() != 1 {
		fail(errors.New("usage: voxrec transcribe <audio_file>"))
		return 1
	}

	engine, closeEngine, err := bootstrap.NewEngine(cfg.Transcribe)
	if err != nil {
		fail(err)
		return 1
	}
	defer closeEngine()

	path, cleanup, err := asWAV(fs.Arg(0), cfg.Capture.TempDir)
	if err != nil {
		fail(err)
		return 0
	}
	defer cleanup()

	tr := transcribe.New(engine, transcribe.Options{MinBytes: cfg.Transcribe.MinBytes})
	res, err := tr.Transcribe(ctx, path)
	if err != nil {
		emit(pipeline.Failure(err))
		return 0
	}
	emit(pipeline.Result{Success: true, Text: res.Text, Language: res.Language, Confidence: res.Confidence})
	return 0
}

// asWAV returns path unchanged when it is a 16 kHz mono WAV file. Anything
// else audioconv can decode is re-encoded into a temporary one.
func asWAV(path, tempDir string) (string, func(), error) {
	noop := func() {}
	if _, err := os.Stat(path); err != nil {
		// left for the transcriber to report
		return path, noop, nil
	}
	info, err := audioconv.ProbeWAV(path)
	if err == nil && info.SampleRate == capture.SampleRate && info.Channels == capture.Channels {
		return path, noop, nil
	}

	pcm, err := audioconv.DecodeFile(path)
	if err != nil {
		return "", noop, err
	}
	f, err := os.CreateTemp(tempDir, "voxrec-*.wav")
	if err != nil {
		return "", noop, err
	}
	defer f.Close()
	cleanup := func() { os.Remove(f.Name()) }

	if err := audioconv.WriteWAV(f, pcm); err != nil {
		cleanup()
		return "", noop, err
	}
	return f.Name(), cleanup, nil
}

func runDevices() int {
	logging.Setup(os.Stderr, "warn")

	rec := audio.NewRecorder()
	if err := rec.Init(); err != nil {
		fail(err)
		return 1
	}
	defer rec.Close()

	devices, err := audio.Devices()
	if err != nil {
		fail(err)
		return 1
	}
	emit(devicesResult{Success: true, Devices: devices})
	return 0
}
