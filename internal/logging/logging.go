package logging

import (
	"fmt"
	"io"
	log "log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

var levelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

// ParseLevel maps a config/flag level name to a slog level.
func ParseLevel(name string) (log.Level, error) {
	if lvl, ok := levelMap[strings.ToLower(strings.TrimSpace(name))]; ok {
		return lvl, nil
	}
	return log.LevelInfo, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", name)
}

// Level is ParseLevel with unknown names falling back to info.
func Level(name string) log.Level {
	lvl, _ := ParseLevel(name)
	return lvl
}

// Setup installs a tint handler writing to w as the process default logger.
func Setup(w io.Writer, level string) {
	log.SetDefault(log.New(tint.NewHandler(w, &tint.Options{
		Level:      Level(level),
		TimeFormat: time.TimeOnly,
	})))
}
