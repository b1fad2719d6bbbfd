package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

const diagnosticsFile = "diagnostics_log.txt"

// ResolveDir picks the log directory: flagPath, then CUECARD_LOG_PATH, then
// the XDG state directory.
func ResolveDir(flagPath string) (string, error) {
	if flagPath != "" {
		return absolute(flagPath)
	}
	if envPath := strings.TrimSpace(os.Getenv("CUECARD_LOG_PATH")); envPath != "" {
		return absolute(envPath)
	}
	if state := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); state != "" {
		return filepath.Join(state, "cuecard"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "state", "cuecard"), nil
}

func absolute(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, path), nil
}

// Diagnostics is an open diagnostics log file.
type Diagnostics struct {
	Logger zerolog.Logger

	mu   sync.Mutex
	file *os.File
	path string
}

// Open appends to <dir>/diagnostics_log.txt. level is a zerolog level name;
// blank means info.
func Open(dir, level string) (*Diagnostics, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	lvl := zerolog.InfoLevel
	if strings.TrimSpace(level) != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}

	path := filepath.Join(dir, diagnosticsFile)
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	writer := zerolog.ConsoleWriter{
		Out:        file,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	logger := zerolog.New(writer).Level(lvl).With().Timestamp().Int("pid", os.Getpid()).Logger()

	return &Diagnostics{Logger: logger, file: file, path: path}, nil
}

// Path returns the diagnostics file path.
func (d *Diagnostics) Path() string {
	return d.path
}

func (d *Diagnostics) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	d.Logger = zerolog.Nop()
	return err
}
