package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveDirPriority(t *testing.T) {
	t.Setenv("CUECARD_LOG_PATH", "/var/tmp/cuecard-env")
	t.Setenv("XDG_STATE_HOME", "/var/tmp/state")

	got, err := ResolveDir("/var/tmp/cuecard-flag")
	if err != nil || got != "/var/tmp/cuecard-flag" {
		t.Fatalf("flag should win: %q %v", got, err)
	}

	got, err = ResolveDir("")
	if err != nil || got != "/var/tmp/cuecard-env" {
		t.Fatalf("env should win over state dir: %q %v", got, err)
	}

	t.Setenv("CUECARD_LOG_PATH", "")
	got, err = ResolveDir("")
	if err != nil || got != filepath.Join("/var/tmp/state", "cuecard") {
		t.Fatalf("expected XDG state dir: %q %v", got, err)
	}
}

func TestResolveDirRelativeFlag(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	got, err := ResolveDir("logs")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != filepath.Join(wd, "logs") {
		t.Fatalf("unexpected dir: %q", got)
	}
}

func TestOpenWritesDiagnostics(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested")
	diag, err := Open(dir, "debug")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	diag.Logger.Debug().Str("component", "test").Msg("hello diagnostics")
	if err := diag.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := diag.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	data, err := os.ReadFile(diag.Path())
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(data)
	for _, want := range []string{"hello diagnostics", "component=test", "pid="} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
}

func TestOpenRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if _, err := Open(t.TempDir(), "loud"); err == nil {
		t.Fatalf("expected level error")
	}
}
