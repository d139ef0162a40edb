package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name    string
		level   log.Level
		logFunc func(*log.Logger)
		wantLog bool
	}{
		{"info at info level", LogInfo, func(l *log.Logger) { l.Info("resolved") }, true},
		{"debug at info level", LogInfo, func(l *log.Logger) { l.Debug("cache hit") }, false},
		{"debug at debug level", LogDebug, func(l *log.Logger) { l.Debug("cache hit") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.logFunc(newLogger(&buf, tt.level))
			if got := buf.Len() > 0; got != tt.wantLog {
				t.Errorf("got log output = %v, want %v", got, tt.wantLog)
			}
		})
	}
}

func TestProgressDone(t *testing.T) {
	var buf bytes.Buffer
	newProgress(newLogger(&buf, LogInfo)).done("resolved graph", "modules", 3)

	out := buf.String()
	for _, want := range []string{"resolved graph", "modules=3", "elapsed="} {
		if !strings.Contains(out, want) {
			t.Errorf("progress output %q missing %q", out, want)
		}
	}
}

func TestLoggerFromContext(t *testing.T) {
	if loggerFromContext(context.Background()) == nil {
		t.Fatal("loggerFromContext should fall back to the default logger")
	}

	var buf bytes.Buffer
	custom := newLogger(&buf, LogInfo)
	ctx := withLogger(context.Background(), custom)
	if got := loggerFromContext(ctx); got != custom {
		t.Errorf("loggerFromContext() = %p, want %p", got, custom)
	}
}

func TestRootCommandAttachesLogger(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, LogInfo)
	root := c.RootCommand()

	var seen *log.Logger
	for _, sub := range root.Commands() {
		if sub.Name() == "cache" {
			for _, leaf := range sub.Commands() {
				if leaf.Name() == "path" {
					run := leaf.RunE
					leaf.RunE = func(cmd *cobra.Command, args []string) error {
						seen = loggerFromContext(cmd.Context())
						return run(cmd, args)
					}
				}
			}
		}
	}
	root.SetArgs([]string{"cache", "path"})
	root.SetOut(&buf)
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatal(err)
	}
	if seen != c.Logger {
		t.Error("subcommands should see the CLI logger in their context")
	}
}
