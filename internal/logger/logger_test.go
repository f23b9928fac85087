package logger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_Envs(t *testing.T) {
	for _, env := range []string{"prod", "local", "dev", "docker"} {
		if _, err := NewLogger(env, Options{}); err != nil {
			t.Errorf("NewLogger(%q): %v", env, err)
		}
	}
	if _, err := NewLogger("staging", Options{}); err == nil {
		t.Error("expected error for unknown env")
	}
}

func TestNewLogger_Level(t *testing.T) {
	l, err := NewLogger("prod", Options{Level: "warn"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if l.Core().Enabled(zap.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
	if _, err := NewLogger("prod", Options{Level: "loud"}); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestNewLogger_OutputAndFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	l, err := NewLogger("prod", Options{
		Output: []string{path},
		Fields: []zap.Field{zap.String("service", "promptdex")},
	})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	l.Info("hello")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"service":"promptdex"`) {
		t.Errorf("log line missing service field: %s", data)
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext must fall back to a nop logger")
	}
	l := zap.NewExample()
	if got := FromContext(WithContext(context.Background(), l)); got != l {
		t.Error("FromContext did not return the stored logger")
	}
}

func TestAnnotate_AddsToRequestLine(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := WithContext(context.Background(), zap.New(core).With(zap.String("request_id", "r-1")))

	ctx = Annotate(ctx, zap.String("search_mode", "hybrid"))
	FromContext(ctx).Info("Search branch failed, degrading", zap.String("source", "semantic"))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "r-1" || fields["search_mode"] != "hybrid" || fields["source"] != "semantic" {
		t.Errorf("fields = %v", fields)
	}
}

func TestAnnotate_WithoutRequestLogger(t *testing.T) {
	ctx := context.Background()
	if got := Annotate(ctx, zap.String("search_mode", "keyword")); got != ctx {
		t.Error("Annotate outside a request must return ctx unchanged")
	}
}

func TestPrincipal(t *testing.T) {
	tests := []struct {
		user, workspace string
		want            map[string]any
	}{
		{"u1", "w1", map[string]any{"user_id": "u1", "workspace_id": "w1"}},
		{"u1", "", map[string]any{"user_id": "u1"}},
		{"", "", map[string]any{"user_id": "anonymous"}},
	}
	for _, tc := range tests {
		enc := zapcore.NewMapObjectEncoder()
		for _, f := range Principal(tc.user, tc.workspace) {
			f.AddTo(enc)
		}
		if len(enc.Fields) != len(tc.want) {
			t.Errorf("Principal(%q, %q) = %v", tc.user, tc.workspace, enc.Fields)
			continue
		}
		for k, v := range tc.want {
			if enc.Fields[k] != v {
				t.Errorf("Principal(%q, %q)[%s] = %v, want %v", tc.user, tc.workspace, k, enc.Fields[k], v)
			}
		}
	}
}
