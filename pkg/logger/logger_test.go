package logger

import (
	"context"
	"log/slog"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	log := Get()
	if log == nil {
		t.Fatal("logger is nil after initialization")
	}

	// Re-initialization is harmless.
	if err := Init(); err != nil {
		t.Fatalf("failed to re-initialize logger: %v", err)
	}
	if Get() == nil {
		t.Fatal("logger is nil after re-initialization")
	}
}

func TestLoggerBasic(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	ctx := context.Background()
	log := Get()

	// None of these should panic.
	log.Debug(ctx, "debug message", String("key", "value"))
	log.Info(ctx, "info message", Int("count", 3), Float64("score", 71.5))
	log.Warn(ctx, "warn message", Bool("flag", true))
	log.Error(ctx, "error message", Any("payload", map[string]int{"a": 1}))

	named := log.Named("component")
	if named == nil {
		t.Fatal("named logger is nil")
	}
	named.Info(ctx, "named message")

	if nested := Named("outer").Named("inner"); nested == nil {
		t.Fatal("nested named logger is nil")
	}
}

func TestSetLevelString(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	for _, level := range []string{"debug", "info", "warn", "warning", "error", "DEBUG", " info "} {
		if err := SetLevelString(level); err != nil {
			t.Errorf("SetLevelString(%q) failed: %v", level, err)
		}
	}
	if err := SetLevelString("verbose"); err == nil {
		t.Error("expected an error for an unknown level")
	}

	// Empty defaults to info.
	if err := SetLevelString(""); err != nil {
		t.Errorf("SetLevelString(\"\") failed: %v", err)
	}

	SetLevel(slog.LevelInfo)
}

func TestFieldConstructors(t *testing.T) {
	if f := String("k", "v"); f.Key != "k" || f.Value != "v" {
		t.Errorf("unexpected String field: %+v", f)
	}
	if f := Int("n", 7); f.Value != 7 {
		t.Errorf("unexpected Int field: %+v", f)
	}
	if f := Error(context.Canceled); f.Key != "error" {
		t.Errorf("unexpected Error field key: %s", f.Key)
	}
}
