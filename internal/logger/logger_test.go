package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"
)

func TestNewBuildsForEveryEnv(t *testing.T) {
	for _, env := range []string{"production", "development", ""} {
		l, err := New(env)
		if err != nil {
			t.Fatalf("New(%q) returned error: %v", env, err)
		}
		if l == nil {
			t.Fatalf("New(%q) returned nil logger", env)
		}
		l.Sync()
	}
}

func TestProductionLevelFiltersDebug(t *testing.T) {
	l, err := New("production")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if l.Core().Enabled(zapcore.DebugLevel) {
		t.Error("production logger should not emit debug entries")
	}
	if !l.Core().Enabled(zapcore.InfoLevel) {
		t.Error("production logger should emit info entries")
	}
}

func TestDevelopmentLevelIncludesDebug(t *testing.T) {
	l, err := New("development")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if !l.Core().Enabled(zapcore.DebugLevel) {
		t.Error("development logger should emit debug entries")
	}
}

func TestFieldsSurviveIntoEntries(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	l := zap.New(core)

	l.Info("Order placed",
		zap.Int64("order_id", 42),
		zap.String("reference", "b7a1"),
	)

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["order_id"] != int64(42) {
		t.Errorf("expected order_id 42, got %v", fields["order_id"])
	}
	if fields["reference"] != "b7a1" {
		t.Errorf("expected reference b7a1, got %v", fields["reference"])
	}
}
