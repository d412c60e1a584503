package app

import (
	"context"
	"testing"

	"github.com/alvolt/membank/internal/config"
	"github.com/alvolt/membank/internal/log"
)

func TestApp_Close_PartialInit(t *testing.T) {
	// Close must be safe on a partially initialized App; Setup relies on
	// this for its error path.
	a := &App{Config: &config.Config{}, Logger: log.NewNop()}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}

	a = &App{Logger: log.NewNop(), otelCleanup: func() {}}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
}

func TestProvideOtelShutdown_Disabled(t *testing.T) {
	cleanup := provideOtelShutdown(context.Background(), &config.Config{}, log.NewNop())
	if cleanup == nil {
		t.Fatal("cleanup func is nil")
	}
	// Must be a no-op when no endpoint is configured.
	cleanup()
}
