package app

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lexibot/internal/ai"
	"lexibot/internal/model"
)

// newTestDB opens a per-test in-memory database. The shared cache plus a
// single connection keeps every gorm session on the same memory store.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap test db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(
		&model.User{},
		&model.Session{},
		&model.Message{},
		&model.Document{},
		&model.Chunk{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// fakeLLM satisfies LLMClient with per-test behavior.
type fakeLLM struct {
	completeFn func(messages []ai.ChatMessage) (string, error)
	embedFn    func(text string) ([]float32, error)
}

func (f *fakeLLM) Complete(_ context.Context, _ ai.ChatConfig, messages []ai.ChatMessage) (string, error) {
	if f.completeFn == nil {
		return "ok", nil
	}
	return f.completeFn(messages)
}

func (f *fakeLLM) Embed(_ context.Context, _ ai.EmbeddingConfig, text string) ([]float32, error) {
	if f.embedFn == nil {
		return []float32{1, 0, 0}, nil
	}
	return f.embedFn(text)
}
