package tags

import (
	"context"
	"errors"
	"testing"

	"warden-automod/internal/modules/audit"
	"warden-automod/internal/storage"

	"go.uber.org/zap"
)

func newTestModule(t *testing.T) *Module {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(store, audit.NewLogger(store, zap.NewNop()))
}

func TestTagCreateAndUse(t *testing.T) {
	module := newTestModule(t)
	ctx := context.Background()

	if err := module.Create(ctx, "g1", "FAQ", "read the pins", "u1"); err != nil {
		t.Fatalf("create: %v", err)
	}

	content, err := module.Use(ctx, "g1", "faq")
	if err != nil {
		t.Fatalf("use: %v", err)
	}
	if content != "read the pins" {
		t.Fatalf("expected content, got %q", content)
	}

	tagList, err := module.List(ctx, "g1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tagList) != 1 || tagList[0].Uses != 1 {
		t.Fatalf("expected one tag with one use, got %v", tagList)
	}
}

func TestTagValidation(t *testing.T) {
	module := newTestModule(t)
	ctx := context.Background()

	if err := module.Create(ctx, "g1", "no spaces", "content", "u1"); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if err := module.Create(ctx, "g1", "ok", "   ", "u1"); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
}

func TestTagDelete(t *testing.T) {
	module := newTestModule(t)
	ctx := context.Background()

	if err := module.Create(ctx, "g1", "faq", "content", "u1"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := module.Delete(ctx, "g1", "faq", "u2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := module.Use(ctx, "g1", "faq"); !errors.Is(err, storage.ErrTagNotFound) {
		t.Fatalf("expected ErrTagNotFound, got %v", err)
	}
}
