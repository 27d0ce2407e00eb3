package tags

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"warden-automod/internal/modules/audit"
	"warden-automod/internal/storage"
)

const maxNameLength = 32

var (
	ErrInvalidName  = errors.New("tag name must be lowercase letters, digits or dashes")
	ErrEmptyContent = errors.New("tag content must not be empty")
)

// Module manages per-guild canned-response tags.
type Module struct {
	store *storage.Store
	audit *audit.Logger
}

func New(store *storage.Store, auditLogger *audit.Logger) *Module {
	return &Module{store: store, audit: auditLogger}
}

func (m *Module) Create(ctx context.Context, guildID, name, content, authorID string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if !validName(name) {
		return ErrInvalidName
	}
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	if err := m.store.UpsertTag(ctx, storage.Tag{GuildID: guildID, Name: name, Content: content, AuthorID: authorID}); err != nil {
		return err
	}
	m.audit.Log(ctx, audit.LevelInfo, guildID, authorID, audit.EventTagCreated, fmt.Sprintf("name=%s", name))
	return nil
}

func (m *Module) Delete(ctx context.Context, guildID, name, actorID string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if err := m.store.DeleteTag(ctx, guildID, name); err != nil {
		return err
	}
	m.audit.Log(ctx, audit.LevelInfo, guildID, actorID, audit.EventTagDeleted, fmt.Sprintf("name=%s", name))
	return nil
}

// Use returns the tag content and bumps its usage counter.
func (m *Module) Use(ctx context.Context, guildID, name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	tag, err := m.store.GetTag(ctx, guildID, name)
	if err != nil {
		return "", err
	}
	_ = m.store.IncrementTagUse(ctx, guildID, name)
	return tag.Content, nil
}

func (m *Module) List(ctx context.Context, guildID string) ([]storage.Tag, error) {
	return m.store.ListTags(ctx, guildID)
}

func validName(name string) bool {
	if name == "" || len(name) > maxNameLength {
		return false
	}
	for _, r := range name {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' {
			continue
		}
		return false
	}
	return true
}
