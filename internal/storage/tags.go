package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type Tag struct {
	GuildID   string
	Name      string
	Content   string
	AuthorID  string
	Uses      int
	CreatedAt time.Time
}

var ErrTagNotFound = errors.New("tag not found")

func (s *Store) UpsertTag(ctx context.Context, tag Tag) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tags (guild_id, name, content, author_id, uses, created_at)
		VALUES (?, ?, ?, ?, 0, ?)
		ON CONFLICT(guild_id, name) DO UPDATE SET
			content = excluded.content,
			author_id = excluded.author_id
	`, tag.GuildID, tag.Name, tag.Content, tag.AuthorID, time.Now().Unix())
	return err
}

func (s *Store) DeleteTag(ctx context.Context, guildID, name string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tags WHERE guild_id = ? AND name = ?`, guildID, name)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTagNotFound
	}
	return nil
}

func (s *Store) GetTag(ctx context.Context, guildID, name string) (Tag, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT guild_id, name, content, author_id, uses, created_at
		FROM tags WHERE guild_id = ? AND name = ?
	`, guildID, name)

	var tag Tag
	var created int64
	err := row.Scan(&tag.GuildID, &tag.Name, &tag.Content, &tag.AuthorID, &tag.Uses, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Tag{}, ErrTagNotFound
		}
		return Tag{}, err
	}
	tag.CreatedAt = time.Unix(created, 0)
	return tag, nil
}

func (s *Store) ListTags(ctx context.Context, guildID string) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT guild_id, name, content, author_id, uses, created_at
		FROM tags WHERE guild_id = ? ORDER BY name
	`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var tag Tag
		var created int64
		if err := rows.Scan(&tag.GuildID, &tag.Name, &tag.Content, &tag.AuthorID, &tag.Uses, &created); err != nil {
			return nil, err
		}
		tag.CreatedAt = time.Unix(created, 0)
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func (s *Store) IncrementTagUse(ctx context.Context, guildID, name string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tags SET uses = uses + 1 WHERE guild_id = ? AND name = ?`, guildID, name)
	return err
}
