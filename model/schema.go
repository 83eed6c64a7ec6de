package model

import "context"

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		email TEXT NOT NULL,
		avatar_path TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS posts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		author_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		text TEXT NOT NULL,
		published_at DATETIME NOT NULL,
		responds_to INTEGER REFERENCES posts(id) ON DELETE SET NULL
	)`,
	`CREATE INDEX IF NOT EXISTS posts_author_idx ON posts (author_id, published_at)`,
	`CREATE TABLE IF NOT EXISTS post_hashtags (
		post_id INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		hashtag TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS post_hashtags_tag_idx ON post_hashtags (hashtag)`,
	`CREATE TABLE IF NOT EXISTS mentions (
		post_id INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at DATETIME NOT NULL,
		read_at DATETIME,
		PRIMARY KEY (post_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS follows (
		follower_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		followed_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at DATETIME NOT NULL,
		read_at DATETIME,
		PRIMARY KEY (follower_id, followed_id)
	)`,
	`CREATE TABLE IF NOT EXISTS likes (
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		post_id INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		created_at DATETIME NOT NULL,
		read_at DATETIME,
		PRIMARY KEY (user_id, post_id)
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		email TEXT NOT NULL,
		avatar_path TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS posts (
		id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		author_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		text TEXT NOT NULL,
		published_at TIMESTAMPTZ NOT NULL,
		responds_to BIGINT REFERENCES posts(id) ON DELETE SET NULL
	)`,
	`CREATE INDEX IF NOT EXISTS posts_author_idx ON posts (author_id, published_at)`,
	`CREATE TABLE IF NOT EXISTS post_hashtags (
		post_id BIGINT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		hashtag TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS post_hashtags_tag_idx ON post_hashtags (hashtag)`,
	`CREATE TABLE IF NOT EXISTS mentions (
		post_id BIGINT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL,
		read_at TIMESTAMPTZ,
		PRIMARY KEY (post_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS follows (
		follower_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		followed_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL,
		read_at TIMESTAMPTZ,
		PRIMARY KEY (follower_id, followed_id)
	)`,
	`CREATE TABLE IF NOT EXISTS likes (
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		post_id BIGINT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL,
		read_at TIMESTAMPTZ,
		PRIMARY KEY (user_id, post_id)
	)`,
}

// Migrate creates any missing tables. It is safe to run on every start.
func (s *Store) Migrate(ctx context.Context) error {
	queries := sqliteSchema
	if s.driver == DriverPostgres {
		queries = postgresSchema
	}
	for _, query := range queries {
		if _, err := s.q.ExecContext(ctx, query); err != nil {
			return storeErr("migrate", err)
		}
	}
	return nil
}
