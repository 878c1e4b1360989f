package repository

import (
	"database/sql"

	"postbase/internal/post/model"
	"postbase/pkg/logger"
)

// PostRepository is the durable snapshot of the in-memory store: the store
// hydrates from it at boot and flushes dirty posts back to it. Tombstones
// are persisted too, so ids stay burned across restarts.
type PostRepository struct {
	DB *sql.DB
}

func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{DB: db}
}

func (r *PostRepository) EnsureSchema() error {
	_, err := r.DB.Exec(`CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		version BIGINT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		deleted BOOLEAN NOT NULL DEFAULT FALSE
	)`)
	if err != nil {
		logger.Sugar.Errorf("Failed to ensure posts schema: %v", err)
	}
	return err
}

func (r *PostRepository) LoadAll() ([]model.Post, error) {
	rows, err := r.DB.Query(`SELECT id, title, content, version, updated_at, deleted FROM posts`)
	if err != nil {
		logger.Sugar.Errorf("Failed to load posts: %v", err)
		return nil, err
	}
	defer rows.Close()

	var posts []model.Post
	for rows.Next() {
		var p model.Post
		if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.Version, &p.UpdatedAt, &p.Deleted); err != nil {
			logger.Sugar.Errorf("Failed to scan post row: %v", err)
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// Save upserts one post snapshot. The version guard makes a replayed stale
// flush harmless.
func (r *PostRepository) Save(p model.Post) error {
	_, err := r.DB.Exec(`INSERT INTO posts (id, title, content, version, updated_at, deleted)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title, content = EXCLUDED.content, version = EXCLUDED.version,
		    updated_at = EXCLUDED.updated_at, deleted = EXCLUDED.deleted
		WHERE posts.version < EXCLUDED.version`,
		p.ID, p.Title, p.Content, p.Version, p.UpdatedAt, p.Deleted)
	if err != nil {
		logger.Sugar.Errorf("Failed to save post %s: %v", p.ID, err)
	}
	return err
}
