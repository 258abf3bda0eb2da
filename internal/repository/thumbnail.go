package repository

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/pxldrop/pxldrop/internal/model"
)

var (
	ErrThumbnailNotFound = errors.New("thumbnail not found")
)

type ThumbnailRepository interface {
	Upsert(thumb *model.Thumbnail) error
	ByFileID(fileID string) (*model.Thumbnail, error)
	Exists(fileID string) (bool, error)
	Delete(fileID string) error
}

type thumbnailRepository struct {
	db *sqlx.DB
}

func NewThumbnailRepository(db *sqlx.DB) *thumbnailRepository {
	return &thumbnailRepository{db: db}
}

// Upsert inserts or replaces the thumbnail row for a file. Reprocessing an
// already-thumbnailed file must not duplicate rows, so this is the only write.
func (r *thumbnailRepository) Upsert(thumb *model.Thumbnail) error {
	query := `INSERT INTO thumbnails (file_id, user_id, extension, size, created_at)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (file_id) DO UPDATE SET
	              extension = excluded.extension,
	              size = excluded.size,
	              created_at = excluded.created_at`

	_, err := r.db.Exec(query,
		thumb.FileID,
		thumb.UserID,
		thumb.Extension,
		thumb.Size,
		thumb.CreatedAt,
	)

	return err
}

func (r *thumbnailRepository) ByFileID(fileID string) (*model.Thumbnail, error) {
	thumb := &model.Thumbnail{}
	query := `SELECT * FROM thumbnails WHERE file_id = $1`

	err := r.db.Get(thumb, query, fileID)
	if err == sql.ErrNoRows {
		return nil, ErrThumbnailNotFound
	}

	return thumb, err
}

func (r *thumbnailRepository) Exists(fileID string) (bool, error) {
	var n int
	query := `SELECT COUNT(1) FROM thumbnails WHERE file_id = $1`

	err := r.db.Get(&n, query, fileID)
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (r *thumbnailRepository) Delete(fileID string) error {
	query := `DELETE FROM thumbnails WHERE file_id = $1`
	_, err := r.db.Exec(query, fileID)
	return err
}
