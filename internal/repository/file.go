package repository

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/pxldrop/pxldrop/internal/model"
)

var (
	ErrFileNotFound = errors.New("file not found")
)

// fileColumns selects the file row plus the join-derived has_thumbnail flag.
// "Has thumbnail" is never stored as its own column, so it can't drift from
// the thumbnails table.
const fileColumns = `f.id, f.user_id, f.original_name, f.extension, f.mime_type, f.size,
	f.delete_key, f.views, f.favorite, f.created_at,
	(t.file_id IS NOT NULL) AS has_thumbnail`

type FileRepository interface {
	Create(file *model.File) error
	ByID(id string) (*model.File, error)
	AllUserFiles(userID string) ([]*model.File, error)
	MissingThumbnail() ([]*model.File, error)
	Rename(oldID, newID string) error
	IncrementViews(id string) error
	SetFavorite(id string, favorite bool) error
	Delete(id string) error
}

type fileRepository struct {
	db *sqlx.DB
}

func NewFileRepository(db *sqlx.DB) *fileRepository {
	return &fileRepository{db: db}
}

func (r *fileRepository) Create(file *model.File) error {
	query := `INSERT INTO files (id, user_id, original_name, extension, mime_type, size, delete_key, views, favorite, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(query,
		file.ID,
		file.UserID,
		file.OriginalName,
		file.Extension,
		file.MimeType,
		file.Size,
		file.DeleteKey,
		file.Views,
		file.Favorite,
		file.CreatedAt,
	)

	return err
}

func (r *fileRepository) ByID(id string) (*model.File, error) {
	file := &model.File{}
	query := `SELECT ` + fileColumns + `
	          FROM files f LEFT JOIN thumbnails t ON t.file_id = f.id
	          WHERE f.id = $1`

	err := r.db.Get(file, query, id)
	if err == sql.ErrNoRows {
		return nil, ErrFileNotFound
	}

	return file, err
}

func (r *fileRepository) AllUserFiles(userID string) ([]*model.File, error) {
	var files []*model.File
	query := `SELECT ` + fileColumns + `
	          FROM files f LEFT JOIN thumbnails t ON t.file_id = f.id
	          WHERE f.user_id = $1 ORDER BY f.created_at DESC`

	err := r.db.Select(&files, query, userID)
	if err != nil {
		return nil, err
	}

	return files, nil
}

// MissingThumbnail returns image/video files that have no thumbnail row yet,
// oldest first. This feeds both the queue reload and the reconciliation sweep.
func (r *fileRepository) MissingThumbnail() ([]*model.File, error) {
	var files []*model.File
	query := `SELECT ` + fileColumns + `
	          FROM files f LEFT JOIN thumbnails t ON t.file_id = f.id
	          WHERE t.file_id IS NULL
	            AND (f.mime_type LIKE 'image/%' OR f.mime_type LIKE 'video/%')
	          ORDER BY f.created_at ASC`

	err := r.db.Select(&files, query)
	if err != nil {
		return nil, err
	}

	return files, nil
}

// Rename changes a file's id. The thumbnails row follows via ON UPDATE CASCADE;
// storage paths are the caller's responsibility.
func (r *fileRepository) Rename(oldID, newID string) error {
	query := `UPDATE files SET id = $2 WHERE id = $1`

	res, err := r.db.Exec(query, oldID, newID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrFileNotFound
	}
	return err
}

func (r *fileRepository) IncrementViews(id string) error {
	query := `UPDATE files SET views = views + 1 WHERE id = $1`
	_, err := r.db.Exec(query, id)
	return err
}

func (r *fileRepository) SetFavorite(id string, favorite bool) error {
	query := `UPDATE files SET favorite = $2 WHERE id = $1`
	_, err := r.db.Exec(query, id, favorite)
	return err
}

func (r *fileRepository) Delete(id string) error {
	query := `DELETE FROM files WHERE id = $1`
	_, err := r.db.Exec(query, id)
	return err
}
