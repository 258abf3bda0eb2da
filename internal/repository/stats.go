package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pxldrop/pxldrop/internal/model"
)

var (
	ErrStatsNotFound = errors.New("user stats not found")
)

type StatsRepository interface {
	Refresh(now time.Time) error
	ByUserID(userID string) (*model.UserStats, error)
}

type statsRepository struct {
	db *sqlx.DB
}

func NewStatsRepository(db *sqlx.DB) *statsRepository {
	return &statsRepository{db: db}
}

// Refresh recomputes per-user aggregates from the files and thumbnails tables
// in a single upsert. Storage bytes include thumbnails.
func (r *statsRepository) Refresh(now time.Time) error {
	query := `INSERT INTO user_stats (user_id, file_count, storage_bytes, total_views, updated_at)
	          SELECT f.user_id,
	                 COUNT(*),
	                 COALESCE(SUM(f.size), 0) +
	                 COALESCE((SELECT SUM(t.size) FROM thumbnails t WHERE t.user_id = f.user_id), 0),
	                 COALESCE(SUM(f.views), 0),
	                 $1
	          FROM files f
	          GROUP BY f.user_id
	          ON CONFLICT (user_id) DO UPDATE SET
	              file_count = excluded.file_count,
	              storage_bytes = excluded.storage_bytes,
	              total_views = excluded.total_views,
	              updated_at = excluded.updated_at`

	_, err := r.db.Exec(query, now)
	return err
}

func (r *statsRepository) ByUserID(userID string) (*model.UserStats, error) {
	stats := &model.UserStats{}
	query := `SELECT * FROM user_stats WHERE user_id = $1`

	err := r.db.Get(stats, query, userID)
	if err == sql.ErrNoRows {
		return nil, ErrStatsNotFound
	}

	return stats, err
}
