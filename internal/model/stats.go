package model

import "time"

// UserStats holds per-user aggregates refreshed by the daily stats task.
type UserStats struct {
	UserID       string    `db:"user_id" json:"user_id"`
	FileCount    int64     `db:"file_count" json:"file_count"`
	StorageBytes int64     `db:"storage_bytes" json:"storage_bytes"` // originals plus thumbnails
	TotalViews   int64     `db:"total_views" json:"total_views"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
