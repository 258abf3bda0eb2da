package model

import "time"

// Thumbnail represents one derived preview image, one-to-one with its parent
// file. The blob lives at {user_id}/thumbnails/{file_id}.{extension}.
type Thumbnail struct {
	FileID    string    `db:"file_id"`
	UserID    string    `db:"user_id"` // denormalized from the parent for path construction
	Extension string    `db:"extension"`
	Size      int64     `db:"size"`
	CreatedAt time.Time `db:"created_at"`
}
