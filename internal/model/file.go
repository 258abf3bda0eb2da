package model

import (
	"strings"
	"time"
)

// File represents one uploaded asset. The storage blob lives at
// {user_id}/{id}.{extension}; the derived thumbnail (if any) is tracked in the
// thumbnails table, one-to-one by file id.
type File struct {
	ID           string    `db:"id"`
	UserID       string    `db:"user_id"`
	OriginalName string    `db:"original_name"`
	Extension    string    `db:"extension"`
	MimeType     string    `db:"mime_type"`
	Size         int64     `db:"size"`
	DeleteKey    string    `db:"delete_key"` // secret authorizing deletion
	Views        int64     `db:"views"`
	Favorite     bool      `db:"favorite"`
	CreatedAt    time.Time `db:"created_at"`

	// HasThumbnail is derived from a LEFT JOIN against the thumbnails table,
	// never stored as a column of its own.
	HasThumbnail bool `db:"has_thumbnail"`
}

// Previewable reports whether a thumbnail can be derived for this file's media type.
func (f *File) Previewable() bool {
	return IsPreviewableMime(f.MimeType)
}

// IsPreviewableMime reports whether the derivation engine supports the media type.
func IsPreviewableMime(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/") || strings.HasPrefix(mimeType, "video/")
}
