package storage

import (
	"errors"
	"fmt"
	"io"
)

// ErrNotExist is returned by read/open operations when no blob exists at the
// given path. Expected failures cross this boundary as errors, never panics;
// callers decide what to roll back.
var ErrNotExist = errors.New("storage: object does not exist")

// ThumbnailExt is the fixed output extension of the derivation engine. Every
// thumbnail is re-encoded to the same codec so retrieval can use a uniform
// Content-Type.
const ThumbnailExt = "jpg"

// Storage defines the interface for blob storage operations. Backends are
// interchangeable (local disk, S3-compatible); nothing above this interface
// may depend on a concrete backend.
type Storage interface {
	// Save stores a blob at the given path, creating intermediate
	// directory/prefix structure as needed. size must be the exact byte
	// length of r for backends that need a content length up front.
	Save(path string, r io.Reader, size int64) error

	// ReadAll reads the full blob; ErrNotExist if absent.
	ReadAll(path string) ([]byte, error)

	// Open returns the blob as a stream; ErrNotExist if absent.
	Open(path string) (io.ReadCloser, error)

	// OpenRange returns bytes [start, end] of the blob (inclusive), for
	// byte-range video serving; ErrNotExist if absent.
	OpenRange(path string, start, end int64) (io.ReadCloser, error)

	// Delete removes a blob. Deleting a non-existent path is not an error.
	Delete(path string) error

	// Rename moves a blob, creating destination structure as needed. Atomic
	// where the backend supports it, copy+delete otherwise.
	Rename(oldPath, newPath string) error
}

// FilePath returns the storage path for an original blob. The scheme is fixed:
// {userID}/{id}.{extension}.
func FilePath(userID, id, extension string) string {
	return fmt.Sprintf("%s/%s.%s", userID, id, extension)
}

// ThumbnailPath returns the storage path for a derived thumbnail blob:
// {userID}/thumbnails/{id}.{ThumbnailExt}.
func ThumbnailPath(userID, id string) string {
	return fmt.Sprintf("%s/thumbnails/%s.%s", userID, id, ThumbnailExt)
}
