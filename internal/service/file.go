package service

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/pxldrop/pxldrop/internal/model"
	"github.com/pxldrop/pxldrop/internal/repository"
	"github.com/pxldrop/pxldrop/internal/storage"
)

var (
	// ErrDeleteKeyMismatch means the presented delete key does not authorize
	// deleting the file.
	ErrDeleteKeyMismatch = errors.New("delete key mismatch")

	// ErrIDTaken means the rename target id is already in use.
	ErrIDTaken = errors.New("file id already taken")
)

// FileService covers the lifecycle operations on stored files: serving,
// deletion, rename, view counting and favorites.
type FileService struct {
	fileRepo  repository.FileRepository
	thumbRepo repository.ThumbnailRepository
	storage   storage.Storage
}

func NewFileService(fileRepo repository.FileRepository, thumbRepo repository.ThumbnailRepository, store storage.Storage) *FileService {
	return &FileService{
		fileRepo:  fileRepo,
		thumbRepo: thumbRepo,
		storage:   store,
	}
}

func (s *FileService) ByID(id string) (*model.File, error) {
	return s.fileRepo.ByID(id)
}

func (s *FileService) AllUserFiles(userID string) ([]*model.File, error) {
	return s.fileRepo.AllUserFiles(userID)
}

// Open returns the original blob as a stream.
func (s *FileService) Open(file *model.File) (io.ReadCloser, error) {
	return s.storage.Open(storage.FilePath(file.UserID, file.ID, file.Extension))
}

// OpenRange returns bytes [start, end] of the original blob, for byte-range
// video serving.
func (s *FileService) OpenRange(file *model.File, start, end int64) (io.ReadCloser, error) {
	return s.storage.OpenRange(storage.FilePath(file.UserID, file.ID, file.Extension), start, end)
}

// OpenThumbnail returns the derived preview blob as a stream.
func (s *FileService) OpenThumbnail(file *model.File) (io.ReadCloser, error) {
	return s.storage.Open(storage.ThumbnailPath(file.UserID, file.ID))
}

// RecordView bumps the view counter. Callers filter out bot traffic.
func (s *FileService) RecordView(id string) error {
	return s.fileRepo.IncrementViews(id)
}

func (s *FileService) SetFavorite(id string, favorite bool) error {
	return s.fileRepo.SetFavorite(id, favorite)
}

// Authorized loads a file and verifies the presented delete key in constant
// time. Every key-authorized operation goes through here.
func (s *FileService) Authorized(id, deleteKey string) (*model.File, error) {
	file, err := s.fileRepo.ByID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(file.DeleteKey), []byte(deleteKey)) != 1 {
		return nil, ErrDeleteKeyMismatch
	}

	return file, nil
}

// Delete removes the file authorized by its delete key, cascading to the
// original blob, the thumbnail blob and the metadata rows.
func (s *FileService) Delete(id, deleteKey string) error {
	file, err := s.Authorized(id, deleteKey)
	if err != nil {
		return err
	}

	// Blob deletes are best effort; the metadata row is the source of truth.
	err = s.storage.Delete(storage.FilePath(file.UserID, file.ID, file.Extension))
	if err != nil {
		slog.Error("failed to delete file blob", "path", storage.FilePath(file.UserID, file.ID, file.Extension), "error", err)
	}

	if file.HasThumbnail {
		err = s.storage.Delete(storage.ThumbnailPath(file.UserID, file.ID))
		if err != nil {
			slog.Error("failed to delete thumbnail blob", "file_id", file.ID, "error", err)
		}
	}

	// The thumbnails row goes with the file row via ON DELETE CASCADE.
	err = s.fileRepo.Delete(id)
	if err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}

	return nil
}

// Rename changes a file's id, cascading to the storage path and the thumbnail
// path.
func (s *FileService) Rename(id, newID string) error {
	if newID == id {
		return nil
	}

	file, err := s.fileRepo.ByID(id)
	if err != nil {
		return fmt.Errorf("failed to get file: %w", err)
	}

	_, err = s.fileRepo.ByID(newID)
	if err == nil {
		return ErrIDTaken
	}
	if !errors.Is(err, repository.ErrFileNotFound) {
		return fmt.Errorf("failed to check new id: %w", err)
	}

	err = s.storage.Rename(
		storage.FilePath(file.UserID, id, file.Extension),
		storage.FilePath(file.UserID, newID, file.Extension),
	)
	if err != nil {
		return fmt.Errorf("failed to move file blob: %w", err)
	}

	if file.HasThumbnail {
		err = s.storage.Rename(
			storage.ThumbnailPath(file.UserID, id),
			storage.ThumbnailPath(file.UserID, newID),
		)
		if err != nil {
			// Roll the original back so blobs and metadata stay aligned.
			mvErr := s.storage.Rename(
				storage.FilePath(file.UserID, newID, file.Extension),
				storage.FilePath(file.UserID, id, file.Extension),
			)
			if mvErr != nil {
				slog.Error("failed to roll back file blob rename", "file_id", id, "error", mvErr)
			}
			return fmt.Errorf("failed to move thumbnail blob: %w", err)
		}
	}

	// Committing step; thumbnails.file_id follows via ON UPDATE CASCADE.
	err = s.fileRepo.Rename(id, newID)
	if err != nil {
		// Move the blobs back so the row's id still resolves to them.
		mvErr := s.storage.Rename(
			storage.FilePath(file.UserID, newID, file.Extension),
			storage.FilePath(file.UserID, id, file.Extension),
		)
		if mvErr != nil {
			slog.Error("failed to roll back file blob rename", "file_id", id, "error", mvErr)
		}
		if file.HasThumbnail {
			mvErr = s.storage.Rename(
				storage.ThumbnailPath(file.UserID, newID),
				storage.ThumbnailPath(file.UserID, id),
			)
			if mvErr != nil {
				slog.Error("failed to roll back thumbnail blob rename", "file_id", id, "error", mvErr)
			}
		}
		return fmt.Errorf("failed to rename file record: %w", err)
	}

	return nil
}
