package service

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/pxldrop/pxldrop/internal/metrics"
	"github.com/pxldrop/pxldrop/internal/model"
	"github.com/pxldrop/pxldrop/internal/repository"
	"github.com/pxldrop/pxldrop/internal/storage"
	"github.com/pxldrop/pxldrop/internal/thumbnail"
)

var (
	// ErrMissingExtension means no extension could be derived from the file
	// name or media type; such a file cannot be stored under the path scheme.
	ErrMissingExtension = errors.New("upload: missing file extension")

	// ErrThumbnailSave means the derived thumbnail blob could not be written.
	// The original file is never written in this case.
	ErrThumbnailSave = errors.New("upload: thumbnail save failed")

	// ErrFileSave means the original blob could not be written.
	ErrFileSave = errors.New("upload: file save failed")

	// ErrIDExhausted means id generation kept colliding with existing files.
	ErrIDExhausted = errors.New("upload: could not allocate a unique file id")
)

const (
	idLength        = 8
	deleteKeyLength = 32
	idAlphabet      = "123456789abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ"
	idMaxAttempts   = 5
)

// UploadRequest carries one upload into the coordinator.
type UploadRequest struct {
	UserID       string
	OriginalName string
	MimeType     string
	Size         int64
	Data         io.Reader
	CreatedAt    time.Time // zero means now
}

// UploadService is the upload transaction coordinator. It ties the original
// blob, the thumbnail blob and the metadata rows together; the metadata insert
// is the committing step.
type UploadService struct {
	fileRepo  repository.FileRepository
	thumbRepo repository.ThumbnailRepository
	storage   storage.Storage
	generator *thumbnail.Generator
	quality   int
}

func NewUploadService(fileRepo repository.FileRepository, thumbRepo repository.ThumbnailRepository, store storage.Storage, generator *thumbnail.Generator, quality int) *UploadService {
	return &UploadService{
		fileRepo:  fileRepo,
		thumbRepo: thumbRepo,
		storage:   store,
		generator: generator,
		quality:   quality,
	}
}

// Upload is the synchronous path: for image/video media the thumbnail is
// derived and saved before the original, so the preview is available the
// moment the upload returns. A thumbnail failure blocks the whole upload.
func (s *UploadService) Upload(req UploadRequest) (*model.File, error) {
	file, err := s.upload(req, true)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("sync", "error").Inc()
		return nil, err
	}
	metrics.UploadsTotal.WithLabelValues("sync", "ok").Inc()
	return file, nil
}

// UploadDeferred persists the file without deriving a thumbnail; the caller
// is expected to enqueue a work item afterwards. Used by bulk import tooling
// where throughput matters more than immediate previews.
func (s *UploadService) UploadDeferred(req UploadRequest) (*model.File, error) {
	file, err := s.upload(req, false)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("deferred", "error").Inc()
		return nil, err
	}
	metrics.UploadsTotal.WithLabelValues("deferred", "ok").Inc()
	return file, nil
}

func (s *UploadService) upload(req UploadRequest, inlineThumbnail bool) (*model.File, error) {
	ext := deriveExtension(req.OriginalName, req.MimeType)
	if ext == "" {
		return nil, ErrMissingExtension
	}

	id, err := s.newID()
	if err != nil {
		return nil, err
	}

	deleteKey, err := randomToken(deleteKeyLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate delete key: %w", err)
	}

	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	file := &model.File{
		ID:           id,
		UserID:       req.UserID,
		OriginalName: req.OriginalName,
		Extension:    ext,
		MimeType:     req.MimeType,
		Size:         req.Size,
		DeleteKey:    deleteKey,
		CreatedAt:    createdAt,
	}

	// Derivation needs the full buffer anyway, so materialize the stream once
	// and reuse it for the original blob write.
	data, err := io.ReadAll(req.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if req.Size > 0 && int64(len(data)) != req.Size {
		return nil, fmt.Errorf("upload size mismatch: declared %d, read %d", req.Size, len(data))
	}
	file.Size = int64(len(data))

	var thumb *model.Thumbnail
	if inlineThumbnail && file.Previewable() {
		thumbBytes, err := s.generator.Generate(req.OriginalName, data, req.MimeType, s.quality)
		if err != nil {
			return nil, err
		}

		thumbPath := storage.ThumbnailPath(file.UserID, file.ID)
		err = s.storage.Save(thumbPath, bytes.NewReader(thumbBytes), int64(len(thumbBytes)))
		if err != nil {
			delErr := s.storage.Delete(thumbPath)
			if delErr != nil {
				slog.Warn("failed to clean up partial thumbnail", "path", thumbPath, "error", delErr)
			}
			return nil, fmt.Errorf("%w: %w", ErrThumbnailSave, err)
		}

		thumb = &model.Thumbnail{
			FileID:    file.ID,
			UserID:    file.UserID,
			Extension: storage.ThumbnailExt,
			Size:      int64(len(thumbBytes)),
			CreatedAt: createdAt,
		}
		file.HasThumbnail = true
	}

	err = s.storage.Save(storage.FilePath(file.UserID, file.ID, file.Extension), bytes.NewReader(data), file.Size)
	if err != nil {
		// The thumbnail blob, if written, is left orphaned: there is no
		// metadata row pointing at it, which is the accepted inconsistency.
		return nil, fmt.Errorf("%w: %w", ErrFileSave, err)
	}

	// Committing step: the upload is durable only after this insert.
	err = s.fileRepo.Create(file)
	if err != nil {
		slog.Warn("file record insert failed, blobs orphaned", "file_id", file.ID, "error", err)
		return nil, fmt.Errorf("failed to create file record: %w", err)
	}

	if thumb != nil {
		err = s.thumbRepo.Upsert(thumb)
		if err != nil {
			return nil, fmt.Errorf("failed to create thumbnail record: %w", err)
		}
	}

	return file, nil
}

// newID generates a short random id and retries on the (vanishingly rare)
// collision with an existing row rather than silently overwriting blobs.
func (s *UploadService) newID() (string, error) {
	for i := 0; i < idMaxAttempts; i++ {
		id, err := randomID(idLength)
		if err != nil {
			return "", fmt.Errorf("failed to generate id: %w", err)
		}

		_, err = s.fileRepo.ByID(id)
		if errors.Is(err, repository.ErrFileNotFound) {
			return id, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check id: %w", err)
		}
		slog.Warn("file id collision, retrying", "id", id)
	}
	return "", ErrIDExhausted
}

// deriveExtension takes the extension from the file name, falling back to the
// declared media type.
func deriveExtension(name, mimeType string) string {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext != "" {
		return strings.ToLower(ext)
	}

	exts, err := mime.ExtensionsByType(mimeType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return strings.TrimPrefix(exts[0], ".")
}

func randomID(length int) (string, error) {
	b := make([]byte, length)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	for i, v := range b {
		b[i] = idAlphabet[int(v)%len(idAlphabet)]
	}
	return string(b), nil
}

func randomToken(length int) (string, error) {
	b := make([]byte, length/2)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
