package service

import (
	"bytes"
	"fmt"
	"log/slog"
	"time"

	"github.com/pxldrop/pxldrop/internal/model"
	"github.com/pxldrop/pxldrop/internal/queue"
	"github.com/pxldrop/pxldrop/internal/repository"
	"github.com/pxldrop/pxldrop/internal/storage"
	"github.com/pxldrop/pxldrop/internal/thumbnail"
)

// DerivationService runs the fetch -> derive -> save -> record sequence for a
// single file. It is shared by the background queue and the reconciliation
// sweep, and is idempotent at the record level: a file that already has a
// thumbnail is skipped.
type DerivationService struct {
	thumbRepo repository.ThumbnailRepository
	storage   storage.Storage
	generator *thumbnail.Generator
	quality   int
}

func NewDerivationService(thumbRepo repository.ThumbnailRepository, store storage.Storage, generator *thumbnail.Generator, quality int) *DerivationService {
	return &DerivationService{
		thumbRepo: thumbRepo,
		storage:   store,
		generator: generator,
		quality:   quality,
	}
}

// ProcessItem derives and persists the thumbnail for one work item.
func (s *DerivationService) ProcessItem(item queue.Item) error {
	// Defensive: enqueue sites already filter by media type.
	if !model.IsPreviewableMime(item.MimeType) {
		slog.Debug("skipping non-previewable file", "file_id", item.ID, "mime_type", item.MimeType)
		return nil
	}

	// Already thumbnailed (e.g. the sweep raced the queue): nothing to do.
	exists, err := s.thumbRepo.Exists(item.ID)
	if err != nil {
		return fmt.Errorf("failed to check thumbnail record: %w", err)
	}
	if exists {
		return nil
	}

	data, err := s.storage.ReadAll(storage.FilePath(item.UserID, item.ID, item.Extension))
	if err != nil {
		return fmt.Errorf("failed to read original blob: %w", err)
	}

	name := item.ID + "." + item.Extension
	thumb, err := s.generator.Generate(name, data, item.MimeType, s.quality)
	if err != nil {
		return err
	}

	thumbPath := storage.ThumbnailPath(item.UserID, item.ID)
	err = s.storage.Save(thumbPath, bytes.NewReader(thumb), int64(len(thumb)))
	if err != nil {
		// Best-effort cleanup of a partial write before reporting failure.
		delErr := s.storage.Delete(thumbPath)
		if delErr != nil {
			slog.Warn("failed to clean up partial thumbnail", "path", thumbPath, "error", delErr)
		}
		return fmt.Errorf("failed to save thumbnail blob: %w", err)
	}

	err = s.thumbRepo.Upsert(&model.Thumbnail{
		FileID:    item.ID,
		UserID:    item.UserID,
		Extension: storage.ThumbnailExt,
		Size:      int64(len(thumb)),
		CreatedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to record thumbnail: %w", err)
	}

	return nil
}

// ProcessFile adapts a file row to the work item shape.
func (s *DerivationService) ProcessFile(file *model.File) error {
	return s.ProcessItem(queue.Item{
		ID:        file.ID,
		UserID:    file.UserID,
		Extension: file.Extension,
		MimeType:  file.MimeType,
	})
}
