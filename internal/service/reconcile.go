package service

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/pxldrop/pxldrop/internal/metrics"
	"github.com/pxldrop/pxldrop/internal/model"
	"github.com/pxldrop/pxldrop/internal/repository"
)

// ReconcileService hosts the scheduled maintenance tasks. The thumbnail sweep
// is the durability guarantee for derivation: anything the in-memory queue
// loses (restart, silent failure) is picked up here on the next firing.
type ReconcileService struct {
	fileRepo   repository.FileRepository
	statsRepo  repository.StatsRepository
	derivation *DerivationService
}

func NewReconcileService(fileRepo repository.FileRepository, statsRepo repository.StatsRepository, derivation *DerivationService) *ReconcileService {
	return &ReconcileService{
		fileRepo:   fileRepo,
		statsRepo:  statsRepo,
		derivation: derivation,
	}
}

// SweepThumbnails finds image/video files without a thumbnail and processes
// them sequentially. Per-file failures are logged and counted, never abort
// the sweep.
func (s *ReconcileService) SweepThumbnails() error {
	files, err := s.fileRepo.MissingThumbnail()
	if err != nil {
		return fmt.Errorf("failed to query files missing thumbnails: %w", err)
	}

	if len(files) == 0 {
		return nil
	}

	var generated, failed int
	for _, file := range files {
		start := time.Now()

		err := s.derivation.ProcessFile(file)
		if err != nil {
			failed++
			metrics.SweepProcessed.WithLabelValues("error").Inc()
			slog.Error("thumbnail sweep: file failed",
				"file_id", file.ID,
				"mime_type", file.MimeType,
				"duration_ms", time.Since(start).Milliseconds(),
				"error", err,
			)
			continue
		}

		generated++
		metrics.SweepProcessed.WithLabelValues("ok").Inc()
		slog.Debug("thumbnail sweep: file processed",
			"file_id", file.ID,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}

	slog.Info("thumbnail sweep finished", "candidates", len(files), "generated", generated, "failed", failed)
	return nil
}

// RefreshStats recomputes per-user aggregates (file counts, storage bytes,
// views).
func (s *ReconcileService) RefreshStats() error {
	err := s.statsRepo.Refresh(time.Now())
	if err != nil {
		return fmt.Errorf("failed to refresh user stats: %w", err)
	}
	return nil
}

// UserStats returns the last persisted aggregates for a user.
func (s *ReconcileService) UserStats(userID string) (*model.UserStats, error) {
	return s.statsRepo.ByUserID(userID)
}
