package service

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pxldrop/pxldrop/internal/model"
	"github.com/pxldrop/pxldrop/internal/repository"
	"github.com/pxldrop/pxldrop/internal/storage"
)

// memStorage is an in-memory storage.Storage with switchable failure points.
type memStorage struct {
	mu    sync.Mutex
	blobs map[string][]byte

	failSavePrefix   string // Save fails for paths with this prefix
	failRenamePrefix string // Rename fails for destination paths with this prefix
}

func newMemStorage() *memStorage {
	return &memStorage{blobs: make(map[string][]byte)}
}

func (m *memStorage) Save(path string, r io.Reader, size int64) error {
	if m.failSavePrefix != "" && strings.Contains(path, m.failSavePrefix) {
		return fmt.Errorf("disk full")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[path] = data
	return nil
}

func (m *memStorage) ReadAll(path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[path]
	if !ok {
		return nil, storage.ErrNotExist
	}
	return data, nil
}

func (m *memStorage) Open(path string) (io.ReadCloser, error) {
	data, err := m.ReadAll(path)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStorage) OpenRange(path string, start, end int64) (io.ReadCloser, error) {
	data, err := m.ReadAll(path)
	if err != nil {
		return nil, err
	}
	if end >= int64(len(data)) {
		end = int64(len(data)) - 1
	}
	return io.NopCloser(bytes.NewReader(data[start : end+1])), nil
}

func (m *memStorage) Delete(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, path)
	return nil
}

func (m *memStorage) Rename(oldPath, newPath string) error {
	if m.failRenamePrefix != "" && strings.Contains(newPath, m.failRenamePrefix) {
		return fmt.Errorf("rename refused")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[oldPath]
	if !ok {
		return storage.ErrNotExist
	}
	delete(m.blobs, oldPath)
	m.blobs[newPath] = data
	return nil
}

func (m *memStorage) has(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[path]
	return ok
}

func (m *memStorage) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

// stubThumbRepo keeps thumbnail rows in a map keyed by file id.
type stubThumbRepo struct {
	mu     sync.Mutex
	thumbs map[string]*model.Thumbnail
}

func newStubThumbRepo() *stubThumbRepo {
	return &stubThumbRepo{thumbs: make(map[string]*model.Thumbnail)}
}

func (s *stubThumbRepo) Upsert(thumb *model.Thumbnail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thumbs[thumb.FileID] = thumb
	return nil
}

func (s *stubThumbRepo) ByFileID(fileID string) (*model.Thumbnail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	thumb, ok := s.thumbs[fileID]
	if !ok {
		return nil, repository.ErrThumbnailNotFound
	}
	return thumb, nil
}

func (s *stubThumbRepo) Exists(fileID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.thumbs[fileID]
	return ok, nil
}

func (s *stubThumbRepo) Delete(fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.thumbs, fileID)
	return nil
}

// stubFileRepo keeps file rows in insertion order and mimics the FK cascades
// of the real schema against its paired thumbnail repo.
type stubFileRepo struct {
	mu     sync.Mutex
	files  map[string]*model.File
	order  []string
	thumbs *stubThumbRepo

	collideFirst int   // pretend this many generated ids already exist
	renameErr    error // forced failure for Rename
}

func newStubFileRepo(thumbs *stubThumbRepo) *stubFileRepo {
	return &stubFileRepo{files: make(map[string]*model.File), thumbs: thumbs}
}

func (s *stubFileRepo) Create(file *model.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[file.ID]; ok {
		return fmt.Errorf("duplicate id %q", file.ID)
	}
	cp := *file
	s.files[file.ID] = &cp
	s.order = append(s.order, file.ID)
	return nil
}

func (s *stubFileRepo) ByID(id string) (*model.File, error) {
	s.mu.Lock()
	if s.collideFirst > 0 {
		s.collideFirst--
		s.mu.Unlock()
		return &model.File{ID: id}, nil
	}
	file, ok := s.files[id]
	s.mu.Unlock()
	if !ok {
		return nil, repository.ErrFileNotFound
	}
	cp := *file
	has, _ := s.thumbs.Exists(id)
	cp.HasThumbnail = has
	return &cp, nil
}

func (s *stubFileRepo) AllUserFiles(userID string) ([]*model.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.File
	for _, id := range s.order {
		if s.files[id].UserID == userID {
			cp := *s.files[id]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *stubFileRepo) MissingThumbnail() ([]*model.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.File
	for _, id := range s.order {
		file := s.files[id]
		if !file.Previewable() {
			continue
		}
		has, _ := s.thumbs.Exists(id)
		if has {
			continue
		}
		cp := *file
		out = append(out, &cp)
	}
	return out, nil
}

func (s *stubFileRepo) Rename(oldID, newID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.renameErr != nil {
		return s.renameErr
	}
	file, ok := s.files[oldID]
	if !ok {
		return repository.ErrFileNotFound
	}
	delete(s.files, oldID)
	file.ID = newID
	s.files[newID] = file
	for i, id := range s.order {
		if id == oldID {
			s.order[i] = newID
		}
	}
	if thumb, err := s.thumbs.ByFileID(oldID); err == nil {
		_ = s.thumbs.Delete(oldID)
		thumb.FileID = newID
		_ = s.thumbs.Upsert(thumb)
	}
	return nil
}

func (s *stubFileRepo) IncrementViews(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if file, ok := s.files[id]; ok {
		file.Views++
	}
	return nil
}

func (s *stubFileRepo) SetFavorite(id string, favorite bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if file, ok := s.files[id]; ok {
		file.Favorite = favorite
	}
	return nil
}

func (s *stubFileRepo) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return s.thumbs.Delete(id)
}

// stubStatsRepo records Refresh calls.
type stubStatsRepo struct {
	refreshed int
	stats     map[string]*model.UserStats
}

func newStubStatsRepo() *stubStatsRepo {
	return &stubStatsRepo{stats: make(map[string]*model.UserStats)}
}

func (s *stubStatsRepo) Refresh(now time.Time) error {
	s.refreshed++
	return nil
}

func (s *stubStatsRepo) ByUserID(userID string) (*model.UserStats, error) {
	stats, ok := s.stats[userID]
	if !ok {
		return nil, repository.ErrStatsNotFound
	}
	return stats, nil
}

// pngBytes encodes a solid-color PNG of the given dimensions.
func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 80, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
