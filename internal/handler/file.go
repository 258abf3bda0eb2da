package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/pxldrop/pxldrop/internal/model"
	"github.com/pxldrop/pxldrop/internal/repository"
	"github.com/pxldrop/pxldrop/internal/service"
	"github.com/pxldrop/pxldrop/internal/storage"
)

type FileHandler struct {
	fileService *service.FileService
}

func NewFileHandler(fileService *service.FileService) *FileHandler {
	return &FileHandler{fileService: fileService}
}

// Serve handles GET /f/{user}/{name}, streaming the original blob. Video
// requests honor single byte ranges; non-bot views bump the view counter.
func (h *FileHandler) Serve(w http.ResponseWriter, r *http.Request) {
	file, ok := h.lookup(w, r, false)
	if !ok {
		return
	}

	if !isBot(r.UserAgent()) {
		err := h.fileService.RecordView(file.ID)
		if err != nil {
			slog.Error("failed to record view", "file_id", file.ID, "error", err)
		}
	}

	w.Header().Set("Content-Type", file.MimeType)
	w.Header().Set("Accept-Ranges", "bytes")

	rangeHeader := r.Header.Get("Range")
	if rangeHeader != "" && strings.HasPrefix(file.MimeType, "video/") {
		h.serveRange(w, file, rangeHeader)
		return
	}

	body, err := h.fileService.Open(file)
	if err != nil {
		h.writeBlobError(w, file.ID, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	_, err = io.Copy(w, body)
	if err != nil {
		slog.Debug("file stream aborted", "file_id", file.ID, "error", err)
	}
}

func (h *FileHandler) serveRange(w http.ResponseWriter, file *model.File, rangeHeader string) {
	start, end, err := parseRange(rangeHeader, file.Size)
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", file.Size))
		writeError(w, http.StatusRequestedRangeNotSatisfiable, err.Error())
		return
	}

	body, err := h.fileService.OpenRange(file, start, end)
	if err != nil {
		h.writeBlobError(w, file.ID, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, file.Size))
	w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
	w.WriteHeader(http.StatusPartialContent)
	_, err = io.Copy(w, body)
	if err != nil {
		slog.Debug("range stream aborted", "file_id", file.ID, "error", err)
	}
}

// Thumbnail handles GET /f/{user}/thumbnails/{name}. Thumbnails are always
// the engine's fixed output codec.
func (h *FileHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	file, ok := h.lookup(w, r, true)
	if !ok {
		return
	}

	if !file.HasThumbnail {
		writeError(w, http.StatusNotFound, "no thumbnail")
		return
	}

	body, err := h.fileService.OpenThumbnail(file)
	if err != nil {
		h.writeBlobError(w, file.ID, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	_, err = io.Copy(w, body)
	if err != nil {
		slog.Debug("thumbnail stream aborted", "file_id", file.ID, "error", err)
	}
}

// Delete handles GET /api/delete/{id}?key=..., the link embedded in the
// ShareX upload response.
func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	key := r.URL.Query().Get("key")

	err := h.fileService.Delete(id, key)
	switch {
	case errors.Is(err, repository.ErrFileNotFound):
		writeError(w, http.StatusNotFound, "file not found")
	case errors.Is(err, service.ErrDeleteKeyMismatch):
		writeError(w, http.StatusForbidden, "invalid delete key")
	case err != nil:
		slog.Error("failed to delete file", "file_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "delete failed")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// Rename handles POST /api/rename/{id}?key=...&to=..., authorized by the
// delete key.
func (h *FileHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	key := r.URL.Query().Get("key")
	newID := r.URL.Query().Get("to")

	if newID == "" {
		writeError(w, http.StatusBadRequest, "missing new id")
		return
	}

	_, err := h.fileService.Authorized(id, key)
	switch {
	case errors.Is(err, repository.ErrFileNotFound):
		writeError(w, http.StatusNotFound, "file not found")
		return
	case errors.Is(err, service.ErrDeleteKeyMismatch):
		writeError(w, http.StatusForbidden, "invalid delete key")
		return
	case err != nil:
		slog.Error("failed to load file", "file_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "rename failed")
		return
	}

	err = h.fileService.Rename(id, newID)
	switch {
	case errors.Is(err, service.ErrIDTaken):
		writeError(w, http.StatusConflict, "id already taken")
	case err != nil:
		slog.Error("failed to rename file", "file_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "rename failed")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"id": newID})
	}
}

// Favorite handles POST /api/favorite/{id}?key=...&value=true.
func (h *FileHandler) Favorite(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	key := r.URL.Query().Get("key")
	value := r.URL.Query().Get("value") == "true"

	_, err := h.fileService.Authorized(id, key)
	switch {
	case errors.Is(err, repository.ErrFileNotFound):
		writeError(w, http.StatusNotFound, "file not found")
		return
	case errors.Is(err, service.ErrDeleteKeyMismatch):
		writeError(w, http.StatusForbidden, "invalid delete key")
		return
	case err != nil:
		slog.Error("failed to load file", "file_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "favorite failed")
		return
	}

	err = h.fileService.SetFavorite(id, value)
	if err != nil {
		slog.Error("failed to set favorite", "file_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "favorite failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"favorite": value})
}

// fileInfo is the listing projection; the delete key never leaves the server
// through this endpoint.
type fileInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Extension    string `json:"extension"`
	MimeType     string `json:"mime_type"`
	Size         int64  `json:"size"`
	Views        int64  `json:"views"`
	Favorite     bool   `json:"favorite"`
	HasThumbnail bool   `json:"has_thumbnail"`
}

// List handles GET /api/users/{user}/files. Identity must match the path:
// the auth layer in front of us vouches for X-User-Id.
func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")
	if r.Header.Get("X-User-Id") != userID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	files, err := h.fileService.AllUserFiles(userID)
	if err != nil {
		slog.Error("failed to list files", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "listing failed")
		return
	}

	infos := make([]fileInfo, 0, len(files))
	for _, f := range files {
		infos = append(infos, fileInfo{
			ID:           f.ID,
			Name:         f.OriginalName,
			Extension:    f.Extension,
			MimeType:     f.MimeType,
			Size:         f.Size,
			Views:        f.Views,
			Favorite:     f.Favorite,
			HasThumbnail: f.HasThumbnail,
		})
	}
	writeJSON(w, http.StatusOK, infos)
}

// lookup resolves {user}/{name} to a file record, checking that the path's
// owner and extension match the row. Thumbnail paths always carry the engine's
// fixed output extension instead of the original's.
func (h *FileHandler) lookup(w http.ResponseWriter, r *http.Request, thumb bool) (*model.File, bool) {
	userID := r.PathValue("user")
	name := r.PathValue("name")

	dot := strings.LastIndexByte(name, '.')
	if dot <= 0 {
		writeError(w, http.StatusNotFound, "file not found")
		return nil, false
	}
	id := name[:dot]
	ext := name[dot+1:]

	file, err := h.fileService.ByID(id)
	if errors.Is(err, repository.ErrFileNotFound) {
		writeError(w, http.StatusNotFound, "file not found")
		return nil, false
	}
	if err != nil {
		slog.Error("failed to load file", "file_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return nil, false
	}
	if file.UserID != userID {
		writeError(w, http.StatusNotFound, "file not found")
		return nil, false
	}

	want := file.Extension
	if thumb {
		want = storage.ThumbnailExt
	}
	if !strings.EqualFold(ext, want) {
		writeError(w, http.StatusNotFound, "file not found")
		return nil, false
	}

	return file, true
}

func (h *FileHandler) writeBlobError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, storage.ErrNotExist) {
		writeError(w, http.StatusNotFound, "blob not found")
		return
	}
	slog.Error("failed to open blob", "file_id", id, "error", err)
	writeError(w, http.StatusInternalServerError, "storage failure")
}

// parseRange handles a single "bytes=start-end" range; an open end means
// through the last byte.
func parseRange(header string, size int64) (int64, int64, error) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return 0, 0, fmt.Errorf("unsupported range")
	}

	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return 0, 0, fmt.Errorf("malformed range")
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 || start >= size {
		return 0, 0, fmt.Errorf("invalid range start")
	}

	end := size - 1
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < start {
			return 0, 0, fmt.Errorf("invalid range end")
		}
		if end >= size {
			end = size - 1
		}
	}

	return start, end, nil
}

// botAgents are link-preview crawlers whose fetches should not count as views.
var botAgents = []string{"bot", "discord", "slack", "whatsapp", "telegram", "facebookexternalhit", "preview"}

func isBot(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, b := range botAgents {
		if strings.Contains(ua, b) {
			return true
		}
	}
	return false
}
