package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/pxldrop/pxldrop/internal/model"
	"github.com/pxldrop/pxldrop/internal/queue"
	"github.com/pxldrop/pxldrop/internal/service"
	"github.com/pxldrop/pxldrop/internal/storage"
	"github.com/pxldrop/pxldrop/internal/thumbnail"
	"github.com/pxldrop/pxldrop/internal/validation"
)

type UploadHandler struct {
	uploadService *service.UploadService
	queue         *queue.Queue
	appURL        string
	maxUploadSize int64
}

func NewUploadHandler(uploadService *service.UploadService, q *queue.Queue, appURL string, maxUploadSize int64) *UploadHandler {
	return &UploadHandler{
		uploadService: uploadService,
		queue:         q,
		appURL:        appURL,
		maxUploadSize: maxUploadSize,
	}
}

// uploadResponse is the ShareX-compatible upload result.
type uploadResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	DeletionURL  string `json:"deletion_url"`
	MimeType     string `json:"mime_type"`
	Size         int64  `json:"size"`
}

// Upload handles POST /api/upload. The multipart field is named "file";
// identity comes from the X-User-Id header set by the auth layer in front of
// us. "?thumbnail=deferred" switches to the deferred derivation path used by
// bulk imports.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	err = validation.CheckUpload(header.Filename, header.Size, h.maxUploadSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Sniff the leading bytes so uploads with a missing or generic
	// Content-Type still resolve to a real media type. An explicit declared
	// type wins.
	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	mimeType := validation.DetectMime(header.Filename, header.Header.Get("Content-Type"), head[:n])
	body := io.MultiReader(bytes.NewReader(head[:n]), file)

	req := service.UploadRequest{
		UserID:       userID,
		OriginalName: header.Filename,
		MimeType:     mimeType,
		Size:         header.Size,
		Data:         body,
	}

	deferred := r.URL.Query().Get("thumbnail") == "deferred"

	var record *model.File
	if deferred {
		record, err = h.uploadService.UploadDeferred(req)
	} else {
		record, err = h.uploadService.Upload(req)
	}
	if err != nil {
		h.writeUploadError(w, err)
		return
	}

	if deferred && record.Previewable() {
		h.queue.Add(queue.Item{
			ID:        record.ID,
			UserID:    record.UserID,
			Extension: record.Extension,
			MimeType:  record.MimeType,
		})
	}

	resp := uploadResponse{
		ID:          record.ID,
		Name:        record.OriginalName,
		URL:         fmt.Sprintf("%s/f/%s/%s.%s", h.appURL, record.UserID, record.ID, record.Extension),
		DeletionURL: fmt.Sprintf("%s/api/delete/%s?key=%s", h.appURL, record.ID, record.DeleteKey),
		MimeType:    record.MimeType,
		Size:        record.Size,
	}
	if record.HasThumbnail {
		resp.ThumbnailURL = fmt.Sprintf("%s/f/%s/thumbnails/%s.%s", h.appURL, record.UserID, record.ID, storage.ThumbnailExt)
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (h *UploadHandler) writeUploadError(w http.ResponseWriter, err error) {
	var derr *thumbnail.Error
	switch {
	case errors.Is(err, service.ErrMissingExtension):
		writeError(w, http.StatusBadRequest, "file has no determinable extension")
	case errors.As(err, &derr):
		writeError(w, http.StatusUnprocessableEntity, derr.Error())
	case errors.Is(err, service.ErrThumbnailSave), errors.Is(err, service.ErrFileSave):
		slog.Error("upload storage failure", "error", err)
		writeError(w, http.StatusInternalServerError, "storage failure")
	default:
		slog.Error("upload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "upload failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
