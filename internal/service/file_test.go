package service

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pxldrop/pxldrop/internal/model"
	"github.com/pxldrop/pxldrop/internal/repository"
	"github.com/pxldrop/pxldrop/internal/storage"
)

type fileEnv struct {
	svc     *FileService
	files   *stubFileRepo
	thumbs  *stubThumbRepo
	storage *memStorage
}

func newFileEnv(t *testing.T) *fileEnv {
	t.Helper()
	thumbs := newStubThumbRepo()
	files := newStubFileRepo(thumbs)
	store := newMemStorage()
	return &fileEnv{
		svc:     NewFileService(files, thumbs, store),
		files:   files,
		thumbs:  thumbs,
		storage: store,
	}
}

// seed creates a file row with blobs; withThumb adds the thumbnail row and blob.
func (env *fileEnv) seed(t *testing.T, id string, withThumb bool) {
	t.Helper()
	data := []byte("blob for " + id)
	require.NoError(t, env.files.Create(&model.File{
		ID:        id,
		UserID:    "u1",
		Extension: "png",
		MimeType:  "image/png",
		Size:      int64(len(data)),
		DeleteKey: "secret-" + id,
		CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, env.storage.Save(storage.FilePath("u1", id, "png"), bytes.NewReader(data), int64(len(data))))

	if withThumb {
		thumb := []byte("thumb for " + id)
		require.NoError(t, env.thumbs.Upsert(&model.Thumbnail{
			FileID: id, UserID: "u1", Extension: "jpg", Size: int64(len(thumb)), CreatedAt: time.Now().UTC(),
		}))
		require.NoError(t, env.storage.Save(storage.ThumbnailPath("u1", id), bytes.NewReader(thumb), int64(len(thumb))))
	}
}

func TestFileServiceOpen(t *testing.T) {
	env := newFileEnv(t)
	env.seed(t, "abc123", false)

	file, err := env.svc.ByID("abc123")
	require.NoError(t, err)

	rc, err := env.svc.Open(file)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, []byte("blob for abc123"), data)
}

func TestFileServiceOpenThumbnail(t *testing.T) {
	env := newFileEnv(t)
	env.seed(t, "abc123", true)

	file, err := env.svc.ByID("abc123")
	require.NoError(t, err)
	require.True(t, file.HasThumbnail)

	rc, err := env.svc.OpenThumbnail(file)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, []byte("thumb for abc123"), data)
}

func TestFileServiceDelete(t *testing.T) {
	env := newFileEnv(t)
	env.seed(t, "abc123", true)

	require.NoError(t, env.svc.Delete("abc123", "secret-abc123"))

	assert.False(t, env.storage.has(storage.FilePath("u1", "abc123", "png")))
	assert.False(t, env.storage.has(storage.ThumbnailPath("u1", "abc123")))

	_, err := env.files.ByID("abc123")
	assert.ErrorIs(t, err, repository.ErrFileNotFound)
	_, err = env.thumbs.ByFileID("abc123")
	assert.ErrorIs(t, err, repository.ErrThumbnailNotFound)
}

func TestFileServiceDeleteWrongKey(t *testing.T) {
	env := newFileEnv(t)
	env.seed(t, "abc123", false)

	err := env.svc.Delete("abc123", "wrong")
	assert.ErrorIs(t, err, ErrDeleteKeyMismatch)

	// Nothing was touched.
	assert.True(t, env.storage.has(storage.FilePath("u1", "abc123", "png")))
	_, err = env.files.ByID("abc123")
	require.NoError(t, err)
}

func TestFileServiceDeleteNotFound(t *testing.T) {
	env := newFileEnv(t)

	err := env.svc.Delete("missing", "anything")
	assert.ErrorIs(t, err, repository.ErrFileNotFound)
}

func TestFileServiceRenameMovesBlobsAndRow(t *testing.T) {
	env := newFileEnv(t)
	env.seed(t, "oldid", true)

	require.NoError(t, env.svc.Rename("oldid", "newid"))

	assert.False(t, env.storage.has(storage.FilePath("u1", "oldid", "png")))
	assert.True(t, env.storage.has(storage.FilePath("u1", "newid", "png")))
	assert.False(t, env.storage.has(storage.ThumbnailPath("u1", "oldid")))
	assert.True(t, env.storage.has(storage.ThumbnailPath("u1", "newid")))

	file, err := env.svc.ByID("newid")
	require.NoError(t, err)
	assert.True(t, file.HasThumbnail)
}

func TestFileServiceRenameToTakenID(t *testing.T) {
	env := newFileEnv(t)
	env.seed(t, "one", false)
	env.seed(t, "two", false)

	err := env.svc.Rename("one", "two")
	assert.ErrorIs(t, err, ErrIDTaken)
}

func TestFileServiceRenameSameIDIsNoop(t *testing.T) {
	env := newFileEnv(t)
	env.seed(t, "abc123", false)

	require.NoError(t, env.svc.Rename("abc123", "abc123"))
	assert.True(t, env.storage.has(storage.FilePath("u1", "abc123", "png")))
}

func TestFileServiceRenameRollsBackOnThumbnailFailure(t *testing.T) {
	env := newFileEnv(t)
	env.seed(t, "oldid", true)
	env.storage.failRenamePrefix = "/thumbnails/"

	err := env.svc.Rename("oldid", "newid")
	require.Error(t, err)

	// The original blob was moved back so paths still match the metadata.
	assert.True(t, env.storage.has(storage.FilePath("u1", "oldid", "png")))
	assert.False(t, env.storage.has(storage.FilePath("u1", "newid", "png")))
	assert.True(t, env.storage.has(storage.ThumbnailPath("u1", "oldid")))

	file, err := env.svc.ByID("oldid")
	require.NoError(t, err)
	assert.Equal(t, "oldid", file.ID)
}

func TestFileServiceRenameRollsBackOnRecordFailure(t *testing.T) {
	env := newFileEnv(t)
	env.seed(t, "oldid", true)
	env.files.renameErr = errors.New("database is locked")

	err := env.svc.Rename("oldid", "newid")
	require.Error(t, err)

	// Both blobs were moved back, so the surviving row still resolves to them.
	assert.True(t, env.storage.has(storage.FilePath("u1", "oldid", "png")))
	assert.True(t, env.storage.has(storage.ThumbnailPath("u1", "oldid")))
	assert.False(t, env.storage.has(storage.FilePath("u1", "newid", "png")))
	assert.False(t, env.storage.has(storage.ThumbnailPath("u1", "newid")))

	file, err := env.svc.ByID("oldid")
	require.NoError(t, err)
	assert.True(t, file.HasThumbnail)
}

func TestFileServiceAuthorized(t *testing.T) {
	env := newFileEnv(t)
	env.seed(t, "abc123", false)

	file, err := env.svc.Authorized("abc123", "secret-abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", file.ID)

	_, err = env.svc.Authorized("abc123", "wrong")
	assert.ErrorIs(t, err, ErrDeleteKeyMismatch)

	_, err = env.svc.Authorized("missing", "anything")
	assert.ErrorIs(t, err, repository.ErrFileNotFound)
}

func TestFileServiceRecordViewAndFavorite(t *testing.T) {
	env := newFileEnv(t)
	env.seed(t, "abc123", false)

	require.NoError(t, env.svc.RecordView("abc123"))
	require.NoError(t, env.svc.RecordView("abc123"))
	require.NoError(t, env.svc.SetFavorite("abc123", true))

	file, err := env.svc.ByID("abc123")
	require.NoError(t, err)
	assert.Equal(t, int64(2), file.Views)
	assert.True(t, file.Favorite)
}
