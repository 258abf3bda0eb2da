package repository

import (
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/pxldrop/pxldrop/internal/db"
	"github.com/pxldrop/pxldrop/internal/model"
)

// setupDB opens an in-memory database and applies the real migrations. A single
// connection keeps :memory: from resetting and keeps the FK pragma effective.
func setupDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	database.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = database.Close() })

	require.NoError(t, db.RunMigrations(database.DB, "sqlite"))

	_, err = database.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)

	return database
}

func testFile(id, userID, mimeType string) *model.File {
	return &model.File{
		ID:           id,
		UserID:       userID,
		OriginalName: "original-" + id,
		Extension:    "png",
		MimeType:     mimeType,
		Size:         1234,
		DeleteKey:    "key-" + id,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestFileCreateAndByID(t *testing.T) {
	database := setupDB(t)
	repo := NewFileRepository(database)

	file := testFile("abc123", "u1", "image/png")
	require.NoError(t, repo.Create(file))

	got, err := repo.ByID("abc123")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "original-abc123", got.OriginalName)
	assert.Equal(t, "image/png", got.MimeType)
	assert.Equal(t, int64(1234), got.Size)
	assert.Equal(t, "key-abc123", got.DeleteKey)
	assert.False(t, got.HasThumbnail)
	assert.False(t, got.Favorite)
	assert.Zero(t, got.Views)
}

func TestFileByIDNotFound(t *testing.T) {
	database := setupDB(t)
	repo := NewFileRepository(database)

	_, err := repo.ByID("missing")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestFileHasThumbnailFollowsJoin(t *testing.T) {
	database := setupDB(t)
	fileRepo := NewFileRepository(database)
	thumbRepo := NewThumbnailRepository(database)

	require.NoError(t, fileRepo.Create(testFile("abc123", "u1", "image/png")))

	got, err := fileRepo.ByID("abc123")
	require.NoError(t, err)
	assert.False(t, got.HasThumbnail)

	require.NoError(t, thumbRepo.Upsert(&model.Thumbnail{
		FileID: "abc123", UserID: "u1", Extension: "jpg", Size: 100, CreatedAt: time.Now().UTC(),
	}))

	got, err = fileRepo.ByID("abc123")
	require.NoError(t, err)
	assert.True(t, got.HasThumbnail)
}

func TestFileAllUserFilesNewestFirst(t *testing.T) {
	database := setupDB(t)
	repo := NewFileRepository(database)

	older := testFile("old1", "u1", "image/png")
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := testFile("new1", "u1", "image/png")
	other := testFile("xyz", "u2", "image/png")

	require.NoError(t, repo.Create(older))
	require.NoError(t, repo.Create(newer))
	require.NoError(t, repo.Create(other))

	files, err := repo.AllUserFiles("u1")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "new1", files[0].ID)
	assert.Equal(t, "old1", files[1].ID)
}

func TestFileMissingThumbnail(t *testing.T) {
	database := setupDB(t)
	fileRepo := NewFileRepository(database)
	thumbRepo := NewThumbnailRepository(database)

	img := testFile("img1", "u1", "image/png")
	img.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	vid := testFile("vid1", "u1", "video/mp4")
	vid.CreatedAt = time.Now().UTC().Add(-time.Hour)
	txt := testFile("txt1", "u1", "text/plain")
	done := testFile("done1", "u1", "image/jpeg")

	for _, f := range []*model.File{img, vid, txt, done} {
		require.NoError(t, fileRepo.Create(f))
	}
	require.NoError(t, thumbRepo.Upsert(&model.Thumbnail{
		FileID: "done1", UserID: "u1", Extension: "jpg", Size: 50, CreatedAt: time.Now().UTC(),
	}))

	files, err := fileRepo.MissingThumbnail()
	require.NoError(t, err)

	// Only previewable files without a thumbnail row, oldest first.
	require.Len(t, files, 2)
	assert.Equal(t, "img1", files[0].ID)
	assert.Equal(t, "vid1", files[1].ID)
}

func TestFileRenameCascadesThumbnailRow(t *testing.T) {
	database := setupDB(t)
	fileRepo := NewFileRepository(database)
	thumbRepo := NewThumbnailRepository(database)

	require.NoError(t, fileRepo.Create(testFile("oldid", "u1", "image/png")))
	require.NoError(t, thumbRepo.Upsert(&model.Thumbnail{
		FileID: "oldid", UserID: "u1", Extension: "jpg", Size: 100, CreatedAt: time.Now().UTC(),
	}))

	require.NoError(t, fileRepo.Rename("oldid", "newid"))

	_, err := fileRepo.ByID("oldid")
	assert.ErrorIs(t, err, ErrFileNotFound)

	got, err := fileRepo.ByID("newid")
	require.NoError(t, err)
	assert.True(t, got.HasThumbnail)

	thumb, err := thumbRepo.ByFileID("newid")
	require.NoError(t, err)
	assert.Equal(t, "newid", thumb.FileID)
}

func TestFileRenameNotFound(t *testing.T) {
	database := setupDB(t)
	repo := NewFileRepository(database)

	err := repo.Rename("missing", "anything")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestFileIncrementViews(t *testing.T) {
	database := setupDB(t)
	repo := NewFileRepository(database)

	require.NoError(t, repo.Create(testFile("abc123", "u1", "image/png")))
	require.NoError(t, repo.IncrementViews("abc123"))
	require.NoError(t, repo.IncrementViews("abc123"))

	got, err := repo.ByID("abc123")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Views)
}

func TestFileSetFavorite(t *testing.T) {
	database := setupDB(t)
	repo := NewFileRepository(database)

	require.NoError(t, repo.Create(testFile("abc123", "u1", "image/png")))
	require.NoError(t, repo.SetFavorite("abc123", true))

	got, err := repo.ByID("abc123")
	require.NoError(t, err)
	assert.True(t, got.Favorite)

	require.NoError(t, repo.SetFavorite("abc123", false))
	got, err = repo.ByID("abc123")
	require.NoError(t, err)
	assert.False(t, got.Favorite)
}

func TestFileDeleteCascadesThumbnailRow(t *testing.T) {
	database := setupDB(t)
	fileRepo := NewFileRepository(database)
	thumbRepo := NewThumbnailRepository(database)

	require.NoError(t, fileRepo.Create(testFile("abc123", "u1", "image/png")))
	require.NoError(t, thumbRepo.Upsert(&model.Thumbnail{
		FileID: "abc123", UserID: "u1", Extension: "jpg", Size: 100, CreatedAt: time.Now().UTC(),
	}))

	require.NoError(t, fileRepo.Delete("abc123"))

	_, err := fileRepo.ByID("abc123")
	assert.ErrorIs(t, err, ErrFileNotFound)

	_, err = thumbRepo.ByFileID("abc123")
	assert.ErrorIs(t, err, ErrThumbnailNotFound)
}
