package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return gdb, mock
}

func TestDocumentRepo_GetByFilePath_Found(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewDocumentRepository(gdb)

	rows := sqlmock.NewRows([]string{"document_id", "title", "file_path", "content_hash"}).
		AddRow(1, "Guide", "guide.md", "abc123")
	mock.ExpectQuery(`SELECT \* FROM "documents" WHERE file_path = \$1`).
		WithArgs("guide.md", 1).
		WillReturnRows(rows)

	doc, err := repo.GetByFilePath(context.Background(), "guide.md")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, uint(1), doc.DocumentID)
	assert.Equal(t, "abc123", doc.ContentHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepo_GetByFilePath_NotFoundReturnsNil(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewDocumentRepository(gdb)

	mock.ExpectQuery(`SELECT \* FROM "documents" WHERE file_path = \$1`).
		WithArgs("missing.md", 1).
		WillReturnRows(sqlmock.NewRows([]string{"document_id"}))

	doc, err := repo.GetByFilePath(context.Background(), "missing.md")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestDocumentRepo_CountSections(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewDocumentRepository(gdb)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "document_sections"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	count, err := repo.CountSections(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), count)
}

func TestDocumentRepo_DeleteByFilePath_Missing(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewDocumentRepository(gdb)

	mock.ExpectQuery(`SELECT \* FROM "documents" WHERE file_path = \$1`).
		WithArgs("gone.md", 1).
		WillReturnRows(sqlmock.NewRows([]string{"document_id"}))

	id, err := repo.DeleteByFilePath(context.Background(), "gone.md")
	require.NoError(t, err)
	assert.Equal(t, uint(0), id)
}
