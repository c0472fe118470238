package primitives

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilepath_Join(t *testing.T) {
	base := Filepath("/data")
	result := base.Join("tables", "users.pages")
	assert.Equal(t, filepath.Join("/data", "tables", "users.pages"), result.String())
}

func TestFilepath_BaseAndDir(t *testing.T) {
	path := Filepath("/data/db/table_1.pages")
	assert.Equal(t, "table_1.pages", path.Base())
	assert.Equal(t, filepath.Dir("/data/db/table_1.pages"), path.Dir())
}

func TestFilepath_TableFile(t *testing.T) {
	db := uuid.MustParse("6f1c2c0e-4a43-4d1a-9c55-0d1f6a9b2e11")
	path := Filepath("/data").TableFile(db, 7)
	assert.Equal(t, filepath.Join("/data", db.String(), "table_7.pages"), path.String())
}

func TestFilepath_ExistsRemoveMkdir(t *testing.T) {
	dir := t.TempDir()
	path := Filepath(dir).Join("nested", "file.pages")

	assert.False(t, path.Exists())
	require.NoError(t, path.MkdirAll(0o750))
	require.NoError(t, os.WriteFile(path.String(), []byte("x"), 0o600))
	assert.True(t, path.Exists())

	require.NoError(t, path.Remove())
	assert.False(t, path.Exists())
	require.NoError(t, path.Remove(), "remove is idempotent")
}

func TestFilepath_IsEmpty(t *testing.T) {
	assert.True(t, Filepath("").IsEmpty())
	assert.False(t, Filepath("a").IsEmpty())
}
