package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProjectRootFrom(t *testing.T) {
	assert.Equal(t, filepath.Join("/srv", "booklog"), projectRootFrom(filepath.Join("/srv", "booklog", "server")))
	assert.Equal(t, filepath.Join("/srv", "booklog"), projectRootFrom(filepath.Join("/srv", "booklog")))
}

func TestResolvePaths_ExplicitWins(t *testing.T) {
	t.Setenv("CALIBRE_DB_PATH", "/env/metadata.db")
	t.Setenv("TALEBOOK_DB_PATH", "/env/talebook.db")

	paths := ResolvePaths(Paths{Calibre: "/explicit/metadata.db"})

	assert.Equal(t, "/explicit/metadata.db", paths.Calibre)
	assert.Equal(t, "/env/talebook.db", paths.Talebook)
}

func TestResolvePaths_Defaults(t *testing.T) {
	t.Setenv("CALIBRE_DB_PATH", "")
	t.Setenv("TALEBOOK_DB_PATH", "")

	paths := ResolvePaths(Paths{})

	root := ProjectRoot()
	assert.Equal(t, filepath.Join(root, DefaultCalibreDBPath), paths.Calibre)
	assert.Equal(t, filepath.Join(root, DefaultTalebookDBPath), paths.Talebook)
}

func TestNewConfig_Defaults(t *testing.T) {
	t.Setenv("CALIBRE_DB_PATH", "/library/metadata.db")
	t.Setenv("CALIBRE_LIBRARY_DIR", "")

	cfg := NewConfig()

	assert.Equal(t, int32(8188), cfg.HTTP.Port)
	assert.Equal(t, "/library/metadata.db", cfg.Database.CalibrePath)
	assert.Equal(t, "/library", cfg.Library.Dir)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Log.Console)
	assert.Equal(t, int64(0), cfg.Reading.DefaultReaderID)
	assert.Equal(t, "0 3 * * *", cfg.Integrity.Schedule)
}

func TestNewConfig_TaskQueueSettings(t *testing.T) {
	t.Setenv("TASK_MAX_RETRIES", "3")
	t.Setenv("TASK_RETRY_DELAY", "1m")

	cfg := NewConfig()

	assert.Equal(t, 3, cfg.Tasks.MaxRetries)
	assert.Equal(t, time.Minute, cfg.Tasks.RetryDelay)
	assert.Equal(t, 10*time.Minute, cfg.Tasks.TaskTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Tasks.Retention)
}
