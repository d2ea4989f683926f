package entrypoint

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/booklog/internal/config"
	"github.com/mrlokans/booklog/internal/entities"
	"github.com/mrlokans/booklog/internal/tasks"
)

// testConfig points the store environment variables at a fresh directory.
func testConfig(t *testing.T) *config.Config {
	setStorePaths(t, t.TempDir())
	return config.NewConfig()
}

func setStorePaths(t *testing.T, dir string) {
	t.Setenv("CALIBRE_DB_PATH", filepath.Join(dir, "calibre", "metadata.db"))
	t.Setenv("TALEBOOK_DB_PATH", filepath.Join(dir, "talebook", "calibre-webserver.db"))
}

func TestOpenService_CreatesStores(t *testing.T) {
	cfg := testConfig(t)

	svc, err := OpenService(context.Background(), cfg, true)
	require.NoError(t, err)
	defer svc.Close()

	availability := svc.Availability()
	assert.True(t, availability.Calibre)
	assert.True(t, availability.Talebook)

	_, err = os.Stat(cfg.Database.CalibrePath)
	assert.NoError(t, err)
	_, err = os.Stat(cfg.Database.TalebookPath)
	assert.NoError(t, err)
}

func TestOpenService_MissingFilesAreUnavailable(t *testing.T) {
	cfg := testConfig(t)

	svc, err := OpenService(context.Background(), cfg, false)
	require.NoError(t, err)
	defer svc.Close()

	availability := svc.Availability()
	assert.False(t, availability.Calibre)
	assert.False(t, availability.Talebook)
}

func TestInlineSyncer(t *testing.T) {
	ctx := context.Background()
	svc, err := OpenService(ctx, testConfig(t), true)
	require.NoError(t, err)
	defer svc.Close()

	_, err = svc.AddBook(ctx, entities.BookInput{Title: "Dune", Author: "Frank Herbert"})
	require.NoError(t, err)

	require.NoError(t, inlineSyncer{service: svc}.RequestItemsSync(ctx))

	report, err := svc.IntegrityReport(ctx)
	require.NoError(t, err)
	assert.True(t, report.Clean())
}

func TestInlineSyncer_ClosedService(t *testing.T) {
	svc, err := OpenService(context.Background(), testConfig(t), true)
	require.NoError(t, err)
	require.NoError(t, svc.Close())

	assert.Error(t, inlineSyncer{service: svc}.RequestItemsSync(context.Background(), 1))
}

func TestOpenService_ReconnectFollowsEnvironment(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	svc, err := OpenService(ctx, cfg, false)
	require.NoError(t, err)
	defer svc.Close()
	require.False(t, svc.Availability().Calibre)

	// Create both stores somewhere else and point the environment at them.
	setStorePaths(t, t.TempDir())
	creator, err := OpenService(ctx, config.NewConfig(), true)
	require.NoError(t, err)
	require.NoError(t, creator.Close())

	require.NoError(t, svc.Reconnect(ctx))

	availability := svc.Availability()
	assert.True(t, availability.Calibre)
	assert.True(t, availability.Talebook)
}

func TestRun_InvalidScheduleFailsBeforeStarting(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.InitSchema = true
	cfg.Tasks.Enabled = true
	cfg.Integrity.Enabled = true
	cfg.Integrity.Schedule = "every night"

	err := Run(cfg, "test")

	assert.ErrorContains(t, err, "invalid integrity schedule")
	_, statErr := os.Stat(tasks.TasksDBPath(cfg.Database.TalebookPath))
	assert.True(t, os.IsNotExist(statErr), "task queue must not be created")
}
