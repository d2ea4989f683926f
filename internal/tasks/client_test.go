package tasks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/booklog/internal/config"
	"github.com/mrlokans/booklog/internal/services"
)

func TestTasksDBPath(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "calibre-webserver-tasks.db"), TasksDBPath(filepath.Join("data", "calibre-webserver.db")))
}

func TestNewClient(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "talebook.db")

	cfg := DefaultConfig()
	cfg.Workers = 1

	client, err := NewClient(dbPath, cfg)
	require.NoError(t, err)
	require.NotNil(t, client)

	_, err = os.Stat(filepath.Join(tmpDir, "talebook-tasks.db"))
	assert.NoError(t, err, "tasks database should be created")

	_, err = os.Stat(dbPath)
	assert.True(t, os.IsNotExist(err), "store file must not be created by the queue")

	assert.NoError(t, client.Close())
}

func TestClientStartStop(t *testing.T) {
	client, err := NewClient(filepath.Join(t.TempDir(), "talebook.db"), DefaultConfig())
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go client.Start(ctx)

	// Give it time to start
	time.Sleep(50 * time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()

	assert.True(t, client.Stop(stopCtx), "stop should succeed gracefully")
}

type fakeSynchronizer struct {
	calls  chan []int64
	result *services.SyncResult
	err    error
}

func (f *fakeSynchronizer) SyncItems(_ context.Context, ids []int64) (*services.SyncResult, error) {
	f.calls <- ids
	return f.result, f.err
}

func TestSyncItemsQueue_ProcessesRequestedIDs(t *testing.T) {
	client, err := NewClient(filepath.Join(t.TempDir(), "talebook.db"), DefaultConfig())
	require.NoError(t, err)
	defer client.Close()

	syncer := &fakeSynchronizer{calls: make(chan []int64, 1), result: &services.SyncResult{Checked: 2, Created: 2}}
	client.Register(NewSyncItemsQueue(syncer, DefaultConfig()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Start(ctx)

	require.NoError(t, NewItemsSyncRequester(client).RequestItemsSync(ctx, 4, 7))

	select {
	case ids := <-syncer.calls:
		assert.Equal(t, []int64{4, 7}, ids)
	case <-time.After(5 * time.Second):
		t.Fatal("sync task was not executed within timeout")
	}
}

func TestSyncItemsProcessor(t *testing.T) {
	tests := []struct {
		name    string
		result  *services.SyncResult
		err     error
		wantErr bool
	}{
		{"all created", &services.SyncResult{Checked: 1, Created: 1}, nil, false},
		{"partial failure retries", &services.SyncResult{Checked: 2, Failed: []int64{9}}, nil, true},
		{"service error", nil, errors.New("store unavailable"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			syncer := &fakeSynchronizer{calls: make(chan []int64, 1), result: tt.result, err: tt.err}
			err := SyncItemsProcessor(syncer)(context.Background(), SyncItemsTask{BookIDs: []int64{1}})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.Error(t, SyncItemsProcessor(nil)(context.Background(), SyncItemsTask{}))
}

type failingQueue struct{}

func (failingQueue) Enqueue(...backlite.Task) ([]string, error) {
	return nil, errors.New("queue closed")
}

func TestItemsSyncRequester_EnqueueError(t *testing.T) {
	err := NewItemsSyncRequester(failingQueue{}).RequestItemsSync(context.Background(), 1)

	assert.ErrorContains(t, err, "queue closed")
}

func TestSyncItemsTaskConfig(t *testing.T) {
	cfg := SyncItemsTask{}.Config()

	assert.Equal(t, "sync_items", cfg.Name)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Backoff)
	assert.NotNil(t, cfg.Retention)
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.Tasks{Workers: 3, ReleaseAfter: time.Minute})

	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, time.Minute, cfg.ReleaseAfter)
	assert.Equal(t, time.Hour, cfg.CleanupInterval)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.RetryDelay)
}

func TestFromConfig_QueueSettings(t *testing.T) {
	cfg := FromConfig(config.Tasks{
		MaxRetries:  2,
		RetryDelay:  time.Second,
		TaskTimeout: time.Minute,
		Retention:   time.Hour,
	})

	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryDelay)
	assert.Equal(t, time.Minute, cfg.TaskTimeout)
	assert.Equal(t, time.Hour, cfg.RetentionDuration)
}

func TestNewSyncItemsQueue_UsesConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRetries = 2
	cfg.RetryDelay = 5 * time.Second
	cfg.TaskTimeout = time.Minute
	cfg.RetentionDuration = 2 * time.Hour

	qc := NewSyncItemsQueue(&fakeSynchronizer{}, cfg).Config()

	assert.Equal(t, "sync_items", qc.Name)
	assert.Equal(t, 2, qc.MaxAttempts)
	assert.Equal(t, 5*time.Second, qc.Backoff)
	assert.Equal(t, time.Minute, qc.Timeout)
	require.NotNil(t, qc.Retention)
	assert.Equal(t, 2*time.Hour, qc.Retention.Duration)

	// The task type keeps the defaults
	assert.Equal(t, 5, SyncItemsTask{}.Config().MaxAttempts)
}
