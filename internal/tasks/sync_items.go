package tasks

import (
	"context"
	"fmt"

	"github.com/mikestefanello/backlite"
	"github.com/rs/zerolog/log"

	"github.com/mrlokans/booklog/internal/services"
)

// ItemsSynchronizer creates missing items rows. services.DatabaseService implements it.
type ItemsSynchronizer interface {
	SyncItems(ctx context.Context, bookIDs []int64) (*services.SyncResult, error)
}

// SyncItemsTask creates the items rows of the given books. An empty list
// syncs every book.
type SyncItemsTask struct {
	BookIDs []int64 `json:"book_ids,omitempty"`
}

const syncItemsQueue = "sync_items"

// Config returns the default queue configuration for items sync tasks.
// NewSyncItemsQueue replaces it with the configured settings.
func (t SyncItemsTask) Config() backlite.QueueConfig {
	return DefaultConfig().queueConfig(syncItemsQueue)
}

// SyncItemsProcessor creates a processor function for SyncItemsTask. A run
// with failed ids returns an error so backlite retries it.
func SyncItemsProcessor(syncer ItemsSynchronizer) backlite.QueueProcessor[SyncItemsTask] {
	return func(ctx context.Context, task SyncItemsTask) error {
		if syncer == nil {
			return fmt.Errorf("items synchronizer not configured")
		}

		result, err := syncer.SyncItems(ctx, task.BookIDs)
		if err != nil {
			return fmt.Errorf("sync items: %w", err)
		}
		if len(result.Failed) > 0 {
			return fmt.Errorf("sync items: %d of %d books failed", len(result.Failed), result.Checked)
		}

		log.Info().Int("checked", result.Checked).Int("created", result.Created).Msg("items sync task complete")
		return nil
	}
}

// NewSyncItemsQueue creates a backlite queue for items sync tasks with the
// retry, timeout and retention settings of cfg.
func NewSyncItemsQueue(syncer ItemsSynchronizer, cfg Config) backlite.Queue {
	q := backlite.NewQueue(SyncItemsProcessor(syncer))
	*q.Config() = cfg.queueConfig(syncItemsQueue)
	return q
}

// Enqueuer adds tasks to a queue. *Client implements it through Add.
type Enqueuer interface {
	Enqueue(tasks ...backlite.Task) ([]string, error)
}

// Enqueue adds tasks and saves them in one call.
func (c *Client) Enqueue(tasks ...backlite.Task) ([]string, error) {
	return c.Add(tasks...).Save()
}

// ItemsSyncRequester turns sync requests from the service into queued tasks.
type ItemsSyncRequester struct {
	queue Enqueuer
}

func NewItemsSyncRequester(queue Enqueuer) *ItemsSyncRequester {
	return &ItemsSyncRequester{queue: queue}
}

// RequestItemsSync enqueues one SyncItemsTask for bookIDs.
func (r *ItemsSyncRequester) RequestItemsSync(ctx context.Context, bookIDs ...int64) error {
	ids, err := r.queue.Enqueue(SyncItemsTask{BookIDs: bookIDs})
	if err != nil {
		return fmt.Errorf("enqueue items sync: %w", err)
	}
	log.Info().Strs("task_ids", ids).Ints64("book_ids", bookIDs).Msg("items sync queued")
	return nil
}
