package services

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/mrlokans/booklog/internal/database"
	"github.com/mrlokans/booklog/internal/validation"
)

// SyncResult reports an items sync run.
type SyncResult struct {
	Checked int     `json:"checked"`
	Created int     `json:"created"`
	Failed  []int64 `json:"failed"`
}

// SyncItems creates the missing items rows for bookIDs, or for every book
// when bookIDs is empty. Ids unknown to the bibliographic store are skipped.
func (s *DatabaseService) SyncItems(ctx context.Context, bookIDs []int64) (*SyncResult, error) {
	b, err := s.ready()
	if err != nil {
		return nil, err
	}
	if err := requireCalibre(b); err != nil {
		return nil, err
	}
	if err := requireTalebook(b); err != nil {
		return nil, err
	}

	all, err := b.books.AllIDs(ctx)
	if err != nil {
		return nil, err
	}
	ids := all
	if len(bookIDs) > 0 {
		known := make(map[int64]struct{}, len(all))
		for _, id := range all {
			known[id] = struct{}{}
		}
		ids = ids[:0:0]
		for _, id := range bookIDs {
			if _, ok := known[id]; ok {
				ids = append(ids, id)
			}
		}
	}

	result := &SyncResult{Checked: len(ids), Failed: []int64{}}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		created, err := b.ext.Items.EnsureExists(ctx, id)
		if err != nil {
			log.Error().Err(err).Int64("book_id", id).Msg("failed to create items row")
			result.Failed = append(result.Failed, id)
			continue
		}
		if created {
			result.Created++
		}
	}
	log.Info().Int("checked", result.Checked).Int("created", result.Created).Int("failed", len(result.Failed)).Msg("items sync finished")
	return result, nil
}

// SchemaReport checks both stores against the required layout.
func (s *DatabaseService) SchemaReport(ctx context.Context) (*validation.SchemaReport, error) {
	b, err := s.ready()
	if err != nil {
		return nil, err
	}
	return validation.NewSchemaValidator(b.calibreBase, b.talebookBase).Validate(ctx)
}

// IntegrityReport compares the book ids of both stores.
func (s *DatabaseService) IntegrityReport(ctx context.Context) (*validation.IntegrityReport, error) {
	b, err := s.ready()
	if err != nil {
		return nil, err
	}
	if b.books == nil {
		return nil, database.ErrStoreUnavailable
	}
	return validation.NewIntegrityChecker(b.books, b.talebookBase).Check(ctx)
}

// Checkpoint folds both WAL files back into their databases.
func (s *DatabaseService) Checkpoint(ctx context.Context) error {
	b, err := s.ready()
	if err != nil {
		return err
	}
	for _, base := range []*database.BaseRepository{b.calibreBase, b.talebookBase} {
		if base == nil {
			continue
		}
		if _, err := base.Execute(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			return err
		}
	}
	return nil
}
