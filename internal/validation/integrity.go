package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mrlokans/booklog/internal/database"
	"github.com/mrlokans/booklog/internal/database/talebook"
)

// BookIDSource lists every bibliographic book id.
type BookIDSource interface {
	AllIDs(ctx context.Context) ([]int64, error)
}

// IntegrityReport lists cross-store inconsistencies.
type IntegrityReport struct {
	CheckedAt    time.Time          `json:"checked_at"`
	BookCount    int                `json:"book_count"`
	Orphans      map[string][]int64 `json:"orphans"`
	MissingItems []int64            `json:"missing_items"`
}

// Clean reports whether no inconsistency was found.
func (r *IntegrityReport) Clean() bool {
	return len(r.Orphans) == 0 && len(r.MissingItems) == 0
}

// IntegrityChecker compares bibliographic ids with the extension tables.
// Extension book ids are not engine-enforced, so this is the only check.
type IntegrityChecker struct {
	books    BookIDSource
	talebook *database.BaseRepository
}

func NewIntegrityChecker(books BookIDSource, talebookBase *database.BaseRepository) *IntegrityChecker {
	return &IntegrityChecker{books: books, talebook: talebookBase}
}

// Check reports extension rows whose book is gone and books without an items row.
func (c *IntegrityChecker) Check(ctx context.Context) (*IntegrityReport, error) {
	if c.books == nil || c.talebook == nil {
		return nil, database.ErrStoreUnavailable
	}

	ids, err := c.books.AllIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list book ids: %w", err)
	}
	known := make(map[int64]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}

	report := &IntegrityReport{
		CheckedAt:    time.Now().UTC(),
		BookCount:    len(ids),
		Orphans:      map[string][]int64{},
		MissingItems: []int64{},
	}

	var itemIDs map[int64]bool
	for _, table := range talebook.BookTables {
		var bookIDs []int64
		query := fmt.Sprintf("SELECT DISTINCT book_id FROM %s ORDER BY book_id", table)
		if err := c.talebook.QueryAll(ctx, &bookIDs, query); err != nil {
			return nil, fmt.Errorf("list %s book ids: %w", table, err)
		}
		for _, id := range bookIDs {
			if !known[id] {
				report.Orphans[table] = append(report.Orphans[table], id)
			}
		}
		if table == "items" {
			itemIDs = make(map[int64]bool, len(bookIDs))
			for _, id := range bookIDs {
				itemIDs[id] = true
			}
		}
	}

	for _, id := range ids {
		if !itemIDs[id] {
			report.MissingItems = append(report.MissingItems, id)
		}
	}

	event := log.Info()
	if !report.Clean() {
		event = log.Warn()
	}
	event.Int("books", report.BookCount).
		Int("orphan_tables", len(report.Orphans)).
		Int("missing_items", len(report.MissingItems)).
		Msg("integrity check finished")
	return report, nil
}
