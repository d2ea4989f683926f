// Package talebook provides repositories over the extension database, the
// app-owned SQLite file that stores everything Calibre does not: book type,
// reading state, bookmarks, groups, extra book fields and reading sessions.
//
// Every table is keyed by a bibliographic book id. Those ids are not
// checked by the engine; the validation package reports orphans.
//
// # Usage
//
//	store := talebook.New(database.NewBaseRepository(db, database.StoreTalebook, metrics))
//	state, err := store.ReadingState.Upsert(ctx, bookID, 0, talebook.ReadingStateChange{Favorite: &one})
package talebook

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/mrlokans/booklog/internal/database"
)

// TimeLayout is the format of every timestamp this package writes.
const TimeLayout = time.RFC3339

// Repositories groups the extension repositories over one connection.
type Repositories struct {
	Items        *ItemsRepository
	Bookdata     *BookdataRepository
	Bookmarks    *BookmarksRepository
	ReadingState *ReadingStateRepository
	Groups       *GroupsRepository
	Readers      *ReadersRepository
	Sessions     *SessionsRepository
}

// New builds every extension repository over base.
func New(base *database.BaseRepository) *Repositories {
	return &Repositories{
		Items:        NewItemsRepository(base),
		Bookdata:     NewBookdataRepository(base),
		Bookmarks:    NewBookmarksRepository(base),
		ReadingState: NewReadingStateRepository(base),
		Groups:       NewGroupsRepository(base),
		Readers:      NewReadersRepository(base),
		Sessions:     NewSessionsRepository(base),
	}
}

type clock func() time.Time

func (c clock) stamp() string {
	return c().UTC().Format(TimeLayout)
}

// upsert updates the provided columns of the row matching key, or inserts
// defaults overlaid with key and changes when no row matches. It reports
// whether a row was inserted.
func upsert(ctx context.Context, base *database.BaseRepository, table database.Table, key, changes, defaults database.Record) (bool, error) {
	where, args := keyClause(key)

	var inserted bool
	err := base.Transaction(ctx, func(tx *database.BaseRepository) error {
		exists, err := tx.Exists(ctx, table, where, args...)
		if err != nil {
			return err
		}
		if exists {
			_, err := tx.Update(ctx, table, changes, where, args...)
			return err
		}

		rec := database.Record{}
		for _, src := range []database.Record{defaults, changes, key} {
			for k, v := range src {
				rec[k] = v
			}
		}
		if _, err := tx.Insert(ctx, table, rec); err != nil {
			return err
		}
		inserted = true
		return nil
	})
	return inserted, err
}

func keyClause(key database.Record) (string, []any) {
	cols := make([]string, 0, len(key))
	for col := range key {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	parts := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		parts[i] = col + " = ?"
		args[i] = key[col]
	}
	return strings.Join(parts, " AND "), args
}
