package database

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Store names one of the two SQLite files.
type Store string

const (
	StoreCalibre  Store = "calibre"
	StoreTalebook Store = "talebook"
)

// Statement kinds used as metric labels.
const (
	KindQuery  = "query"
	KindExec   = "exec"
	KindInsert = "insert"
	KindUpdate = "update"
	KindDelete = "delete"
)

// Table is a static column whitelist for one entity. Record keys are checked
// against it before any INSERT or UPDATE is built, so column identifiers
// never come from request data.
type Table struct {
	Name    string
	Columns []string
}

// Has reports whether column is part of the whitelist.
func (t Table) Has(column string) bool {
	for _, c := range t.Columns {
		if c == column {
			return true
		}
	}
	return false
}

func (t Table) columnsOf(rec Record) ([]string, error) {
	cols := make([]string, 0, len(rec))
	for col := range rec {
		if !t.Has(col) {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, t.Name, col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols, nil
}

// Record maps whitelisted column names to values.
type Record map[string]any

// ColumnInfo mirrors one row of PRAGMA table_info.
type ColumnInfo struct {
	CID          int     `gorm:"column:cid"`
	Name         string  `gorm:"column:name"`
	Type         string  `gorm:"column:type"`
	NotNull      int     `gorm:"column:notnull"`
	DefaultValue *string `gorm:"column:dflt_value"`
	PK           int     `gorm:"column:pk"`
}

// ForeignKeyInfo mirrors one row of PRAGMA foreign_key_list.
type ForeignKeyInfo struct {
	ID       int    `gorm:"column:id"`
	Seq      int    `gorm:"column:seq"`
	Table    string `gorm:"column:table"`
	From     string `gorm:"column:from"`
	To       string `gorm:"column:to"`
	OnUpdate string `gorm:"column:on_update"`
	OnDelete string `gorm:"column:on_delete"`
}

// BaseRepository is the statement helper shared by every repository. It
// counts and logs every statement it issues.
type BaseRepository struct {
	db      *gorm.DB
	store   Store
	metrics *Metrics
}

// NewBaseRepository wraps db for the given store. metrics may be nil.
func NewBaseRepository(db *gorm.DB, store Store, metrics *Metrics) *BaseRepository {
	return &BaseRepository{db: db, store: store, metrics: metrics}
}

// DB returns the underlying gorm handle.
func (r *BaseRepository) DB() *gorm.DB {
	return r.db
}

// Store returns the store this repository talks to.
func (r *BaseRepository) Store() Store {
	return r.store
}

func (r *BaseRepository) done(kind, query string, err error) error {
	r.metrics.observe(r.store, kind, err)
	if err != nil {
		log.Error().Err(err).Str("store", string(r.store)).Str("kind", kind).Str("query", compact(query)).Msg("statement failed")
	}
	return err
}

// QueryOne scans the first row of query into dest and reports whether a row was found.
func (r *BaseRepository) QueryOne(ctx context.Context, dest any, query string, args ...any) (bool, error) {
	res := r.db.WithContext(ctx).Raw(query, args...).Scan(dest)
	if err := r.done(KindQuery, query, res.Error); err != nil {
		return false, err
	}
	return res.RowsAffected > 0, nil
}

// QueryAll scans every row of query into dest, which must point to a slice.
func (r *BaseRepository) QueryAll(ctx context.Context, dest any, query string, args ...any) error {
	res := r.db.WithContext(ctx).Raw(query, args...).Scan(dest)
	return r.done(KindQuery, query, res.Error)
}

// Execute runs a statement that returns no rows and reports the affected row count.
func (r *BaseRepository) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	res := r.db.WithContext(ctx).Exec(query, args...)
	if err := r.done(KindExec, query, res.Error); err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}

// Insert writes rec into table and returns the new rowid.
func (r *BaseRepository) Insert(ctx context.Context, table Table, rec Record) (int64, error) {
	cols, err := table.columnsOf(rec)
	if err != nil {
		return 0, err
	}
	if len(cols) == 0 {
		return 0, fmt.Errorf("insert into %s: empty record", table.Name)
	}

	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		placeholders[i] = "?"
		args[i] = rec[col]
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING rowid",
		table.Name, strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	var id int64
	res := r.db.WithContext(ctx).Raw(query, args...).Scan(&id)
	if err := r.done(KindInsert, query, res.Error); err != nil {
		return 0, err
	}
	return id, nil
}

// Update sets the columns of rec on rows matching where and returns the affected row count.
func (r *BaseRepository) Update(ctx context.Context, table Table, rec Record, where string, args ...any) (int64, error) {
	cols, err := table.columnsOf(rec)
	if err != nil {
		return 0, err
	}
	if len(cols) == 0 {
		return 0, nil
	}

	sets := make([]string, len(cols))
	values := make([]any, 0, len(cols)+len(args))
	for i, col := range cols {
		sets[i] = col + " = ?"
		values = append(values, rec[col])
	}
	values = append(values, args...)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", table.Name, strings.Join(sets, ", "), where)

	res := r.db.WithContext(ctx).Exec(query, values...)
	if err := r.done(KindUpdate, query, res.Error); err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}

// Delete removes rows of table matching where.
func (r *BaseRepository) Delete(ctx context.Context, table Table, where string, args ...any) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", table.Name, where)
	res := r.db.WithContext(ctx).Exec(query, args...)
	if err := r.done(KindDelete, query, res.Error); err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}

// Count returns the number of rows of table matching where; an empty where counts all rows.
func (r *BaseRepository) Count(ctx context.Context, table Table, where string, args ...any) (int64, error) {
	query := "SELECT COUNT(*) FROM " + table.Name
	if where != "" {
		query += " WHERE " + where
	}
	var n int64
	if _, err := r.QueryOne(ctx, &n, query, args...); err != nil {
		return 0, err
	}
	return n, nil
}

// Exists reports whether any row of table matches where.
func (r *BaseRepository) Exists(ctx context.Context, table Table, where string, args ...any) (bool, error) {
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE %s)", table.Name, where)
	var exists bool
	if _, err := r.QueryOne(ctx, &exists, query, args...); err != nil {
		return false, err
	}
	return exists, nil
}

// TableExists reports whether a table of that name exists in the store.
func (r *BaseRepository) TableExists(ctx context.Context, name string) (bool, error) {
	var n int64
	_, err := r.QueryOne(ctx, &n, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// TableInfo returns the column layout of a table. Unknown tables yield no columns.
func (r *BaseRepository) TableInfo(ctx context.Context, name string) ([]ColumnInfo, error) {
	var cols []ColumnInfo
	err := r.QueryAll(ctx, &cols, "SELECT cid, name, type, \"notnull\", dflt_value, pk FROM pragma_table_info(?)", name)
	return cols, err
}

// ForeignKeys returns the foreign keys declared on a table.
func (r *BaseRepository) ForeignKeys(ctx context.Context, name string) ([]ForeignKeyInfo, error) {
	var fks []ForeignKeyInfo
	err := r.QueryAll(ctx, &fks, "SELECT id, seq, \"table\", \"from\", \"to\", on_update, on_delete FROM pragma_foreign_key_list(?)", name)
	return fks, err
}

// Transaction runs fn inside one transaction on this store. The repository
// passed to fn is bound to the transaction; an error from fn rolls it back.
func (r *BaseRepository) Transaction(ctx context.Context, fn func(tx *BaseRepository) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&BaseRepository{db: tx, store: r.store, metrics: r.metrics})
	})
	if err != nil {
		log.Error().Err(err).Str("store", string(r.store)).Msg("transaction rolled back")
	}
	return err
}

func compact(query string) string {
	return strings.Join(strings.Fields(query), " ")
}
