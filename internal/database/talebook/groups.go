package talebook

import (
	"context"
	"fmt"
	"time"

	"github.com/mrlokans/booklog/internal/database"
)

var (
	groupsTable     = database.Table{Name: "qc_groups", Columns: []string{"name", "description", "created_at"}}
	bookGroupsTable = database.Table{Name: "qc_book_groups", Columns: []string{"book_id", "group_id", "created_at"}}
)

// Group is a named collection of books.
type Group struct {
	ID          int64   `gorm:"column:id" json:"id"`
	Name        string  `gorm:"column:name" json:"name"`
	Description string  `gorm:"column:description" json:"description"`
	CreatedAt   *string `gorm:"column:created_at" json:"created_at"`
	BookCount   int64   `gorm:"column:book_count" json:"book_count"`
}

// BookGroup is one membership row joined with its group name.
type BookGroup struct {
	BookID  int64  `gorm:"column:book_id" json:"book_id"`
	GroupID int64  `gorm:"column:group_id" json:"id"`
	Name    string `gorm:"column:name" json:"name"`
}

const groupSelect = `SELECT g.id AS id, g.name AS name, g.description AS description, g.created_at AS created_at,
	(SELECT COUNT(*) FROM qc_book_groups bg WHERE bg.group_id = g.id) AS book_count
	FROM qc_groups g`

type GroupsRepository struct {
	base *database.BaseRepository
	now  clock
}

func NewGroupsRepository(base *database.BaseRepository) *GroupsRepository {
	return &GroupsRepository{base: base, now: time.Now}
}

func (r *GroupsRepository) FindAll(ctx context.Context) ([]Group, error) {
	var rows []Group
	err := r.base.QueryAll(ctx, &rows, groupSelect+" ORDER BY g.name")
	return rows, err
}

func (r *GroupsRepository) Get(ctx context.Context, id int64) (*Group, error) {
	var row Group
	found, err := r.base.QueryOne(ctx, &row, groupSelect+" WHERE g.id = ?", id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("group %d: %w", id, database.ErrNotFound)
	}
	return &row, nil
}

// Create inserts a group. A duplicate name is a constraint violation.
func (r *GroupsRepository) Create(ctx context.Context, name, description string) (*Group, error) {
	id, err := r.base.Insert(ctx, groupsTable, database.Record{
		"name":        name,
		"description": description,
		"created_at":  r.now.stamp(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}
	return r.Get(ctx, id)
}

func (r *GroupsRepository) Update(ctx context.Context, id int64, name, description *string) (*Group, error) {
	rec := database.Record{}
	if name != nil {
		rec["name"] = *name
	}
	if description != nil {
		rec["description"] = *description
	}
	if len(rec) > 0 {
		n, err := r.base.Update(ctx, groupsTable, rec, "id = ?", id)
		if err != nil {
			return nil, fmt.Errorf("failed to update group %d: %w", id, err)
		}
		if n == 0 {
			return nil, fmt.Errorf("group %d: %w", id, database.ErrNotFound)
		}
	}
	return r.Get(ctx, id)
}

// Delete removes a group; memberships cascade.
func (r *GroupsRepository) Delete(ctx context.Context, id int64) error {
	n, err := r.base.Delete(ctx, groupsTable, "id = ?", id)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("group %d: %w", id, database.ErrNotFound)
	}
	return nil
}

// AddBook adds a book to a group. Adding it twice is a no-op.
func (r *GroupsRepository) AddBook(ctx context.Context, groupID, bookID int64) error {
	_, err := r.base.Execute(ctx,
		"INSERT INTO qc_book_groups (book_id, group_id, created_at) VALUES (?, ?, ?) ON CONFLICT(book_id, group_id) DO NOTHING",
		bookID, groupID, r.now.stamp())
	return err
}

func (r *GroupsRepository) RemoveBook(ctx context.Context, groupID, bookID int64) error {
	n, err := r.base.Delete(ctx, bookGroupsTable, "group_id = ? AND book_id = ?", groupID, bookID)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("book %d in group %d: %w", bookID, groupID, database.ErrNotFound)
	}
	return nil
}

// BookIDs returns the books in a group, most recently added first.
func (r *GroupsRepository) BookIDs(ctx context.Context, groupID int64) ([]int64, error) {
	var ids []int64
	err := r.base.QueryAll(ctx, &ids,
		"SELECT book_id FROM qc_book_groups WHERE group_id = ? ORDER BY created_at DESC, book_id", groupID)
	return ids, err
}

// FindByBookIDs returns the memberships of ids in one statement.
func (r *GroupsRepository) FindByBookIDs(ctx context.Context, ids []int64) ([]BookGroup, error) {
	if len(ids) == 0 {
		return []BookGroup{}, nil
	}
	var rows []BookGroup
	err := r.base.QueryAll(ctx, &rows, `SELECT bg.book_id AS book_id, g.id AS group_id, g.name AS name
		FROM qc_book_groups bg JOIN qc_groups g ON g.id = bg.group_id
		WHERE bg.book_id IN ?
		ORDER BY g.name`, ids)
	return rows, err
}

// DeleteByBook removes a book from every group.
func (r *GroupsRepository) DeleteByBook(ctx context.Context, bookID int64) error {
	_, err := r.base.Delete(ctx, bookGroupsTable, "book_id = ?", bookID)
	return err
}
