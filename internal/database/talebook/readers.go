package talebook

import (
	"context"
	"fmt"
	"time"

	"github.com/mrlokans/booklog/internal/database"
)

var readersTable = database.Table{Name: "readers", Columns: []string{"name", "avatar", "create_time"}}

// Reader is one person tracked by reading_state. Reader 0 is the implicit default.
type Reader struct {
	ID         int64   `gorm:"column:id" json:"id"`
	Name       string  `gorm:"column:name" json:"name"`
	Avatar     string  `gorm:"column:avatar" json:"avatar"`
	CreateTime *string `gorm:"column:create_time" json:"create_time"`
}

type ReadersRepository struct {
	base *database.BaseRepository
	now  clock
}

func NewReadersRepository(base *database.BaseRepository) *ReadersRepository {
	return &ReadersRepository{base: base, now: time.Now}
}

func (r *ReadersRepository) FindAll(ctx context.Context) ([]Reader, error) {
	var rows []Reader
	err := r.base.QueryAll(ctx, &rows, "SELECT id, name, avatar, create_time FROM readers ORDER BY id")
	return rows, err
}

func (r *ReadersRepository) Get(ctx context.Context, id int64) (*Reader, error) {
	var row Reader
	found, err := r.base.QueryOne(ctx, &row, "SELECT id, name, avatar, create_time FROM readers WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("reader %d: %w", id, database.ErrNotFound)
	}
	return &row, nil
}

func (r *ReadersRepository) Create(ctx context.Context, name, avatar string) (*Reader, error) {
	id, err := r.base.Insert(ctx, readersTable, database.Record{
		"name":        name,
		"avatar":      avatar,
		"create_time": r.now.stamp(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create reader: %w", err)
	}
	return r.Get(ctx, id)
}

func (r *ReadersRepository) Delete(ctx context.Context, id int64) error {
	n, err := r.base.Delete(ctx, readersTable, "id = ?", id)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("reader %d: %w", id, database.ErrNotFound)
	}
	return nil
}
