package database

import (
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// DriverName is the sqlite3 driver with the SQL functions Calibre's
// triggers call. Calibre registers them in its own process; a metadata.db
// written by Calibre fails every insert and title change without them.
const DriverName = "sqlite3_calibre"

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			if err := conn.RegisterFunc("title_sort", TitleSort, true); err != nil {
				return err
			}
			return conn.RegisterFunc("uuid4", uuid.NewString, false)
		},
	})
}

var leadingArticles = []string{"The ", "A ", "An "}

// TitleSort moves a leading English article to the end, as Calibre does.
func TitleSort(title string) string {
	for _, article := range leadingArticles {
		if len(title) > len(article) && strings.EqualFold(title[:len(article)], article) {
			return title[len(article):] + ", " + strings.TrimSpace(title[:len(article)])
		}
	}
	return title
}
