package database

import (
	"errors"

	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a lookup by key matches no row.
	ErrNotFound = errors.New("record not found")

	// ErrStoreUnavailable is returned by write paths when the target database is not open.
	ErrStoreUnavailable = errors.New("database not available")

	// ErrUnknownColumn is returned when a record names a column outside the table whitelist.
	ErrUnknownColumn = errors.New("unknown column")
)

// IsNotFound reports whether err means a missing row, including gorm's own sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

// IsConstraintViolation reports whether err is a SQLite UNIQUE/FOREIGN KEY/CHECK failure.
func IsConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

// IsBusy reports whether err is a SQLite busy or locked condition.
func IsBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}
