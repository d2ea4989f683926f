// Package interfaces documents the core abstractions used throughout the application.
//
// # Interface Categories
//
// ## HTTP Store Interfaces
//
// Each controller depends on a narrow store (internal/http/stores.go):
//
//   - BookStore: book reads and visit counts, writes and the name lists
//   - CoverStore: where a book lives in the Calibre library
//   - GroupStore, BookmarkStore, ReaderStore: extension store entities
//   - ReadingStore: per-reader state and reading sessions
//   - AdminStore: schema and integrity reports and the items sync
//   - HealthChecker: store availability and pings
//
// http.Store combines them and is implemented by services.DatabaseService.
//
// ## Background Work Interfaces
//
//   - ItemsSyncer: requests creation of missing items rows (internal/services/service.go)
//   - ItemsSynchronizer: runs an items sync inside a task (internal/tasks/sync_items.go)
//   - Enqueuer: adds tasks to the queue (internal/tasks/sync_items.go)
//   - IntegrityService: what the integrity scheduler drives (internal/scheduler/integrity.go)
//
// # Adding a New Extension Entity
//
//  1. Add a table definition and repository to internal/database/talebook/
//
//     var notesTable = database.Table{Name: "qc_notes", Columns: []string{"book_id", "content"}}
//
//     type NoteRepository struct { base *database.BaseRepository }
//
//  2. Expose it on talebook.Repositories and add service methods
//
//  3. Add a store interface and controller in internal/http/ and register the routes
//
//  4. Add a compile-time check:
//
//     var _ http.Store = (*services.DatabaseService)(nil)
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// See checks.go for the current set.
package interfaces
