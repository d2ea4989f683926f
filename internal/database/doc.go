// Package database provides the data access layer for the application.
//
// # Architecture
//
// Book data lives in two independent SQLite files that are joined only in
// application memory:
//
//	database/
//	├── database.go   # ConnectionManager: opens both stores, availability flags
//	├── base.go       # BaseRepository: statement helpers, column whitelists, transactions
//	├── metrics.go    # Prometheus statement counters
//	├── errors.go     # Sentinel errors and SQLite error classification
//	├── calibre/      # Calibre-compatible bibliographic store (books, authors, tags, ...)
//	└── talebook/     # Extension store (items, reading state, bookmarks, groups, ...)
//
// # Using Sub-packages
//
//	conns := database.NewConnectionManager(database.Options{Metrics: database.DefaultMetrics()})
//	conns.Init(ctx)
//
//	books := calibre.NewBookRepository(database.NewBaseRepository(conns.Calibre(), database.StoreCalibre, conns.Metrics()))
//	states := talebook.NewReadingStateRepository(database.NewBaseRepository(conns.Talebook(), database.StoreTalebook, conns.Metrics()))
//
// # Cross-store integrity
//
// SQLite cannot enforce foreign keys across files. Every extension table is
// keyed by the Calibre book id by convention only; see internal/validation
// for the integrity checker.
//
// # Adding a New Table
//
//  1. Add the DDL to the store's schema.go
//  2. Declare a database.Table whitelist next to the repository
//  3. Route every INSERT/UPDATE through BaseRepository.Insert/Update
package database
