package http

import (
	"net/http"

	"github.com/mrlokans/booklog/internal/covers"
	"github.com/mrlokans/booklog/internal/services"
)

// Store combines every controller interface. services.DatabaseService implements it.
type Store interface {
	BookStore
	CoverStore
	GroupStore
	BookmarkStore
	ReaderStore
	ReadingStore
	AdminStore
	HealthChecker
}

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Store Store

	// Calibre library used to serve covers. Covers are not served when nil.
	Library *covers.Library

	// Task queue backed items sync (optional). Without it sync-items runs inline.
	ItemsSyncer services.ItemsSyncer

	// Metrics handler for /metrics. Defaults to the Prometheus default registry.
	MetricsHandler http.Handler

	// Application info
	Version string
}
