package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/booklog/internal/database/calibre"
	"github.com/mrlokans/booklog/internal/http"
	"github.com/mrlokans/booklog/internal/scheduler"
	"github.com/mrlokans/booklog/internal/services"
	"github.com/mrlokans/booklog/internal/tasks"
	"github.com/mrlokans/booklog/internal/validation"
)

// =============================================================================
// HTTP Layer
// =============================================================================

// The service backs every controller
var _ http.Store = (*services.DatabaseService)(nil)

// =============================================================================
// Background Work
// =============================================================================

var _ services.ItemsSyncer = (*tasks.ItemsSyncRequester)(nil)
var _ tasks.ItemsSynchronizer = (*services.DatabaseService)(nil)
var _ tasks.Enqueuer = (*tasks.Client)(nil)
var _ scheduler.IntegrityService = (*services.DatabaseService)(nil)

// =============================================================================
// Validation
// =============================================================================

var _ validation.BookIDSource = (*calibre.BookRepository)(nil)
