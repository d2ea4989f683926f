package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	health := NewHealthController(cfg.Store, cfg.Version)
	books := NewBooksController(cfg.Store)
	groups := NewGroupsController(cfg.Store)
	bookmarks := NewBookmarksController(cfg.Store)
	readers := NewReadersController(cfg.Store)
	reading := NewReadingController(cfg.Store)
	admin := NewAdminController(cfg.Store, cfg.ItemsSyncer)

	metrics := cfg.MetricsHandler
	if metrics == nil {
		metrics = promhttp.Handler()
	}

	// Health endpoints
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})
	router.GET("/metrics", gin.WrapH(metrics))

	api := router.Group("/api")

	// Books
	api.GET("/books", books.GetAllBooks)
	api.GET("/books/search", books.SearchBooks)
	api.GET("/books/:id", books.GetBook)
	api.POST("/books", books.CreateBook)
	api.PUT("/books/:id", books.UpdateBook)
	api.DELETE("/books/:id", books.DeleteBook)
	api.PUT("/books/:id/bookdata", books.UpdateBookdata)
	api.PUT("/books/:id/type", books.SetBookType)
	if cfg.Library != nil {
		covers := NewCoversController(cfg.Library, cfg.Store)
		api.GET("/books/:id/cover", covers.GetCover)
	}

	// Name lists
	api.GET("/authors", books.GetAuthors)
	api.GET("/publishers", books.GetPublishers)
	api.GET("/tags", books.GetTags)

	// Groups
	api.GET("/groups", groups.GetAllGroups)
	api.POST("/groups", groups.CreateGroup)
	api.PUT("/groups/:id", groups.UpdateGroup)
	api.DELETE("/groups/:id", groups.DeleteGroup)
	api.GET("/groups/:id/books", groups.GetGroupBooks)
	api.POST("/groups/:id/books", groups.AddBook)
	api.DELETE("/groups/:id/books/:bookId", groups.RemoveBook)

	// Bookmarks
	api.GET("/bookmarks", bookmarks.GetBookmarks)
	api.GET("/bookmarks/tags", bookmarks.GetTags)
	api.POST("/bookmarks", bookmarks.CreateBookmark)
	api.GET("/bookmarks/:id", bookmarks.GetBookmark)
	api.PUT("/bookmarks/:id", bookmarks.UpdateBookmark)
	api.DELETE("/bookmarks/:id", bookmarks.DeleteBookmark)

	// Readers
	api.GET("/readers", readers.GetAllReaders)
	api.POST("/readers", readers.CreateReader)
	api.DELETE("/readers/:id", readers.DeleteReader)

	// Reading state and sessions
	api.GET("/reading/state/:bookId", reading.GetState)
	api.PUT("/reading/state/:bookId", reading.SetState)
	api.GET("/reading/sessions/:bookId", reading.GetSessions)
	api.POST("/reading/sessions", reading.RecordSession)
	api.GET("/reading/stats", reading.GetStats)

	// Admin
	api.GET("/admin/schema", admin.GetSchema)
	api.GET("/admin/integrity", admin.GetIntegrity)
	api.POST("/admin/sync-items", admin.SyncItems)

	return router
}
