package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/mrlokans/booklog/internal/entities"
	"github.com/mrlokans/booklog/internal/services"
)

type BooksController struct {
	store BookStore
}

func NewBooksController(store BookStore) *BooksController {
	return &BooksController{store: store}
}

// GetAllBooks lists enriched books, newest first.
// GET /api/books?limit=&offset=&reader_id=
func (bc *BooksController) GetAllBooks(c *gin.Context) {
	limit, offset, ok := parsePage(c, defaultPageSize)
	if !ok {
		return
	}
	readerID, ok := parseReaderID(c)
	if !ok {
		return
	}

	books, err := bc.store.FindAll(c.Request.Context(), services.FindOptions{Limit: limit, Offset: offset, ReaderID: readerID})
	if err != nil {
		respondServiceError(c, err, "books", "list books")
		return
	}
	c.JSON(http.StatusOK, ListResponse{Data: books, Count: len(books), Limit: limit, Offset: offset})
}

// SearchBooks filters by keyword (title or identifier), author and publisher.
// GET /api/books/search?q=&author=&publisher=
func (bc *BooksController) SearchBooks(c *gin.Context) {
	limit, offset, ok := parsePage(c, defaultPageSize)
	if !ok {
		return
	}
	readerID, ok := parseReaderID(c)
	if !ok {
		return
	}

	books, err := bc.store.Search(c.Request.Context(), services.SearchOptions{
		Keyword:   c.Query("q"),
		Author:    c.Query("author"),
		Publisher: c.Query("publisher"),
		Limit:     limit,
		Offset:    offset,
		ReaderID:  readerID,
	})
	if err != nil {
		respondServiceError(c, err, "books", "search books")
		return
	}
	c.JSON(http.StatusOK, ListResponse{Data: books, Count: len(books), Limit: limit, Offset: offset})
}

// GetBook returns one enriched book.
// GET /api/books/:id
func (bc *BooksController) GetBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	readerID, ok := parseReaderID(c)
	if !ok {
		return
	}

	book, err := bc.store.FindByID(c.Request.Context(), id, readerID)
	if err != nil {
		respondServiceError(c, err, "book", "get book")
		return
	}
	// A failed counter update does not fail the read
	if err := bc.store.RecordVisit(c.Request.Context(), id); err != nil {
		log.Warn().Err(err).Int64("book_id", id).Msg("failed to record book visit")
	}
	c.JSON(http.StatusOK, book)
}

// CreateBook adds a book.
// POST /api/books
func (bc *BooksController) CreateBook(c *gin.Context) {
	var in entities.BookInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	book, err := bc.store.AddBook(c.Request.Context(), in)
	if err != nil {
		respondServiceError(c, err, "book", "create book")
		return
	}
	respondCreated(c, book)
}

// UpdateBook applies a partial, type-checked update.
// PUT /api/books/:id
func (bc *BooksController) UpdateBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	fields, ok := bindFields(c)
	if !ok {
		return
	}

	book, err := bc.store.UpdateBook(c.Request.Context(), id, fields)
	if err != nil {
		respondServiceError(c, err, "book", "update book")
		return
	}
	c.JSON(http.StatusOK, book)
}

// DeleteBook removes a book and its extension rows.
// DELETE /api/books/:id
func (bc *BooksController) DeleteBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := bc.store.DeleteBook(c.Request.Context(), id); err != nil {
		respondServiceError(c, err, "book", "delete book")
		return
	}
	respondSuccess(c, "book deleted")
}

// UpdateBookdata writes extension fields such as prices and page count.
// PUT /api/books/:id/bookdata
func (bc *BooksController) UpdateBookdata(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	fields, ok := bindFields(c)
	if !ok {
		return
	}

	data, err := bc.store.UpdateBookdata(c.Request.Context(), id, fields)
	if err != nil {
		respondServiceError(c, err, "book", "update bookdata")
		return
	}
	c.JSON(http.StatusOK, data)
}

// SetBookType changes the book type.
// PUT /api/books/:id/type
func (bc *BooksController) SetBookType(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		BookType *int `json:"book_type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.BookType == nil {
		respondBadRequest(c, "book_type is required")
		return
	}

	if err := bc.store.SetBookType(c.Request.Context(), id, *req.BookType); err != nil {
		respondServiceError(c, err, "book", "set book type")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "book_type": *req.BookType})
}

// GetAuthors lists authors with book counts.
// GET /api/authors
func (bc *BooksController) GetAuthors(c *gin.Context) {
	names, err := bc.store.Authors(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "authors", "list authors")
		return
	}
	c.JSON(http.StatusOK, ListResponse{Data: names, Count: len(names)})
}

// GET /api/publishers
func (bc *BooksController) GetPublishers(c *gin.Context) {
	names, err := bc.store.Publishers(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "publishers", "list publishers")
		return
	}
	c.JSON(http.StatusOK, ListResponse{Data: names, Count: len(names)})
}

// GET /api/tags
func (bc *BooksController) GetTags(c *gin.Context) {
	names, err := bc.store.Tags(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "tags", "list tags")
		return
	}
	c.JSON(http.StatusOK, ListResponse{Data: names, Count: len(names)})
}

// bindFields decodes a JSON object body. Numbers decode as float64.
func bindFields(c *gin.Context) (map[string]any, bool) {
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil || fields == nil {
		respondBadRequest(c, "request body must be a JSON object")
		return nil, false
	}
	if len(fields) == 0 {
		respondBadRequest(c, "no fields to update")
		return nil, false
	}
	return fields, true
}
