package entities

import "strings"

// Book types stored in items.book_type.
const (
	BookTypePhysical = 1
	BookTypeEbook    = 2
	BookTypeAudio    = 3
	BookTypeBorrowed = 4
)

// AuthorSeparator joins multiple authors in Book.Author, as Calibre displays them.
const AuthorSeparator = " & "

// GroupRef names a group a book belongs to.
type GroupRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Book is the denormalized view of one book: the bibliographic row merged
// with its extension rows. Every extension field has a defined zero value
// so the shape is the same whether or not the extension rows exist.
type Book struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	Sort         string   `json:"sort"`
	Author       string   `json:"author"`
	ISBN         string   `json:"isbn"`
	Publisher    string   `json:"publisher"`
	Language     string   `json:"language"`
	Series       string   `json:"series"`
	SeriesIndex  float64  `json:"series_index"`
	Rating       float64  `json:"rating"`
	Description  string   `json:"description"`
	Tags         []string `json:"tags"`
	Formats      []string `json:"formats"`
	Pubdate      *string  `json:"pubdate"`
	PublishYear  *int     `json:"publish_year"`
	Timestamp    *string  `json:"timestamp"`
	LastModified *string  `json:"last_modified"`
	Path         string   `json:"path"`
	UUID         string   `json:"uuid"`
	HasCover     bool     `json:"has_cover"`
	CoverURL     string   `json:"cover_url"`

	BookType int        `json:"book_type"`
	Groups   []GroupRef `json:"groups"`

	Pages            int64   `json:"pages"`
	StandardPrice    float64 `json:"standard_price"`
	PurchasePrice    float64 `json:"purchase_price"`
	PurchaseDate     *string `json:"purchase_date"`
	PaperBinding     int     `json:"paper_binding"`
	HardBinding      int     `json:"hard_binding"`
	Note             string  `json:"note"`
	TotalReadingTime int64   `json:"total_reading_time"`
	ReadPages        int64   `json:"read_pages"`
	ReadingCount     int64   `json:"reading_count"`
	LastReadDate     *string `json:"last_read_date"`
	LastReadDuration int64   `json:"last_read_duration"`

	Favorite     int     `json:"favorite"`
	FavoriteDate *string `json:"favorite_date"`
	Wants        int     `json:"wants"`
	WantsDate    *string `json:"wants_date"`
	ReadState    int     `json:"read_state"`
	ReadDate     *string `json:"read_date"`
}

// BookInput is the body of a book create request.
type BookInput struct {
	Title       string   `json:"title" validate:"required,max=500"`
	Author      string   `json:"author" validate:"required,max=500"`
	ISBN        string   `json:"isbn" validate:"omitempty,isbn_checksum"`
	Publisher   string   `json:"publisher" validate:"max=255"`
	Series      string   `json:"series" validate:"max=255"`
	SeriesIndex float64  `json:"series_index" validate:"min=0"`
	Language    string   `json:"language" validate:"max=16"`
	Description string   `json:"description" validate:"max=20000"`
	Pubdate     string   `json:"pubdate" validate:"max=64"`
	Tags        []string `json:"tags" validate:"max=50,dive,max=100"`
	Rating      *float64 `json:"rating" validate:"omitempty,min=0,max=5"`
	BookType    *int     `json:"book_type" validate:"omitempty,min=1,max=4"`
	Pages       *int64   `json:"pages" validate:"omitempty,min=0"`
	HasCover    bool     `json:"has_cover"`
}

// Authors splits the display author string into individual names.
func (in BookInput) Authors() []string {
	return SplitAuthors(in.Author)
}

// SplitAuthors splits "A & B" into its names, dropping blanks.
func SplitAuthors(author string) []string {
	var out []string
	for _, a := range strings.Split(author, "&") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
