package validation

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mrlokans/booklog/internal/database"
	"github.com/mrlokans/booklog/internal/database/calibre"
	"github.com/mrlokans/booklog/internal/database/talebook"
)

// StoreReport is the schema check result for one database file.
type StoreReport struct {
	Store          database.Store      `json:"store"`
	Available      bool                `json:"available"`
	MissingTables  []string            `json:"missing_tables"`
	MissingColumns map[string][]string `json:"missing_columns"`
	Problems       []string            `json:"problems"`
}

// Valid reports whether the store is open and nothing is missing.
func (r StoreReport) Valid() bool {
	return r.Available && len(r.MissingTables) == 0 && len(r.MissingColumns) == 0 && len(r.Problems) == 0
}

// SchemaReport covers both stores.
type SchemaReport struct {
	Valid  bool          `json:"valid"`
	Stores []StoreReport `json:"stores"`
}

// SchemaValidator checks that both stores carry the tables and columns the
// repositories use. It only reports; it never alters a schema.
type SchemaValidator struct {
	calibre  *database.BaseRepository
	talebook *database.BaseRepository
}

// NewSchemaValidator takes one repository per store; nil means the store is unavailable.
func NewSchemaValidator(calibreBase, talebookBase *database.BaseRepository) *SchemaValidator {
	return &SchemaValidator{calibre: calibreBase, talebook: talebookBase}
}

// Validate runs every check and reports every missing item.
func (v *SchemaValidator) Validate(ctx context.Context) (*SchemaReport, error) {
	calibreReport, err := checkStore(ctx, database.StoreCalibre, v.calibre, calibre.RequiredTables)
	if err != nil {
		return nil, err
	}
	if calibreReport.Available {
		if err := checkCascades(ctx, v.calibre, &calibreReport); err != nil {
			return nil, err
		}
	}

	talebookReport, err := checkStore(ctx, database.StoreTalebook, v.talebook, talebook.RequiredTables)
	if err != nil {
		return nil, err
	}
	if talebookReport.Available {
		if err := checkExtensionStructure(ctx, v.talebook, &talebookReport); err != nil {
			return nil, err
		}
	}

	return &SchemaReport{
		Valid:  calibreReport.Valid() && talebookReport.Valid(),
		Stores: []StoreReport{calibreReport, talebookReport},
	}, nil
}

func checkStore(ctx context.Context, store database.Store, base *database.BaseRepository, required map[string][]string) (StoreReport, error) {
	report := StoreReport{
		Store:          store,
		MissingTables:  []string{},
		MissingColumns: map[string][]string{},
		Problems:       []string{},
	}
	if base == nil {
		report.Problems = append(report.Problems, "database not available")
		return report, nil
	}
	report.Available = true

	tables := make([]string, 0, len(required))
	for table := range required {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	for _, table := range tables {
		cols, err := base.TableInfo(ctx, table)
		if err != nil {
			return report, fmt.Errorf("inspect %s.%s: %w", store, table, err)
		}
		if len(cols) == 0 {
			report.MissingTables = append(report.MissingTables, table)
			continue
		}
		present := make(map[string]bool, len(cols))
		for _, c := range cols {
			present[strings.ToLower(c.Name)] = true
		}
		for _, want := range required[table] {
			if !present[want] {
				report.MissingColumns[table] = append(report.MissingColumns[table], want)
			}
		}
	}
	return report, nil
}

// checkExtensionStructure verifies items is keyed by book_id alone and that
// reading_state declares no foreign keys, since book ids live in another file.
func checkExtensionStructure(ctx context.Context, base *database.BaseRepository, report *StoreReport) error {
	if !contains(report.MissingTables, "items") {
		cols, err := base.TableInfo(ctx, "items")
		if err != nil {
			return err
		}
		var pk []string
		for _, c := range cols {
			if c.PK > 0 {
				pk = append(pk, c.Name)
			}
		}
		if len(pk) != 1 || pk[0] != "book_id" {
			report.Problems = append(report.Problems,
				fmt.Sprintf("items primary key must be book_id, found [%s]", strings.Join(pk, ", ")))
		}
	}

	if !contains(report.MissingTables, "reading_state") {
		fks, err := base.ForeignKeys(ctx, "reading_state")
		if err != nil {
			return err
		}
		if len(fks) > 0 {
			report.Problems = append(report.Problems,
				fmt.Sprintf("reading_state must not declare foreign keys, found %d", len(fks)))
		}
	}
	return nil
}

// checkCascades verifies that every link table deletes with its book.
func checkCascades(ctx context.Context, base *database.BaseRepository, report *StoreReport) error {
	for _, table := range []string{"books_authors_link", "books_publishers_link", "books_tags_link", "books_series_link"} {
		if contains(report.MissingTables, table) {
			continue
		}
		fks, err := base.ForeignKeys(ctx, table)
		if err != nil {
			return err
		}
		cascades := false
		for _, fk := range fks {
			if fk.Table == "books" && strings.EqualFold(fk.OnDelete, "CASCADE") {
				cascades = true
			}
		}
		if !cascades {
			report.Problems = append(report.Problems, table+" does not cascade on book delete")
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
