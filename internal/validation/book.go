package validation

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mrlokans/booklog/internal/entities"
)

// FieldError describes one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every field error found in one request.
type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + " " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

func (e *ValidationError) orNil() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// FieldType is the JSON type a partial update field must carry.
type FieldType string

const (
	TypeString     FieldType = "string"
	TypeNumber     FieldType = "number"
	TypeInteger    FieldType = "integer"
	TypeBool       FieldType = "boolean"
	TypeStringList FieldType = "string list"
)

type fieldRule struct {
	typ      FieldType
	rule     string
	nullable bool
}

// bookFields is the static type map for partial book updates. The rules
// mirror the struct tags on entities.BookInput.
var bookFields = map[string]fieldRule{
	"title":          {typ: TypeString, rule: "required,max=500"},
	"author":         {typ: TypeString, rule: "required,max=500"},
	"isbn":           {typ: TypeString, rule: "omitempty,isbn_checksum"},
	"publisher":      {typ: TypeString, rule: "max=255"},
	"series":         {typ: TypeString, rule: "max=255"},
	"series_index":   {typ: TypeNumber, rule: "min=0"},
	"language":       {typ: TypeString, rule: "max=16"},
	"description":    {typ: TypeString, rule: "max=20000"},
	"pubdate":        {typ: TypeString, rule: "max=64", nullable: true},
	"tags":           {typ: TypeStringList, rule: "max=50,dive,max=100"},
	"rating":         {typ: TypeNumber, rule: "min=0,max=5", nullable: true},
	"has_cover":      {typ: TypeBool},
	"book_type":      {typ: TypeInteger, rule: "min=1,max=4"},
	"pages":          {typ: TypeInteger, rule: "min=0"},
	"standard_price": {typ: TypeNumber, rule: "min=0"},
	"purchase_price": {typ: TypeNumber, rule: "min=0"},
	"purchase_date":  {typ: TypeString, rule: "max=64", nullable: true},
	"paper_binding":  {typ: TypeInteger, rule: "min=0,max=1"},
	"hard_binding":   {typ: TypeInteger, rule: "min=0,max=1"},
	"note":           {typ: TypeString, rule: "max=20000"},
}

// BookFields returns the names accepted by ValidateFields, sorted.
func BookFields() []string {
	names := make([]string, 0, len(bookFields))
	for name := range bookFields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BookValidator checks book create and update payloads.
type BookValidator struct {
	validate *validator.Validate
}

func NewBookValidator() *BookValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration fails only for an empty tag or nil func.
	_ = v.RegisterValidation("isbn_checksum", func(fl validator.FieldLevel) bool {
		return ValidISBN(fl.Field().String())
	})
	return &BookValidator{validate: v}
}

// Validate checks a create payload and returns a *ValidationError listing every problem.
func (b *BookValidator) Validate(in entities.BookInput) error {
	verr := &ValidationError{}
	if err := b.validate.Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			verr.add(fieldName(fe), message(fe))
		}
	}
	if in.Title != "" && strings.TrimSpace(in.Title) == "" {
		verr.add("title", "must not be blank")
	}
	if in.Author != "" && len(in.Authors()) == 0 {
		verr.add("author", "must name at least one author")
	}
	return verr.orNil()
}

// fieldName keeps the index of dive errors, e.g. "tags[3]".
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// ValidateFields checks a partial update: every key must be a known field
// whose JSON value has the expected type and passes the field's rule.
func (b *BookValidator) ValidateFields(fields map[string]any) error {
	verr := &ValidationError{}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := fields[name]
		rule, ok := bookFields[name]
		if !ok {
			verr.add(name, "is not an updatable field")
			continue
		}
		if value == nil {
			if !rule.nullable {
				verr.add(name, "must not be null")
			}
			continue
		}
		typed, ok := coerce(rule.typ, value)
		if !ok {
			verr.add(name, fmt.Sprintf("must be of type %s", rule.typ))
			continue
		}
		if rule.rule == "" {
			continue
		}
		if err := b.validate.Var(typed, rule.rule); err != nil {
			var fieldErrs validator.ValidationErrors
			if !errors.As(err, &fieldErrs) {
				return err
			}
			for _, fe := range fieldErrs {
				verr.add(name, message(fe))
			}
		}
	}
	return verr.orNil()
}

// coerce converts a decoded JSON value to the Go type of t.
func coerce(t FieldType, value any) (any, bool) {
	switch t {
	case TypeString:
		s, ok := value.(string)
		return s, ok
	case TypeBool:
		v, ok := value.(bool)
		return v, ok
	case TypeNumber:
		return toFloat(value)
	case TypeInteger:
		f, ok := toFloat(value)
		if !ok || f != math.Trunc(f) {
			return nil, false
		}
		return int64(f), true
	case TypeStringList:
		switch list := value.(type) {
		case []string:
			return list, true
		case []any:
			out := make([]string, len(list))
			for i, item := range list {
				s, ok := item.(string)
				if !ok {
					return nil, false
				}
				out[i] = s
			}
			return out, true
		}
	}
	return nil, false
}

func toFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		if fe.Kind() == reflect.Slice {
			return "must have at most " + fe.Param() + " items"
		}
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "isbn_checksum":
		return "is not a valid ISBN"
	}
	return "failed " + fe.Tag() + " check"
}
