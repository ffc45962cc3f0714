// Package schema describes entity shapes as data: which fields a record may
// carry, their types, defaults, generated values and validation rules. The same
// Repository serves every entity by being handed a different Schema.
package schema

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

// FieldType names the JSON shape a field accepts.
type FieldType string

// Field types.
const (
	TypeString     FieldType = "string"
	TypeInteger    FieldType = "integer"
	TypeNumber     FieldType = "number"
	TypeBoolean    FieldType = "boolean"
	TypeStringList FieldType = "string_list"
	TypeList       FieldType = "list"
	TypeObject     FieldType = "object"
	TypeTimestamp  FieldType = "timestamp" // RFC 3339 string
	TypeUUID       FieldType = "uuid"      // canonical UUID string
)

var knownTypes = map[FieldType]bool{
	TypeString:     true,
	TypeInteger:    true,
	TypeNumber:     true,
	TypeBoolean:    true,
	TypeStringList: true,
	TypeList:       true,
	TypeObject:     true,
	TypeTimestamp:  true,
	TypeUUID:       true,
}

// Rule names reported in types.ValidationError.Rule.
const (
	RuleRequired  = "required"
	RuleType      = "type"
	RuleMinLength = "min_length"
	RuleMaxLength = "max_length"
	RuleMin       = "min"
	RuleMax       = "max"
	RulePattern   = "pattern"
	RuleCharset   = "charset"
	RuleEnum      = "enum"
	RuleFormat    = "format"
	RuleFuture    = "future"
	RuleUnknown   = "unknown_field"
	RuleReserved  = "reserved"
)

// Generators fill a field the caller left out.
const (
	GenerateUUID  = "uuid"  // UUID v7 on create
	GenerateNow   = "now"   // current time on create
	GenerateTouch = "touch" // current time on create and on every update
)

var knownGenerators = map[string]FieldType{
	GenerateUUID:  TypeUUID,
	GenerateNow:   TypeTimestamp,
	GenerateTouch: TypeTimestamp,
}

// Character classes for Field.Charset.
const (
	CharsetAlnum      = "alnum"       // letters and digits
	CharsetAlnumSpace = "alnum_space" // letters, digits and whitespace
	CharsetName       = "name"        // letters, digits, whitespace, '-' and '_'
)

var knownCharsets = map[string]bool{
	CharsetAlnum:      true,
	CharsetAlnumSpace: true,
	CharsetName:       true,
}

// ErrInvalidSchema is wrapped by every error Check returns.
var ErrInvalidSchema = errors.New("invalid schema")

var entityNameRe = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// Field describes one record field. Length bounds apply to strings (in runes)
// and to lists (in elements); Min and Max apply to numbers.
type Field struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Description string    `json:"description,omitempty"`
	Required    bool      `json:"required,omitempty"`
	Default     any       `json:"default,omitempty"`
	Generate    string    `json:"generate,omitempty"`
	Trim        bool      `json:"trim,omitempty"`
	MinLength   *int      `json:"min_length,omitempty"`
	MaxLength   *int      `json:"max_length,omitempty"`
	Min         *float64  `json:"min,omitempty"`
	Max         *float64  `json:"max,omitempty"`
	Pattern     string    `json:"pattern,omitempty"`
	Charset     string    `json:"charset,omitempty"`
	Enum        []string  `json:"enum,omitempty"`
	Future      bool      `json:"future,omitempty"`
}

// Schema is the data-driven description of one entity type.
type Schema struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Strict      bool    `json:"strict,omitempty"` // reject fields not listed
	Fields      []Field `json:"fields"`

	byName   map[string]int
	patterns map[string]*regexp.Regexp
}

// New builds and checks a schema.
func New(name string, fields ...Field) (*Schema, error) {
	s := &Schema{Name: name, Fields: fields}
	if err := s.Check(); err != nil {
		return nil, err
	}
	return s, nil
}

// MustNew is New for package-level schema literals; it panics on error.
func MustNew(name string, fields ...Field) *Schema {
	s, err := New(name, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Field returns the named field definition.
func (s *Schema) Field(name string) (*Field, bool) {
	i, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return &s.Fields[i], true
}

// Check verifies the schema is well-formed and compiles its patterns. It must
// succeed before the schema is used for validation.
func (s *Schema) Check() error {
	if !entityNameRe.MatchString(s.Name) {
		return fmt.Errorf("%w: entity name %q must match %s", ErrInvalidSchema, s.Name, entityNameRe)
	}
	s.byName = make(map[string]int, len(s.Fields))
	s.patterns = make(map[string]*regexp.Regexp)

	for i := range s.Fields {
		f := &s.Fields[i]
		if err := s.checkField(f); err != nil {
			return fmt.Errorf("%w: %s.%s: %v", ErrInvalidSchema, s.Name, f.Name, err)
		}
		s.byName[f.Name] = i
	}
	return nil
}

func (s *Schema) checkField(f *Field) error {
	switch {
	case f.Name == "":
		return errors.New("field name must not be empty")
	case f.Name == types.FieldID:
		return errors.New("id is assigned by the repository and cannot be declared")
	case !knownTypes[f.Type]:
		return fmt.Errorf("unknown type %q", f.Type)
	}
	if _, dup := s.byName[f.Name]; dup {
		return errors.New("duplicate field")
	}

	if f.Generate != "" {
		want, ok := knownGenerators[f.Generate]
		if !ok {
			return fmt.Errorf("unknown generator %q", f.Generate)
		}
		if f.Type != want {
			return fmt.Errorf("generator %q needs type %s", f.Generate, want)
		}
	}
	if f.Charset != "" && !knownCharsets[f.Charset] {
		return fmt.Errorf("unknown charset %q", f.Charset)
	}
	if f.MinLength != nil && *f.MinLength < 0 {
		return errors.New("min_length must not be negative")
	}
	if f.MinLength != nil && f.MaxLength != nil && *f.MinLength > *f.MaxLength {
		return errors.New("min_length exceeds max_length")
	}
	if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
		return errors.New("min exceeds max")
	}
	if len(f.Enum) > 0 && f.Type != TypeString && f.Type != TypeStringList {
		return errors.New("enum applies only to string and string_list fields")
	}
	if f.Pattern != "" {
		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			return fmt.Errorf("pattern: %v", err)
		}
		s.patterns[f.Name] = re
	}

	if f.Default != nil {
		def, err := types.NormalizeValue(f.Default)
		if err != nil {
			return fmt.Errorf("default: %v", err)
		}
		def = coerce(f, def)
		if verr := s.checkValue(f, def, zeroTime); verr != nil {
			return fmt.Errorf("default: %s", verr.Message)
		}
		f.Default = def
	}
	return nil
}
