package schema

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

var zeroTime time.Time

// Prepare validates the fields of a record about to be created and returns
// the record to store, without an id. Missing fields get their generated
// value or default. Every failing field is reported in a
// types.ValidationErrors; on failure the returned record is nil.
func (s *Schema) Prepare(fields map[string]any, now time.Time) (types.Record, error) {
	rec, errs := s.normalize(fields)

	for i := range s.Fields {
		f := &s.Fields[i]
		v, present := rec[f.Name]
		if !present || v == nil {
			switch {
			case f.Generate != "":
				rec[f.Name] = generate(f.Generate, now)
				continue
			case f.Default != nil:
				rec[f.Name] = types.CloneValue(f.Default)
				continue
			case f.Required:
				errs = append(errs, s.fail(f.Name, RuleRequired, "field is required"))
			}
			continue
		}
		v = coerce(f, v)
		if f.Required && isBlank(v) {
			errs = append(errs, s.fail(f.Name, RuleRequired, "field must not be empty"))
			continue
		}
		if verr := s.checkValue(f, v, now); verr != nil {
			errs = append(errs, verr)
			continue
		}
		rec[f.Name] = v
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return rec, nil
}

// PreparePatch validates a partial update. Only the provided keys are checked,
// each against its own field rules; a required field may not be cleared.
// Fields generated with "touch" are refreshed. The id field cannot be patched.
func (s *Schema) PreparePatch(patch map[string]any, now time.Time) (types.Record, error) {
	rec, errs := s.normalize(patch)

	for _, name := range sortedKeys(rec) {
		f, ok := s.Field(name)
		if !ok {
			continue
		}
		v := rec[name]
		if v == nil {
			if f.Required {
				errs = append(errs, s.fail(name, RuleRequired, "field cannot be cleared"))
			}
			continue
		}
		v = coerce(f, v)
		if f.Required && isBlank(v) {
			errs = append(errs, s.fail(name, RuleRequired, "field must not be empty"))
			continue
		}
		if verr := s.checkValue(f, v, now); verr != nil {
			errs = append(errs, verr)
			continue
		}
		rec[name] = v
	}

	if len(errs) > 0 {
		return nil, errs
	}
	for i := range s.Fields {
		if s.Fields[i].Generate == GenerateTouch {
			if _, set := rec[s.Fields[i].Name]; !set {
				rec[s.Fields[i].Name] = generate(GenerateTouch, now)
			}
		}
	}
	return rec, nil
}

// normalize converts input values to canonical form one key at a time so an
// unencodable value can be attributed to its field. It also reports the
// reserved id key and, for strict schemas, unknown keys.
func (s *Schema) normalize(fields map[string]any) (types.Record, types.ValidationErrors) {
	var errs types.ValidationErrors
	rec := make(types.Record, len(fields))
	for _, name := range sortedKeys(fields) {
		if name == types.FieldID {
			errs = append(errs, s.fail(name, RuleReserved, "id is assigned by the repository"))
			continue
		}
		if _, known := s.byName[name]; !known && s.Strict {
			errs = append(errs, s.fail(name, RuleUnknown, "field is not part of the schema"))
			continue
		}
		v, err := types.NormalizeValue(fields[name])
		if err != nil {
			errs = append(errs, s.fail(name, RuleType, err.Error()))
			continue
		}
		rec[name] = v
	}
	return rec, errs
}

func (s *Schema) fail(field, rule, msg string) *types.ValidationError {
	return &types.ValidationError{Entity: s.Name, Field: field, Rule: rule, Message: msg}
}

// coerce applies lossless adjustments before checking: trimming and integral
// numbers for integer fields.
func coerce(f *Field, v any) any {
	switch f.Type {
	case TypeString:
		if str, ok := v.(string); ok && f.Trim {
			return strings.TrimSpace(str)
		}
	case TypeInteger:
		if n, ok := types.AsInt(v); ok {
			return n
		}
	case TypeUUID:
		if str, ok := v.(string); ok {
			if id, err := uuid.Parse(str); err == nil {
				return id.String()
			}
		}
	}
	return v
}

// checkValue applies the type check and then every rule of f to a non-nil,
// coerced value.
func (s *Schema) checkValue(f *Field, v any, now time.Time) *types.ValidationError {
	if msg := checkType(f.Type, v); msg != "" {
		return s.fail(f.Name, RuleType, msg)
	}

	switch f.Type {
	case TypeTimestamp:
		t, err := time.Parse(time.RFC3339Nano, v.(string))
		if err != nil {
			return s.fail(f.Name, RuleFormat, "expected an RFC 3339 timestamp")
		}
		if f.Future && !now.IsZero() && !t.After(now) {
			return s.fail(f.Name, RuleFuture, "must be in the future")
		}
	case TypeUUID:
		if _, err := uuid.Parse(v.(string)); err != nil {
			return s.fail(f.Name, RuleFormat, "expected a UUID")
		}
	}

	if n, ok := length(v); ok {
		if f.MinLength != nil && n < *f.MinLength {
			return s.fail(f.Name, RuleMinLength, fmt.Sprintf("must be at least %d long", *f.MinLength))
		}
		if f.MaxLength != nil && n > *f.MaxLength {
			return s.fail(f.Name, RuleMaxLength, fmt.Sprintf("must be at most %d long", *f.MaxLength))
		}
	}

	if x, ok := number(v); ok {
		if f.Min != nil && x < *f.Min {
			return s.fail(f.Name, RuleMin, fmt.Sprintf("must be >= %g", *f.Min))
		}
		if f.Max != nil && x > *f.Max {
			return s.fail(f.Name, RuleMax, fmt.Sprintf("must be <= %g", *f.Max))
		}
	}

	for _, str := range stringsOf(v) {
		if re := s.patterns[f.Name]; re != nil && !re.MatchString(str) {
			return s.fail(f.Name, RulePattern, fmt.Sprintf("must match %s", re))
		}
		if f.Charset != "" && !inCharset(f.Charset, str) {
			return s.fail(f.Name, RuleCharset, charsetMessage(f.Charset))
		}
		if len(f.Enum) > 0 && !contains(f.Enum, str) {
			return s.fail(f.Name, RuleEnum, fmt.Sprintf("must be one of %s", strings.Join(f.Enum, ", ")))
		}
	}
	return nil
}

func checkType(t FieldType, v any) string {
	ok := false
	switch t {
	case TypeString, TypeTimestamp, TypeUUID:
		_, ok = v.(string)
	case TypeInteger:
		_, ok = v.(int64)
	case TypeNumber:
		switch v.(type) {
		case int64, float64:
			ok = true
		}
	case TypeBoolean:
		_, ok = v.(bool)
	case TypeStringList:
		list, isList := v.([]any)
		ok = isList
		for _, item := range list {
			if _, isStr := item.(string); !isStr {
				return "expected a list of strings"
			}
		}
	case TypeList:
		_, ok = v.([]any)
	case TypeObject:
		_, ok = v.(map[string]any)
	}
	if ok {
		return ""
	}
	return fmt.Sprintf("expected %s, got %s", t, describe(v))
}

func describe(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case int64:
		return "integer"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "list"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func length(v any) (int, bool) {
	switch t := v.(type) {
	case string:
		return utf8.RuneCountInString(t), true
	case []any:
		return len(t), true
	default:
		return 0, false
	}
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case int64:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}

// stringsOf returns the strings pattern, charset and enum rules apply to.
func stringsOf(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

func inCharset(charset, s string) bool {
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
		case unicode.IsSpace(r) && charset != CharsetAlnum:
		case (r == '-' || r == '_') && charset == CharsetName:
		default:
			return false
		}
	}
	return true
}

func charsetMessage(charset string) string {
	switch charset {
	case CharsetAlnum:
		return "must contain only letters and digits"
	case CharsetAlnumSpace:
		return "must contain only letters, digits and spaces"
	default:
		return "must contain only letters, digits, spaces, hyphens and underscores"
	}
}

func isBlank(v any) bool {
	str, ok := v.(string)
	return ok && strings.TrimSpace(str) == ""
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func generate(kind string, now time.Time) any {
	if kind == GenerateUUID {
		return uuid.Must(uuid.NewV7()).String()
	}
	return now.UTC().Format(time.RFC3339)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
