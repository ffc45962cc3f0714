package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

// ParseValue converts the text form of a value, as typed on a command line,
// into the canonical value for the named field. Fields the schema does not
// declare are kept as strings, except the id, which is always an integer.
// For non-string types the text "null" yields nil. The result is not
// validated; pass it through Prepare or PreparePatch.
func (s *Schema) ParseValue(field, raw string) (any, error) {
	f, ok := s.Field(field)
	if !ok {
		if field == types.FieldID {
			n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
			if err != nil {
				return nil, s.fail(field, RuleType, fmt.Sprintf("%q is not an integer", raw))
			}
			return n, nil
		}
		return raw, nil
	}
	switch f.Type {
	case TypeString, TypeTimestamp, TypeUUID:
		return raw, nil
	}
	if strings.TrimSpace(raw) == "null" {
		return nil, nil
	}

	switch f.Type {
	case TypeInteger:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, s.fail(field, RuleType, fmt.Sprintf("%q is not an integer", raw))
		}
		return n, nil
	case TypeNumber:
		x, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, s.fail(field, RuleType, fmt.Sprintf("%q is not a number", raw))
		}
		if n, ok := types.AsInt(x); ok {
			return n, nil
		}
		return x, nil
	case TypeBoolean:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, s.fail(field, RuleType, fmt.Sprintf("%q is not a boolean", raw))
		}
		return b, nil
	case TypeStringList:
		if strings.HasPrefix(strings.TrimSpace(raw), "[") {
			return s.parseJSON(field, raw)
		}
		if strings.TrimSpace(raw) == "" {
			return []any{}, nil
		}
		parts := strings.Split(raw, ",")
		list := make([]any, len(parts))
		for i, p := range parts {
			list[i] = strings.TrimSpace(p)
		}
		return list, nil
	default:
		return s.parseJSON(field, raw)
	}
}

func (s *Schema) parseJSON(field, raw string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, s.fail(field, RuleType, fmt.Sprintf("invalid JSON: %v", err))
	}
	v, err := types.NormalizeValue(v)
	if err != nil {
		return nil, s.fail(field, RuleType, err.Error())
	}
	return v, nil
}
