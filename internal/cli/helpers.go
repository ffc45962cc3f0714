package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/shelf/pkg/schema"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

// noneValue is the command-line spelling of "leave this field unchanged".
const noneValue = "none"

// parseID parses a record id argument.
func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id < 1 {
		return 0, usageError{fmt.Errorf("%w: %q", types.ErrInvalidID, s)}
	}
	return id, nil
}

// pair is one field=value argument.
type pair struct {
	field string
	raw   string
}

// splitPairs parses field=value arguments, keeping their order.
func splitPairs(args []string) ([]pair, error) {
	pairs := make([]pair, 0, len(args))
	for _, arg := range args {
		field, raw, ok := strings.Cut(arg, "=")
		field = strings.TrimSpace(field)
		if !ok || field == "" {
			return nil, usageErrorf("expected field=value, got %q", arg)
		}
		pairs = append(pairs, pair{field: field, raw: raw})
	}
	return pairs, nil
}

// buildFields merges the --data JSON object with field=value pairs; pairs
// win over --data. Each raw value is typed by the entity schema. When
// dropNone is set, fields given as the literal "none" are left out.
func buildFields(sc *schema.Schema, data string, args []string, dropNone bool) (map[string]any, error) {
	fields := map[string]any{}
	if strings.TrimSpace(data) != "" {
		rec, err := types.DecodeRecord([]byte(data))
		if err != nil {
			return nil, usageErrorf("--data: %v", err)
		}
		for k, v := range rec {
			if dropNone && v == noneValue {
				continue
			}
			fields[k] = v
		}
	}

	pairs, err := splitPairs(args)
	if err != nil {
		return nil, err
	}
	for _, p := range pairs {
		if dropNone && strings.TrimSpace(p.raw) == noneValue {
			continue
		}
		v, err := sc.ParseValue(p.field, p.raw)
		if err != nil {
			return nil, err
		}
		fields[p.field] = v
	}
	return fields, nil
}
