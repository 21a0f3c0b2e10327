package filterexpr

import (
	"errors"
	"fmt"
	"strings"
)

// OrderField maps an order key to a SQL column or expression.
type OrderField struct {
	Column string
}

// OrderSchema describes ordering defaults and whitelisted keys.
type OrderSchema struct {
	DefaultPrimary     string
	DefaultPrimaryDesc bool
	FallbackKey        string
	FallbackDesc       bool
	Fields             map[string]OrderField
}

// parseOrderBy validates the raw order_by input against the schema and
// renders the ORDER BY column list. The fallback key is always appended
// as a tiebreak so pagination stays stable.
func parseOrderBy(raw string, schema OrderSchema) (string, error) { //nolint:gocognit,gocyclo // parsing DSL entails validation branches for readability
	if schema.Fields == nil {
		schema.Fields = map[string]OrderField{}
	}

	if schema.DefaultPrimary == "" {
		return "", errors.New("order schema default primary key required")
	}
	if schema.FallbackKey == "" {
		return "", errors.New("order schema fallback key required")
	}
	if _, ok := schema.Fields[schema.DefaultPrimary]; !ok {
		return "", fmt.Errorf("order key %q missing from schema fields", schema.DefaultPrimary)
	}
	if _, ok := schema.Fields[schema.FallbackKey]; !ok {
		return "", fmt.Errorf("fallback order key %q missing from schema fields", schema.FallbackKey)
	}

	type term struct {
		key  string
		desc bool
	}
	terms := []term{}

	raw = strings.TrimSpace(raw)
	if raw != "" {
		segments := strings.Split(raw, ",")
		seen := make(map[string]struct{}, len(segments))
		for _, seg := range segments {
			seg = strings.TrimSpace(seg)
			if seg == "" {
				continue
			}

			parts := strings.Fields(seg)
			key := parts[0]
			if _, ok := schema.Fields[key]; !ok {
				return "", fmt.Errorf("field %q cannot be used for ordering", key)
			}

			var desc bool
			switch len(parts) {
			case 1:
				desc = false
			case 2:
				switch strings.ToLower(parts[1]) {
				case "asc":
					desc = false
				case "desc":
					desc = true
				default:
					return "", fmt.Errorf("invalid direction %q for field %q", parts[1], key)
				}
			default:
				return "", fmt.Errorf("invalid order segment %q", seg)
			}

			if _, dup := seen[key]; dup {
				return "", fmt.Errorf("duplicate order key %q", key)
			}
			seen[key] = struct{}{}

			if len(terms) == 2 {
				return "", errors.New("order_by supports at most two keys")
			}
			terms = append(terms, term{key: key, desc: desc})
		}
	}

	if len(terms) == 0 {
		terms = append(terms, term{key: schema.DefaultPrimary, desc: schema.DefaultPrimaryDesc})
	}
	if terms[len(terms)-1].key != schema.FallbackKey {
		terms = append(terms, term{key: schema.FallbackKey, desc: schema.FallbackDesc})
	}

	rendered := make([]string, 0, len(terms))
	for _, t := range terms {
		dir := "ASC"
		if t.desc {
			dir = "DESC"
		}
		rendered = append(rendered, schema.Fields[t.key].Column+" "+dir)
	}
	return strings.Join(rendered, ", "), nil
}
