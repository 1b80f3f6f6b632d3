package fill

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/WessleyAI/eventbrief/engine/domain"
)

// IsFilled reports whether v carries a value. "Nil", empty strings, zero
// numbers, false and empty containers are not filled.
func IsFilled(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != "" && x != domain.Nil
	case bool:
		return x
	case float64:
		return x != 0
	case int:
		return x != 0
	case json.Number:
		f, err := x.Float64()
		return err != nil || f != 0
	case []any:
		return len(x) > 0
	case []string:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}

// Coerce shapes an extracted value for a field of the given type.
func Coerce(t domain.DataType, v any) any {
	switch t.Kind() {
	case domain.KindArray:
		return toArray(v)
	case domain.KindObject:
		return toContact(v)
	case domain.KindString, domain.KindDate, domain.KindNumber:
		return v
	default:
		return v
	}
}

func toArray(v any) any {
	if !IsFilled(v) {
		return []string{}
	}
	switch x := v.(type) {
	case string:
		if !strings.Contains(x, ",") {
			return []string{x}
		}
		parts := strings.Split(x, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	case []any, []string:
		return x
	default:
		return []string{scalarText(x)}
	}
}

func toContact(v any) any {
	filled := IsFilled(v)
	if s, ok := v.(string); ok && filled {
		if head, tail, found := strings.Cut(s, "("); found {
			return domain.Contact{
				Name:  strings.TrimSpace(head),
				Email: strings.TrimSpace(strings.ReplaceAll(tail, ")", "")),
			}
		}
	}
	if m, ok := v.(map[string]any); ok && filled {
		return m
	}
	name := v
	if name == nil {
		name = domain.Nil
	}
	return domain.Contact{Name: name, Email: domain.Nil}
}

func scalarText(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return domain.Nil
		}
		return string(b)
	}
}
