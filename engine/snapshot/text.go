package snapshot

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var labelReplacer = strings.NewReplacer("_", " ", "-", " ")

// Label turns a key like "event_details" into "Event Details".
func Label(key string) string {
	// Casers are stateful, so each call gets its own.
	return cases.Title(language.Und).String(labelReplacer.Replace(key))
}

// Text renders a decoded document as indented "Label: value" lines.
func Text(v any) string {
	return render(v, "")
}

func render(v any, prefix string) string {
	switch t := v.(type) {
	case *Object:
		return strings.Join(objectLines(t, prefix), "\n")
	case []any:
		lines := make([]string, 0, len(t))
		for i, item := range t {
			if isComposite(item) {
				lines = append(lines, fmt.Sprintf("%sItem %d:", prefix, i+1))
				lines = append(lines, render(item, prefix+"  "))
				continue
			}
			lines = append(lines, prefix+"- "+Scalar(item))
		}
		return strings.Join(lines, "\n")
	default:
		return Scalar(v)
	}
}

func objectLines(o *Object, prefix string) []string {
	lines := make([]string, 0, o.Len())
	for _, k := range o.Keys() {
		v, _ := o.Get(k)
		label := Label(k)
		switch t := v.(type) {
		case *Object:
			lines = append(lines, prefix+label+":")
			lines = append(lines, objectLines(t, prefix+"  ")...)
		case []any:
			parts := make([]string, len(t))
			for i, e := range t {
				parts[i] = Inline(e)
			}
			lines = append(lines, prefix+label+": "+strings.Join(parts, ", "))
		default:
			lines = append(lines, prefix+label+": "+Scalar(v))
		}
	}
	return lines
}

func isComposite(v any) bool {
	switch v.(type) {
	case *Object, []any:
		return true
	}
	return false
}

// Inline renders v on a single line: scalars as text, composites as JSON.
func Inline(v any) string {
	if !isComposite(v) {
		return Scalar(v)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// Scalar renders a leaf value.
func Scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return fmt.Sprint(t)
	}
}
