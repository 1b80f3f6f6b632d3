package rag

import (
	"strings"

	"github.com/WessleyAI/eventbrief/engine/snapshot"
)

// alias maps a section phrase to the top-level snapshot keys that usually
// hold its data.
type alias struct {
	phrase string
	keys   []string
}

var aliases = []alias{
	{"project overview", []string{"project_kickoff", "basic_info", "event_details", "event", "project"}},
	{"project stakeholders", []string{"contacts", "stakeholders", "team", "people"}},
	{"objectives & audience", []string{"objectives", "audience", "goals", "targets"}},
	{"story & client experience", []string{"story", "experience", "message", "narrative"}},
	{"historical learnings", []string{"historical_learnings", "historical_context", "previous_year", "history", "learnings"}},
	{"agency deliverables", []string{"agency_deliverables", "agency_requirements", "deliverables", "blue_studio", "must_haves"}},
}

// Sections that always see the whole snapshot.
var alwaysFull = map[string]bool{
	"project overview":     true,
	"project stakeholders": true,
}

// StructuredContext renders the part of snap relevant to section.
func StructuredContext(snap any, section string) string {
	lower := strings.ToLower(section)
	if alwaysFull[lower] {
		return snapshot.Text(snap)
	}
	obj, ok := snap.(*snapshot.Object)
	if !ok {
		return snapshot.Text(snap)
	}

	picked := snapshot.NewObject()
	for _, key := range AliasKeys(section) {
		if v, ok := obj.Get(key); ok {
			picked.Set(key, v)
		}
	}
	if picked.Len() == 0 {
		return snapshot.Text(snap)
	}
	return snapshot.Text(picked)
}

// AliasKeys returns the candidate keys of every alias row matching section.
// A row matches when its phrase, or any of its keys, occurs in the
// lowercased section name.
func AliasKeys(section string) []string {
	lower := strings.ToLower(section)
	var keys []string
	for _, a := range aliases {
		if matches(lower, a) {
			keys = append(keys, a.keys...)
		}
	}
	return keys
}

func matches(lower string, a alias) bool {
	if strings.Contains(lower, a.phrase) {
		return true
	}
	for _, k := range a.keys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// empty reports values with nothing to read.
func empty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case *snapshot.Object:
		return t.Len() == 0
	case []any:
		return len(t) == 0
	case string:
		return t == ""
	}
	return false
}
