// Package domain defines the event brief schema, the value sentinels, and
// validation for payloads entering the fill pipeline.
package domain

import (
	"bytes"
	"encoding/json"
	"sort"
)

// EventSchema is the root of an event brief form.
type EventSchema struct {
	TemplateName string
	Sections     []Section
	Extra        map[string]json.RawMessage
}

// Section is a named, ordered list of field groups.
type Section struct {
	SectionName string
	InputFields []FieldGroup
	Extra       map[string]json.RawMessage
}

// FieldGroup is a headed, ordered list of fields.
type FieldGroup struct {
	FieldsHeading string
	Fields        []FormField
	Extra         map[string]json.RawMessage
}

// FormField is a single form input. InputValue holds a string, a list, or a
// Contact-shaped object once filled.
type FormField struct {
	InputName  string
	InputValue any
	DataType   DataType
	FieldType  string
	Options    []string
	Prompt     string
	HelperText TextList
	Extra      map[string]json.RawMessage
}

// TextList is a list of strings that also accepts a bare string on decode.
type TextList []string

func (t *TextList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one == "" {
			*t = TextList{}
		} else {
			*t = TextList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*t = many
	return nil
}

// FieldLocation addresses a field inside an EventSchema.
type FieldLocation struct {
	Section int
	Group   int
	Field   int
}

// Field returns a pointer to the addressed field.
func (s *EventSchema) Field(loc FieldLocation) *FormField {
	return &s.Sections[loc.Section].InputFields[loc.Group].Fields[loc.Field]
}

// ValuesByName maps every named field to its current value. Later fields
// with the same name win.
func (s *EventSchema) ValuesByName() map[string]any {
	out := make(map[string]any)
	for _, sec := range s.Sections {
		for _, g := range sec.InputFields {
			for _, f := range g.Fields {
				if f.InputName != "" {
					out[f.InputName] = f.InputValue
				}
			}
		}
	}
	return out
}

// ParseSchema decodes a schema payload without validating it.
func ParseSchema(data []byte) (*EventSchema, error) {
	var s EventSchema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// --- JSON ---

// member is one key of an object being encoded.
type member struct {
	key   string
	value any
	keep  bool
}

func encodeObject(members []member, extra map[string]json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	write := func(k string, raw []byte) {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		kb, _ := json.Marshal(k)
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(raw)
	}
	for _, m := range members {
		if !m.keep {
			continue
		}
		raw, err := json.Marshal(m.value)
		if err != nil {
			return nil, err
		}
		write(m.key, raw)
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		write(k, extra[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// take removes key from raw and decodes it into dst when present.
func take(raw map[string]json.RawMessage, key string, dst any) error {
	v, ok := raw[key]
	if !ok {
		return nil
	}
	delete(raw, key)
	if string(v) == "null" {
		return nil
	}
	return json.Unmarshal(v, dst)
}

func leftover(raw map[string]json.RawMessage) map[string]json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

func (s EventSchema) MarshalJSON() ([]byte, error) {
	sections := s.Sections
	if sections == nil {
		sections = []Section{}
	}
	return encodeObject([]member{
		{"templateName", s.TemplateName, true},
		{"sections", sections, true},
	}, s.Extra)
}

func (s *EventSchema) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := take(raw, "templateName", &s.TemplateName); err != nil {
		return err
	}
	if err := take(raw, "sections", &s.Sections); err != nil {
		return err
	}
	s.Extra = leftover(raw)
	return nil
}

func (s Section) MarshalJSON() ([]byte, error) {
	groups := s.InputFields
	if groups == nil {
		groups = []FieldGroup{}
	}
	return encodeObject([]member{
		{"sectionName", s.SectionName, true},
		{"inputFields", groups, true},
	}, s.Extra)
}

func (s *Section) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := take(raw, "sectionName", &s.SectionName); err != nil {
		return err
	}
	if err := take(raw, "inputFields", &s.InputFields); err != nil {
		return err
	}
	s.Extra = leftover(raw)
	return nil
}

func (g FieldGroup) MarshalJSON() ([]byte, error) {
	fields := g.Fields
	if fields == nil {
		fields = []FormField{}
	}
	return encodeObject([]member{
		{"fieldsHeading", g.FieldsHeading, true},
		{"fields", fields, true},
	}, g.Extra)
}

func (g *FieldGroup) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := take(raw, "fieldsHeading", &g.FieldsHeading); err != nil {
		return err
	}
	if err := take(raw, "fields", &g.Fields); err != nil {
		return err
	}
	g.Extra = leftover(raw)
	return nil
}

func (f FormField) MarshalJSON() ([]byte, error) {
	return encodeObject([]member{
		{"inputName", f.InputName, true},
		{"inputValue", f.InputValue, f.InputValue != nil},
		{"dataType", f.DataType, true},
		{"fieldType", f.FieldType, true},
		{"options", f.Options, f.Options != nil},
		{"prompt", f.Prompt, f.Prompt != ""},
		{"helperText", f.HelperText, f.HelperText != nil},
	}, f.Extra)
}

func (f *FormField) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, kv := range []struct {
		key string
		dst any
	}{
		{"inputName", &f.InputName},
		{"inputValue", &f.InputValue},
		{"dataType", &f.DataType},
		{"fieldType", &f.FieldType},
		{"options", &f.Options},
		{"prompt", &f.Prompt},
		{"helperText", &f.HelperText},
	} {
		if err := take(raw, kv.key, kv.dst); err != nil {
			return err
		}
	}
	f.Extra = leftover(raw)
	return nil
}
