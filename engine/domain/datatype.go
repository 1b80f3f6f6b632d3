package domain

import "strings"

// DataType is the raw dataType tag of a form field as it appears on the wire.
type DataType string

// Kind is the closed set of value shapes a field can be coerced into.
type Kind uint8

const (
	KindString Kind = iota
	KindArray
	KindObject
	KindDate
	KindNumber
)

func (k Kind) String() string {
	switch k {
	case KindArray:
		return "Array"
	case KindObject:
		return "Object"
	case KindDate:
		return "Date"
	case KindNumber:
		return "Number"
	default:
		return "String"
	}
}

// Kind maps the tag onto its Kind. Unknown and empty tags are strings.
func (d DataType) Kind() Kind {
	switch strings.TrimSpace(string(d)) {
	case "Array":
		return KindArray
	case "Object":
		return KindObject
	case "Date":
		return KindDate
	case "Number":
		return KindNumber
	default:
		return KindString
	}
}

// Nil is the sentinel meaning "value not determined". It is never null.
const Nil = "Nil"

// Contact is the {Name, Email} pair used for Object fields.
type Contact struct {
	Name  any    `json:"Name"`
	Email string `json:"Email"`
}
