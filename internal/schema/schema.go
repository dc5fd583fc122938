// Package schema computes the fixed-byte-width record layout for a
// user-declared entity type by reflecting over its exported fields. A
// Metadata value is computed once per entity type and never recomputed
// (see cache.go).
package schema

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Kind identifies one of the logical field types supported on disk.
type Kind int

const (
	KindInt32 Kind = iota
	KindBool
	KindDecimal
	KindTimestamp
	KindEnum
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInt32:
		return "int32"
	case KindBool:
		return "bool"
	case KindDecimal:
		return "decimal"
	case KindTimestamp:
		return "timestamp"
	case KindEnum:
		return "enum"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Field describes one persisted, non-Id field of an entity.
type Field struct {
	Name        string
	Index       int  // index into reflect.Value.Field
	Kind        Kind
	Nullable    bool
	MaxStrBytes int // only meaningful for KindString
	Width       int // total bytes on disk, including the null flag byte if Nullable
	Offset      int // byte offset within the record, after tombstone+Id
	GoType      reflect.Type
}

// Metadata is the computed, immutable layout for one entity type.
type Metadata struct {
	Type         reflect.Type
	IdFieldIndex int
	Fields       []Field
	RecordWidth  int // 1 (tombstone) + 4 (Id) + sum of field widths
}

var timeType = reflect.TypeOf(time.Time{})

// isDecimalType recognizes minidb.Decimal structurally (by its four
// uint32 words) rather than by identity, so this package does not need
// to import the root package and create a cycle.
func isDecimalType(t reflect.Type) bool {
	if t.Kind() != reflect.Struct || t.NumField() != 4 {
		return false
	}
	want := [4]string{"Lo", "Mid", "Hi", "Flags"}
	for i, name := range want {
		sf := t.Field(i)
		if sf.Name != name || sf.Type.Kind() != reflect.Uint32 {
			return false
		}
	}
	return true
}

const (
	widthInt32     = 4
	widthBool      = 1
	widthDecimal   = 16
	widthTimestamp = 8
	widthEnum      = 4
	nullFlagWidth  = 1
)

// Build reflects over t (which must be a struct type) and computes its
// Metadata afresh on every call; callers should go through For in
// cache.go, which calls Build at most once per type.
func Build(t reflect.Type) (*Metadata, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("minidb: %s is not a struct", t)
	}

	md := &Metadata{Type: t, IdFieldIndex: -1}
	offset := 0

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" {
			continue // unexported
		}

		tag := sf.Tag.Get("minidb")
		if tag == "-" {
			continue // explicitly not persisted
		}

		if sf.Name == "Id" {
			if sf.Type.Kind() != reflect.Int32 || sf.Type != reflect.TypeOf(int32(0)) {
				return nil, fmt.Errorf("minidb: %s.Id must be int32, got %s", t, sf.Type)
			}
			md.IdFieldIndex = i
			continue
		}

		f, err := buildField(sf, tag)
		if err != nil {
			return nil, fmt.Errorf("minidb: %s.%s: %w", t, sf.Name, err)
		}
		f.Index = i
		f.Offset = offset
		md.Fields = append(md.Fields, f)
		offset += f.Width
	}

	if md.IdFieldIndex < 0 {
		return nil, fmt.Errorf("minidb: %s has no Id field of type int32", t)
	}

	md.RecordWidth = 1 + 4 + offset
	return md, nil
}

var int32Type = reflect.TypeOf(int32(0))

func buildField(sf reflect.StructField, tag string) (Field, error) {
	typ := sf.Type
	nullable := false
	if typ.Kind() == reflect.Ptr {
		nullable = true
		typ = typ.Elem()
	}

	f := Field{Name: sf.Name, Nullable: nullable, GoType: sf.Type}

	switch {
	case typ == timeType:
		f.Kind = KindTimestamp
		f.Width = widthTimestamp

	case isDecimalType(typ):
		f.Kind = KindDecimal
		f.Width = widthDecimal

	case typ.Kind() == reflect.Bool:
		f.Kind = KindBool
		f.Width = widthBool

	case typ.Kind() == reflect.String:
		maxBytes, ok := parseMaxTag(tag)
		if !ok {
			return Field{}, fmt.Errorf("string field requires a declared max byte length, e.g. `minidb:\"max=50\"`")
		}
		f.Kind = KindString
		f.MaxStrBytes = maxBytes
		f.Width = maxBytes

	case typ.Kind() == reflect.Int32:
		if typ == int32Type {
			f.Kind = KindInt32
			f.Width = widthInt32
		} else {
			f.Kind = KindEnum
			f.Width = widthEnum
		}

	default:
		return Field{}, fmt.Errorf("unsupported field type %s", sf.Type)
	}

	if nullable {
		f.Width += nullFlagWidth
	}
	return f, nil
}

func parseMaxTag(tag string) (int, bool) {
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		if v, ok := strings.CutPrefix(part, "max="); ok {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return 0, false
			}
			return n, true
		}
	}
	return 0, false
}
