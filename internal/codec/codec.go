// Package codec serializes and deserializes a single entity to and from
// a fixed-length byte slot. It is driven entirely by the field layout
// schema.Build computed for the entity's type; the codec itself has no
// per-type special cases.
package codec

import (
	"encoding/binary"
	"fmt"
	"reflect"
	"time"
	"unicode/utf8"

	"github.com/AterDev/Perigon.minidb/internal/schema"
)

// ticksToUnixEpoch is the number of 100ns ticks between the .NET
// DateTime epoch (0001-01-01) and the Unix epoch (1970-01-01), used to
// convert to and from ticks without an intermediate time.Duration: a
// Duration is an int64 count of nanoseconds, which overflows for any
// tick value far from 1970, including every ordinary modern date.
const ticksToUnixEpoch = 621355968000000000

// Encode writes e (an addressable struct value matching md.Type) into
// buf, which must be at least md.RecordWidth bytes. Encode always writes
// the tombstone byte as 0x00 (live); soft-deletion overwrites only that
// byte and never goes through Encode.
func Encode(md *schema.Metadata, id int32, e reflect.Value, buf []byte) error {
	if len(buf) < md.RecordWidth {
		return fmt.Errorf("minidb: codec: buffer of %d bytes is shorter than record width %d", len(buf), md.RecordWidth)
	}

	buf[0] = 0x00 // live
	binary.LittleEndian.PutUint32(buf[1:5], uint32(id))

	base := 5
	for _, f := range md.Fields {
		if err := encodeField(f, e, buf[base+f.Offset:]); err != nil {
			return fmt.Errorf("minidb: codec: field %s: %w", f.Name, err)
		}
	}
	return nil
}

// Decode reads a live record out of buf (exactly md.RecordWidth bytes, as
// produced by a slot copy) into e's fields and returns the decoded Id.
// Decode refuses to run against a short buffer.
func Decode(md *schema.Metadata, buf []byte, e reflect.Value) (int32, error) {
	if len(buf) < md.RecordWidth {
		return 0, fmt.Errorf("minidb: codec: buffer of %d bytes is shorter than record width %d", len(buf), md.RecordWidth)
	}

	id := int32(binary.LittleEndian.Uint32(buf[1:5]))

	base := 5
	for _, f := range md.Fields {
		if err := decodeField(f, buf[base+f.Offset:], e); err != nil {
			return 0, fmt.Errorf("minidb: codec: field %s: %w", f.Name, err)
		}
	}
	return id, nil
}

// IsLive reports whether the tombstone byte at the start of a slot marks
// it as live (0x00) rather than deleted (0x01).
func IsLive(slot []byte) bool { return len(slot) > 0 && slot[0] == 0x00 }

// Tombstone returns the single byte written to soft-delete a slot.
func Tombstone() byte { return 0x01 }

func encodeField(f schema.Field, e reflect.Value, dst []byte) error {
	fv := e.Field(f.Index)

	if f.Nullable {
		if fv.IsNil() {
			dst[0] = 1
			return nil
		}
		dst[0] = 0
		fv = fv.Elem()
		dst = dst[1:]
	}

	switch f.Kind {
	case schema.KindInt32:
		binary.LittleEndian.PutUint32(dst, uint32(fv.Int()))

	case schema.KindEnum:
		binary.LittleEndian.PutUint32(dst, uint32(fv.Int()))

	case schema.KindBool:
		if fv.Bool() {
			dst[0] = 0x01
		} else {
			dst[0] = 0x00
		}

	case schema.KindDecimal:
		encodeDecimal(fv, dst)

	case schema.KindTimestamp:
		t := fv.Interface().(time.Time).UTC()
		ticks := t.UnixNano()/100 + ticksToUnixEpoch
		binary.LittleEndian.PutUint64(dst, uint64(ticks))

	case schema.KindString:
		encodeString(fv.String(), f.MaxStrBytes, dst)

	default:
		return fmt.Errorf("unsupported kind %v", f.Kind)
	}
	return nil
}

func decodeField(f schema.Field, src []byte, e reflect.Value) error {
	fv := e.Field(f.Index)

	if f.Nullable {
		isNull := src[0] == 1
		src = src[1:]
		if isNull {
			fv.Set(zeroPointer(fv))
			return nil
		}
		// allocate the pointee and decode into it.
		fv.Set(newPointer(fv))
		fv = fv.Elem()
	}

	switch f.Kind {
	case schema.KindInt32:
		fv.SetInt(int64(int32(binary.LittleEndian.Uint32(src))))

	case schema.KindEnum:
		fv.SetInt(int64(int32(binary.LittleEndian.Uint32(src))))

	case schema.KindBool:
		fv.SetBool(src[0] != 0x00)

	case schema.KindDecimal:
		decodeDecimal(src, fv)

	case schema.KindTimestamp:
		ticks := int64(binary.LittleEndian.Uint64(src))
		t := time.Unix(0, (ticks-ticksToUnixEpoch)*100).UTC()
		fv.Set(reflect.ValueOf(t))

	case schema.KindString:
		fv.SetString(decodeString(src))

	default:
		return fmt.Errorf("unsupported kind %v", f.Kind)
	}
	return nil
}

// encodeString truncates s to at most maxBytes bytes at the greatest
// UTF-8 character boundary <= maxBytes, then zero-pads the remainder of
// dst (which is exactly maxBytes long). This is the engine's only lossy
// operation, performed silently.
func encodeString(s string, maxBytes int, dst []byte) {
	b := []byte(s)
	if len(b) > maxBytes {
		cut := maxBytes
		for cut > 0 && !utf8.RuneStart(b[cut]) {
			cut--
		}
		b = b[:cut]
	}
	copy(dst, b)
	for i := len(b); i < maxBytes; i++ {
		dst[i] = 0
	}
}

// decodeString reads bytes up to (but not including) the first 0x00.
func decodeString(src []byte) string {
	n := 0
	for n < len(src) && src[n] != 0 {
		n++
	}
	return string(src[:n])
}
