package codec

import (
	"encoding/binary"
	"reflect"
)

func zeroPointer(fv reflect.Value) reflect.Value {
	return reflect.Zero(fv.Type())
}

func newPointer(fv reflect.Value) reflect.Value {
	return reflect.New(fv.Type().Elem())
}

// encodeDecimal writes a minidb.Decimal-shaped struct value as four
// little-endian 32-bit words (Lo, Mid, Hi, Flags).
func encodeDecimal(fv reflect.Value, dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:4], uint32(fv.FieldByName("Lo").Uint()))
	binary.LittleEndian.PutUint32(dst[4:8], uint32(fv.FieldByName("Mid").Uint()))
	binary.LittleEndian.PutUint32(dst[8:12], uint32(fv.FieldByName("Hi").Uint()))
	binary.LittleEndian.PutUint32(dst[12:16], uint32(fv.FieldByName("Flags").Uint()))
}

func decodeDecimal(src []byte, fv reflect.Value) {
	fv.FieldByName("Lo").SetUint(uint64(binary.LittleEndian.Uint32(src[0:4])))
	fv.FieldByName("Mid").SetUint(uint64(binary.LittleEndian.Uint32(src[4:8])))
	fv.FieldByName("Hi").SetUint(uint64(binary.LittleEndian.Uint32(src[8:12])))
	fv.FieldByName("Flags").SetUint(uint64(binary.LittleEndian.Uint32(src[12:16])))
}
