package codec

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AterDev/Perigon.minidb/internal/schema"
)

type decimalStruct struct {
	Lo, Mid, Hi, Flags uint32
}

type order struct {
	Id       int32
	Customer string `minidb:"max=24"`
	Total    decimalStruct
	PlacedAt time.Time
	Note     *string `minidb:"max=8"`
	Quantity int32
}

func buildMetadata(t *testing.T) *schema.Metadata {
	t.Helper()
	md, err := schema.Build(reflect.TypeOf(order{}))
	require.NoError(t, err)
	return md
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	md := buildMetadata(t)

	note := "rush"
	want := order{
		Customer: "Ada Lovelace",
		Total:    decimalStruct{Lo: 12345, Mid: 0, Hi: 0, Flags: 1 << 16},
		PlacedAt: time.Date(2026, 3, 4, 12, 30, 0, 0, time.UTC),
		Note:     &note,
		Quantity: 7,
	}

	buf := make([]byte, md.RecordWidth)
	require.NoError(t, Encode(md, 42, reflect.ValueOf(want), buf))
	assert.True(t, IsLive(buf))

	var got order
	id, err := Decode(md, buf, reflect.ValueOf(&got).Elem())
	require.NoError(t, err)

	assert.EqualValues(t, 42, id)
	assert.Equal(t, want.Customer, got.Customer)
	assert.Equal(t, want.Total, got.Total)
	assert.True(t, want.PlacedAt.Equal(got.PlacedAt))
	require.NotNil(t, got.Note)
	assert.Equal(t, *want.Note, *got.Note)
	assert.Equal(t, want.Quantity, got.Quantity)
}

func TestEncodeDecodeNullField(t *testing.T) {
	md := buildMetadata(t)

	want := order{Customer: "anon", Quantity: 1}
	buf := make([]byte, md.RecordWidth)
	require.NoError(t, Encode(md, 1, reflect.ValueOf(want), buf))

	var got order
	_, err := Decode(md, buf, reflect.ValueOf(&got).Elem())
	require.NoError(t, err)
	assert.Nil(t, got.Note)
}

type narrowName struct {
	Id   int32
	Name string `minidb:"max=4"`
}

func TestEncodeTruncatesStringAtUTF8Boundary(t *testing.T) {
	md, err := schema.Build(reflect.TypeOf(narrowName{}))
	require.NoError(t, err)

	// "café" is 5 bytes in UTF-8 ("caf" + a 2-byte é); a 4-byte budget
	// must cut before the é, not split its second byte off on its own.
	want := narrowName{Name: "café"}
	buf := make([]byte, md.RecordWidth)
	require.NoError(t, Encode(md, 1, reflect.ValueOf(want), buf))

	var got narrowName
	_, err = Decode(md, buf, reflect.ValueOf(&got).Elem())
	require.NoError(t, err)
	assert.Equal(t, "caf", got.Name)
}

func TestEncodeRejectsShortBuffer(t *testing.T) {
	md := buildMetadata(t)
	buf := make([]byte, md.RecordWidth-1)
	err := Encode(md, 1, reflect.ValueOf(order{}), buf)
	assert.Error(t, err)
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
	md := buildMetadata(t)
	buf := make([]byte, md.RecordWidth-1)
	var got order
	_, err := Decode(md, buf, reflect.ValueOf(&got).Elem())
	assert.Error(t, err)
}
