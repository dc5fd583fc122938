package schema

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decimalStruct struct {
	Lo, Mid, Hi, Flags uint32
}

type widget struct {
	Id       int32
	Name     string `minidb:"max=32"`
	Price    decimalStruct
	Created  time.Time
	Nickname *string `minidb:"max=16"`
	Quantity int32
	internal string //nolint:unused
}

func TestBuildComputesFieldOffsetsInDeclarationOrder(t *testing.T) {
	md, err := Build(reflect.TypeOf(widget{}))
	require.NoError(t, err)

	assert.Equal(t, 0, md.IdFieldIndex)
	require.Len(t, md.Fields, 5)

	assert.Equal(t, "Name", md.Fields[0].Name)
	assert.Equal(t, 0, md.Fields[0].Offset)
	assert.Equal(t, 32, md.Fields[0].Width)

	assert.Equal(t, "Price", md.Fields[1].Name)
	assert.Equal(t, 32, md.Fields[1].Offset)
	assert.Equal(t, KindDecimal, md.Fields[1].Kind)

	assert.Equal(t, "Created", md.Fields[2].Name)
	assert.Equal(t, KindTimestamp, md.Fields[2].Kind)

	nickname := md.Fields[3]
	assert.Equal(t, "Nickname", nickname.Name)
	assert.True(t, nickname.Nullable)
	assert.Equal(t, 17, nickname.Width) // 1 null-flag byte + 16 string bytes

	assert.Equal(t, "Quantity", md.Fields[4].Name)
	assert.Equal(t, KindInt32, md.Fields[4].Kind)

	wantWidth := 1 + 4 + 32 + 16 + 8 + 17 + 4
	assert.Equal(t, wantWidth, md.RecordWidth)
}

func TestBuildRejectsStringFieldWithoutMaxTag(t *testing.T) {
	type missingMax struct {
		Id   int32
		Name string
	}
	_, err := Build(reflect.TypeOf(missingMax{}))
	assert.Error(t, err)
}

func TestBuildRejectsMissingIdField(t *testing.T) {
	type noId struct {
		Name string `minidb:"max=10"`
	}
	_, err := Build(reflect.TypeOf(noId{}))
	assert.Error(t, err)
}

func TestBuildRejectsWrongIdType(t *testing.T) {
	type wrongId struct {
		Id   int64
		Name string `minidb:"max=10"`
	}
	_, err := Build(reflect.TypeOf(wrongId{}))
	assert.Error(t, err)
}

func TestBuildSkipsFieldsTaggedNotPersisted(t *testing.T) {
	type skipped struct {
		Id      int32
		Visible string `minidb:"max=5"`
		Hidden  string `minidb:"-"`
	}
	md, err := Build(reflect.TypeOf(skipped{}))
	require.NoError(t, err)
	require.Len(t, md.Fields, 1)
	assert.Equal(t, "Visible", md.Fields[0].Name)
}

func TestBuildRejectsUnsupportedFieldType(t *testing.T) {
	type unsupported struct {
		Id   int32
		Data []byte
	}
	_, err := Build(reflect.TypeOf(unsupported{}))
	assert.Error(t, err)
}

func TestForCachesMetadataAcrossCalls(t *testing.T) {
	md1, err := For(reflect.TypeOf(widget{}))
	require.NoError(t, err)
	md2, err := For(reflect.TypeOf(widget{}))
	require.NoError(t, err)
	assert.Same(t, md1, md2)
}
