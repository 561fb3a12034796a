package avdl_test

import (
	"testing"

	"github.com/hamba/avdl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecordSchema(t *testing.T) {
	f, err := avdl.NewField("a", avdl.NewPrimitiveSchema(avdl.Int, nil))
	require.NoError(t, err)

	s, err := avdl.NewRecordSchema("test", "org.hamba", []*avdl.Field{f}, avdl.WithDoc("a record"))
	require.NoError(t, err)

	assert.Equal(t, avdl.Record, s.Type())
	assert.Equal(t, "test", s.Name())
	assert.Equal(t, "org.hamba", s.Namespace())
	assert.Equal(t, "org.hamba.test", s.FullName())
	assert.Equal(t, "a record", s.Doc())
	assert.False(t, s.IsError())
	assert.Len(t, s.Fields(), 1)
}

func TestNewErrorRecordSchema(t *testing.T) {
	s, err := avdl.NewErrorRecordSchema("boom", "", nil)
	require.NoError(t, err)

	assert.True(t, s.IsError())
}

func TestNewRecordSchema_InvalidName(t *testing.T) {
	_, err := avdl.NewRecordSchema("1bad", "", nil)

	assert.Error(t, err)
}

func TestNewField_DefaultOrderIsAsc(t *testing.T) {
	f, err := avdl.NewField("a", avdl.NewPrimitiveSchema(avdl.Int, nil))
	require.NoError(t, err)

	assert.Equal(t, avdl.Asc, f.Order())
	assert.False(t, f.HasDefault())
}

func TestNewField_InvalidOrder(t *testing.T) {
	_, err := avdl.NewField("a", avdl.NewPrimitiveSchema(avdl.Int, nil), avdl.WithOrder("sideways"))

	assert.Error(t, err)
}

func TestNewEnumSchema(t *testing.T) {
	s, err := avdl.NewEnumSchema("Suit", "", []string{"SPADES", "HEARTS"})
	require.NoError(t, err)

	assert.Equal(t, []string{"SPADES", "HEARTS"}, s.Symbols())
	assert.False(t, s.HasDefault())
}

func TestNewEnumSchema_InvalidDefault(t *testing.T) {
	_, err := avdl.NewEnumSchema("Suit", "", []string{"SPADES"}, avdl.WithDefault("CLUBS"))

	assert.Error(t, err)
}

func TestNewEnumSchema_InvalidSymbol(t *testing.T) {
	_, err := avdl.NewEnumSchema("Suit", "", []string{"not valid!"})

	assert.Error(t, err)
}

func TestNewFixedSchema(t *testing.T) {
	s, err := avdl.NewFixedSchema("MD5", "", 16)
	require.NoError(t, err)

	assert.Equal(t, 16, s.Size())
	assert.Nil(t, s.Logical())
}

func TestNewFixedSchema_NegativeSize(t *testing.T) {
	_, err := avdl.NewFixedSchema("Bad", "", -1)

	assert.Error(t, err)
}

func TestNewFixedSchema_ZeroSize(t *testing.T) {
	_, err := avdl.NewFixedSchema("Bad", "", 0)

	assert.Error(t, err)
}

func TestFixedSchema_Logical_Duration(t *testing.T) {
	s, err := avdl.NewFixedSchema("Dur", "", 12, avdl.WithProps([]avdl.Property{
		{Key: "logicalType", Value: "duration"},
	}))
	require.NoError(t, err)

	l := s.Logical()
	require.NotNil(t, l)
	assert.Equal(t, avdl.Duration, l.Type())
}

func TestFixedSchema_Logical_Decimal(t *testing.T) {
	s, err := avdl.NewFixedSchema("Dec", "", 8, avdl.WithProps([]avdl.Property{
		{Key: "logicalType", Value: "decimal"},
		{Key: "precision", Value: 10},
		{Key: "scale", Value: 2},
	}))
	require.NoError(t, err)

	l := s.Logical()
	require.NotNil(t, l)
	dl, ok := l.(*avdl.DecimalLogicalSchema)
	require.True(t, ok)
	assert.Equal(t, 10, dl.Precision())
	assert.Equal(t, 2, dl.Scale())
}

func TestNewUnionSchema(t *testing.T) {
	s, err := avdl.NewUnionSchema([]avdl.Schema{
		avdl.NewPrimitiveSchema(avdl.Null, nil),
		avdl.NewPrimitiveSchema(avdl.String, nil),
	})
	require.NoError(t, err)

	assert.Len(t, s.Types(), 2)
	assert.False(t, s.IsNullableType())
}

func TestNewUnionSchema_TooFewMembers(t *testing.T) {
	_, err := avdl.NewUnionSchema([]avdl.Schema{avdl.NewPrimitiveSchema(avdl.Null, nil)})

	assert.Error(t, err)
}

func TestNewUnionSchema_NestedUnion(t *testing.T) {
	inner, err := avdl.NewUnionSchema([]avdl.Schema{
		avdl.NewPrimitiveSchema(avdl.Null, nil),
		avdl.NewPrimitiveSchema(avdl.String, nil),
	})
	require.NoError(t, err)

	_, err = avdl.NewUnionSchema([]avdl.Schema{inner, avdl.NewPrimitiveSchema(avdl.Int, nil)})

	assert.Error(t, err)
}

func TestNewUnionSchema_DuplicateMember(t *testing.T) {
	_, err := avdl.NewUnionSchema([]avdl.Schema{
		avdl.NewPrimitiveSchema(avdl.String, nil),
		avdl.NewPrimitiveSchema(avdl.String, nil),
	})

	assert.Error(t, err)
}

func TestNewUnionSchema_LogicalAndBarePrimitiveSameKeyIsDuplicate(t *testing.T) {
	_, err := avdl.NewUnionSchema([]avdl.Schema{
		avdl.NewPrimitiveSchema(avdl.Long, nil),
		avdl.NewPrimitiveSchema(avdl.Long, avdl.NewPrimitiveLogicalSchema(avdl.TimestampMillis)),
	})

	assert.Error(t, err)
}

func TestNewNullableUnion_Reorder(t *testing.T) {
	u, err := avdl.NewNullableUnion(avdl.NewPrimitiveSchema(avdl.String, nil))
	require.NoError(t, err)
	assert.True(t, u.IsNullableType())

	u.Reorder(true)
	assert.Equal(t, avdl.Null, u.Types()[0].Type())

	u.Reorder(false)
	assert.Equal(t, avdl.Null, u.Types()[1].Type())
}

func TestReference_FullName(t *testing.T) {
	r := avdl.NewReference("Foo", "org.hamba", avdl.SourceSpan{})

	assert.Equal(t, "org.hamba.Foo", r.FullName())
	assert.Equal(t, avdl.Ref, r.Type())
}

func TestIsReservedTypeName(t *testing.T) {
	assert.True(t, avdl.IsReservedTypeName("record"))
	assert.True(t, avdl.IsReservedTypeName("UUID"))
	assert.False(t, avdl.IsReservedTypeName("MyRecord"))
}
