package avdl_test

import (
	"testing"

	"github.com/hamba/avdl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonical_BarePrimitive(t *testing.T) {
	got := avdl.Canonical(avdl.NewPrimitiveSchema(avdl.String, nil))

	assert.Equal(t, `"string"`, got)
}

func TestCanonical_PrimitiveWithLogical(t *testing.T) {
	s := avdl.NewPrimitiveSchema(avdl.Int, avdl.NewPrimitiveLogicalSchema(avdl.Date))

	got := avdl.Canonical(s)

	assert.Equal(t, `{"type":"int","logicalType":"date"}`, got)
}

func TestCanonical_PrimitiveWithUnrecognisedLogicalAsProperty(t *testing.T) {
	s := avdl.NewPrimitiveSchema(avdl.Int, nil, avdl.WithProps([]avdl.Property{
		{Key: "logicalType", Value: "frobnicate"},
	}))

	got := avdl.Canonical(s)

	assert.Equal(t, `{"type":"int","logicalType":"frobnicate"}`, got)
}

func TestCanonical_Record(t *testing.T) {
	f, err := avdl.NewField("a", avdl.NewPrimitiveSchema(avdl.Long, nil))
	require.NoError(t, err)
	s, err := avdl.NewRecordSchema("Foo", "org.hamba", []*avdl.Field{f})
	require.NoError(t, err)

	got := avdl.Canonical(s)

	assert.Equal(t, `{"type":"record","name":"Foo","namespace":"org.hamba","fields":[{"name":"a","type":"long"}]}`, got)
}

func TestCanonical_Record_NamedTypeShortcutOnRepeat(t *testing.T) {
	inner, err := avdl.NewFixedSchema("MD5", "org.hamba", 16)
	require.NoError(t, err)
	fa, err := avdl.NewField("a", inner)
	require.NoError(t, err)
	fb, err := avdl.NewField("b", inner)
	require.NoError(t, err)
	s, err := avdl.NewRecordSchema("Foo", "org.hamba", []*avdl.Field{fa, fb})
	require.NoError(t, err)

	got := avdl.Canonical(s)

	assert.Contains(t, got, `"type":"fixed","name":"MD5"`)
	assert.Contains(t, got, `{"name":"b","type":"MD5"}`)
}

func TestCanonical_Enum(t *testing.T) {
	s, err := avdl.NewEnumSchema("Suit", "", []string{"SPADES", "HEARTS"}, avdl.WithDefault("SPADES"))
	require.NoError(t, err)

	got := avdl.Canonical(s)

	assert.Equal(t, `{"type":"enum","name":"Suit","symbols":["SPADES","HEARTS"],"default":"SPADES"}`, got)
}

func TestCanonical_Array(t *testing.T) {
	s := avdl.NewArraySchema(avdl.NewPrimitiveSchema(avdl.String, nil))

	got := avdl.Canonical(s)

	assert.Equal(t, `{"type":"array","items":"string"}`, got)
}

func TestCanonical_Map(t *testing.T) {
	s := avdl.NewMapSchema(avdl.NewPrimitiveSchema(avdl.Int, nil))

	got := avdl.Canonical(s)

	assert.Equal(t, `{"type":"map","values":"int"}`, got)
}

func TestCanonical_Union(t *testing.T) {
	u, err := avdl.NewUnionSchema([]avdl.Schema{
		avdl.NewPrimitiveSchema(avdl.Null, nil),
		avdl.NewPrimitiveSchema(avdl.String, nil),
	})
	require.NoError(t, err)

	got := avdl.Canonical(u)

	assert.Equal(t, `["null","string"]`, got)
}

func TestCanonical_IntegralFloatDefaultGetsDecimalPoint(t *testing.T) {
	f, err := avdl.NewField("a", avdl.NewPrimitiveSchema(avdl.Double, nil), avdl.WithDefault(float64(3)))
	require.NoError(t, err)
	s, err := avdl.NewRecordSchema("Foo", "", []*avdl.Field{f})
	require.NoError(t, err)

	got := avdl.Canonical(s)

	assert.Contains(t, got, `"default":3.0`)
}

func TestEmitProtocol_InheritedNamespaceOmitted(t *testing.T) {
	f, err := avdl.NewField("a", avdl.NewPrimitiveSchema(avdl.Long, nil))
	require.NoError(t, err)
	rec, err := avdl.NewRecordSchema("Foo", "org.hamba", []*avdl.Field{f})
	require.NoError(t, err)
	p, err := avdl.NewProtocol("P", "org.hamba", []avdl.NamedSchema{rec}, nil, nil)
	require.NoError(t, err)

	got := avdl.EmitProtocol(p)

	assert.Contains(t, got, `"protocol":"P"`)
	assert.Contains(t, got, `"namespace":"org.hamba"`)
	assert.Contains(t, got, `{"type":"record","name":"Foo","fields":[{"name":"a","type":"long"}]}`)
	assert.NotContains(t, got, `"Foo","namespace"`)
}

func TestEmitProtocol_DivergentNamespaceKept(t *testing.T) {
	rec, err := avdl.NewRecordSchema("Foo", "org.other", nil)
	require.NoError(t, err)
	p, err := avdl.NewProtocol("P", "org.hamba", []avdl.NamedSchema{rec}, nil, nil)
	require.NoError(t, err)

	got := avdl.EmitProtocol(p)

	assert.Contains(t, got, `"name":"Foo","namespace":"org.other"`)
}

func TestEmitSchemata(t *testing.T) {
	a, err := avdl.NewFixedSchema("A", "org.hamba", 4)
	require.NoError(t, err)
	b, err := avdl.NewFixedSchema("B", "org.hamba", 8)
	require.NoError(t, err)

	got := avdl.EmitSchemata([]avdl.NamedSchema{a, b})

	assert.Contains(t, got, `"org.hamba.A":{"type":"fixed","name":"A","namespace":"org.hamba","size":4}`)
	assert.Contains(t, got, `"org.hamba.B":{"type":"fixed","name":"B","namespace":"org.hamba","size":8}`)
}
