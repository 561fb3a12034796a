package reader_test

import (
	"testing"

	"github.com/hamba/avdl"
	"github.com/hamba/avdl/reader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead_SimpleProtocol(t *testing.T) {
	src := `
@namespace("org.hamba")
protocol Simple {
  /** A greeting record. */
  record Greeting {
    string message;
  }

  string hello(string name);
}`
	result, diags := reader.Read("simple.avdl", src, nil)

	require.False(t, diags.HasFatal())
	require.NotNil(t, result.Protocol)
	assert.Equal(t, "Simple", result.Protocol.Name())
	assert.Equal(t, "org.hamba", result.Protocol.Namespace())

	require.Len(t, result.Protocol.Types(), 1)
	rec, ok := result.Protocol.Types()[0].(*avdl.RecordSchema)
	require.True(t, ok)
	assert.Equal(t, "A greeting record.", rec.Doc())

	msg := result.Protocol.Message("hello")
	require.NotNil(t, msg)
	require.Len(t, msg.Request(), 1)
	assert.Equal(t, "name", msg.Request()[0].Name())
}

func TestRead_NullableFieldDefaultReordersUnion(t *testing.T) {
	src := `
protocol P {
  record Foo {
    string? a = null;
  }
}`
	result, diags := reader.Read("p.avdl", src, nil)

	require.False(t, diags.HasFatal())
	rec := result.Protocol.Types()[0].(*avdl.RecordSchema)
	u, ok := rec.Fields()[0].Type().(*avdl.UnionSchema)
	require.True(t, ok)
	assert.Equal(t, avdl.Null, u.Types()[0].Type())
}

func TestRead_DecimalSugar(t *testing.T) {
	src := `
protocol P {
  record Foo {
    decimal(9,2) amount;
  }
}`
	result, diags := reader.Read("p.avdl", src, nil)

	require.False(t, diags.HasFatal())
	rec := result.Protocol.Types()[0].(*avdl.RecordSchema)
	prim, ok := rec.Fields()[0].Type().(*avdl.PrimitiveSchema)
	require.True(t, ok)
	assert.Equal(t, avdl.Bytes, prim.Type())
	dl, ok := prim.Logical().(*avdl.DecimalLogicalSchema)
	require.True(t, ok)
	assert.Equal(t, 9, dl.Precision())
	assert.Equal(t, 2, dl.Scale())
}

func TestRead_UnknownLogicalTypeKeptAsProperty(t *testing.T) {
	src := `
protocol P {
  record Foo {
    @logicalType("made-up") int a;
  }
}`
	result, diags := reader.Read("p.avdl", src, nil)

	require.False(t, diags.HasFatal())
	rec := result.Protocol.Types()[0].(*avdl.RecordSchema)
	prim, ok := rec.Fields()[0].Type().(*avdl.PrimitiveSchema)
	require.True(t, ok)
	assert.Nil(t, prim.Logical())
	assert.Equal(t, "made-up", prim.Prop("logicalType"))
}

func TestRead_ImportRequiresLoader(t *testing.T) {
	src := `
protocol P {
  import idl "other.avdl";
}`
	result, diags := reader.Read("p.avdl", src, nil)

	assert.True(t, diags.HasFatal())
	require.Len(t, result.Imports, 1)
	assert.Equal(t, "idl", result.Imports[0].Kind)
	assert.Equal(t, "other.avdl", result.Imports[0].Path)
}

func TestRead_OrderOnRecordIsRejected(t *testing.T) {
	src := `
protocol P {
  @order("ignore")
  record Foo {
    string a;
  }
}`
	_, diags := reader.Read("p.avdl", src, nil)

	assert.True(t, diags.HasFatal())
}

func TestRead_OrderOnFieldTypeIsRejected(t *testing.T) {
	src := `
protocol P {
  record Foo {
    @order("ignore") string a;
  }
}`
	_, diags := reader.Read("p.avdl", src, nil)

	assert.True(t, diags.HasFatal())
}

func TestRead_ZeroSizeFixedIsFatal(t *testing.T) {
	src := `
protocol P {
  fixed F(0);
}`
	_, diags := reader.Read("p.avdl", src, nil)

	assert.True(t, diags.HasFatal())
}

func TestRead_DuplicateMessageNameIsFatal(t *testing.T) {
	src := `
protocol P {
  null a();
  null a();
}`
	_, diags := reader.Read("p.avdl", src, nil)

	assert.True(t, diags.HasFatal())
}

func TestRead_OrphanDocCommentWarns(t *testing.T) {
	src := `
protocol P {
  /** orphaned */
}`
	_, diags := reader.Read("p.avdl", src, nil)

	assert.False(t, diags.HasFatal())
	found := false
	for _, d := range diags.All() {
		if d.Severity == avdl.SeverityWarning {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRead_NonProtocolFileWithMainSchema(t *testing.T) {
	src := `
namespace org.hamba;

schema Foo;

record Foo {
  string a;
}`
	result, diags := reader.Read("p.avdl", src, nil)

	require.False(t, diags.HasFatal())
	require.Nil(t, result.Protocol)
	require.Len(t, result.Types, 1)
	ref, ok := result.MainSchema.(*avdl.Reference)
	require.True(t, ok)
	assert.Equal(t, "org.hamba.Foo", ref.FullName())
}
