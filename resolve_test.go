package avdl_test

import (
	"testing"

	"github.com/hamba/avdl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_BindsReference(t *testing.T) {
	target, err := avdl.NewFixedSchema("MD5", "org.hamba", 16)
	require.NoError(t, err)

	ref := avdl.NewReference("MD5", "org.hamba", avdl.SourceSpan{})
	f, err := avdl.NewField("sum", ref)
	require.NoError(t, err)
	rec, err := avdl.NewRecordSchema("Foo", "org.hamba", []*avdl.Field{f})
	require.NoError(t, err)

	p, err := avdl.NewProtocol("Proto", "org.hamba", []avdl.NamedSchema{target, rec}, nil, nil)
	require.NoError(t, err)

	diags := &avdl.Diagnostics{}
	reg := avdl.NewRegistry(p.Types(), diags, avdl.SourceSpan{})
	avdl.Resolve(p, reg, diags)

	require.False(t, diags.HasFatal())
	assert.Same(t, target, f.Type())
}

func TestResolve_UnresolvedReferenceIsFatal(t *testing.T) {
	ref := avdl.NewReference("Missing", "org.hamba", avdl.SourceSpan{})
	f, err := avdl.NewField("sum", ref)
	require.NoError(t, err)
	rec, err := avdl.NewRecordSchema("Foo", "org.hamba", []*avdl.Field{f})
	require.NoError(t, err)

	p, err := avdl.NewProtocol("Proto", "org.hamba", []avdl.NamedSchema{rec}, nil, nil)
	require.NoError(t, err)

	diags := &avdl.Diagnostics{}
	reg := avdl.NewRegistry(p.Types(), diags, avdl.SourceSpan{})
	avdl.Resolve(p, reg, diags)

	assert.True(t, diags.HasFatal())
}

func TestResolve_SelfReference(t *testing.T) {
	ref := avdl.NewReference("Node", "org.hamba", avdl.SourceSpan{})
	next, err := avdl.NewUnionSchema([]avdl.Schema{avdl.NewPrimitiveSchema(avdl.Null, nil), ref})
	require.NoError(t, err)
	f, err := avdl.NewField("next", next)
	require.NoError(t, err)
	rec, err := avdl.NewRecordSchema("Node", "org.hamba", []*avdl.Field{f})
	require.NoError(t, err)

	p, err := avdl.NewProtocol("Proto", "org.hamba", []avdl.NamedSchema{rec}, nil, nil)
	require.NoError(t, err)

	diags := &avdl.Diagnostics{}
	reg := avdl.NewRegistry(p.Types(), diags, avdl.SourceSpan{})
	avdl.Resolve(p, reg, diags)

	require.False(t, diags.HasFatal())
	assert.Same(t, rec, next.Types()[1])
}

func TestNewRegistry_DuplicateFullName(t *testing.T) {
	a, err := avdl.NewFixedSchema("Dup", "org.hamba", 4)
	require.NoError(t, err)
	b, err := avdl.NewFixedSchema("Dup", "org.hamba", 8)
	require.NoError(t, err)

	diags := &avdl.Diagnostics{}
	reg := avdl.NewRegistry([]avdl.NamedSchema{a, b}, diags, avdl.SourceSpan{})

	assert.True(t, diags.HasFatal())
	got, ok := reg.Lookup("org.hamba.Dup")
	require.True(t, ok)
	assert.Same(t, a, got)
}

func TestRegistry_Suggest(t *testing.T) {
	a, err := avdl.NewFixedSchema("Widget", "org.hamba", 4)
	require.NoError(t, err)

	diags := &avdl.Diagnostics{}
	reg := avdl.NewRegistry([]avdl.NamedSchema{a}, diags, avdl.SourceSpan{})

	assert.Equal(t, "org.hamba.Widget", reg.Suggest("org.hamba.Widgt"))
}

func TestResolveTypes_MainSchema(t *testing.T) {
	target, err := avdl.NewFixedSchema("MD5", "org.hamba", 16)
	require.NoError(t, err)
	ref := avdl.NewReference("MD5", "org.hamba", avdl.SourceSpan{})

	diags := &avdl.Diagnostics{}
	resolved := avdl.ResolveTypes([]avdl.NamedSchema{target}, ref, diags)

	require.False(t, diags.HasFatal())
	assert.Same(t, target, resolved)
}

func TestResolveTypes_NilMain(t *testing.T) {
	diags := &avdl.Diagnostics{}

	resolved := avdl.ResolveTypes(nil, nil, diags)

	assert.Nil(t, resolved)
}
