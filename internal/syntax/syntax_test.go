package syntax_test

import (
	"testing"

	"github.com/hamba/avdl/internal/syntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLex_IdentAndSymbol(t *testing.T) {
	toks := syntax.Lex("foo.bar")

	var texts []string
	for _, tok := range toks {
		if tok.Channel == syntax.Default && tok.Type != syntax.EOF {
			texts = append(texts, tok.Text)
		}
	}
	assert.Equal(t, []string{"foo", ".", "bar"}, texts)
}

func TestLex_DocCommentIsHidden(t *testing.T) {
	toks := syntax.Lex("/** doc */\nrecord Foo {}")

	var sawDoc bool
	for _, tok := range toks {
		if tok.Type == syntax.DocComment {
			sawDoc = true
			assert.Equal(t, syntax.Hidden, tok.Channel)
		}
	}
	assert.True(t, sawDoc)
}

func TestLex_StringLiteral(t *testing.T) {
	toks := syntax.Lex(`"hello\nworld"`)

	require.NotEmpty(t, toks)
	assert.Equal(t, syntax.StringLit, toks[0].Type)
}

func TestLex_IntLiteral(t *testing.T) {
	toks := syntax.Lex("42")

	require.NotEmpty(t, toks)
	assert.Equal(t, syntax.IntLit, toks[0].Type)
}

func TestIsKeyword(t *testing.T) {
	assert.True(t, syntax.IsKeyword("record"))
	assert.False(t, syntax.IsKeyword("Foo"))
}

func TestUnquote(t *testing.T) {
	got, err := syntax.Unquote(`"a\"b"`)

	require.NoError(t, err)
	assert.Equal(t, `a"b`, got)
}

func TestTokenStream_AtOutOfRange(t *testing.T) {
	ts := syntax.TokenStream{}

	assert.Equal(t, syntax.EOF, ts.At(5).Type)
	assert.Equal(t, syntax.EOF, ts.At(-1).Type)
}

func TestParse_SimpleRecord(t *testing.T) {
	src := `
@namespace("org.hamba")
protocol Simple {
  record Foo {
    string a;
    int b = 1;
  }
}`
	toks := syntax.Lex(src)
	root, errs := syntax.Parse(toks)

	require.Empty(t, errs)
	require.NotNil(t, root)

	proto := root.Child("protocolDeclaration")
	require.NotNil(t, proto)

	rec := proto.Child("recordDecl")
	require.NotNil(t, rec)
	assert.Equal(t, "record", rec.Text)

	fields := rec.All("field")
	assert.Len(t, fields, 2)
}

func TestParse_RecoversFromError(t *testing.T) {
	src := `protocol P { record Foo { !!! } record Bar { int x; } }`
	toks := syntax.Lex(src)
	_, errs := syntax.Parse(toks)

	assert.NotEmpty(t, errs)
}
