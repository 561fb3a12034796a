package reader

import (
	"strings"

	"github.com/hamba/avdl/internal/syntax"
)

// docComments extracts doc comments attached to declarations by scanning
// backward from a node's start token over the hidden channel (spec §4.1).
type docComments struct {
	tokens   syntax.TokenStream
	consumed map[int]bool
}

func newDocComments(tokens syntax.TokenStream) *docComments {
	return &docComments{tokens: tokens, consumed: map[int]bool{}}
}

// For returns the doc comment text attached to the node whose first token
// is at absolute index i, or "" if none is found.
//
// Scanning walks i-1, i-2, … skipping Whitespace and EmptyComment tokens.
// The first token that is neither of those aborts the scan with no result;
// if that token is a DocComment, it wins and its index is recorded as
// consumed so a later orphan pass can report doc comments nothing claimed.
func (d *docComments) For(i int) string {
	for j := i - 1; j >= 0; j-- {
		tok := d.tokens.At(j)
		switch tok.Type {
		case syntax.Whitespace, syntax.EmptyComment:
			continue
		case syntax.DocComment:
			d.consumed[j] = true
			return stripDocComment(tok.Text)
		default:
			return ""
		}
	}
	return ""
}

// Orphans returns the source spans of every DocComment token never claimed
// by a declaration (spec §4.2 "Orphan doc warnings").
func (d *docComments) Orphans() []syntax.Token {
	var out []syntax.Token
	for i, tok := range d.tokens {
		if tok.Type == syntax.DocComment && !d.consumed[i] {
			out = append(out, tok)
		}
	}
	return out
}

// stripDocComment implements spec §4.1's stripping rules: remove the
// leading "/**" and trailing "*/", then trim; remove a common leading
// indent across non-empty lines by the Javadoc convention (leading
// whitespace and a single optional '*' per continuation line). An empty
// result after stripping yields "".
func stripDocComment(raw string) string {
	body := strings.TrimPrefix(raw, "/**")
	body = strings.TrimSuffix(body, "*/")

	lines := strings.Split(body, "\n")
	for i, line := range lines {
		if i == 0 {
			continue
		}
		trimmed := strings.TrimLeft(line, " \t")
		trimmed = strings.TrimPrefix(trimmed, "*")
		trimmed = strings.TrimPrefix(trimmed, " ")
		lines[i] = trimmed
	}

	joined := strings.Join(lines, "\n")
	return strings.TrimSpace(joined)
}
