package syntax

import "fmt"

// ParseError is a syntactic diagnostic produced by Parse (spec §7
// "Lexical/syntactic: invalid tokens, unexpected tokens — reported by the
// parser with line/column"); the byte span lets the caller render it the
// same way as any other diagnostic.
type ParseError struct {
	Start, End int
	Message    string
}

func (e ParseError) Error() string { return e.Message }

// Parse runs the recursive-descent parser over tokens and returns the root
// idlFile node plus any syntax errors. Parsing is best-effort: on an
// unexpected token the parser records an error and skips forward to the
// next statement boundary rather than aborting, so later declarations still
// get a chance to parse (mirrors ANTLR's default error-recovery behavior,
// which the reader would otherwise rely on).
func Parse(tokens TokenStream) (*Node, []ParseError) {
	p := &parser{tokens: tokens}
	for i, t := range tokens {
		if t.Channel == Default {
			p.defaultIdx = append(p.defaultIdx, i)
		}
	}
	p.defaultIdx = append(p.defaultIdx, len(tokens)-1) // trailing EOF guard
	root := p.parseFile()
	return root, p.errs
}

type parser struct {
	tokens     TokenStream
	defaultIdx []int
	pos        int
	lastAbs    int
	errs       []ParseError
}

func (p *parser) curAbs() int {
	if p.pos >= len(p.defaultIdx) {
		return len(p.tokens) - 1
	}
	return p.defaultIdx[p.pos]
}

func (p *parser) cur() Token { return p.tokens.At(p.curAbs()) }

func (p *parser) atEOF() bool { return p.cur().Type == EOF }

func (p *parser) advance() Token {
	t := p.cur()
	p.lastAbs = p.curAbs()
	if p.pos < len(p.defaultIdx) {
		p.pos++
	}
	return t
}

func (p *parser) errorf(format string, args ...any) {
	t := p.cur()
	p.errs = append(p.errs, ParseError{Start: t.Start, End: t.End, Message: fmt.Sprintf(format, args...)})
}

// recover skips tokens until a ';', '}', or EOF, so one bad declaration
// doesn't prevent the rest of the file from parsing.
func (p *parser) recover() {
	for !p.atEOF() {
		t := p.advance()
		if t.Type == Symbol && (t.Text == ";" || t.Text == "}") {
			return
		}
	}
}

func (p *parser) atKeyword(kw string) bool {
	t := p.cur()
	return t.Type == Ident && t.Text == kw
}

func (p *parser) atSymbol(s string) bool {
	t := p.cur()
	return t.Type == Symbol && t.Text == s
}

func (p *parser) expectSymbol(s string) bool {
	if p.atSymbol(s) {
		p.advance()
		return true
	}
	p.errorf("expected %q, got %q", s, p.cur().Text)
	return false
}

func (p *parser) expectIdent() (Token, bool) {
	if p.cur().Type == Ident {
		return p.advance(), true
	}
	p.errorf("expected identifier, got %q", p.cur().Text)
	return Token{}, false
}

func newNode(kind string, start int) *Node { return &Node{Kind: kind, Start: start} }

func (p *parser) finish(n *Node) *Node {
	n.End = p.lastAbs + 1
	return n
}

// --- grammar ---

func (p *parser) parseFile() *Node {
	file := newNode("idlFile", p.curAbs())

	props := p.parseProperties()
	if p.atKeyword("protocol") {
		file.Children = append(file.Children, p.parseProtocolDeclaration(props))
		return p.finish(file)
	}

	if len(props) == 0 && p.atKeyword("namespace") {
		file.Children = append(file.Children, p.parseNamespaceDecl())
	}
	if len(props) == 0 && p.atKeyword("schema") {
		file.Children = append(file.Children, p.parseMainSchemaDecl())
	}

	pending := props
	for !p.atEOF() {
		if p.atKeyword("import") {
			file.Children = append(file.Children, p.parseImport())
			continue
		}
		declProps := pending
		pending = nil
		if declProps == nil {
			declProps = p.parseProperties()
		}
		if p.atEOF() {
			break
		}
		file.Children = append(file.Children, p.parseNamedSchema(declProps))
	}
	return p.finish(file)
}

func (p *parser) parseProperties() []*Node {
	var out []*Node
	for p.atSymbol("@") {
		out = append(out, p.parseProperty())
	}
	return out
}

func (p *parser) parseProperty() *Node {
	start := p.curAbs()
	p.advance() // '@'
	name, _ := p.expectIdent()
	n := newNode("property", start)
	n.Text = name.Text
	p.expectSymbol("(")
	n.Children = append(n.Children, p.parseJSONValue())
	p.expectSymbol(")")
	return p.finish(n)
}

func (p *parser) parseProtocolDeclaration(props []*Node) *Node {
	start := p.curAbs()
	if len(props) > 0 {
		start = props[0].Start
	}
	n := newNode("protocolDeclaration", start)
	n.Children = append(n.Children, props...)
	p.advance() // 'protocol'
	name, _ := p.expectIdent()
	n.Children = append(n.Children, p.leaf("ident", name))
	p.expectSymbol("{")
	for !p.atSymbol("}") && !p.atEOF() {
		if p.atKeyword("import") {
			n.Children = append(n.Children, p.parseImport())
			continue
		}
		before := p.pos
		bodyProps := p.parseProperties()
		switch {
		case p.isResultTypeStart():
			n.Children = append(n.Children, p.parseMessage(bodyProps))
		default:
			n.Children = append(n.Children, p.parseNamedSchema(bodyProps))
		}
		if p.pos == before {
			p.recover()
		}
	}
	p.expectSymbol("}")
	return p.finish(n)
}

func (p *parser) leaf(kind string, t Token) *Node {
	return &Node{Kind: kind, Text: t.Text, Start: p.lastAbs, End: p.lastAbs + 1}
}

func (p *parser) parseNamespaceDecl() *Node {
	start := p.curAbs()
	p.advance() // 'namespace'
	name, ok := p.expectIdent()
	nameStart := p.lastAbs
	text := name.Text
	for ok && p.atSymbol(".") {
		p.advance()
		var part Token
		if part, ok = p.expectIdent(); ok {
			text += "." + part.Text
		}
	}
	n := newNode("namespaceDecl", start)
	n.Children = append(n.Children, &Node{Kind: "ident", Text: text, Start: nameStart, End: p.lastAbs + 1})
	p.expectSymbol(";")
	return p.finish(n)
}

func (p *parser) parseMainSchemaDecl() *Node {
	start := p.curAbs()
	p.advance() // 'schema'
	n := newNode("mainSchemaDecl", start)
	n.Children = append(n.Children, p.parseFullType())
	p.expectSymbol(";")
	return p.finish(n)
}

func (p *parser) parseImport() *Node {
	start := p.curAbs()
	p.advance() // 'import'
	kindTok, _ := p.expectIdent()
	n := newNode("import", start)
	n.Text = kindTok.Text
	pathTok := p.cur()
	if pathTok.Type != StringLit {
		p.errorf("expected import path string, got %q", pathTok.Text)
	} else {
		p.advance()
	}
	unquoted, _ := Unquote(pathTok.Text)
	n.Children = append(n.Children, &Node{Kind: "stringLit", Text: unquoted, Start: p.lastAbs, End: p.lastAbs + 1})
	p.expectSymbol(";")
	return p.finish(n)
}

// namedSchema := fixedDecl | enumDecl | recordDecl
func (p *parser) parseNamedSchema(props []*Node) *Node {
	start := p.curAbs()
	if len(props) > 0 {
		start = props[0].Start
	}
	switch {
	case p.atKeyword("fixed"):
		return p.parseFixedDecl(props, start)
	case p.atKeyword("enum"):
		return p.parseEnumDecl(props, start)
	case p.atKeyword("record"), p.atKeyword("error"):
		return p.parseRecordDecl(props, start)
	default:
		p.errorf("expected fixed, enum, record, or error declaration, got %q", p.cur().Text)
		p.recover()
		return p.finish(newNode("errorDecl", start))
	}
}

func (p *parser) parseFixedDecl(props []*Node, start int) *Node {
	p.advance() // 'fixed'
	n := newNode("fixedDecl", start)
	n.Children = append(n.Children, props...)
	name, _ := p.expectIdent()
	n.Children = append(n.Children, p.leaf("ident", name))
	p.expectSymbol("(")
	size := p.cur()
	if size.Type == IntLit {
		p.advance()
		n.Children = append(n.Children, &Node{Kind: "intLit", Text: size.Text, Start: p.lastAbs, End: p.lastAbs + 1})
	} else {
		p.errorf("expected fixed size, got %q", size.Text)
	}
	p.expectSymbol(")")
	p.expectSymbol(";")
	return p.finish(n)
}

func (p *parser) parseEnumDecl(props []*Node, start int) *Node {
	p.advance() // 'enum'
	n := newNode("enumDecl", start)
	n.Children = append(n.Children, props...)
	name, _ := p.expectIdent()
	n.Children = append(n.Children, p.leaf("ident", name))
	p.expectSymbol("{")
	for !p.atSymbol("}") && !p.atEOF() {
		sym, ok := p.expectIdent()
		if !ok {
			break
		}
		n.Children = append(n.Children, &Node{Kind: "symbol", Text: sym.Text, Start: p.lastAbs, End: p.lastAbs + 1})
		if p.atSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	p.expectSymbol("}")
	if p.atSymbol("=") {
		p.advance()
		def, ok := p.expectIdent()
		if ok {
			n.Children = append(n.Children, &Node{Kind: "enumDefault", Text: def.Text, Start: p.lastAbs, End: p.lastAbs + 1})
		}
	}
	p.expectSymbol(";")
	return p.finish(n)
}

func (p *parser) parseRecordDecl(props []*Node, start int) *Node {
	kind := p.advance() // 'record' or 'error'
	n := newNode("recordDecl", start)
	n.Text = kind.Text
	n.Children = append(n.Children, props...)
	name, _ := p.expectIdent()
	n.Children = append(n.Children, p.leaf("ident", name))
	p.expectSymbol("{")
	for !p.atSymbol("}") && !p.atEOF() {
		before := p.pos
		n.Children = append(n.Children, p.parseField())
		if p.pos == before {
			p.recover()
		}
	}
	p.expectSymbol("}")
	return p.finish(n)
}

func (p *parser) parseField() *Node {
	start := p.curAbs()
	n := newNode("field", start)
	ft := p.parseFullType()
	n.Children = append(n.Children, ft)
	n.Children = append(n.Children, p.parseVarDecl())
	for p.atSymbol(",") {
		p.advance()
		n.Children = append(n.Children, p.parseVarDecl())
	}
	p.expectSymbol(";")
	return p.finish(n)
}

func (p *parser) parseVarDecl() *Node {
	start := p.curAbs()
	n := newNode("varDecl", start)
	n.Children = append(n.Children, p.parseProperties()...)
	name, _ := p.expectIdent()
	n.Children = append(n.Children, p.leaf("ident", name))
	if p.atSymbol("=") {
		p.advance()
		def := newNode("default", p.curAbs())
		def.Children = append(def.Children, p.parseJSONValue())
		n.Children = append(n.Children, p.finish(def))
	}
	return p.finish(n)
}

// isResultTypeStart reports whether the parser is positioned at a message
// declaration's result type rather than a named-schema keyword. A message's
// resultType is a fullType (which may itself start with a property list,
// already consumed by the caller), so this just needs to rule out the
// fixed/enum/record/error keywords.
func (p *parser) isResultTypeStart() bool {
	return !p.atKeyword("fixed") && !p.atKeyword("enum") && !p.atKeyword("record") && !p.atKeyword("error")
}

func (p *parser) parseMessage(props []*Node) *Node {
	start := p.curAbs()
	if len(props) > 0 {
		start = props[0].Start
	}
	n := newNode("message", start)
	n.Children = append(n.Children, props...)
	n.Children = append(n.Children, p.parseFullType())
	name, _ := p.expectIdent()
	n.Children = append(n.Children, p.leaf("ident", name))
	p.expectSymbol("(")
	if !p.atSymbol(")") {
		n.Children = append(n.Children, p.parseParam())
		for p.atSymbol(",") {
			p.advance()
			n.Children = append(n.Children, p.parseParam())
		}
	}
	p.expectSymbol(")")
	if p.atKeyword("oneway") {
		p.advance()
		n.Children = append(n.Children, &Node{Kind: "onewayMarker", Start: p.lastAbs, End: p.lastAbs + 1})
	} else if p.atKeyword("throws") {
		p.advance()
		th := newNode("throws", p.curAbs())
		name, ok := p.expectIdent()
		if ok {
			th.Children = append(th.Children, &Node{Kind: "typeName", Text: name.Text, Start: p.lastAbs, End: p.lastAbs + 1})
		}
		for p.atSymbol(",") {
			p.advance()
			name, ok := p.expectIdent()
			if ok {
				th.Children = append(th.Children, &Node{Kind: "typeName", Text: name.Text, Start: p.lastAbs, End: p.lastAbs + 1})
			}
		}
		n.Children = append(n.Children, p.finish(th))
	}
	p.expectSymbol(";")
	return p.finish(n)
}

func (p *parser) parseParam() *Node {
	start := p.curAbs()
	n := newNode("param", start)
	n.Children = append(n.Children, p.parseFullType())
	name, _ := p.expectIdent()
	n.Children = append(n.Children, p.leaf("ident", name))
	if p.atSymbol("=") {
		p.advance()
		def := newNode("default", p.curAbs())
		def.Children = append(def.Children, p.parseJSONValue())
		n.Children = append(n.Children, p.finish(def))
	}
	return p.finish(n)
}

// fullType := schemaProperty* plainType
func (p *parser) parseFullType() *Node {
	start := p.curAbs()
	n := newNode("fullType", start)
	n.Children = append(n.Children, p.parseProperties()...)
	n.Children = append(n.Children, p.parsePlainType())
	return p.finish(n)
}

// plainType := arrayType | mapType | unionType | nullableType
func (p *parser) parsePlainType() *Node {
	switch {
	case p.atKeyword("array"):
		return p.parseArrayType()
	case p.atKeyword("map"):
		return p.parseMapType()
	case p.atKeyword("union"):
		return p.parseUnionType()
	default:
		return p.parseNullableType()
	}
}

func (p *parser) parseArrayType() *Node {
	start := p.curAbs()
	p.advance() // 'array'
	p.expectSymbol("<")
	n := newNode("arrayType", start)
	n.Children = append(n.Children, p.parseFullType())
	p.expectSymbol(">")
	return p.finish(n)
}

func (p *parser) parseMapType() *Node {
	start := p.curAbs()
	p.advance() // 'map'
	p.expectSymbol("<")
	n := newNode("mapType", start)
	n.Children = append(n.Children, p.parseFullType())
	p.expectSymbol(">")
	return p.finish(n)
}

func (p *parser) parseUnionType() *Node {
	start := p.curAbs()
	p.advance() // 'union'
	p.expectSymbol("{")
	n := newNode("unionType", start)
	if !p.atSymbol("}") {
		n.Children = append(n.Children, p.parseFullType())
		for p.atSymbol(",") {
			p.advance()
			n.Children = append(n.Children, p.parseFullType())
		}
	}
	p.expectSymbol("}")
	return p.finish(n)
}

// primitiveNames lists the bare primitives and IDL sugar forms that may
// appear where a type name is expected (spec §6 primitiveType).
var primitiveNames = map[string]bool{
	"boolean": true, "int": true, "long": true, "float": true, "double": true,
	"string": true, "bytes": true, "null": true,
	"date": true, "time_ms": true, "timestamp_ms": true, "local_timestamp_ms": true, "uuid": true,
}

// nullableType := (primitiveType | ident) '?'?
func (p *parser) parseNullableType() *Node {
	start := p.curAbs()
	n := newNode("nullableType", start)

	switch {
	case p.atKeyword("decimal"):
		n.Children = append(n.Children, p.parseDecimalType())
	case p.cur().Type == Ident && primitiveNames[p.cur().Text]:
		tok := p.advance()
		n.Children = append(n.Children, &Node{Kind: "primitiveType", Text: tok.Text, Start: p.lastAbs, End: p.lastAbs + 1})
	default:
		tok, ok := p.expectIdent()
		if ok {
			text := tok.Text
			startAbs := p.lastAbs
			for p.atSymbol(".") {
				p.advance()
				part, ok := p.expectIdent()
				if !ok {
					break
				}
				text += "." + part.Text
			}
			n.Children = append(n.Children, &Node{Kind: "typeName", Text: text, Start: startAbs, End: p.lastAbs + 1})
		}
	}

	if p.atSymbol("?") {
		p.advance()
		n.Children = append(n.Children, &Node{Kind: "qmark", Start: p.lastAbs, End: p.lastAbs + 1})
	}
	return p.finish(n)
}

func (p *parser) parseDecimalType() *Node {
	start := p.curAbs()
	p.advance() // 'decimal'
	p.expectSymbol("(")
	n := newNode("decimalType", start)
	prec := p.cur()
	if prec.Type == IntLit {
		p.advance()
		n.Children = append(n.Children, &Node{Kind: "intLit", Text: prec.Text, Start: p.lastAbs, End: p.lastAbs + 1})
	} else {
		p.errorf("expected decimal precision, got %q", prec.Text)
	}
	if p.atSymbol(",") {
		p.advance()
		scale := p.cur()
		if scale.Type == IntLit {
			p.advance()
			n.Children = append(n.Children, &Node{Kind: "scale", Text: scale.Text, Start: p.lastAbs, End: p.lastAbs + 1})
		}
	}
	p.expectSymbol(")")
	return p.finish(n)
}

// --- JSON value literals (schemaProperty payloads and field defaults) ---

func (p *parser) parseJSONValue() *Node {
	start := p.curAbs()
	switch {
	case p.atSymbol("{"):
		return p.parseJSONObject()
	case p.atSymbol("["):
		return p.parseJSONArray()
	case p.cur().Type == StringLit:
		tok := p.advance()
		text, _ := Unquote(tok.Text)
		return &Node{Kind: "jsonString", Text: text, Start: p.lastAbs, End: p.lastAbs + 1}
	case p.cur().Type == IntLit:
		tok := p.advance()
		return &Node{Kind: "jsonNumber", Text: tok.Text, Start: p.lastAbs, End: p.lastAbs + 1}
	case p.atKeyword("true"), p.atKeyword("false"):
		tok := p.advance()
		return &Node{Kind: "jsonBool", Text: tok.Text, Start: p.lastAbs, End: p.lastAbs + 1}
	case p.atKeyword("null"):
		p.advance()
		return &Node{Kind: "jsonNull", Start: p.lastAbs, End: p.lastAbs + 1}
	default:
		p.errorf("expected a JSON value, got %q", p.cur().Text)
		n := newNode("jsonNull", start)
		return p.finish(n)
	}
}

func (p *parser) parseJSONObject() *Node {
	start := p.curAbs()
	p.advance() // '{'
	n := newNode("jsonObject", start)
	for !p.atSymbol("}") && !p.atEOF() {
		keyTok := p.cur()
		var key string
		if keyTok.Type == StringLit {
			key, _ = Unquote(keyTok.Text)
			p.advance()
		} else if keyTok.Type == Ident {
			key = keyTok.Text
			p.advance()
		} else {
			p.errorf("expected object key, got %q", keyTok.Text)
			break
		}
		p.expectSymbol(":")
		member := newNode("jsonMember", p.lastAbs)
		member.Text = key
		member.Children = append(member.Children, p.parseJSONValue())
		n.Children = append(n.Children, p.finish(member))
		if p.atSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	p.expectSymbol("}")
	return p.finish(n)
}

func (p *parser) parseJSONArray() *Node {
	start := p.curAbs()
	p.advance() // '['
	n := newNode("jsonArray", start)
	for !p.atSymbol("]") && !p.atEOF() {
		n.Children = append(n.Children, p.parseJSONValue())
		if p.atSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	p.expectSymbol("]")
	return p.finish(n)
}
