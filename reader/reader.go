// Package reader walks the concrete parse tree produced by internal/syntax
// and builds the in-memory schema model defined by the root avdl package
// (spec §4.2).
package reader

import (
	"encoding/json"
	"strconv"

	"github.com/hamba/avdl"
	"github.com/hamba/avdl/internal/syntax"
)

// Import is one `import idl|protocol|schema "path";` statement encountered
// while reading, in source order.
type Import struct {
	Kind string
	Path string
	Span avdl.SourceSpan
}

// Importer resolves an import statement to the named types (and, for idl
// and protocol imports, messages) it contributes. The import loader (spec
// §4.3) implements this by resolving the path, loading the file at most
// once per canonical path, and — for "idl" imports — calling Read
// recursively.
type Importer interface {
	Resolve(kind, path string, span avdl.SourceSpan) (types []avdl.NamedSchema, messages map[string]*avdl.Message, msgOrder []string, err error)
}

// Result is everything a Read call produces from one file: either a
// protocol, or the namespace/main-schema/named-type form described by the
// non-protocol idlFile grammar alternative (spec §6).
type Result struct {
	Protocol   *avdl.Protocol
	MainSchema avdl.Schema
	Types      []avdl.NamedSchema
	Imports    []Import
}

// Read parses and walks src, returning the model it describes plus any
// diagnostics accumulated along the way. imp may be nil; import statements
// then produce a fatal diagnostic instead of being resolved.
func Read(file, src string, imp Importer) (*Result, *avdl.Diagnostics) {
	tokens := syntax.Lex(src)
	tree, perrs := syntax.Parse(tokens)

	r := &reader{
		file:     file,
		tokens:   tokens,
		doc:      newDocComments(tokens),
		diags:    &avdl.Diagnostics{},
		declared: map[string]avdl.NamedSchema{},
		importer: imp,
	}
	for _, pe := range perrs {
		r.diags.Error(avdl.SourceSpan{File: file, Start: pe.Start, End: pe.End}, "", "%s", pe.Message)
	}

	result := r.readFile(tree)

	for _, tok := range r.doc.Orphans() {
		r.diags.Warning(avdl.SourceSpan{File: file, Start: tok.Start, End: tok.End}, "",
			"doc comment is not attached to any declaration")
	}

	return result, r.diags
}

type reader struct {
	file     string
	tokens   syntax.TokenStream
	doc      *docComments
	diags    *avdl.Diagnostics
	nsStack  []string
	declared map[string]avdl.NamedSchema
	importer Importer
}

func (r *reader) span(n *syntax.Node) avdl.SourceSpan {
	s, e := n.Span(r.tokens)
	return avdl.SourceSpan{File: r.file, Start: s, End: e}
}

func (r *reader) currentNS() string {
	if len(r.nsStack) == 0 {
		return ""
	}
	return r.nsStack[len(r.nsStack)-1]
}

func (r *reader) pushNS(ns string) { r.nsStack = append(r.nsStack, ns) }
func (r *reader) popNS()           { r.nsStack = r.nsStack[:len(r.nsStack)-1] }

func (r *reader) readFile(tree *syntax.Node) *Result {
	if proto := tree.Child("protocolDeclaration"); proto != nil {
		p, imports := r.readProtocol(proto)
		return &Result{Protocol: p, Imports: imports}
	}

	result := &Result{}
	ns := ""
	if nsDecl := tree.Child("namespaceDecl"); nsDecl != nil {
		ns = nsDecl.Child("ident").Text
	}
	r.pushNS(ns)
	defer r.popNS()

	if mainDecl := tree.Child("mainSchemaDecl"); mainDecl != nil {
		result.MainSchema = r.buildFullType(mainDecl.Child("fullType"))
	}

	for _, child := range tree.Children {
		switch child.Kind {
		case "import":
			imp, types, _, _, _ := r.readImport(child)
			result.Imports = append(result.Imports, imp)
			for _, t := range types {
				r.mergeType(&result.Types, t)
			}
		case "fixedDecl", "enumDecl", "recordDecl":
			if s := r.buildNamedSchema(child); s != nil {
				r.mergeType(&result.Types, s)
			}
		}
	}
	return result
}

func (r *reader) readProtocol(n *syntax.Node) (*avdl.Protocol, []Import) {
	name := n.Child("ident").Text
	special := r.extractSpecialProps(n.All("property"))
	r.rejectOrder(special, n)

	r.pushNS(special.namespace)
	defer r.popNS()

	proto, err := avdl.NewProtocol(name, special.namespace, nil, nil, nil,
		avdl.WithProtoDoc(r.doc.For(n.Start)), avdl.WithProtoProps(special.rest))
	if err != nil {
		r.diags.Error(r.span(n), "", "invalid protocol %q: %v", name, err)
		return nil, nil
	}

	var imports []Import
	for _, child := range n.Children {
		switch child.Kind {
		case "import":
			imp, types, messages, order, _ := r.readImport(child)
			imports = append(imports, imp)
			for _, t := range types {
				var existing []avdl.NamedSchema
				r.mergeType(&existing, t)
				if len(existing) > 0 {
					proto.AddType(existing[0])
				}
			}
			for _, name := range order {
				if proto.AddMessage(name, messages[name]) {
					r.diags.Error(r.span(child), name, "message %q collides with an imported message", name)
				}
			}
		case "fixedDecl", "enumDecl", "recordDecl":
			if s := r.buildNamedSchema(child); s != nil {
				proto.AddType(s)
			}
		case "message":
			msgName, msg := r.buildMessage(child)
			if proto.AddMessage(msgName, msg) {
				r.diags.Error(r.span(child), msgName, "duplicate message %q", msgName)
			}
		}
	}
	return proto, imports
}

func (r *reader) readImport(n *syntax.Node) (imp Import, types []avdl.NamedSchema, messages map[string]*avdl.Message, order []string, err error) {
	kind := n.Text
	path := n.Child("stringLit").Text
	span := r.span(n)
	imp = Import{Kind: kind, Path: path, Span: span}
	if r.importer == nil {
		r.diags.Error(span, path, "import %q requires a loader, none configured", path)
		return imp, nil, nil, nil, nil
	}
	types, messages, order, err = r.importer.Resolve(kind, path, span)
	if err != nil {
		r.diags.Error(span, path, "importing %q: %v", path, err)
	}
	return imp, types, messages, order, err
}

// mergeType appends s to *types, applying spec §4.3/§4.4's duplicate rule:
// a full-name collision is fatal unless the two definitions are
// structurally identical (compared via their canonical JSON), in which
// case the duplicate is silently dropped.
func (r *reader) mergeType(types *[]avdl.NamedSchema, s avdl.NamedSchema) {
	full := s.FullName()
	if existing, ok := r.declared[full]; ok {
		if avdl.Canonical(existing) == avdl.Canonical(s) {
			return
		}
		r.diags.Error(avdl.SourceSpan{File: r.file}, full, "duplicate named type %q with conflicting definition", full)
		return
	}
	r.declared[full] = s
	*types = append(*types, s)
}

// --- named declarations ---

type specialProps struct {
	namespace string
	aliases   []string
	order     avdl.Order
	hasOrder  bool
	rest      []avdl.Property
}

// rejectOrder reports @order as illegal wherever it isn't attached to a
// field's own varDecl (spec §4.2: order is "rejected elsewhere" — named
// declarations, messages, protocols, and bare types all reuse
// extractSpecialProps but must not silently accept it).
func (r *reader) rejectOrder(sp specialProps, n *syntax.Node) {
	if sp.hasOrder {
		r.diags.Error(r.span(n), "", "@order is only valid on a field")
	}
}

// extractSpecialProps pulls @namespace/@aliases/@order out of a property
// list, leaving the rest as generic properties (spec §4.2).
func (r *reader) extractSpecialProps(nodes []*syntax.Node) specialProps {
	var sp specialProps
	for _, p := range nodes {
		val := r.jsonValueToGo(p.Children[0])
		switch p.Text {
		case "namespace":
			if s, ok := val.(string); ok {
				sp.namespace = s
			}
		case "aliases":
			if arr, ok := val.([]any); ok {
				for _, a := range arr {
					if s, ok := a.(string); ok {
						sp.aliases = append(sp.aliases, s)
					}
				}
			}
		case "order":
			if s, ok := val.(string); ok {
				sp.order = avdl.Order(s)
				sp.hasOrder = true
			}
		default:
			sp.rest = append(sp.rest, avdl.Property{Key: p.Text, Value: val})
		}
	}
	return sp
}

func (r *reader) buildNamedSchema(n *syntax.Node) avdl.NamedSchema {
	switch n.Kind {
	case "fixedDecl":
		return r.buildFixed(n)
	case "enumDecl":
		return r.buildEnum(n)
	case "recordDecl":
		return r.buildRecord(n)
	}
	return nil
}

func (r *reader) buildFixed(n *syntax.Node) avdl.NamedSchema {
	name := n.Child("ident").Text
	special := r.extractSpecialProps(n.All("property"))
	r.rejectOrder(special, n)
	sizeNode := n.Child("intLit")
	size := 0
	if sizeNode != nil {
		size, _ = strconv.Atoi(sizeNode.Text)
	}

	ns := special.namespace
	if ns == "" {
		ns = r.currentNS()
	}

	if avdl.IsReservedTypeName(name) {
		r.diags.Error(r.span(n), name, "%q is a reserved type name", name)
	}

	lt, hasLT := propValue(special.rest, "logicalType")
	var ltRest []avdl.Property
	for _, p := range special.rest {
		if p.Key != "logicalType" && p.Key != "precision" && p.Key != "scale" {
			ltRest = append(ltRest, p)
		}
	}
	if hasLT {
		ltName, _ := lt.(string)
		prec, _ := intProp(special.rest, "precision")
		scale, _ := intProp(special.rest, "scale")
		_, hasPrec := propValue(special.rest, "precision")
		if err := avdl.ValidateFixedLogical(ltName, size, prec, scale, hasPrec); err != nil {
			r.diags.Warning(r.span(n), name, "logical type on fixed %q: %v", name, err)
		}
		// Kept as ordinary properties regardless of validation outcome
		// (spec §4.2 step 4: "the property is still kept ... but a
		// warning is emitted").
		ltRest = special.rest
	}

	fixed, err := avdl.NewFixedSchema(name, ns, size,
		avdl.WithAliases(special.aliases), avdl.WithDoc(r.doc.For(n.Start)), avdl.WithProps(ltRest))
	if err != nil {
		r.diags.Error(r.span(n), name, "invalid fixed %q: %v", name, err)
		return nil
	}
	return fixed
}

func propValue(props []avdl.Property, key string) (any, bool) {
	for _, p := range props {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

func intProp(props []avdl.Property, key string) (int, bool) {
	v, ok := propValue(props, key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case int:
		return n, true
	case float64:
		return int(n), true
	}
	return 0, false
}

func (r *reader) buildEnum(n *syntax.Node) avdl.NamedSchema {
	name := n.Child("ident").Text
	special := r.extractSpecialProps(n.All("property"))
	r.rejectOrder(special, n)
	ns := special.namespace
	if ns == "" {
		ns = r.currentNS()
	}
	if avdl.IsReservedTypeName(name) {
		r.diags.Error(r.span(n), name, "%q is a reserved type name", name)
	}

	var symbols []string
	for _, s := range n.All("symbol") {
		symbols = append(symbols, s.Text)
	}

	opts := []avdl.SchemaOption{
		avdl.WithAliases(special.aliases), avdl.WithDoc(r.doc.For(n.Start)), avdl.WithProps(special.rest),
	}
	if def := n.Child("enumDefault"); def != nil {
		opts = append(opts, avdl.WithDefault(def.Text))
	}

	enum, err := avdl.NewEnumSchema(name, ns, symbols, opts...)
	if err != nil {
		r.diags.Error(r.span(n), name, "invalid enum %q: %v", name, err)
		return nil
	}
	return enum
}

func (r *reader) buildRecord(n *syntax.Node) avdl.NamedSchema {
	name := n.Child("ident").Text
	special := r.extractSpecialProps(n.All("property"))
	r.rejectOrder(special, n)
	ns := special.namespace
	if ns == "" {
		ns = r.currentNS()
	}
	if avdl.IsReservedTypeName(name) {
		r.diags.Error(r.span(n), name, "%q is a reserved type name", name)
	}

	r.pushNS(ns)
	var fields []*avdl.Field
	for _, fn := range n.All("field") {
		fields = append(fields, r.buildField(fn)...)
	}
	r.popNS()

	opts := []avdl.SchemaOption{
		avdl.WithAliases(special.aliases), avdl.WithDoc(r.doc.For(n.Start)), avdl.WithProps(special.rest),
	}

	var rec *avdl.RecordSchema
	var err error
	if n.Text == "error" {
		rec, err = avdl.NewErrorRecordSchema(name, ns, fields, opts...)
	} else {
		rec, err = avdl.NewRecordSchema(name, ns, fields, opts...)
	}
	if err != nil {
		r.diags.Error(r.span(n), name, "invalid record %q: %v", name, err)
		return nil
	}
	return rec
}

func (r *reader) buildField(n *syntax.Node) []*avdl.Field {
	ft := n.Child("fullType")
	var out []*avdl.Field
	for _, vd := range n.All("varDecl") {
		out = append(out, r.buildFieldFromVarDecl(ft, vd))
	}
	return out
}

func (r *reader) buildFieldFromVarDecl(ft, vd *syntax.Node) *avdl.Field {
	typ := r.buildFullType(ft)
	name := vd.Child("ident").Text
	special := r.extractSpecialProps(vd.All("property"))

	var defVal any
	hasDefault := false
	if d := vd.Child("default"); d != nil {
		defVal = r.jsonValueToGo(d.Children[0])
		hasDefault = true
	}

	if u, ok := typ.(*avdl.UnionSchema); ok && u.IsNullableType() && hasDefault {
		u.Reorder(defVal == nil)
	}

	opts := []avdl.SchemaOption{
		avdl.WithAliases(special.aliases), avdl.WithDoc(r.doc.For(vd.Start)), avdl.WithProps(special.rest),
	}
	if special.hasOrder {
		opts = append(opts, avdl.WithOrder(special.order))
	}
	if hasDefault {
		opts = append(opts, avdl.WithDefault(defVal))
	}

	field, err := avdl.NewField(name, typ, opts...)
	if err != nil {
		r.diags.Error(r.span(vd), name, "invalid field %q: %v", name, err)
		return nil
	}
	return field
}

// --- messages ---

func (r *reader) buildMessage(n *syntax.Node) (string, *avdl.Message) {
	special := r.extractSpecialProps(n.All("property"))
	r.rejectOrder(special, n)
	resp := r.buildFullType(n.Child("fullType"))
	name := n.Child("ident").Text

	var req []*avdl.Field
	for _, p := range n.All("param") {
		req = append(req, r.buildParam(p))
	}

	oneWay := n.Child("onewayMarker") != nil
	var errs []avdl.Schema
	if th := n.Child("throws"); th != nil {
		for _, tn := range th.All("typeName") {
			errs = append(errs, avdl.NewReference(tn.Text, r.currentNS(), r.span(tn)))
		}
	}

	if err := avdl.ValidateMessageShape(name, resp, errs, oneWay); err != nil {
		r.diags.Error(r.span(n), name, "%v", err)
	}

	msg := avdl.NewMessage(req, resp, errs, oneWay,
		avdl.WithProtoDoc(r.doc.For(n.Start)), avdl.WithProtoProps(special.rest))
	return name, msg
}

func (r *reader) buildParam(n *syntax.Node) *avdl.Field {
	typ := r.buildFullType(n.Child("fullType"))
	name := n.Child("ident").Text
	var opts []avdl.SchemaOption
	if d := n.Child("default"); d != nil {
		opts = append(opts, avdl.WithDefault(r.jsonValueToGo(d.Children[0])))
	}
	field, err := avdl.NewField(name, typ, opts...)
	if err != nil {
		r.diags.Error(r.span(n), name, "invalid parameter %q: %v", name, err)
		return nil
	}
	return field
}

// --- types ---

var sugarLogical = map[string]struct {
	typ  avdl.Type
	logi avdl.LogicalType
}{
	"date":               {avdl.Int, avdl.Date},
	"time_ms":            {avdl.Int, avdl.TimeMillis},
	"timestamp_ms":       {avdl.Long, avdl.TimestampMillis},
	"local_timestamp_ms": {avdl.Long, avdl.LocalTimestampMillis},
	"uuid":               {avdl.String, avdl.UUID},
}

func (r *reader) buildFullType(n *syntax.Node) avdl.Schema {
	special := r.extractSpecialProps(n.All("property"))
	r.rejectOrder(special, n)
	plain := n.Children[len(n.Children)-1] // last child is always the plainType node
	return r.buildPlainType(plain, special)
}

func (r *reader) buildPlainType(n *syntax.Node, special specialProps) avdl.Schema {
	switch n.Kind {
	case "arrayType":
		items := r.buildFullType(n.Children[0])
		return avdl.NewArraySchema(items, avdl.WithProps(special.rest))
	case "mapType":
		values := r.buildFullType(n.Children[0])
		return avdl.NewMapSchema(values, avdl.WithProps(special.rest))
	case "unionType":
		var members []avdl.Schema
		for _, c := range n.Children {
			members = append(members, r.buildFullType(c))
		}
		u, err := avdl.NewUnionSchema(members)
		if err != nil {
			r.diags.Error(r.span(n), "", "invalid union: %v", err)
			return avdl.NewPrimitiveSchema(avdl.Null, nil)
		}
		return u
	case "nullableType":
		return r.buildNullableType(n, special)
	}
	return avdl.NewPrimitiveSchema(avdl.Null, nil)
}

func (r *reader) buildNullableType(n *syntax.Node, special specialProps) avdl.Schema {
	base := n.Children[0]
	nullable := n.Child("qmark") != nil

	var schema avdl.Schema
	switch base.Kind {
	case "primitiveType":
		schema = r.buildPrimitive(base.Text, special)
	case "decimalType":
		schema = r.buildDecimal(base, special)
	case "typeName":
		ref := avdl.NewReference(base.Text, r.currentNS(), r.span(base), avdl.WithProps(special.rest))
		schema = ref
	default:
		schema = avdl.NewPrimitiveSchema(avdl.Null, nil)
	}

	if !nullable {
		return schema
	}
	u, err := unionWithNull(schema)
	if err != nil {
		r.diags.Error(r.span(n), "", "invalid nullable type: %v", err)
		return schema
	}
	return u
}

// unionWithNull builds the `T?` shorthand union via the exported
// constructor path; NewUnionSchema's own checks reject a T that is itself
// null (duplicate member) or a union (nested union).
func unionWithNull(t avdl.Schema) (*avdl.UnionSchema, error) {
	return avdl.NewNullableUnion(t)
}

func (r *reader) buildPrimitive(name string, special specialProps) avdl.Schema {
	if lt, ok := sugarLogical[name]; ok {
		return avdl.NewPrimitiveSchema(lt.typ, avdl.NewPrimitiveLogicalSchema(lt.logi), avdl.WithProps(special.rest))
	}

	typ := avdl.Type(name)

	ltVal, hasLT := propValue(special.rest, "logicalType")
	if !hasLT {
		return avdl.NewPrimitiveSchema(typ, nil, avdl.WithProps(special.rest))
	}

	ltName, _ := ltVal.(string)
	prec, _ := intProp(special.rest, "precision")
	scale, _ := intProp(special.rest, "scale")
	_, hasPrec := propValue(special.rest, "precision")

	logical, err := avdl.ParseLogicalType(ltName, prec, scale, hasPrec)
	if err != nil {
		r.diags.Warning(avdl.SourceSpan{File: r.file}, ltName, "logical type %q: %v", ltName, err)
		return avdl.NewPrimitiveSchema(typ, nil, avdl.WithProps(special.rest))
	}
	if logical == nil {
		// Unknown logical type name: kept as an opaque annotation (spec
		// §4.2 step 3's "permitted as opaque annotations" fallback).
		return avdl.NewPrimitiveSchema(typ, nil, avdl.WithProps(special.rest))
	}
	if logical.ExpectedBaseType() != typ {
		r.diags.Warning(avdl.SourceSpan{File: r.file}, ltName,
			"logical type %q expects base %q, got %q", ltName, logical.ExpectedBaseType(), typ)
		return avdl.NewPrimitiveSchema(typ, nil, avdl.WithProps(special.rest))
	}

	rest := without(special.rest, "logicalType", "precision", "scale")
	return avdl.NewPrimitiveSchema(typ, logical, avdl.WithProps(rest))
}

func (r *reader) buildDecimal(n *syntax.Node, special specialProps) avdl.Schema {
	precNode := n.Child("intLit")
	prec, _ := strconv.Atoi(precNode.Text)
	scale := 0
	if sc := n.Child("scale"); sc != nil {
		scale, _ = strconv.Atoi(sc.Text)
	}
	if err := avdl.ValidateDecimalParams(prec, scale); err != nil {
		r.diags.Error(r.span(n), "", "invalid decimal: %v", err)
	}
	return avdl.NewPrimitiveSchema(avdl.Bytes, avdl.NewDecimalLogicalSchema(prec, scale), avdl.WithProps(special.rest))
}

func without(props []avdl.Property, keys ...string) []avdl.Property {
	var out []avdl.Property
	for _, p := range props {
		skip := false
		for _, k := range keys {
			if p.Key == k {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, p)
		}
	}
	return out
}

// --- JSON value literals ---

func (r *reader) jsonValueToGo(n *syntax.Node) any {
	switch n.Kind {
	case "jsonString":
		return n.Text
	case "jsonNumber":
		return json.Number(n.Text)
	case "jsonBool":
		return n.Text == "true"
	case "jsonNull":
		return nil
	case "jsonArray":
		out := make([]any, 0, len(n.Children))
		for _, c := range n.Children {
			out = append(out, r.jsonValueToGo(c))
		}
		return out
	case "jsonObject":
		out := make(map[string]any, len(n.Children))
		for _, m := range n.Children {
			out[m.Text] = r.jsonValueToGo(m.Children[0])
		}
		return out
	}
	return nil
}
