package avdl

import (
	"bytes"
	"encoding/json"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

// canonicalJSON is the teacher's own jsoniter configuration (schema.go used
// jsoniter.ConfigCompatibleWithStandardLibrary throughout); kept identical
// here so scalar leaves serialize the same way the teacher's MarshalJSON
// methods did.
var canonicalJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// emitter walks a schema graph and writes canonical Avro JSON to an
// internal buffer, tracking which named types have already been fully
// emitted within the current document (spec §4.6).
type emitter struct {
	buf     bytes.Buffer
	emitted map[string]bool
}

func newEmitter() *emitter {
	return &emitter{emitted: map[string]bool{}}
}

// Canonical returns the canonical JSON for a single schema, with a fresh
// "already emitted" set and no enclosing namespace. Every schema variant
// except Reference uses it for Fingerprint/FingerprintUsing; a Reference
// hashes its quoted full name instead.
func Canonical(s Schema) string {
	e := newEmitter()
	e.emitSchema(s, "")
	return e.buf.String()
}

// EmitSchema is the public single-schema entry point for the `idl-to-schema`
// CLI operation; it is identical to Canonical but named for that surface.
func EmitSchema(s Schema) string {
	return Canonical(s)
}

// EmitSchemata renders a set of named schemas as a JSON object mapping full
// name to schema (spec §6: "a JSON object mapping full-name → schema for
// multi-schema emission"). Cross-references between entries use the
// name-shortcut rule once the referenced entry has been emitted, matching
// the single-document "already emitted" semantics; each map key is still
// forced to emit its own full definition even if an earlier entry's nested
// reference already touched it.
func EmitSchemata(schemas []NamedSchema) string {
	e := newEmitter()
	e.buf.WriteByte('{')
	for i, s := range schemas {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		full := s.FullName()
		e.writeString(full)
		e.buf.WriteByte(':')
		delete(e.emitted, full)
		e.emitSchema(s, "")
	}
	e.buf.WriteByte('}')
	return e.buf.String()
}

// EmitProtocol renders a full protocol document (spec §4.6 "Protocol
// document").
func EmitProtocol(p *Protocol) string {
	e := newEmitter()
	first := true
	e.buf.WriteByte('{')
	e.field(&first, "protocol", func() { e.writeString(p.Name()) })
	if p.Namespace() != "" {
		e.field(&first, "namespace", func() { e.writeString(p.Namespace()) })
	}
	if p.Doc() != "" {
		e.field(&first, "doc", func() { e.writeString(p.Doc()) })
	}
	for _, prop := range p.Props() {
		e.field(&first, prop.Key, func() { e.writeValue(prop.Value) })
	}
	e.field(&first, "types", func() {
		e.buf.WriteByte('[')
		for i, t := range p.Types() {
			if i > 0 {
				e.buf.WriteByte(',')
			}
			e.emitSchema(t, p.Namespace())
		}
		e.buf.WriteByte(']')
	})
	e.field(&first, "messages", func() {
		e.buf.WriteByte('{')
		for i, name := range p.MessageNames() {
			if i > 0 {
				e.buf.WriteByte(',')
			}
			e.writeString(name)
			e.buf.WriteByte(':')
			e.emitMessage(p.Message(name), p.Namespace())
		}
		e.buf.WriteByte('}')
	})
	e.buf.WriteByte('}')
	return e.buf.String()
}

// field writes a comma (unless this is the first field of the enclosing
// object), the key, a colon, then invokes write for the value.
func (e *emitter) field(first *bool, key string, write func()) {
	if !*first {
		e.buf.WriteByte(',')
	}
	*first = false
	e.writeString(key)
	e.buf.WriteByte(':')
	write()
}

func (e *emitter) writeString(s string) {
	b, _ := canonicalJSON.Marshal(s)
	e.buf.Write(b)
}

func (e *emitter) writeStringArray(ss []string) {
	e.buf.WriteByte('[')
	for i, s := range ss {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		e.writeString(s)
	}
	e.buf.WriteByte(']')
}

// writeValue serializes an arbitrary property or default value, applying
// spec §4.6's numeric-formatting rule: integers emit without a decimal
// point, integral floats emit with ".0" to disambiguate, and a json.Number
// preserved verbatim from a source literal (see reader/doccomment.go's
// sibling, the JSON value parser in reader/) is emitted exactly as written
// so defaults "emit exactly as the source JSON literal".
func (e *emitter) writeValue(v any) {
	switch n := v.(type) {
	case nil:
		e.buf.WriteString("null")
	case json.Number:
		e.buf.WriteString(string(n))
	case int:
		e.buf.WriteString(strconv.Itoa(n))
	case int64:
		e.buf.WriteString(strconv.FormatInt(n, 10))
	case float64:
		if n == float64(int64(n)) {
			e.buf.WriteString(strconv.FormatFloat(n, 'f', 1, 64))
		} else {
			b, _ := canonicalJSON.Marshal(n)
			e.buf.Write(b)
		}
	case []any:
		e.buf.WriteByte('[')
		for i, el := range n {
			if i > 0 {
				e.buf.WriteByte(',')
			}
			e.writeValue(el)
		}
		e.buf.WriteByte(']')
	case map[string]any:
		// Property values parsed as nested JSON objects have no ordering
		// contract in the spec beyond the top-level property map itself;
		// jsoniter's map marshaling order is what the teacher's own
		// MarshalJSON relied on for nested jsoniter.Marshal calls.
		b, _ := canonicalJSON.Marshal(n)
		e.buf.Write(b)
	default:
		b, _ := canonicalJSON.Marshal(v)
		e.buf.Write(b)
	}
}

// emitSchema dispatches to the variant-specific writer. enclosingNS is the
// namespace in effect at this point in the document; it shifts to a named
// type's own namespace when recursing into that type's children (spec §9
// Design Notes: "the enclosing namespace shifts when crossing into a named
// type that declares its own").
func (e *emitter) emitSchema(s Schema, enclosingNS string) {
	switch v := s.(type) {
	case *PrimitiveSchema:
		e.emitPrimitive(v)
	case *RecordSchema:
		e.emitNamed(v, enclosingNS, func() { e.emitRecordBody(v, enclosingNS) })
	case *EnumSchema:
		e.emitNamed(v, enclosingNS, func() { e.emitEnumBody(v, enclosingNS) })
	case *FixedSchema:
		e.emitNamed(v, enclosingNS, func() { e.emitFixedBody(v, enclosingNS) })
	case *ArraySchema:
		e.emitArray(v, enclosingNS)
	case *MapSchema:
		e.emitMap(v, enclosingNS)
	case *UnionSchema:
		e.emitUnion(v, enclosingNS)
	case *Reference:
		// Should not survive resolution; fall back to the name so a
		// partially-resolved graph still produces valid JSON rather than
		// panicking mid-emission.
		e.writeString(v.FullName())
	default:
		e.writeString(string(s.Type()))
	}
}

func (e *emitter) emitNamed(v NamedSchema, enclosingNS string, body func()) {
	full := v.FullName()
	if e.emitted[full] {
		if v.Namespace() == enclosingNS {
			e.writeString(v.Name())
		} else {
			e.writeString(full)
		}
		return
	}
	e.emitted[full] = true
	body()
}

func (e *emitter) emitPrimitive(p *PrimitiveSchema) {
	hasProps := len(p.Props()) > 0
	if p.Logical() == nil && !hasProps {
		e.writeString(string(p.Type()))
		return
	}

	first := true
	e.buf.WriteByte('{')
	if l := p.Logical(); l != nil {
		e.field(&first, "type", func() { e.writeString(string(l.ExpectedBaseType())) })
		e.field(&first, "logicalType", func() { e.writeString(string(l.Type())) })
		if d, ok := l.(*DecimalLogicalSchema); ok {
			e.field(&first, "precision", func() { e.buf.WriteString(strconv.Itoa(d.Precision())) })
			e.field(&first, "scale", func() { e.buf.WriteString(strconv.Itoa(d.Scale())) })
		}
	} else {
		e.field(&first, "type", func() { e.writeString(string(p.Type())) })
	}
	for _, prop := range p.Props() {
		e.field(&first, prop.Key, func() { e.writeValue(prop.Value) })
	}
	e.buf.WriteByte('}')
}

func (e *emitter) emitRecordBody(r *RecordSchema, enclosingNS string) {
	first := true
	e.buf.WriteByte('{')
	typ := string(Record)
	if r.IsError() {
		typ = string(Error)
	}
	e.field(&first, "type", func() { e.writeString(typ) })
	e.field(&first, "name", func() { e.writeString(r.Name()) })
	if r.Namespace() != "" && r.Namespace() != enclosingNS {
		e.field(&first, "namespace", func() { e.writeString(r.Namespace()) })
	}
	if r.Doc() != "" {
		e.field(&first, "doc", func() { e.writeString(r.Doc()) })
	}
	e.field(&first, "fields", func() {
		e.buf.WriteByte('[')
		for i, f := range r.Fields() {
			if i > 0 {
				e.buf.WriteByte(',')
			}
			e.emitField(f, r.Namespace())
		}
		e.buf.WriteByte(']')
	})
	if len(r.Aliases()) > 0 {
		e.field(&first, "aliases", func() { e.writeStringArray(r.Aliases()) })
	}
	for _, prop := range r.Props() {
		e.field(&first, prop.Key, func() { e.writeValue(prop.Value) })
	}
	e.buf.WriteByte('}')
}

func (e *emitter) emitField(f *Field, enclosingNS string) {
	first := true
	e.buf.WriteByte('{')
	e.field(&first, "name", func() { e.writeString(f.Name()) })
	if f.Doc() != "" {
		e.field(&first, "doc", func() { e.writeString(f.Doc()) })
	}
	e.field(&first, "type", func() { e.emitSchema(f.Type(), enclosingNS) })
	if f.HasDefault() {
		e.field(&first, "default", func() { e.writeValue(f.Default()) })
	}
	if f.Order() != Asc {
		e.field(&first, "order", func() { e.writeString(string(f.Order())) })
	}
	if len(f.Aliases()) > 0 {
		e.field(&first, "aliases", func() { e.writeStringArray(f.Aliases()) })
	}
	for _, prop := range f.Props() {
		e.field(&first, prop.Key, func() { e.writeValue(prop.Value) })
	}
	e.buf.WriteByte('}')
}

func (e *emitter) emitEnumBody(s *EnumSchema, enclosingNS string) {
	first := true
	e.buf.WriteByte('{')
	e.field(&first, "type", func() { e.writeString(string(Enum)) })
	e.field(&first, "name", func() { e.writeString(s.Name()) })
	if s.Namespace() != "" && s.Namespace() != enclosingNS {
		e.field(&first, "namespace", func() { e.writeString(s.Namespace()) })
	}
	if s.Doc() != "" {
		e.field(&first, "doc", func() { e.writeString(s.Doc()) })
	}
	e.field(&first, "symbols", func() { e.writeStringArray(s.Symbols()) })
	if s.HasDefault() {
		e.field(&first, "default", func() { e.writeString(s.Default()) })
	}
	if len(s.Aliases()) > 0 {
		e.field(&first, "aliases", func() { e.writeStringArray(s.Aliases()) })
	}
	for _, prop := range s.Props() {
		e.field(&first, prop.Key, func() { e.writeValue(prop.Value) })
	}
	e.buf.WriteByte('}')
}

func (e *emitter) emitFixedBody(s *FixedSchema, enclosingNS string) {
	first := true
	e.buf.WriteByte('{')
	e.field(&first, "type", func() { e.writeString(string(Fixed)) })
	e.field(&first, "name", func() { e.writeString(s.Name()) })
	if s.Namespace() != "" && s.Namespace() != enclosingNS {
		e.field(&first, "namespace", func() { e.writeString(s.Namespace()) })
	}
	if s.Doc() != "" {
		e.field(&first, "doc", func() { e.writeString(s.Doc()) })
	}
	e.field(&first, "size", func() { e.buf.WriteString(strconv.Itoa(s.Size())) })
	if len(s.Aliases()) > 0 {
		e.field(&first, "aliases", func() { e.writeStringArray(s.Aliases()) })
	}
	for _, prop := range s.Props() {
		e.field(&first, prop.Key, func() { e.writeValue(prop.Value) })
	}
	e.buf.WriteByte('}')
}

func (e *emitter) emitArray(s *ArraySchema, enclosingNS string) {
	first := true
	e.buf.WriteByte('{')
	e.field(&first, "type", func() { e.writeString(string(Array)) })
	e.field(&first, "items", func() { e.emitSchema(s.Items(), enclosingNS) })
	for _, prop := range s.Props() {
		e.field(&first, prop.Key, func() { e.writeValue(prop.Value) })
	}
	e.buf.WriteByte('}')
}

func (e *emitter) emitMap(s *MapSchema, enclosingNS string) {
	first := true
	e.buf.WriteByte('{')
	e.field(&first, "type", func() { e.writeString(string(Map)) })
	e.field(&first, "values", func() { e.emitSchema(s.Values(), enclosingNS) })
	for _, prop := range s.Props() {
		e.field(&first, prop.Key, func() { e.writeValue(prop.Value) })
	}
	e.buf.WriteByte('}')
}

func (e *emitter) emitUnion(s *UnionSchema, enclosingNS string) {
	e.buf.WriteByte('[')
	for i, m := range s.Types() {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		e.emitSchema(m, enclosingNS)
	}
	e.buf.WriteByte(']')
}

func (e *emitter) emitMessage(m *Message, enclosingNS string) {
	first := true
	e.buf.WriteByte('{')
	if m.Doc() != "" {
		e.field(&first, "doc", func() { e.writeString(m.Doc()) })
	}
	for _, prop := range m.Props() {
		e.field(&first, prop.Key, func() { e.writeValue(prop.Value) })
	}
	e.field(&first, "request", func() {
		e.buf.WriteByte('[')
		for i, f := range m.Request() {
			if i > 0 {
				e.buf.WriteByte(',')
			}
			e.emitField(f, enclosingNS)
		}
		e.buf.WriteByte(']')
	})
	e.field(&first, "response", func() { e.emitSchema(m.Response(), enclosingNS) })
	if m.Errors() != nil {
		e.field(&first, "errors", func() {
			e.buf.WriteByte('[')
			for i, err := range m.Errors() {
				if i > 0 {
					e.buf.WriteByte(',')
				}
				e.emitSchema(err, enclosingNS)
			}
			e.buf.WriteByte(']')
		})
	}
	if m.OneWay() {
		e.field(&first, "one-way", func() { e.buf.WriteString("true") })
	}
	e.buf.WriteByte('}')
}
