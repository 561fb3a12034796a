// Package load implements the IDL import statement (spec §4.3): resolving
// `import idl|protocol|schema "path";` to the named types and messages it
// contributes, loading each canonical path at most once, and detecting
// import cycles.
//
// jsonschema.go handles the "protocol" and "schema" import kinds, which
// reconstruct the model from previously emitted canonical JSON rather than
// parsing IDL source.
package load

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/hamba/avdl"
)

// rawNamed carries the scalar fields common to record/enum/fixed JSON
// objects; mapstructure.Decode fills it from the raw map, leaving the
// type-specific fields (fields/symbols/size) to be pulled out separately.
type rawNamed struct {
	Name      string   `mapstructure:"name"`
	Namespace string   `mapstructure:"namespace"`
	Doc       string   `mapstructure:"doc"`
	Aliases   []string `mapstructure:"aliases"`
}

func decodeNamed(m map[string]any) rawNamed {
	var raw rawNamed
	_ = mapstructure.Decode(m, &raw)
	return raw
}

// rawProtocolHeader carries a protocol document's scalar top-level fields,
// the same way rawNamed does for a named schema (spec §4.3 "protocol"
// import kind).
type rawProtocolHeader struct {
	Protocol  string `mapstructure:"protocol"`
	Namespace string `mapstructure:"namespace"`
	Doc       string `mapstructure:"doc"`
}

// rawField carries a field or request-parameter JSON object's scalar
// members; "type" and "default" stay in the raw map since they need
// recursive schema parsing and arbitrary-value handling respectively.
type rawField struct {
	Name    string   `mapstructure:"name"`
	Doc     string   `mapstructure:"doc"`
	Order   string   `mapstructure:"order"`
	Aliases []string `mapstructure:"aliases"`
}

func decodeField(m map[string]any) rawField {
	var raw rawField
	_ = mapstructure.Decode(m, &raw)
	return raw
}

var (
	recordJSONReserved  = []string{"type", "name", "namespace", "doc", "aliases", "fields"}
	fieldJSONReserved   = []string{"name", "doc", "type", "order", "aliases", "default"}
	enumJSONReserved    = []string{"type", "name", "namespace", "aliases", "doc", "symbols", "default"}
	fixedJSONReserved   = []string{"type", "name", "namespace", "aliases", "size"}
	messageJSONReserved = []string{"doc", "request", "response", "errors", "one-way"}
)

// ParseSchemataJSON decodes a JSON document holding either a single schema,
// an array of schemas, or a full-name-to-schema object (the shape
// EmitSchemata produces), and returns every named type found in it.
func ParseSchemataJSON(file, src string) ([]avdl.NamedSchema, error) {
	raw, err := decodeJSON(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}

	switch v := raw.(type) {
	case []any:
		return collectNamed(v, "", file)
	case map[string]any:
		if _, isSchema := v["type"]; isSchema {
			s, err := parseSchemaValue(v, "", file)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			ns, ok := s.(avdl.NamedSchema)
			if !ok {
				return nil, fmt.Errorf("%s: imported schema is not a named type", file)
			}
			return []avdl.NamedSchema{ns}, nil
		}
		values := make([]any, 0, len(v))
		for _, val := range v {
			values = append(values, val)
		}
		return collectNamed(values, "", file)
	default:
		return nil, fmt.Errorf("%s: unexpected top-level JSON shape", file)
	}
}

func collectNamed(values []any, ns, file string) ([]avdl.NamedSchema, error) {
	var out []avdl.NamedSchema
	for _, item := range values {
		s, err := parseSchemaValue(item, ns, file)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		if named, ok := s.(avdl.NamedSchema); ok {
			out = append(out, named)
		}
	}
	return out, nil
}

// ParseProtocolJSON decodes a full protocol document (the shape
// EmitProtocol produces) into a Protocol.
func ParseProtocolJSON(file, src string) (*avdl.Protocol, error) {
	raw, err := decodeJSON(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s: protocol document must be a JSON object", file)
	}

	var header rawProtocolHeader
	if err := mapstructure.Decode(m, &header); err != nil {
		return nil, fmt.Errorf("%s: decoding protocol header: %w", file, err)
	}
	name, ns, doc := header.Protocol, header.Namespace, header.Doc

	var types []avdl.NamedSchema
	if rawTypes, ok := m["types"].([]any); ok {
		types, err = collectNamed(rawTypes, ns, file)
		if err != nil {
			return nil, err
		}
	}

	messages := map[string]*avdl.Message{}
	var order []string
	if rawMsgs, ok := m["messages"].(map[string]any); ok {
		names := make([]string, 0, len(rawMsgs))
		for name := range rawMsgs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			msg, err := parseMessageValue(rawMsgs[name], ns, file)
			if err != nil {
				return nil, fmt.Errorf("%s: message %q: %w", file, name, err)
			}
			messages[name] = msg
			order = append(order, name)
		}
	}

	rest := restProperties(m, []string{"protocol", "namespace", "doc", "types", "messages"})
	return avdl.NewProtocol(name, ns, types, messages, order, avdl.WithProtoDoc(doc), avdl.WithProtoProps(rest))
}

func decodeJSON(src string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(src))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

var jsonPrimitiveNames = map[string]bool{
	"null": true, "boolean": true, "int": true, "long": true,
	"float": true, "double": true, "bytes": true, "string": true,
}

// parseSchemaValue parses one schema position: a bare type/reference name
// string, a union array, or a schema object.
func parseSchemaValue(v any, ns, file string) (avdl.Schema, error) {
	switch t := v.(type) {
	case string:
		if jsonPrimitiveNames[t] {
			return avdl.NewPrimitiveSchema(avdl.Type(t), nil), nil
		}
		// A bare name that isn't a primitive is a reference to a named type
		// declared elsewhere in the document (forward, self, or sibling);
		// resolution happens in the same post-pass as IDL-sourced references.
		simple, refNS := splitQualifiedName(t, ns)
		return avdl.NewReference(simple, refNS, avdl.SourceSpan{File: file}), nil
	case []any:
		members := make([]avdl.Schema, 0, len(t))
		for _, mv := range t {
			m, err := parseSchemaValue(mv, ns, file)
			if err != nil {
				return nil, err
			}
			members = append(members, m)
		}
		return avdl.NewUnionSchema(members)
	case map[string]any:
		return parseSchemaObject(t, ns, file)
	case nil:
		return avdl.NewPrimitiveSchema(avdl.Null, nil), nil
	default:
		return nil, fmt.Errorf("unexpected schema value of type %T", v)
	}
}

func splitQualifiedName(n, enclosingNS string) (simple, ns string) {
	if idx := strings.LastIndexByte(n, '.'); idx > -1 {
		return n[idx+1:], n[:idx]
	}
	return n, enclosingNS
}

func parseSchemaObject(m map[string]any, ns, file string) (avdl.Schema, error) {
	typVal, _ := m["type"].(string)
	switch avdl.Type(typVal) {
	case avdl.Record, avdl.Error:
		return parseRecord(m, ns, file, avdl.Type(typVal) == avdl.Error)
	case avdl.Enum:
		return parseEnum(m, ns, file)
	case avdl.Array:
		items, err := parseSchemaValue(m["items"], ns, file)
		if err != nil {
			return nil, err
		}
		return avdl.NewArraySchema(items, avdl.WithProps(restProperties(m, []string{"type", "items"}))), nil
	case avdl.Map:
		values, err := parseSchemaValue(m["values"], ns, file)
		if err != nil {
			return nil, err
		}
		return avdl.NewMapSchema(values, avdl.WithProps(restProperties(m, []string{"type", "values"}))), nil
	case avdl.Fixed:
		return parseFixed(m, ns, file)
	default:
		if nested, ok := m["type"].(map[string]any); ok {
			return parseSchemaObject(nested, ns, file)
		}
		return parsePrimitiveObject(m, typVal)
	}
}

func parsePrimitiveObject(m map[string]any, typVal string) (avdl.Schema, error) {
	lt, hasLT := m["logicalType"].(string)
	if !hasLT {
		return avdl.NewPrimitiveSchema(avdl.Type(typVal), nil, avdl.WithProps(restProperties(m, []string{"type"}))), nil
	}

	prec, hasPrec := intFromAny(m["precision"])
	scale, _ := intFromAny(m["scale"])
	logical, err := avdl.ParseLogicalType(lt, prec, scale, hasPrec)
	if err != nil {
		return nil, err
	}
	if logical == nil || logical.ExpectedBaseType() != avdl.Type(typVal) {
		return avdl.NewPrimitiveSchema(avdl.Type(typVal), nil, avdl.WithProps(restProperties(m, []string{"type"}))), nil
	}
	rest := restProperties(m, []string{"type", "logicalType", "precision", "scale"})
	return avdl.NewPrimitiveSchema(avdl.Type(typVal), logical, avdl.WithProps(rest)), nil
}

func parseRecord(m map[string]any, ns, file string, isError bool) (avdl.Schema, error) {
	raw := decodeNamed(m)
	effNS := namespaceOf(m, ns)

	var fields []*avdl.Field
	if rawFields, ok := m["fields"].([]any); ok {
		for _, rf := range rawFields {
			fm, ok := rf.(map[string]any)
			if !ok {
				continue
			}
			f, err := parseField(fm, effNS, file)
			if err != nil {
				return nil, err
			}
			fields = append(fields, f)
		}
	}

	opts := []avdl.SchemaOption{
		avdl.WithAliases(raw.Aliases), avdl.WithDoc(raw.Doc), avdl.WithProps(restProperties(m, recordJSONReserved)),
	}
	if isError {
		return avdl.NewErrorRecordSchema(raw.Name, effNS, fields, opts...)
	}
	return avdl.NewRecordSchema(raw.Name, effNS, fields, opts...)
}

func parseField(fm map[string]any, ns, file string) (*avdl.Field, error) {
	raw := decodeField(fm)
	typ, err := parseSchemaValue(fm["type"], ns, file)
	if err != nil {
		return nil, err
	}

	opts := []avdl.SchemaOption{avdl.WithAliases(raw.Aliases), avdl.WithDoc(raw.Doc)}
	if raw.Order != "" {
		opts = append(opts, avdl.WithOrder(avdl.Order(raw.Order)))
	}
	if def, ok := fm["default"]; ok {
		opts = append(opts, avdl.WithDefault(def))
	}
	opts = append(opts, avdl.WithProps(restProperties(fm, fieldJSONReserved)))
	return avdl.NewField(raw.Name, typ, opts...)
}

func parseEnum(m map[string]any, ns, file string) (avdl.Schema, error) {
	raw := decodeNamed(m)
	effNS := namespaceOf(m, ns)

	var symbols []string
	if rawSymbols, ok := m["symbols"].([]any); ok {
		for _, s := range rawSymbols {
			if str, ok := s.(string); ok {
				symbols = append(symbols, str)
			}
		}
	}

	opts := []avdl.SchemaOption{avdl.WithAliases(raw.Aliases), avdl.WithDoc(raw.Doc)}
	if def, ok := m["default"].(string); ok {
		opts = append(opts, avdl.WithDefault(def))
	}
	opts = append(opts, avdl.WithProps(restProperties(m, enumJSONReserved)))
	return avdl.NewEnumSchema(raw.Name, effNS, symbols, opts...)
}

func parseFixed(m map[string]any, ns, file string) (avdl.Schema, error) {
	raw := decodeNamed(m)
	effNS := namespaceOf(m, ns)
	size, _ := intFromAny(m["size"])
	opts := []avdl.SchemaOption{avdl.WithAliases(raw.Aliases), avdl.WithProps(restProperties(m, fixedJSONReserved))}
	return avdl.NewFixedSchema(raw.Name, effNS, size, opts...)
}

func parseMessageValue(mv any, ns, file string) (*avdl.Message, error) {
	mm, ok := mv.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("message must be a JSON object")
	}
	doc, _ := mm["doc"].(string)

	var req []*avdl.Field
	if raw, ok := mm["request"].([]any); ok {
		for _, rf := range raw {
			fm, ok := rf.(map[string]any)
			if !ok {
				continue
			}
			f, err := parseField(fm, ns, file)
			if err != nil {
				return nil, err
			}
			req = append(req, f)
		}
	}

	resp, err := parseSchemaValue(mm["response"], ns, file)
	if err != nil {
		return nil, err
	}

	var errs []avdl.Schema
	if raw, ok := mm["errors"].([]any); ok {
		for _, ev := range raw {
			s, err := parseSchemaValue(ev, ns, file)
			if err != nil {
				return nil, err
			}
			errs = append(errs, s)
		}
	}

	oneWay, _ := mm["one-way"].(bool)
	rest := restProperties(mm, messageJSONReserved)
	return avdl.NewMessage(req, resp, errs, oneWay, avdl.WithProtoDoc(doc), avdl.WithProtoProps(rest)), nil
}

func namespaceOf(m map[string]any, enclosing string) string {
	if ns, ok := m["namespace"].(string); ok {
		return ns
	}
	return enclosing
}

func intFromAny(v any) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case float64:
		return int(n), true
	}
	return 0, false
}

// restProperties returns every key in m not in reserved, in a deterministic
// (sorted) order. JSON object key order is not preserved by decoding into a
// Go map, so property order for imported schemas is lexical rather than the
// original document's — unlike IDL-sourced properties, which keep exact
// annotation order (spec §4.6's ordering guarantee is about emission, not
// round-tripping an arbitrary input document).
func restProperties(m map[string]any, reserved []string) []avdl.Property {
	skip := map[string]bool{}
	for _, k := range reserved {
		skip[k] = true
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		if !skip[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]avdl.Property, 0, len(keys))
	for _, k := range keys {
		out = append(out, avdl.Property{Key: k, Value: m[k]})
	}
	return out
}
