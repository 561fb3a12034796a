package avdl

import (
	"encoding/json"
	"fmt"
)

// SourceSpan is a byte range within a single source file, used to attach
// diagnostics to the node that produced them.
type SourceSpan struct {
	File  string
	Start int
	End   int
}

type schemaConfig struct {
	aliases []string
	doc     string
	def     any
	hasDef  bool
	order   Order
	props   []Property
}

// SchemaOption configures a schema node at construction time.
type SchemaOption func(*schemaConfig)

// WithAliases sets a schema's aliases.
func WithAliases(aliases []string) SchemaOption {
	return func(c *schemaConfig) { c.aliases = aliases }
}

// WithDoc sets a schema's doc comment.
func WithDoc(doc string) SchemaOption {
	return func(c *schemaConfig) { c.doc = doc }
}

// WithDefault sets a field's default value.
func WithDefault(def any) SchemaOption {
	return func(c *schemaConfig) { c.def = def; c.hasDef = true }
}

// WithOrder sets a field's sort order.
func WithOrder(order Order) SchemaOption {
	return func(c *schemaConfig) { c.order = order }
}

// WithProps sets a schema's properties, in the given order.
func WithProps(props []Property) SchemaOption {
	return func(c *schemaConfig) { c.props = props }
}

var (
	recordReserved = []string{"type", "name", "namespace", "doc", "aliases", "fields"}
	fieldReserved  = []string{"name", "doc", "type", "order", "aliases", "default"}
	enumReserved   = []string{"type", "name", "namespace", "aliases", "doc", "symbols", "default"}
	arrayReserved  = []string{"type", "items"}
	mapReserved    = []string{"type", "values"}
	fixedReserved  = []string{"type", "name", "namespace", "aliases", "size"}
	// primReserved deliberately omits logicalType/precision/scale: a
	// recognised logical type is carried on PrimitiveSchema.logical, not as a
	// property, but an unrecognised one is kept as an ordinary opaque
	// property (spec §4.2 step 1), so those three keys must stay available.
	primReserved = []string{"type"}
)

// PrimitiveSchema is an Avro primitive type, optionally carrying a logical
// type overlay and/or properties. A bare primitive with no logical type and
// no properties emits as a JSON string; once it carries either, it emits as
// an object — the model itself does not distinguish an "AnnotatedPrimitive"
// variant, the canonical emitter decides based on these two fields (spec §3
// AnnotatedPrimitive is represented this way rather than as a fourth Go type).
type PrimitiveSchema struct {
	properties
	fingerprinter

	typ     Type
	logical LogicalSchema
}

// NewPrimitiveSchema creates a primitive schema.
func NewPrimitiveSchema(t Type, l LogicalSchema, opts ...SchemaOption) *PrimitiveSchema {
	var cfg schemaConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return &PrimitiveSchema{
		properties: newProperties(cfg.props, primReserved),
		typ:        t,
		logical:    l,
	}
}

func (s *PrimitiveSchema) Type() Type              { return s.typ }
func (s *PrimitiveSchema) Logical() LogicalSchema  { return s.logical }
func (s *PrimitiveSchema) Fingerprint() [32]byte   { return s.fingerprinter.Fingerprint(func() string { return Canonical(s) }) }
func (s *PrimitiveSchema) FingerprintUsing(t FingerprintType) ([]byte, error) {
	return s.fingerprinter.FingerprintUsing(t, func() string { return Canonical(s) })
}

// RecordSchema is an Avro record (or error record) schema.
type RecordSchema struct {
	name
	properties
	fingerprinter

	isError bool
	fields  []*Field
	doc     string
}

// NewRecordSchema creates a record schema.
func NewRecordSchema(n, namespace string, fields []*Field, opts ...SchemaOption) (*RecordSchema, error) {
	var cfg schemaConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	nm, err := newName(n, namespace, cfg.aliases)
	if err != nil {
		return nil, err
	}
	return &RecordSchema{
		name:       nm,
		properties: newProperties(cfg.props, recordReserved),
		fields:     fields,
		doc:        cfg.doc,
	}, nil
}

// NewErrorRecordSchema creates an error record schema.
func NewErrorRecordSchema(n, namespace string, fields []*Field, opts ...SchemaOption) (*RecordSchema, error) {
	rec, err := NewRecordSchema(n, namespace, fields, opts...)
	if err != nil {
		return nil, err
	}
	rec.isError = true
	return rec, nil
}

func (s *RecordSchema) Type() Type        { return Record }
func (s *RecordSchema) Doc() string       { return s.doc }
func (s *RecordSchema) IsError() bool     { return s.isError }
func (s *RecordSchema) Fields() []*Field  { return s.fields }
func (s *RecordSchema) Fingerprint() [32]byte {
	return s.fingerprinter.Fingerprint(func() string { return Canonical(s) })
}
func (s *RecordSchema) FingerprintUsing(t FingerprintType) ([]byte, error) {
	return s.fingerprinter.FingerprintUsing(t, func() string { return Canonical(s) })
}

// Field is an Avro record field or protocol message parameter.
type Field struct {
	properties

	name    string
	aliases []string
	doc     string
	typ     Schema
	hasDef  bool
	def     any
	order   Order
}

// NewField creates a field.
func NewField(n string, typ Schema, opts ...SchemaOption) (*Field, error) {
	var cfg schemaConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := validateName(n); err != nil {
		return nil, err
	}
	for _, a := range cfg.aliases {
		if err := validateName(a); err != nil {
			return nil, err
		}
	}
	switch cfg.order {
	case "":
		cfg.order = Asc
	case Asc, Desc, Ignore:
	default:
		return nil, fmt.Errorf("avdl: field %q order %q is invalid", n, cfg.order)
	}

	return &Field{
		properties: newProperties(cfg.props, fieldReserved),
		name:       n,
		aliases:    cfg.aliases,
		doc:        cfg.doc,
		typ:        typ,
		hasDef:     cfg.hasDef,
		def:        cfg.def,
		order:      cfg.order,
	}, nil
}

func (f *Field) Name() string      { return f.name }
func (f *Field) Aliases() []string { return f.aliases }
func (f *Field) Type() Schema      { return f.typ }
func (f *Field) HasDefault() bool  { return f.hasDef }
func (f *Field) Default() any      { return f.def }
func (f *Field) Doc() string       { return f.doc }
func (f *Field) Order() Order      { return f.order }

// SetType replaces the field's schema. Used only by the resolver to bind a
// Reference to its resolved target.
func (f *Field) SetType(s Schema) { f.typ = s }

// EnumSchema is an Avro enum schema.
type EnumSchema struct {
	name
	properties
	fingerprinter

	doc     string
	symbols []string
	def     string
	hasDef  bool
}

// NewEnumSchema creates an enum schema.
func NewEnumSchema(n, namespace string, symbols []string, opts ...SchemaOption) (*EnumSchema, error) {
	var cfg schemaConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	nm, err := newName(n, namespace, cfg.aliases)
	if err != nil {
		return nil, err
	}
	for _, sym := range symbols {
		if err := validateName(sym); err != nil {
			return nil, fmt.Errorf("avdl: invalid enum symbol %q: %w", sym, err)
		}
	}

	e := &EnumSchema{
		name:       nm,
		properties: newProperties(cfg.props, enumReserved),
		doc:        cfg.doc,
		symbols:    symbols,
	}
	if cfg.hasDef {
		def, _ := cfg.def.(string)
		if !hasSymbol(symbols, def) {
			return nil, fmt.Errorf("avdl: enum %q default %q is not one of its symbols", nm.FullName(), def)
		}
		e.def = def
		e.hasDef = true
	}
	return e, nil
}

func hasSymbol(symbols []string, sym string) bool {
	for _, s := range symbols {
		if s == sym {
			return true
		}
	}
	return false
}

func (s *EnumSchema) Type() Type         { return Enum }
func (s *EnumSchema) Doc() string        { return s.doc }
func (s *EnumSchema) Symbols() []string  { return s.symbols }
func (s *EnumSchema) Default() string    { return s.def }
func (s *EnumSchema) HasDefault() bool   { return s.hasDef }
func (s *EnumSchema) Fingerprint() [32]byte {
	return s.fingerprinter.Fingerprint(func() string { return Canonical(s) })
}
func (s *EnumSchema) FingerprintUsing(t FingerprintType) ([]byte, error) {
	return s.fingerprinter.FingerprintUsing(t, func() string { return Canonical(s) })
}

// ArraySchema is an Avro array schema.
type ArraySchema struct {
	properties
	fingerprinter

	items Schema
}

// NewArraySchema creates an array schema.
func NewArraySchema(items Schema, opts ...SchemaOption) *ArraySchema {
	var cfg schemaConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return &ArraySchema{properties: newProperties(cfg.props, arrayReserved), items: items}
}

func (s *ArraySchema) Type() Type    { return Array }
func (s *ArraySchema) Items() Schema { return s.items }
func (s *ArraySchema) SetItems(schema Schema) { s.items = schema }
func (s *ArraySchema) Fingerprint() [32]byte {
	return s.fingerprinter.Fingerprint(func() string { return Canonical(s) })
}
func (s *ArraySchema) FingerprintUsing(t FingerprintType) ([]byte, error) {
	return s.fingerprinter.FingerprintUsing(t, func() string { return Canonical(s) })
}

// MapSchema is an Avro map schema (implicitly string-keyed).
type MapSchema struct {
	properties
	fingerprinter

	values Schema
}

// NewMapSchema creates a map schema.
func NewMapSchema(values Schema, opts ...SchemaOption) *MapSchema {
	var cfg schemaConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return &MapSchema{properties: newProperties(cfg.props, mapReserved), values: values}
}

func (s *MapSchema) Type() Type      { return Map }
func (s *MapSchema) Values() Schema  { return s.values }
func (s *MapSchema) SetValues(schema Schema) { s.values = schema }
func (s *MapSchema) Fingerprint() [32]byte {
	return s.fingerprinter.Fingerprint(func() string { return Canonical(s) })
}
func (s *MapSchema) FingerprintUsing(t FingerprintType) ([]byte, error) {
	return s.fingerprinter.FingerprintUsing(t, func() string { return Canonical(s) })
}

// UnionSchema is an Avro union schema.
type UnionSchema struct {
	fingerprinter

	types Schemas

	// isNullableType marks a union synthesized from the `T?` shorthand
	// (spec §4.2). It is internal bookkeeping only; never emitted.
	isNullableType bool
}

// NewUnionSchema creates a union schema, enforcing spec §3's duplicate-key
// and arity invariants.
func NewUnionSchema(types []Schema) (*UnionSchema, error) {
	if len(types) < 2 {
		return nil, fmt.Errorf("avdl: union must have at least two members, got %d", len(types))
	}

	seen := map[string]bool{}
	for _, t := range types {
		if t.Type() == Union {
			return nil, fmt.Errorf("avdl: union type cannot itself contain a union")
		}
		key := unionTypeKey(t)
		if seen[key] {
			return nil, fmt.Errorf("avdl: union has duplicate member %q", key)
		}
		seen[key] = true
	}

	return &UnionSchema{types: types}, nil
}

// newNullableUnion builds the `T?` shorthand union as [T, Null]. It goes
// through NewUnionSchema, so the usual arity, nested-union and duplicate-key
// checks all apply: `null?` is rejected as a duplicate member, and a T that
// is itself a union is rejected as a nested union.
func newNullableUnion(t Schema) (*UnionSchema, error) {
	u, err := NewUnionSchema([]Schema{t, NewPrimitiveSchema(Null, nil)})
	if err != nil {
		return nil, err
	}
	u.isNullableType = true
	return u, nil
}

// NewNullableUnion is the exported form of newNullableUnion, used by the
// reader to build the `T?` shorthand (spec §4.2).
func NewNullableUnion(t Schema) (*UnionSchema, error) {
	return newNullableUnion(t)
}

func (s *UnionSchema) Type() Type      { return Union }
func (s *UnionSchema) Types() Schemas  { return s.types }
func (s *UnionSchema) IsNullableType() bool { return s.isNullableType }

// SetMember replaces the i'th union member. Used by the resolver.
func (s *UnionSchema) SetMember(i int, schema Schema) { s.types[i] = schema }

// Reorder swaps the two members of a nullable union so index 0 holds Null
// when nullFirst is true and the non-null member otherwise. Used by the reader to implement spec §4.2's default-driven
// reordering; it is a no-op on non-nullable unions.
func (s *UnionSchema) Reorder(nullFirst bool) {
	if !s.isNullableType || len(s.types) != 2 {
		return
	}
	nullIdx := 0
	if s.types[0].Type() != Null {
		nullIdx = 1
	}
	if (nullIdx == 0) != nullFirst {
		s.types[0], s.types[1] = s.types[1], s.types[0]
	}
}

func (s *UnionSchema) Fingerprint() [32]byte {
	return s.fingerprinter.Fingerprint(func() string { return Canonical(s) })
}
func (s *UnionSchema) FingerprintUsing(t FingerprintType) ([]byte, error) {
	return s.fingerprinter.FingerprintUsing(t, func() string { return Canonical(s) })
}

// FixedSchema is an Avro fixed-size byte schema. A logical type on a fixed
// schema (`duration`, `decimal`) is carried as ordinary properties
// (`logicalType`, `precision`, `scale`) rather than a typed field, per spec
// §3 ("represented as Fixed with a logicalType property, not as Logical"):
// this keeps it subject to the same insertion-order interleaving with other
// `@name(value)` annotations as any other property.
type FixedSchema struct {
	name
	properties
	fingerprinter

	doc  string
	size int
}

// NewFixedSchema creates a fixed schema.
func NewFixedSchema(n, namespace string, size int, opts ...SchemaOption) (*FixedSchema, error) {
	var cfg schemaConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	nm, err := newName(n, namespace, cfg.aliases)
	if err != nil {
		return nil, err
	}
	if size < 1 {
		return nil, fmt.Errorf("avdl: fixed %q size must be at least 1", nm.FullName())
	}

	return &FixedSchema{
		name:       nm,
		properties: newProperties(cfg.props, fixedReserved),
		doc:        cfg.doc,
		size:       size,
	}, nil
}

func (s *FixedSchema) Type() Type { return Fixed }
func (s *FixedSchema) Doc() string { return s.doc }
func (s *FixedSchema) Size() int  { return s.size }

// Logical reconstructs the logical type overlay, if any, from this fixed
// schema's `logicalType`/`precision`/`scale` properties.
func (s *FixedSchema) Logical() LogicalSchema {
	lt, _ := s.Prop("logicalType").(string)
	if lt == "" {
		return nil
	}
	if LogicalType(lt) == Duration {
		return NewPrimitiveLogicalSchema(Duration)
	}
	if LogicalType(lt) == Decimal {
		prec, _ := toInt(s.Prop("precision"))
		scale, _ := toInt(s.Prop("scale"))
		return NewDecimalLogicalSchema(prec, scale)
	}
	return NewPrimitiveLogicalSchema(LogicalType(lt))
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}

func (s *FixedSchema) Fingerprint() [32]byte {
	return s.fingerprinter.Fingerprint(func() string { return Canonical(s) })
}
func (s *FixedSchema) FingerprintUsing(t FingerprintType) ([]byte, error) {
	return s.fingerprinter.FingerprintUsing(t, func() string { return Canonical(s) })
}

// Reference is a placeholder for a named type not yet known at the point it
// was referenced (spec §3/§4.5). It never appears in a fully resolved
// protocol; the resolver rewrites every reachable Reference to the
// NamedSchema it names, or reports a diagnostic.
type Reference struct {
	properties
	fingerprinter

	Name      string
	Namespace string
	Span      SourceSpan
}

// NewReference creates a Reference placeholder.
func NewReference(n, namespace string, span SourceSpan, opts ...SchemaOption) *Reference {
	var cfg schemaConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Reference{
		properties: newProperties(cfg.props, nil),
		Name:       n,
		Namespace:  namespace,
		Span:       span,
	}
}

func (r *Reference) Type() Type { return Ref }
func (r *Reference) FullName() string { return makeFullName(r.Name, r.Namespace) }
func (r *Reference) Fingerprint() [32]byte {
	return r.fingerprinter.Fingerprint(func() string { return `"` + r.FullName() + `"` })
}
func (r *Reference) FingerprintUsing(t FingerprintType) ([]byte, error) {
	return r.fingerprinter.FingerprintUsing(t, func() string { return `"` + r.FullName() + `"` })
}
