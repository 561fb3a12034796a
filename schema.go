package avdl

import (
	"crypto/md5"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hamba/avdl/pkg/crc64"
)

func md5Sum(data []byte) []byte {
	sum := md5.Sum(data)
	return sum[:]
}

// Type is a schema type.
type Type string

// Schema type constants.
const (
	Record  Type = "record"
	Error   Type = "error"
	Enum    Type = "enum"
	Array   Type = "array"
	Map     Type = "map"
	Union   Type = "union"
	Fixed   Type = "fixed"
	String  Type = "string"
	Bytes   Type = "bytes"
	Int     Type = "int"
	Long    Type = "long"
	Float   Type = "float"
	Double  Type = "double"
	Boolean Type = "boolean"
	Null    Type = "null"

	// Ref marks a schema that is still a name/namespace placeholder awaiting resolution.
	Ref Type = "<ref>"
)

// Order is a field order.
type Order string

// Field orders.
const (
	Asc    Order = "ascending"
	Desc   Order = "descending"
	Ignore Order = "ignore"
)

// FingerprintType is a fingerprinting algorithm.
type FingerprintType string

// Fingerprint type constants.
const (
	CRC64Avro   FingerprintType = "CRC64-AVRO"
	CRC64AvroLE FingerprintType = "CRC64-AVRO-LE"
	MD5         FingerprintType = "MD5"
	SHA256      FingerprintType = "SHA256"
)

// SkipNameValidation disables Avro name-rule validation. It exists for tests
// and for embedding this package behind a caller that has already validated
// names; production use should leave it false.
var SkipNameValidation = false

// Schemas is an ordered slice of Schema.
type Schemas []Schema

// Get gets a schema and its position by type or full name, if it is a named schema.
func (s Schemas) Get(fullName string) (Schema, int) {
	for i, schema := range s {
		if schemaTypeName(schema) == fullName {
			return schema, i
		}
	}
	return nil, -1
}

// Schema represents an Avro schema node.
type Schema interface {
	// Type returns the type of the schema.
	Type() Type

	// Fingerprint returns the SHA256 fingerprint of the schema's canonical JSON.
	Fingerprint() [32]byte

	// FingerprintUsing returns the fingerprint of the schema using the given algorithm.
	FingerprintUsing(FingerprintType) ([]byte, error)
}

// LogicalSchema represents an Avro logical type overlay.
type LogicalSchema interface {
	// Type returns the logical type.
	Type() LogicalType

	// ExpectedBaseType returns the primitive type a schema carrying this
	// logical type must have.
	ExpectedBaseType() Type
}

// PropertySchema represents a schema carrying a property map.
type PropertySchema interface {
	// Prop gets a property value by name, or nil.
	Prop(string) any

	// Props returns the properties in insertion order.
	Props() []Property
}

// NamedSchema represents a schema with a name that participates in a
// protocol's name registry.
type NamedSchema interface {
	Schema
	PropertySchema

	// Name returns the simple name of a schema.
	Name() string

	// Namespace returns the namespace of a schema.
	Namespace() string

	// FullName returns the fully qualified name of a schema.
	FullName() string

	// Aliases returns the fully qualified aliases of a schema.
	Aliases() []string
}

type name struct {
	name      string
	namespace string
	full      string
	aliases   []string
}

func newName(n, ns string, aliases []string) (name, error) {
	if idx := strings.LastIndexByte(n, '.'); idx > -1 {
		ns = n[:idx]
		n = n[idx+1:]
	}

	full := n
	if ns != "" {
		full = ns + "." + n
	}

	for _, part := range strings.Split(full, ".") {
		if err := validateName(part); err != nil {
			return name{}, fmt.Errorf("avdl: invalid name part %q in name %q: %w", part, full, err)
		}
	}

	a := make([]string, 0, len(aliases))
	for _, alias := range aliases {
		if !strings.Contains(alias, ".") {
			if err := validateName(alias); err != nil {
				return name{}, fmt.Errorf("avdl: invalid alias %q: %w", alias, err)
			}
			if ns == "" {
				a = append(a, alias)
				continue
			}
			a = append(a, ns+"."+alias)
			continue
		}

		for _, part := range strings.Split(alias, ".") {
			if err := validateName(part); err != nil {
				return name{}, fmt.Errorf("avdl: invalid alias part %q in alias %q: %w", part, alias, err)
			}
		}
		a = append(a, alias)
	}

	return name{name: n, namespace: ns, full: full, aliases: a}, nil
}

func (n name) Name() string      { return n.name }
func (n name) Namespace() string { return n.namespace }
func (n name) FullName() string  { return n.full }
func (n name) Aliases() []string { return n.aliases }

// makeFullName composes a full name the same way a named declaration does,
// without constructing a full name struct. Used by Reference.FullName (and so
// by the resolver's lookups) and by the union key of a Reference.
func makeFullName(n, ns string) string {
	if idx := strings.LastIndexByte(n, '.'); idx > -1 {
		return n
	}
	if ns == "" {
		return n
	}
	return ns + "." + n
}

type fingerprinter struct {
	fingerprint atomic.Value // [32]byte
	cache       sync.Map     // map[FingerprintType][]byte
}

func (f *fingerprinter) Fingerprint(canonical func() string) [32]byte {
	if v := f.fingerprint.Load(); v != nil {
		return v.([32]byte)
	}
	fp := sha256.Sum256([]byte(canonical()))
	f.fingerprint.Store(fp)
	return fp
}

func (f *fingerprinter) FingerprintUsing(typ FingerprintType, canonical func() string) ([]byte, error) {
	if v, ok := f.cache.Load(typ); ok {
		return v.([]byte), nil
	}

	data := []byte(canonical())

	var fp []byte
	switch typ {
	case CRC64Avro:
		h := crc64.Sum(data)
		fp = h[:]
	case CRC64AvroLE:
		h := crc64.SumWithByteOrder(data, crc64.LittleEndian)
		fp = h[:]
	case MD5:
		fp = md5Sum(data)
	case SHA256:
		h := sha256.Sum256(data)
		fp = h[:]
	default:
		return nil, fmt.Errorf("avdl: unknown fingerprint algorithm %s", typ)
	}

	f.cache.Store(typ, fp)
	return fp, nil
}

// Property is a single, ordered schema annotation.
type Property struct {
	Key   string
	Value any
}

// properties is an insertion-ordered property map. A Go map cannot preserve
// insertion order, and the canonical emitter (spec ordering rule 9) must
// emit properties in that order, so this stores them as a slice instead of
// the map the teacher library uses internally.
type properties struct {
	entries []Property
}

func newProperties(props []Property, reserved []string) properties {
	p := properties{}
	for _, e := range props {
		if isReserved(reserved, e.Key) {
			continue
		}
		p.set(e.Key, e.Value)
	}
	return p
}

func newPropertiesFromMap(props map[string]any, reserved []string) properties {
	p := properties{}
	for k, v := range props {
		if isReserved(reserved, k) {
			continue
		}
		p.set(k, v)
	}
	return p
}

func isReserved(res []string, k string) bool {
	for _, r := range res {
		if k == r {
			return true
		}
	}
	return false
}

// set inserts a property, or updates it in place (keeping its original
// position) if the key already exists. This is the property-merge rule of
// spec §4.4: "later entries win on key collision", without reordering.
func (p *properties) set(key string, value any) {
	for i := range p.entries {
		if p.entries[i].Key == key {
			p.entries[i].Value = value
			return
		}
	}
	p.entries = append(p.entries, Property{Key: key, Value: value})
}

// merge folds props into p in order, following the set rule above.
func (p *properties) merge(props []Property) {
	for _, e := range props {
		p.set(e.Key, e.Value)
	}
}

// Prop gets a property from the schema.
func (p properties) Prop(name string) any {
	for _, e := range p.entries {
		if e.Key == name {
			return e.Value
		}
	}
	return nil
}

// Props returns all schema custom properties, in insertion order.
func (p properties) Props() []Property {
	return p.entries
}

func invalidNameFirstChar(r rune) bool {
	return (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') && r != '_'
}

func invalidNameOtherChar(r rune) bool {
	return invalidNameFirstChar(r) && (r < '0' || r > '9')
}

func validateName(n string) error {
	if n == "" {
		return errors.New("name must be non-empty")
	}
	if SkipNameValidation {
		return nil
	}
	if strings.IndexFunc(n[:1], invalidNameFirstChar) > -1 {
		return fmt.Errorf("invalid name %q", n)
	}
	if strings.IndexFunc(n[1:], invalidNameOtherChar) > -1 {
		return fmt.Errorf("invalid name %q", n)
	}
	return nil
}

// reservedTypeNames is the set of identifiers a declaration may not use as
// its simple name (spec §4.2).
var reservedTypeNames = map[string]bool{
	"null": true, "boolean": true, "int": true, "long": true, "float": true,
	"double": true, "bytes": true, "string": true, "array": true, "map": true,
	"union": true, "fixed": true, "enum": true, "record": true, "error": true,
	"date": true, "time_ms": true, "timestamp_ms": true, "local_timestamp_ms": true,
	"uuid": true, "decimal": true, "protocol": true,
}

// IsReservedTypeName reports whether n is reserved and cannot be used as a
// named-type simple name.
func IsReservedTypeName(n string) bool {
	return reservedTypeNames[strings.ToLower(n)]
}

func schemaTypeName(schema Schema) string {
	if ns, ok := schema.(NamedSchema); ok {
		return ns.FullName()
	}
	if ref, ok := schema.(*Reference); ok {
		return makeFullName(ref.Name, ref.Namespace)
	}

	// A logical type's union key is its expected base primitive's name, not
	// a compound "<primitive>.<logicalType>" string (spec §3): it shares
	// the wire type of the bare primitive, so a plain "long" and a
	// "long" carrying @logicalType("timestamp-millis") must collide.
	return string(schema.Type())
}

// unionTypeKey returns the key Avro uses to detect duplicate union members
// (spec §3 invariant, grounded on schmidtnicholas-cockroach's
// avroUnionKey/avroSchemaType pattern for keying union branches by
// primitive-or-named-type identity).
func unionTypeKey(schema Schema) string {
	return schemaTypeName(schema)
}
