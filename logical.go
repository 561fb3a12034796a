package avdl

import (
	"fmt"
	"math"
)

// LogicalType is a schema logical type.
type LogicalType string

// Schema logical type constants.
const (
	Decimal              LogicalType = "decimal"
	UUID                 LogicalType = "uuid"
	Date                 LogicalType = "date"
	TimeMillis           LogicalType = "time-millis"
	TimeMicros           LogicalType = "time-micros"
	TimestampMillis      LogicalType = "timestamp-millis"
	TimestampMicros      LogicalType = "timestamp-micros"
	LocalTimestampMillis LogicalType = "local-timestamp-millis"
	LocalTimestampMicros LogicalType = "local-timestamp-micros"
	Duration             LogicalType = "duration"
)

// expectedBaseTypes maps each primitive-overlay logical type to the
// primitive base it must attach to (spec §3 invariant). Duration is
// deliberately absent: it overlays Fixed, not a primitive, and is handled
// separately by ValidateFixedLogical.
var expectedBaseTypes = map[LogicalType]Type{
	Date:                 Int,
	TimeMillis:           Int,
	TimeMicros:           Long,
	TimestampMillis:      Long,
	TimestampMicros:      Long,
	LocalTimestampMillis: Long,
	LocalTimestampMicros: Long,
	UUID:                 String,
	Decimal:              Bytes,
}

// PrimitiveLogicalSchema is a logical type with no parameters (everything
// except decimal).
type PrimitiveLogicalSchema struct {
	typ LogicalType
}

// NewPrimitiveLogicalSchema creates a parameterless logical schema.
func NewPrimitiveLogicalSchema(typ LogicalType) *PrimitiveLogicalSchema {
	return &PrimitiveLogicalSchema{typ: typ}
}

func (s *PrimitiveLogicalSchema) Type() LogicalType    { return s.typ }
func (s *PrimitiveLogicalSchema) ExpectedBaseType() Type {
	return expectedBaseTypes[s.typ]
}

// DecimalLogicalSchema is the `decimal` logical type, parameterized by
// precision and scale.
type DecimalLogicalSchema struct {
	prec  int
	scale int
}

// NewDecimalLogicalSchema creates a decimal logical schema.
func NewDecimalLogicalSchema(prec, scale int) *DecimalLogicalSchema {
	return &DecimalLogicalSchema{prec: prec, scale: scale}
}

func (s *DecimalLogicalSchema) Type() LogicalType      { return Decimal }
func (s *DecimalLogicalSchema) ExpectedBaseType() Type { return Bytes }
func (s *DecimalLogicalSchema) Precision() int         { return s.prec }
func (s *DecimalLogicalSchema) Scale() int             { return s.scale }

// ParseLogicalType builds a LogicalSchema from an IDL-level
// `@logicalType(name)` (plus optional `@precision`/`@scale`) annotation, or
// returns nil if name is not a recognised logical type name (spec §4.2 step
// 1: "unknown ... logical types are permitted as opaque annotations").
func ParseLogicalType(typeName string, precision, scale int, hasPrecision bool) (LogicalSchema, error) {
	switch LogicalType(typeName) {
	case Date, TimeMillis, TimeMicros, TimestampMillis, TimestampMicros,
		LocalTimestampMillis, LocalTimestampMicros, UUID:
		return NewPrimitiveLogicalSchema(LogicalType(typeName)), nil
	case Decimal:
		if !hasPrecision {
			return nil, fmt.Errorf("avdl: decimal logical type requires precision")
		}
		if err := ValidateDecimalParams(precision, scale); err != nil {
			return nil, err
		}
		return NewDecimalLogicalSchema(precision, scale), nil
	case Duration:
		// Duration overlays Fixed(12), not a primitive; it is handled by
		// ValidateFixedLogical, never constructed as a LogicalSchema here.
		return nil, nil
	default:
		return nil, nil
	}
}

// ValidateDecimalParams checks 1 <= precision and scale <= precision (spec
// §3), independent of any backing fixed size.
func ValidateDecimalParams(precision, scale int) error {
	if precision < 1 {
		return fmt.Errorf("avdl: decimal precision must be >= 1, got %d", precision)
	}
	if scale < 0 {
		return fmt.Errorf("avdl: decimal scale must be >= 0, got %d", scale)
	}
	if scale > precision {
		return fmt.Errorf("avdl: decimal scale %d must not exceed precision %d", scale, precision)
	}
	return nil
}

// MaxDecimalPrecisionForFixedSize returns the largest precision a
// decimal logical type may declare over a fixed schema of the given byte
// size (spec §3: floor((8N-1) * log10(2))).
func MaxDecimalPrecisionForFixedSize(size int) int {
	return int(math.Floor((8*float64(size) - 1) * math.Log10(2)))
}

// ValidateFixedLogical checks the spec §3/§4.2 rules for a logical type
// annotation found on a `fixed` declaration: `duration` requires size 12,
// `decimal` requires 1<=precision, scale<=precision, and precision within
// the byte-size bound.
func ValidateFixedLogical(typeName string, size, precision, scale int, hasPrecision bool) error {
	switch LogicalType(typeName) {
	case Duration:
		if size != 12 {
			return fmt.Errorf("avdl: duration logical type requires fixed size 12, got %d", size)
		}
		return nil
	case Decimal:
		if !hasPrecision {
			return fmt.Errorf("avdl: decimal logical type requires precision")
		}
		if err := ValidateDecimalParams(precision, scale); err != nil {
			return err
		}
		max := MaxDecimalPrecisionForFixedSize(size)
		if precision > max {
			return fmt.Errorf(
				"avdl: decimal precision %d exceeds maximum %d for fixed size %d",
				precision, max, size,
			)
		}
		return nil
	default:
		return fmt.Errorf("avdl: unknown logical type %q for fixed", typeName)
	}
}
