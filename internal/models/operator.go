package models

import (
	"errors"
	"fmt"
)

// Operator is the closed set of comparisons an AlertRule can apply.
// It is a tagged enum rather than a string so that evaluation dispatch
// is exhaustive at compile time.
type Operator int

const (
	OpUnknown Operator = iota
	OpGT
	OpGTE
	OpLT
	OpLTE
	OpEQ
	OpNE
)

// ErrUnknownOperator is returned when parsing an unrecognized operator name.
var ErrUnknownOperator = errors.New("unknown operator")

var operatorNames = map[Operator]string{
	OpGT:  "gt",
	OpGTE: "gte",
	OpLT:  "lt",
	OpLTE: "lte",
	OpEQ:  "eq",
	OpNE:  "ne",
}

// ParseOperator maps a wire-format operator name to its enum value.
func ParseOperator(s string) (Operator, error) {
	for op, name := range operatorNames {
		if name == s {
			return op, nil
		}
	}
	return OpUnknown, fmt.Errorf("%w: %q", ErrUnknownOperator, s)
}

func (o Operator) String() string {
	if name, ok := operatorNames[o]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether the operator is one of the recognized comparisons.
func (o Operator) Valid() bool {
	_, ok := operatorNames[o]
	return ok
}

// Compare applies the operator to (value, threshold).
func (o Operator) Compare(value, threshold float64) bool {
	switch o {
	case OpGT:
		return value > threshold
	case OpGTE:
		return value >= threshold
	case OpLT:
		return value < threshold
	case OpLTE:
		return value <= threshold
	case OpEQ:
		return value == threshold
	case OpNE:
		return value != threshold
	default:
		return false
	}
}

// MoreExtreme picks the "worse" of two observed values in the direction
// the operator tests: the maximum for gt/gte, the minimum for lt/lte.
// For eq/ne there is no meaningful direction, so the newer value wins.
func (o Operator) MoreExtreme(current, observed float64) float64 {
	switch o {
	case OpGT, OpGTE:
		if observed > current {
			return observed
		}
		return current
	case OpLT, OpLTE:
		if observed < current {
			return observed
		}
		return current
	default:
		return observed
	}
}

// MarshalText implements encoding.TextMarshaler so operators serialize
// as their wire names inside JSON payloads.
func (o Operator) MarshalText() ([]byte, error) {
	if !o.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownOperator, int(o))
	}
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Operator) UnmarshalText(text []byte) error {
	op, err := ParseOperator(string(text))
	if err != nil {
		return err
	}
	*o = op
	return nil
}
