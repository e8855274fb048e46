// Package assertion provides the per-field assertions beekeeper
// folds over the records of a datastore. Assertion kinds form a
// closed set resolved once, when a check is built, into a Spec
// whose Func threads an Accumulator through every record.
package assertion

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kind identifies an assertion variant.
type Kind int

const (
	// KindTypeCheck passes when a value parses as a primitive.
	KindTypeCheck Kind = iota + 1

	// KindContainment removes each observed value from the
	// reference set held in the accumulator. It never fails
	// per record.
	KindContainment

	// KindLeftoverEmpty is a post-loop check that fails when
	// reference values were never observed.
	KindLeftoverEmpty
)

// String returns the configuration name of the kind.
func (k Kind) String() string {
	switch k {
	case KindTypeCheck:
		return "type"
	case KindContainment:
		return "contained_in_reference"
	case KindLeftoverEmpty:
		return "leftover_empty"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Primitive is the declared type for a type check.
type Primitive string

const (
	PrimitiveInt   Primitive = "int"
	PrimitiveFloat Primitive = "float"
	PrimitiveBool  Primitive = "bool"
	PrimitiveDate  Primitive = "date"
	PrimitiveText  Primitive = "text"
)

var primitives = map[Primitive]bool{
	PrimitiveInt:   true,
	PrimitiveFloat: true,
	PrimitiveBool:  true,
	PrimitiveDate:  true,
	PrimitiveText:  true,
}

// ErrUnknownKind marks assertion strings that name no known
// kind or primitive.
var ErrUnknownKind = errors.New("unknown assertion kind")

// ErrMisplaced marks a known kind used in the wrong position,
// e.g. a post-loop kind configured as the per-record assertion.
var ErrMisplaced = errors.New("assertion kind not allowed here")

// Spec is a resolved assertion. The zero Spec means "none" and
// is only meaningful as an absent post-loop assertion.
type Spec struct {
	Kind      Kind
	Primitive Primitive
}

// IsZero reports whether no assertion is configured.
func (s Spec) IsZero() bool {
	return s.Kind == 0
}

// NeedsReference reports whether the initial accumulator must be
// loaded from a reference source.
func (s Spec) NeedsReference() bool {
	return s.Kind == KindContainment
}

// String renders s in its compact "type:value" form.
func (s Spec) String() string {
	if s.IsZero() {
		return ""
	}
	if s.Kind == KindTypeCheck {
		return s.Kind.String() + ":" + string(s.Primitive)
	}
	return s.Kind.String()
}

// Parse resolves a per-record assertion string. Accepted forms
// are "type:<primitive>", a bare primitive such as "int", and
// "contained_in_reference".
func Parse(s string) (Spec, error) {
	typ, value := ParseAssertionString(s)

	if p := Primitive(typ); primitives[p] && value == nil {
		return Spec{Kind: KindTypeCheck, Primitive: p}, nil
	}

	switch typ {
	case "type":
		raw, _ := value.(string)
		p := Primitive(raw)
		if !primitives[p] {
			return Spec{}, errors.Mark(
				errors.Newf("unknown primitive %q in assertion %q", raw, s),
				ErrUnknownKind,
			)
		}
		return Spec{Kind: KindTypeCheck, Primitive: p}, nil
	case "contained_in_reference", "in_reference":
		return Spec{Kind: KindContainment}, nil
	case "leftover_empty":
		return Spec{}, errors.Mark(
			errors.Newf("%q can only run after the scan", s),
			ErrMisplaced,
		)
	}

	return Spec{}, errors.Mark(
		errors.Newf("no assertion named %q", s), ErrUnknownKind,
	)
}

// ParsePost resolves a post-loop assertion string. The empty
// string yields the zero Spec.
func ParsePost(s string) (Spec, error) {
	if s == "" {
		return Spec{}, nil
	}

	typ, _ := ParseAssertionString(s)
	switch typ {
	case "leftover_empty":
		return Spec{Kind: KindLeftoverEmpty}, nil
	case "type", "contained_in_reference", "in_reference":
		return Spec{}, errors.Mark(
			errors.Newf("%q is a per-record assertion", s),
			ErrMisplaced,
		)
	}
	if primitives[Primitive(typ)] {
		return Spec{}, errors.Mark(
			errors.Newf("%q is a per-record assertion", s),
			ErrMisplaced,
		)
	}

	return Spec{}, errors.Mark(
		errors.Newf("no post-loop assertion named %q", s),
		ErrUnknownKind,
	)
}
