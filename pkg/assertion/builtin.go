package assertion

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Func is the assertion contract: given a field value and the
// current accumulator it reports whether the value passes and
// returns the next accumulator.
type Func func(value any, acc Accumulator) (bool, Accumulator)

// Func returns the step function for s. The zero Spec
// yields a function that always passes.
func (s Spec) Func() Func {
	switch s.Kind {
	case KindTypeCheck:
		return typeCheck(s.Primitive)
	case KindContainment:
		return containmentReduce
	case KindLeftoverEmpty:
		return leftoverEmpty
	}
	return func(_ any, acc Accumulator) (bool, Accumulator) {
		return true, acc
	}
}

// typeCheck returns a Func that passes values parsing as p.
func typeCheck(p Primitive) Func {
	return func(value any, acc Accumulator) (bool, Accumulator) {
		return Parses(p, value), acc
	}
}

// containmentReduce removes the observed value from the set.
func containmentReduce(value any, acc Accumulator) (bool, Accumulator) {
	return true, acc.remove(Normalize(Stringify(value)))
}

// leftoverEmpty fails while any reference value is unobserved.
func leftoverEmpty(_ any, acc Accumulator) (bool, Accumulator) {
	return acc.Len() == 0, acc
}

// dateLayouts are tried in order when checking PrimitiveDate.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"1/2/2006",
}

// Parses reports whether value is a valid p. Values arrive either
// as JSON scalars (json.Number, bool, string) or, in tests, as
// native Go numbers. nil never parses.
func Parses(p Primitive, value any) bool {
	if value == nil {
		return false
	}

	switch p {
	case PrimitiveInt:
		return parsesInt(value)
	case PrimitiveFloat:
		return parsesFloat(value)
	case PrimitiveBool:
		return parsesBool(value)
	case PrimitiveDate:
		s, ok := value.(string)
		if !ok {
			return false
		}
		s = strings.TrimSpace(s)
		for _, layout := range dateLayouts {
			if _, err := time.Parse(layout, s); err == nil {
				return true
			}
		}
		return false
	case PrimitiveText:
		_, ok := value.(string)
		return ok
	}
	return false
}

func parsesInt(value any) bool {
	switch v := value.(type) {
	case int, int32, int64:
		return true
	case float64:
		return isIntegral(v)
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return true
		}
		f, err := v.Float64()
		return err == nil && isIntegral(f)
	case string:
		_, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return err == nil
	}
	return false
}

func parsesFloat(value any) bool {
	switch v := value.(type) {
	case int, int32, int64, float32, float64:
		return true
	case json.Number:
		_, err := v.Float64()
		return err == nil
	case string:
		_, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return err == nil
	}
	return false
}

func parsesBool(value any) bool {
	switch v := value.(type) {
	case bool:
		return true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "false", "t", "f", "yes", "no", "y", "n", "1", "0":
			return true
		}
	}
	return false
}

func isIntegral(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f) && f == math.Trunc(f)
}

// Stringify renders a field value the way it would appear in a
// CSV cell, so it can be compared with reference values.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	b, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	return string(b)
}

// Normalize trims surrounding whitespace from a value.
func Normalize(s string) string {
	return strings.TrimSpace(s)
}
