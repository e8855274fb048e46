package assertion

import "sort"

// Accumulator is the state folded across the records of one
// evaluation. For type checks it stays empty; for containment it
// holds the reference values not yet observed.
//
// Accumulators are values: a Func never changes the accumulator it
// is given and returns a new one when the held set changes.
type Accumulator struct {
	remaining map[string]struct{}
}

// NewAccumulator builds an accumulator holding the given values.
// Values are normalised with Normalize, so duplicates collapse.
func NewAccumulator(values ...string) Accumulator {
	remaining := make(map[string]struct{}, len(values))
	for _, v := range values {
		remaining[Normalize(v)] = struct{}{}
	}
	return Accumulator{remaining: remaining}
}

// Len returns the number of values still held.
func (a Accumulator) Len() int {
	return len(a.remaining)
}

// Leftover returns the held values in sorted order.
func (a Accumulator) Leftover() []string {
	out := make([]string, 0, len(a.remaining))
	for v := range a.remaining {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Clone returns an accumulator holding the same values that shares
// no state with a.
func (a Accumulator) Clone() Accumulator {
	remaining := make(map[string]struct{}, len(a.remaining))
	for v := range a.remaining {
		remaining[v] = struct{}{}
	}
	return Accumulator{remaining: remaining}
}

// remove returns a without v. a is left untouched.
func (a Accumulator) remove(v string) Accumulator {
	if _, ok := a.remaining[v]; !ok {
		return a
	}
	out := a.Clone()
	delete(out.remaining, v)
	return out
}
