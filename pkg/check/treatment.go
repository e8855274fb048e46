package check

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Treatment is a corrective action applied to a failing check's
// target.
type Treatment int

const (
	// TreatmentNone leaves the target untouched.
	TreatmentNone Treatment = iota
	// TreatmentMakePrivate makes the owning package private.
	TreatmentMakePrivate
)

func (t Treatment) String() string {
	switch t {
	case TreatmentNone:
		return ""
	case TreatmentMakePrivate:
		return "make_private"
	}
	return "treatment(" + strconv.Itoa(int(t)) + ")"
}

// ParseTreatment resolves a treatment name.
func ParseTreatment(s string) (Treatment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return TreatmentNone, nil
	case "make_private", "make_package_private":
		return TreatmentMakePrivate, nil
	}
	return TreatmentNone, errors.Mark(
		errors.Newf("unknown treatment %q", s), ErrConfig,
	)
}
