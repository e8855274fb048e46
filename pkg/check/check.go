// Package check defines the validation tasks beekeeper runs: which
// resource or package to audit, which field, the assertion to
// apply and what to do when it fails.
package check

import (
	"strings"

	"github.com/cockroachdb/errors"

	"digital.vasic.beekeeper/pkg/assertion"
	"digital.vasic.beekeeper/pkg/reference"
)

// ErrConfig marks every error caused by a malformed check.
var ErrConfig = errors.New("invalid check")

// Check is a validated, immutable check. Build one with New.
type Check struct {
	code       string
	name       string
	resourceID string
	packageID  string
	field      string
	assertion  assertion.Spec
	post       assertion.Spec
	reference  reference.Descriptor
	treatment  Treatment
}

// New validates def and resolves its assertion kinds and
// treatment. All errors are marked ErrConfig.
func New(def Definition) (*Check, error) {
	c, err := build(def)
	if err != nil {
		label := def.Code
		if label == "" {
			label = def.Name
		}
		return nil, errors.Mark(
			errors.Wrapf(err, "check %q", label), ErrConfig,
		)
	}
	return c, nil
}

func build(def Definition) (*Check, error) {
	c := &Check{
		code:       strings.TrimSpace(def.Code),
		name:       strings.TrimSpace(def.Name),
		resourceID: strings.TrimSpace(def.ResourceID),
		packageID:  strings.TrimSpace(def.PackageID),
		field:      strings.TrimSpace(def.FieldName),
	}
	if c.code == "" {
		return nil, errors.New("code is required")
	}
	if c.name == "" {
		c.name = c.code
	}

	switch {
	case c.resourceID == "" && c.packageID == "":
		return nil, errors.New("one of resource_id or package_id is required")
	case c.resourceID != "" && c.packageID != "":
		return nil, errors.New("resource_id and package_id are mutually exclusive")
	}
	if c.field == "" {
		return nil, errors.New("field_name is required")
	}

	var err error
	if c.assertion, err = assertion.Parse(def.Assertion); err != nil {
		return nil, err
	}
	if c.post, err = assertion.ParsePost(def.PostAssertion); err != nil {
		return nil, err
	}

	if c.assertion.NeedsReference() {
		if def.Reference == nil || def.Reference.IsZero() {
			return nil, errors.Newf(
				"assertion %s needs a reference", c.assertion)
		}
		if err := def.Reference.Validate(); err != nil {
			return nil, err
		}
		c.reference = *def.Reference
		if c.post.IsZero() {
			c.post = assertion.Spec{Kind: assertion.KindLeftoverEmpty}
		}
	} else if def.Reference != nil && !def.Reference.IsZero() {
		return nil, errors.Newf(
			"assertion %s does not use a reference", c.assertion)
	}

	if c.treatment, err = ParseTreatment(def.Treatment); err != nil {
		return nil, err
	}
	return c, nil
}

// Code returns the selection code.
func (c *Check) Code() string { return c.code }

// Name returns the human-readable label.
func (c *Check) Name() string { return c.name }

// ResourceID returns the targeted resource, if any.
func (c *Check) ResourceID() string { return c.resourceID }

// PackageID returns the targeted package, if any.
func (c *Check) PackageID() string { return c.packageID }

// IsPackageScoped reports whether the check targets a package.
func (c *Check) IsPackageScoped() bool { return c.packageID != "" }

// Field returns the datastore field name.
func (c *Check) Field() string { return c.field }

// Assertion returns the per-record assertion.
func (c *Check) Assertion() assertion.Spec { return c.assertion }

// PostAssertion returns the post-loop assertion. It may be zero.
func (c *Check) PostAssertion() assertion.Spec { return c.post }

// Reference returns the reference descriptor. It is zero unless
// the assertion needs a reference.
func (c *Check) Reference() reference.Descriptor { return c.reference }

// Treatment returns the failure treatment.
func (c *Check) Treatment() Treatment { return c.treatment }

// ForResource returns a copy of a package-scoped check bound to
// one of the package's resources.
func (c *Check) ForResource(resourceID string) *Check {
	cp := *c
	cp.resourceID = resourceID
	return &cp
}

// Target describes what the check runs against, for messages.
func (c *Check) Target() string {
	if c.resourceID != "" {
		return "resource " + c.resourceID
	}
	return "package " + c.packageID
}

// Definition returns the declarative form of the check.
func (c *Check) Definition() Definition {
	def := Definition{
		Code:          c.code,
		Name:          c.name,
		ResourceID:    c.resourceID,
		PackageID:     c.packageID,
		FieldName:     c.field,
		Assertion:     c.assertion.String(),
		PostAssertion: c.post.String(),
		Treatment:     c.treatment.String(),
	}
	if !c.reference.IsZero() {
		ref := c.reference
		def.Reference = &ref
	}
	return def
}
