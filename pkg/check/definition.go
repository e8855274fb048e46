package check

import "digital.vasic.beekeeper/pkg/reference"

// Definition describes a check declaratively, as written in a
// checks file. It is turned into a Check with New.
type Definition struct {
	// Code selects the check on the command line.
	Code string `json:"code" yaml:"code"`

	// Name is a human-readable label. Defaults to Code.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// ResourceID targets a single resource. Exactly one of
	// ResourceID and PackageID must be set.
	ResourceID string `json:"resource_id,omitempty" yaml:"resource_id,omitempty"`

	// PackageID targets every datastore resource of a package.
	PackageID string `json:"package_id,omitempty" yaml:"package_id,omitempty"`

	// FieldName is the datastore field to validate.
	FieldName string `json:"field_name" yaml:"field_name"`

	// Assertion is the per-record assertion, for example "int",
	// "type:date" or "contained_in_reference".
	Assertion string `json:"assertion" yaml:"assertion"`

	// PostAssertion runs once after all records, for example
	// "leftover_empty".
	PostAssertion string `json:"post_assertion,omitempty" yaml:"post_assertion,omitempty"`

	// Reference locates the reference file for containment.
	Reference *reference.Descriptor `json:"reference,omitempty" yaml:"reference,omitempty"`

	// Treatment is applied when the check fails, for example
	// "make_private".
	Treatment string `json:"treatment,omitempty" yaml:"treatment,omitempty"`
}
