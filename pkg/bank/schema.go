package bank

import (
	"github.com/Masterminds/semver/v3"
	"github.com/cockroachdb/errors"

	"digital.vasic.beekeeper/pkg/check"
)

// SupportedVersions is the range of checks file versions this build
// reads.
const SupportedVersions = "^1"

var supported = semver.MustParse("1.0.0")

// File represents the structure of a checks file, in YAML or JSON.
type File struct {
	Version  string             `json:"version" yaml:"version"`
	Name     string             `json:"name" yaml:"name"`
	Checks   []check.Definition `json:"checks" yaml:"checks"`
	Metadata map[string]any     `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// checkVersion rejects versions outside SupportedVersions. Versions
// may be abbreviated: "1" reads as 1.0.0.
func checkVersion(version string) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return errors.Wrapf(err, "version %q", version)
	}
	c, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return errors.Wrap(err, "supported versions")
	}
	if !c.Check(v) {
		return errors.Newf("version %s is not supported (want %s, e.g. %s)",
			v, SupportedVersions, supported)
	}
	return nil
}
