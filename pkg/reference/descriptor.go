// Package reference retrieves the external files that containment
// checks compare a datastore field against, and extracts one CSV
// column from them as the reference set.
package reference

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrDescriptor marks malformed reference descriptors.
var ErrDescriptor = errors.New("invalid reference descriptor")

// Source types.
const (
	TypeSFTP = "sftp"
	TypeURL  = "url"
	TypeFile = "file"
)

// Descriptor locates a reference file.
type Descriptor struct {
	// Publisher names the organisation serving the file. For SFTP
	// it selects the connection settings.
	Publisher string `json:"publisher" yaml:"publisher"`

	// Type is one of sftp (alias ftp), url or file.
	Type string `json:"type" yaml:"type"`

	// File is the file name, relative to Directory.
	File string `json:"file" yaml:"file"`

	Directory string `json:"directory,omitempty" yaml:"directory,omitempty"`

	// Field is the CSV column holding the reference values. Empty
	// means the check's field name.
	Field string `json:"field,omitempty" yaml:"field,omitempty"`

	// URL is the go-getter source for the url type.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
}

// IsZero reports whether no reference is configured.
func (d Descriptor) IsZero() bool {
	return d == Descriptor{}
}

// Kind returns the normalised source type.
func (d Descriptor) Kind() string {
	t := strings.ToLower(strings.TrimSpace(d.Type))
	if t == "ftp" {
		return TypeSFTP
	}
	return t
}

// Validate checks that the required fields are present and the
// type is known.
func (d Descriptor) Validate() error {
	required := []struct{ name, value string }{
		{"publisher", d.Publisher},
		{"type", d.Type},
		{"file", d.File},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return errors.Mark(
				errors.Newf("reference is missing %q", r.name),
				ErrDescriptor,
			)
		}
	}

	switch d.Kind() {
	case TypeSFTP, TypeFile:
	case TypeURL:
		if d.URL == "" {
			return errors.Mark(
				errors.New(`reference of type "url" needs "url"`),
				ErrDescriptor,
			)
		}
	default:
		return errors.Mark(
			errors.Newf("unknown reference type %q", d.Type),
			ErrDescriptor,
		)
	}
	return nil
}

// RemotePath joins Directory and File with forward slashes.
func (d Descriptor) RemotePath() string {
	if d.Directory == "" {
		return d.File
	}
	return strings.TrimRight(d.Directory, "/") + "/" + d.File
}

func (d Descriptor) String() string {
	return d.Publisher + ":" + d.Kind() + ":" + d.RemotePath()
}
