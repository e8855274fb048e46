// Package catalog talks to a CKAN data catalog through its action
// API: datastore row counts, schemas and paged records, package and
// resource metadata, and the package patch used to make a dataset
// private.
package catalog

import (
	"context"

	"github.com/cockroachdb/errors"
)

// ErrNotFound is returned when the catalog reports that a package,
// resource or datastore does not exist (or is not visible).
var ErrNotFound = errors.New("not found in catalog")

// ErrDatastoreInactive is returned by RowCount when the resource
// has no queryable datastore.
var ErrDatastoreInactive = errors.New("datastore inactive")

// Field describes one column of a datastore.
type Field struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Resource is the subset of resource metadata beekeeper uses.
type Resource struct {
	ID              string `json:"id"`
	PackageID       string `json:"package_id"`
	Name            string `json:"name"`
	Format          string `json:"format"`
	DatastoreActive bool   `json:"datastore_active"`
}

// Package is the subset of package metadata beekeeper uses.
type Package struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Title     string     `json:"title"`
	Private   bool       `json:"private"`
	Resources []Resource `json:"resources"`
}

// Catalog is everything the dispatcher and treatments need from
// the catalog service.
type Catalog interface {
	// RowCount returns the number of records in the resource's
	// datastore.
	RowCount(ctx context.Context, resourceID string) (int, error)

	// Schema returns the datastore fields of the resource.
	Schema(ctx context.Context, resourceID string) ([]Field, error)

	// Page returns up to limit values of field starting at
	// offset, in datastore order.
	Page(
		ctx context.Context,
		resourceID, field string,
		limit, offset int,
	) ([]any, error)

	// Resource returns resource metadata.
	Resource(ctx context.Context, resourceID string) (*Resource, error)

	// Package returns package metadata, including resources.
	Package(ctx context.Context, packageID string) (*Package, error)

	// SetPackagePrivate marks the package private.
	SetPackagePrivate(ctx context.Context, packageID string) error
}

// IsPackagePrivate reports whether the package is private.
func IsPackagePrivate(
	ctx context.Context, c Catalog, packageID string,
) (bool, error) {
	p, err := c.Package(ctx, packageID)
	if err != nil {
		return false, err
	}
	return p.Private, nil
}

// IsResourcePrivate reports whether the package owning the
// resource is private.
func IsResourcePrivate(
	ctx context.Context, c Catalog, resourceID string,
) (bool, error) {
	r, err := c.Resource(ctx, resourceID)
	if err != nil {
		return false, err
	}
	return IsPackagePrivate(ctx, c, r.PackageID)
}
