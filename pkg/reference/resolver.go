package reference

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"

	"digital.vasic.beekeeper/pkg/logging"
)

// Fetcher retrieves the file described by d into dir and returns
// the local path.
type Fetcher interface {
	Fetch(ctx context.Context, d Descriptor, dir string) (string, error)
}

// Resolver turns descriptors into reference value sets.
type Resolver struct {
	dir      string
	fetchers map[string]Fetcher
	logger   logging.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithFetcher registers f for a source type, replacing any
// existing fetcher for it.
func WithFetcher(kind string, f Fetcher) ResolverOption {
	return func(r *Resolver) { r.fetchers[kind] = f }
}

// WithLogger sets the resolver logger.
func WithLogger(l logging.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a Resolver that caches remote files under
// dir. The url and file types are available by default; SFTP needs
// publisher settings and is registered with WithFetcher.
func NewResolver(dir string, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		dir: dir,
		fetchers: map[string]Fetcher{
			TypeURL:  GetterFetcher{},
			TypeFile: FileFetcher{},
		},
		logger: logging.NullLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fetch retrieves the file and returns its local path.
func (r *Resolver) Fetch(ctx context.Context, d Descriptor) (string, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}
	f, ok := r.fetchers[d.Kind()]
	if !ok {
		return "", errors.Mark(
			errors.Newf("no fetcher for reference type %q (publisher %q)",
				d.Kind(), d.Publisher),
			ErrDescriptor,
		)
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create reference dir")
	}

	path, err := f.Fetch(ctx, d, r.dir)
	if err != nil {
		return "", errors.Wrapf(err, "fetch reference %s", d)
	}
	r.logger.Debug("reference fetched",
		logging.StringField("reference", d.String()),
		logging.StringField("path", path))
	return path, nil
}

// Values fetches the file and extracts its reference column. The
// column is d.Field, or defaultField when d.Field is empty.
func (r *Resolver) Values(
	ctx context.Context, d Descriptor, defaultField string,
) ([]string, error) {
	path, err := r.Fetch(ctx, d)
	if err != nil {
		return nil, err
	}

	column := d.Field
	if column == "" {
		column = defaultField
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open reference file")
	}
	defer f.Close()

	values, err := ColumnValues(f, column)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	r.logger.Info("reference loaded",
		logging.StringField("reference", d.String()),
		logging.StringField("column", column),
		logging.IntField("values", len(values)))
	return values, nil
}
