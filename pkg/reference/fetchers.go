package reference

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-getter"
)

// GetterFetcher downloads url references with go-getter, so any
// source it detects (http, https, s3, gcs, git) works.
type GetterFetcher struct{}

// Fetch implements Fetcher.
func (GetterFetcher) Fetch(ctx context.Context, d Descriptor, dir string) (string, error) {
	dst := filepath.Join(dir, filepath.Base(d.File))

	client := &getter.Client{
		Ctx:     ctx,
		Src:     d.URL,
		Dst:     dst,
		Mode:    getter.ClientModeFile,
		Getters: getter.Getters,
	}
	if err := client.Get(); err != nil {
		return "", errors.Wrapf(err, "get %s", d.URL)
	}
	return dst, nil
}

// FileFetcher resolves file references on the local filesystem.
// Relative paths are taken from the working directory.
type FileFetcher struct{}

// Fetch implements Fetcher.
func (FileFetcher) Fetch(_ context.Context, d Descriptor, _ string) (string, error) {
	path := filepath.FromSlash(d.RemotePath())
	if _, err := os.Stat(path); err != nil {
		return "", errors.Wrap(err, "stat reference file")
	}
	return path, nil
}
