// Package bank loads the configured set of checks from checks files
// or from the defaults compiled into the binary.
package bank

import (
	"bytes"
	"embed"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"digital.vasic.beekeeper/pkg/check"
)

//go:embed defaults/checks.yaml
var defaults embed.FS

const defaultsPath = "defaults/checks.yaml"

// Bank is an immutable, ordered set of checks with unique codes.
type Bank struct {
	checks  []*check.Check
	byCode  map[string]*check.Check
	sources []string
}

// Default returns the checks embedded in the binary.
func Default() (*Bank, error) {
	data, err := defaults.ReadFile(defaultsPath)
	if err != nil {
		return nil, errors.Wrap(err, "read embedded checks")
	}
	file, err := decode(defaultsPath, data)
	if err != nil {
		return nil, err
	}
	return FromDefinitions("embedded:"+defaultsPath, file.Checks)
}

// Load reads checks from each path in order. A directory
// contributes every .yaml, .yml and .json file it holds.
func Load(paths ...string) (*Bank, error) {
	b := &Bank{byCode: make(map[string]*check.Check)}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, errors.Wrapf(err, "stat checks path %s", p)
		}
		if !info.IsDir() {
			if err := b.loadFile(p); err != nil {
				return nil, err
			}
			continue
		}
		if err := b.loadDir(p); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// FromDefinitions builds a bank from definitions already in memory.
func FromDefinitions(source string, defs []check.Definition) (*Bank, error) {
	b := &Bank{byCode: make(map[string]*check.Check)}
	if err := b.add(source, defs); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bank) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.Wrapf(err, "read checks directory %s", dir)
	}
	for _, entry := range entries {
		if entry.IsDir() || !isChecksFile(entry.Name()) {
			continue
		}
		if err := b.loadFile(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bank) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read checks file %s", path)
	}
	file, err := decode(path, data)
	if err != nil {
		return err
	}
	return b.add(path, file.Checks)
}

func (b *Bank) add(source string, defs []check.Definition) error {
	for i, def := range defs {
		c, err := check.New(def)
		if err != nil {
			return errors.Wrapf(err, "%s: checks[%d]", source, i)
		}
		if _, dup := b.byCode[c.Code()]; dup {
			return errors.Mark(
				errors.Newf("%s: checks[%d]: duplicate code %q",
					source, i, c.Code()),
				check.ErrConfig,
			)
		}
		b.byCode[c.Code()] = c
		b.checks = append(b.checks, c)
	}
	b.sources = append(b.sources, source)
	return nil
}

func isChecksFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// decode parses a checks file and checks its version.
func decode(path string, data []byte) (*File, error) {
	file, err := parse(path, data)
	if err != nil {
		return nil, err
	}
	return versioned(path, file)
}

// parse reads a checks file, choosing the format by extension.
// Unknown keys are rejected so typos in field names surface.
func parse(path string, data []byte) (*File, error) {
	var file File
	if strings.EqualFold(filepath.Ext(path), ".json") {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&file); err != nil {
			return nil, errors.Mark(
				errors.Wrapf(err, "parse checks file %s", path),
				check.ErrConfig,
			)
		}
		return &file, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, errors.Mark(
			errors.Wrapf(err, "parse checks file %s", path),
			check.ErrConfig,
		)
	}
	return &file, nil
}

// versioned rejects files whose version this build cannot read. A
// missing version is accepted here and reported by ValidateFile.
func versioned(path string, file *File) (*File, error) {
	if file.Version == "" {
		return file, nil
	}
	if err := checkVersion(file.Version); err != nil {
		return nil, errors.Mark(
			errors.Wrapf(err, "checks file %s", path), check.ErrConfig,
		)
	}
	return file, nil
}

// Get retrieves a check by code.
func (b *Bank) Get(code string) (*check.Check, bool) {
	c, ok := b.byCode[code]
	return c, ok
}

// All returns every check in load order.
func (b *Bank) All() []*check.Check {
	out := make([]*check.Check, len(b.checks))
	copy(out, b.checks)
	return out
}

// Select returns the checks whose code is in codes, in load order.
// No codes selects every check. Codes matching nothing are not an
// error; they are returned in unmatched, in the order given.
func (b *Bank) Select(codes ...string) (selected []*check.Check, unmatched []string) {
	if len(codes) == 0 {
		return b.All(), nil
	}

	want := make(map[string]bool, len(codes))
	for _, code := range codes {
		want[code] = true
		if _, ok := b.byCode[code]; !ok {
			unmatched = append(unmatched, code)
		}
	}
	for _, c := range b.checks {
		if want[c.Code()] {
			selected = append(selected, c)
		}
	}
	return selected, unmatched
}

// Count returns the number of checks.
func (b *Bank) Count() int {
	return len(b.checks)
}

// Sources returns the files the checks were loaded from.
func (b *Bank) Sources() []string {
	out := make([]string, len(b.sources))
	copy(out, b.sources)
	return out
}
