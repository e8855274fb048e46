package reference

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
)

// ColumnValues reads a CSV document with a header row and returns
// every value of the named column, in file order.
func ColumnValues(r io.Reader, column string) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("reference file is empty")
	}
	if err != nil {
		return nil, errors.Wrap(err, "read reference header")
	}

	idx := -1
	for i, name := range header {
		name = strings.TrimPrefix(name, "\ufeff")
		if strings.TrimSpace(name) == column {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, errors.Newf("reference file has no column %q", column)
	}

	var values []string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read reference row")
		}
		if idx < len(rec) {
			values = append(values, rec[idx])
		} else {
			values = append(values, "")
		}
	}
	return values, nil
}
