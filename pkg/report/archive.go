package report

import (
	"encoding/json"
	"os"

	"github.com/cockroachdb/errors"

	"digital.vasic.beekeeper/pkg/check"
	"digital.vasic.beekeeper/pkg/filelock"
)

// SaveArchive writes the report as the last-scan snapshot.
func SaveArchive(path string, r *RunReport) error {
	data, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return errors.Wrap(err, "marshal archive")
	}
	if err := filelock.AtomicWrite(path, data); err != nil {
		return errors.Wrap(err, "write archive")
	}
	return nil
}

// LoadArchive reads the last-scan snapshot. A missing file yields
// nil and no error.
func LoadArchive(path string) (*RunReport, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read archive %s", path)
	}

	var r RunReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrapf(err, "parse archive %s", path)
	}
	return &r, nil
}

// Change is a result whose status differs from the previous run.
type Change struct {
	Code       string `json:"code"`
	ResourceID string `json:"resource_id,omitempty"`

	// From is empty for results the previous run did not have.
	From string `json:"from"`
	To   string `json:"to"`
}

// IsRegression reports whether the result got worse.
func (c Change) IsRegression() bool {
	return isProblem(c.To) && !isProblem(c.From)
}

// Diff lists the results of cur whose status differs from prev,
// in cur's order. A nil prev means every result is new.
func Diff(prev, cur *RunReport) []Change {
	before := make(map[string]string)
	if prev != nil {
		for _, r := range prev.Results {
			before[r.Key()] = r.Status
		}
	}

	var changes []Change
	for _, r := range cur.Results {
		from, seen := before[r.Key()]
		if seen && from == r.Status {
			continue
		}
		changes = append(changes, Change{
			Code:       r.Code,
			ResourceID: r.ResourceID,
			From:       from,
			To:         r.Status,
		})
	}
	return changes
}

func isProblem(status string) bool {
	return status == check.StatusFailed || status == check.StatusError
}
