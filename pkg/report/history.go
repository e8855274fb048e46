package report

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"time"

	"github.com/cockroachdb/errors"

	"digital.vasic.beekeeper/pkg/filelock"
)

// HistoricalEntry represents a single check result in the
// historical log.
type HistoricalEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	RunID      string    `json:"run_id"`
	Code       string    `json:"code"`
	ResourceID string    `json:"resource_id,omitempty"`
	Status     string    `json:"status"`
	Duration   string    `json:"duration"`
	RowCount   int       `json:"row_count"`
	Scanned    int       `json:"scanned"`
	Leftover   int       `json:"leftover,omitempty"`
}

// jsonMarshal is replaced in tests.
var jsonMarshal = json.Marshal

// AppendToHistory adds one entry per result of r to the log at
// historyPath. Each entry is a single JSON line.
func AppendToHistory(historyPath string, r *RunReport) error {
	var buf bytes.Buffer
	for _, res := range r.Results {
		entry := HistoricalEntry{
			Timestamp:  r.FinishedAt,
			RunID:      r.RunID,
			Code:       res.Code,
			ResourceID: res.ResourceID,
			Status:     res.Status,
			Duration:   res.Duration.String(),
			RowCount:   res.RowCount,
			Scanned:    res.Scanned,
			Leftover:   len(res.Leftover),
		}
		data, err := jsonMarshal(entry)
		if err != nil {
			return errors.Wrap(err, "marshal history entry")
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	if buf.Len() == 0 {
		return nil
	}
	return filelock.LockedAppend(historyPath, buf.Bytes())
}

// ReadHistory returns every entry in the log, oldest first. A
// missing log yields no entries.
func ReadHistory(historyPath string) ([]HistoricalEntry, error) {
	f, err := os.Open(historyPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "open history")
	}
	defer f.Close()

	var entries []HistoricalEntry
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		var e HistoricalEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, errors.Wrapf(err, "history line %d", line)
		}
		entries = append(entries, e)
	}
	return entries, errors.Wrap(sc.Err(), "scan history")
}
