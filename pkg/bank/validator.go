package bank

import (
	"fmt"
	"os"

	"digital.vasic.beekeeper/pkg/check"
)

// ValidationError represents a validation issue found in a checks
// file.
type ValidationError struct {
	Field   string
	Message string
	Index   int // -1 if not applicable
}

func (e ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("checks[%d].%s: %s", e.Index, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateFile validates a checks file and returns every problem
// found, instead of stopping at the first one like Load.
func ValidateFile(path string) []ValidationError {
	data, err := os.ReadFile(path)
	if err != nil {
		return []ValidationError{{Field: "file", Message: err.Error(), Index: -1}}
	}

	file, err := parse(path, data)
	if err != nil {
		return []ValidationError{{Field: "syntax", Message: err.Error(), Index: -1}}
	}
	return validate(file)
}

func validate(file *File) []ValidationError {
	var problems []ValidationError

	if file.Version == "" {
		problems = append(problems, ValidationError{
			Field: "version", Message: "version is required", Index: -1,
		})
	} else if err := checkVersion(file.Version); err != nil {
		problems = append(problems, ValidationError{
			Field: "version", Message: err.Error(), Index: -1,
		})
	}
	if len(file.Checks) == 0 {
		problems = append(problems, ValidationError{
			Field: "checks", Message: "no checks defined", Index: -1,
		})
	}

	codes := make(map[string]bool)
	for i, def := range file.Checks {
		if def.Code != "" {
			if codes[def.Code] {
				problems = append(problems, ValidationError{
					Field: "code", Message: fmt.Sprintf("duplicate code: %s", def.Code), Index: i,
				})
			}
			codes[def.Code] = true
		}

		if _, err := check.New(def); err != nil {
			problems = append(problems, ValidationError{
				Field: "definition", Message: err.Error(), Index: i,
			})
		}
	}

	return problems
}
