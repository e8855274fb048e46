package assertion

import "strings"

// ParseAssertionString splits a compact assertion string of the
// form "type:value" into its components. If no colon is present
// the entire string is treated as the type and value is nil.
// Surrounding whitespace is ignored.
//
// Examples:
//
//	"type:int"               -> ("type", "int")
//	"int"                    -> ("int", nil)
//	"contained_in_reference" -> ("contained_in_reference", nil)
func ParseAssertionString(
	s string,
) (assertionType string, value any) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	assertionType = strings.TrimSpace(parts[0])

	if len(parts) > 1 {
		value = strings.TrimSpace(parts[1])
	}

	return
}
