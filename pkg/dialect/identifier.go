package dialect

import (
	"regexp"
	"strings"

	"github.com/leapstack-labs/dbkit/pkg/dberr"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateIdentifier checks that name is a legal bare SQL identifier:
// a letter or underscore followed by letters, digits, or underscores.
// The context string names the value in the error (e.g. "table",
// "column", "savepoint").
func ValidateIdentifier(name, context string) error {
	if name == "" {
		return dberr.Validationf(context, "identifier must not be empty")
	}
	if !identifierRe.MatchString(name) {
		return dberr.Validationf(context, "invalid identifier %q: must match [A-Za-z_][A-Za-z0-9_]*", name)
	}
	return nil
}

// ValidateQualifiedIdentifier accepts either a bare identifier or a
// dot-separated qualified name (schema.table) whose segments each pass
// ValidateIdentifier.
func ValidateQualifiedIdentifier(name, context string) error {
	if name == "" {
		return dberr.Validationf(context, "identifier must not be empty")
	}
	for _, part := range strings.Split(name, ".") {
		if err := ValidateIdentifier(part, context); err != nil {
			return err
		}
	}
	return nil
}
