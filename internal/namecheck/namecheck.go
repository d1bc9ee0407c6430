// Package namecheck enforces the single name grammar shared by world names
// and frame names: ^[0-9a-z\-]+$, case-sensitive, no other characters.
package namecheck

import (
	"regexp"

	"github.com/PhilNad/with-respect-to/internal/wrterr"
)

var grammar = regexp.MustCompile(`^[0-9a-z\-]+$`)

// Validate returns an InvalidName error if name does not match the grammar.
func Validate(name string) *wrterr.Error {
	if !grammar.MatchString(name) {
		return wrterr.Named(wrterr.InvalidName, name, "name must match ^[0-9a-z\\-]+$")
	}
	return nil
}
