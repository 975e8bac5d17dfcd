package config

import (
	"errors"
	"fmt"
	"strings"
)

// MissingError reports required settings that are absent. Retrying cannot
// fix it, so callers treat it as a permanent failure.
type MissingError struct {
	Names []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("required configuration missing: %s", strings.Join(e.Names, ", "))
}

// IsMissing reports whether err wraps a *MissingError.
func IsMissing(err error) bool {
	var me *MissingError
	return errors.As(err, &me)
}

// Require returns a *MissingError naming every pair whose value is blank,
// or nil when all are set. Arguments alternate name, value.
func Require(pairs ...string) error {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			missing = append(missing, pairs[i])
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &MissingError{Names: missing}
}
