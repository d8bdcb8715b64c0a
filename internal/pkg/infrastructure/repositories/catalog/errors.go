package catalog

import (
	"errors"
	"fmt"
)

// Sentinel errors raised by every repository implementation. Callers match
// with errors.Is instead of parsing message text, but the messages still
// read the way CKAN phrases them ("not found", "already exists") so logs
// stay familiar.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation error")
	ErrUnavailable   = errors.New("backend unavailable")
)

func notFoundErr(kind, id string) error {
	return fmt.Errorf("%s '%s' %w", kind, id, ErrNotFound)
}

func alreadyExistsErr(kind, name string) error {
	return fmt.Errorf("%s with name '%s' %w", kind, name, ErrAlreadyExists)
}

// ownerOrgValidationErr mirrors CKAN's validation error string for a
// missing owner organization so both backends fail identically.
func ownerOrgValidationErr() error {
	return fmt.Errorf("{'owner_org': ['Organization does not exist'], '__type': 'Validation Error'}: %w", ErrValidation)
}
