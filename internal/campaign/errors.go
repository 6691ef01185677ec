package campaign

import (
	"errors"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/lettings-match/internal/match"
)

// Error taxonomy. Callers test with errors.Is.
var (
	ErrNotFound            = eris.New("not found")
	ErrNoPropertiesMatched = eris.New("no properties matched")
	ErrEstimationFailure   = match.ErrEstimationFailure
	ErrPersistenceFailure  = eris.New("persistence failure")
	ErrValidationFailure   = eris.New("validation failure")
)

// ValidationError lists every problem found in a request.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid criteria: " + strings.Join(e.Problems, "; ")
}

// Is lets errors.Is(err, ErrValidationFailure) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailure
}

// IsNotFound reports whether err means a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
