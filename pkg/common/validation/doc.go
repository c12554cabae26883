// Package validation provides common validation utilities for configuration
// parameters across rateguard.
//
// Every helper returns a *errors.ValidationError, so callers can match
// failures with errors.Is(err, errors.ErrInvalidConfiguration).
package validation
