package services

import (
	"errors"
	"fmt"

	"whoami/repository"
	"whoami/sessions"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrEmptyPool       = errors.New("no characters available")
	ErrPersistence     = errors.New("persistence failure")
	ErrRoundInProgress = errors.New("a round is already in progress")
	ErrRoundNotActive  = errors.New("round is not active")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// translate maps store errors onto the service taxonomy. what names the thing
// that was being looked up, for the not-found message.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, sessions.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	case errors.Is(err, repository.ErrEmptyPool):
		return fmt.Errorf("%w: %v", ErrEmptyPool, err)
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound), errors.Is(err, ErrEmptyPool),
		errors.Is(err, ErrPersistence), errors.Is(err, ErrRoundInProgress), errors.Is(err, ErrRoundNotActive):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
}
