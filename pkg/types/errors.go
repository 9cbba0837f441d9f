package types

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotFound         = errors.New("not found")
	ErrStoreUnavailable = errors.New("store unavailable")

	ErrRequestNotFound = fmt.Errorf("request %w", ErrNotFound)
	ErrImageNotFound   = fmt.Errorf("image %w", ErrNotFound)
	ErrOfferNotFound   = fmt.Errorf("offer %w", ErrNotFound)
)

// InvalidInputf returns an error matching ErrInvalidInput with a caller facing message.
func InvalidInputf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// StoreError marks err as a relational or blob store failure. Not found
// sentinels pass through untouched so callers can still map them to 404.
func StoreError(err error, msg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidInput) {
		return err
	}

	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, msg, err)
}
