package store

import (
	"errors"
)

var (
	ErrNotFound                = errors.New("not found")
	ErrClosed                  = errors.New("store closed")
	ErrCurrentUserDoesNotExist = errors.New("current user does not exist")
	ErrChannelDoesNotExist     = errors.New("channel does not exist")
	ErrMessageDoesNotExist     = errors.New("message does not exist")
	ErrMissingID               = errors.New("missing id")
	ErrTransactionPanicked     = errors.New("write transaction panicked")
)

// IsNotFound reports whether err means a row is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
