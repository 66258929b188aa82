package page

import "github.com/pkg/errors"

// Errors returned by page operations. Match them using errors.Is.
var (
	ErrNotFound          = errors.New("item not found")
	ErrTypeMismatch      = errors.New("item exists with different type")
	ErrPageFull          = errors.New("page is full")
	ErrInvalidState      = errors.New("operation not allowed in current page state")
	ErrNotInitialized    = errors.New("page is not initialized")
	ErrKeyEmpty          = errors.New("key cannot be empty")
	ErrKeyTooLong        = errors.New("key is too long")
	ErrValueTooLong      = errors.New("value is too long")
	ErrInvalidLength     = errors.New("invalid length of the value")
	ErrInvalidType       = errors.New("invalid item type")
	ErrContentDiffers    = errors.New("stored value differs")
	ErrNewerVersionFound = errors.New("page uses newer format version")
	ErrInvalidArgument   = errors.New("invalid argument")
)
