package artifact

import (
	"errors"
	"fmt"
)

// ErrStorage is matched by every *StorageError.
var ErrStorage = errors.New("storage error")

// StorageError reports a failed filesystem operation on the output or
// historic directory. It is fatal to a regression execution.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }
