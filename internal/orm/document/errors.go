package document

import "errors"

// ErrNotPersisted is returned when an operation needs a saved document
var ErrNotPersisted = errors.New("document has not been saved")
