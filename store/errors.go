package store

import "errors"

var ErrValidationFailed = errors.New("message validation failed")
