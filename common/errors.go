package common

import (
	"errors"
)

// ErrInvalidConfig is returned when an invalid configuration is provided
var ErrInvalidConfig = errors.New("invalid configuration")
