package config

import "errors"

// ErrInvalidConfig is wrapped by Load and Validate when settings are
// missing or out of range. The message lists every problem.
var ErrInvalidConfig = errors.New("config: invalid configuration")
