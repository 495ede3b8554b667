package config

import (
	"errors"
)

var (
	// ErrInvalidConfig marks a configuration that loaded but cannot be used.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig marks a failure reading the file or environment.
	ErrLoadConfig = errors.New("load config failed")
)
