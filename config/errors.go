package config

import "errors"

// Static errors for configuration package
var (
	ErrConfigPathEmpty = errors.New("configuration path is empty")
	ErrInvalidConfig   = errors.New("invalid configuration")
)
