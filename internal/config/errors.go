package config

import "errors"

var (
	// ErrInvalidConfig marks settings rejected by Validate.
	ErrInvalidConfig = errors.New("config: invalid setting")
	// ErrLoadConfig marks a source (.env, YAML file, environment) that could not be read.
	ErrLoadConfig = errors.New("config: load failed")
)
