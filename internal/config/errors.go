// Package config provides configuration types and defaults for chunkcast.
package config

import "errors"

// Sentinel errors for configuration validation.
var (
	// ErrMissingInput indicates no input path was provided.
	ErrMissingInput = errors.New("input path must be set")

	// ErrMissingOutput indicates no output directory was provided.
	ErrMissingOutput = errors.New("output directory must be set")

	// ErrInvalidPasses indicates passes was neither 1 nor 2.
	ErrInvalidPasses = errors.New("passes must be 1 or 2")

	// ErrInvalidWorkers indicates workers was less than 1.
	ErrInvalidWorkers = errors.New("workers must be at least 1")

	// ErrInvalidQuantizerRange indicates min_q/max_q were inverted or out of bounds.
	ErrInvalidQuantizerRange = errors.New("quantizer range invalid")

	// ErrInvalidExtractionMode indicates an unrecognized chunk extraction mode string.
	ErrInvalidExtractionMode = errors.New("invalid chunk extraction mode")

	// ErrInvalidOrderPolicy indicates an unrecognized chunk order policy string.
	ErrInvalidOrderPolicy = errors.New("invalid chunk order policy")
)
