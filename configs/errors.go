package configs

import (
	"errors"
	"fmt"
	"github.com/sardine-ai/go-installer-config/model"
)

var (
	// Resolution errors. These indicate a caller bug rather than a user error.
	ErrInvalidConfigType = model.ErrInvalidConfigType
	ErrInvalidBaseChain  = model.ErrInvalidBaseChain
	ErrInvalidFilename   = errors.New("config file not allowed for this config type")
	ErrInvalidChainName  = errors.New("invalid chain name")

	// Read errors.
	ErrConfigNotFound = errors.New("config not found")
	ErrConfigParse    = errors.New("could not parse config")

	// Write errors.
	ErrCouldNotWriteConfig = errors.New("could not write config")
	ErrUnrepresentable     = errors.New("document cannot be stored as INI")
)

// ParseError reports malformed INI content at Path.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s %s: %v", ErrConfigParse, e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrConfigParse }

// WriteError reports a failed write of File at Path. Err is the underlying
// filesystem error.
type WriteError struct {
	Err  error
	File string
	Path string
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s %s to %s: %v", ErrCouldNotWriteConfig, e.File, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func (e *WriteError) Is(target error) bool { return target == ErrCouldNotWriteConfig }
