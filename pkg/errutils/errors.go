// Package errutils provides the error vocabulary of the catalog synchronizer.
// It defines sentinel errors for every failure category, typed errors that
// carry the failing path, URL or directory name, and wrapping helpers.
//
// The three synchronization failure kinds are:
// - DataError: a package directory lacks or cannot read its record files
// - FetchError: the metadata archive could not be probed, downloaded or extracted
// - ConsistencyError: a snapshot directory name does not have the name-version-release shape
//
// Each typed error unwraps to both its sentinel and its cause, so callers can
// use errors.Is with either.
package errutils

import (
	"errors"
	"fmt"
)

// Common error types used throughout the application.
// Errors are grouped by their domain or functionality.
var (
	// Synchronization errors.

	// ErrData is the category of malformed or missing package record files.
	ErrData = fmt.Errorf("invalid package data")

	// ErrFetch is the category of metadata download and extraction failures.
	ErrFetch = fmt.Errorf("could not fetch repository metadata")

	// ErrConsistency is the category of snapshot entries that violate naming rules.
	ErrConsistency = fmt.Errorf("inconsistent repository snapshot")

	// ErrNotFound is returned by catalog lookups when no row matches.
	// It is the trigger for insert-then-reuse, not a failure.
	ErrNotFound = fmt.Errorf("not found")

	// Config errors are related to configuration file operations and validation.
	// These errors typically occur during application startup.
	ErrEmptyConfigPath = fmt.Errorf(
		"config file path cannot be empty") // When config file path is empty

	ErrInvalidConfigPath = fmt.Errorf(
		"invalid config file path") // When provided config file path is invalid

	ErrConfigParse = fmt.Errorf(
		"failed to parse config") // When config file cannot be parsed

	// ErrConfigValidation is returned when configuration values fail validation.
	ErrConfigValidation = fmt.Errorf(
		"invalid configuration") // When config values fail validation

	// ErrMirrorEmpty is returned when no mirror base URL is configured.
	ErrMirrorEmpty = fmt.Errorf("mirror URL cannot be empty")

	// ErrUnsupportedScheme is returned for mirror URLs no source can serve.
	ErrUnsupportedScheme = fmt.Errorf("unsupported mirror scheme")

	// ErrNoRepositories is returned when no repositories are configured.
	ErrNoRepositories = fmt.Errorf("no repositories configured")

	// ErrNoArchitectures is returned when a repository lists no architectures.
	ErrNoArchitectures = fmt.Errorf("repository has no architectures")

	// ErrDelayNegative is returned when the propagation delay is negative.
	ErrDelayNegative = fmt.Errorf("delay cannot be negative")

	// ErrHTTPTimeoutNegative is returned when HTTP timeout is set to a negative value.
	ErrHTTPTimeoutNegative = fmt.Errorf("http_timeout cannot be negative")

	// ErrUnknownDriver is returned for database drivers the catalog store does not support.
	ErrUnknownDriver = fmt.Errorf("unknown database driver")

	// ErrInvalidLogLevel is returned when an invalid log level is specified.
	ErrInvalidLogLevel = fmt.Errorf("invalid log level")

	// ErrLocked is returned when another synchronization run holds the lock file.
	ErrLocked = fmt.Errorf("synchronization already in progress")
)

// DataError reports a package directory whose record files are missing or unreadable.
type DataError struct {
	Path string
	Err  error
}

func (e *DataError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", ErrData, e.Path)
	}
	return fmt.Sprintf("%s: %s: %v", ErrData, e.Path, e.Err)
}

// Unwrap exposes both the category sentinel and the cause.
func (e *DataError) Unwrap() []error { return unwrapPair(ErrData, e.Err) }

// FetchError reports a failure to probe, download or extract a metadata archive.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", ErrFetch, e.URL)
	}
	return fmt.Sprintf("%s: %s: %v", ErrFetch, e.URL, e.Err)
}

// Unwrap exposes both the category sentinel and the cause.
func (e *FetchError) Unwrap() []error { return unwrapPair(ErrFetch, e.Err) }

// ConsistencyError reports a snapshot entry that does not match name-version-release.
type ConsistencyError struct {
	Name string
	Err  error
}

func (e *ConsistencyError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: could not read package %q", ErrConsistency, e.Name)
	}
	return fmt.Sprintf("%s: could not read package %q: %v", ErrConsistency, e.Name, e.Err)
}

// Unwrap exposes both the category sentinel and the cause.
func (e *ConsistencyError) Unwrap() []error { return unwrapPair(ErrConsistency, e.Err) }

func unwrapPair(sentinel, cause error) []error {
	if cause == nil {
		return []error{sentinel}
	}
	return []error{sentinel, cause}
}

// NewDataError creates a DataError for the given package directory.
func NewDataError(path string, err error) error {
	return &DataError{Path: path, Err: err}
}

// NewFetchError creates a FetchError for the given URL.
func NewFetchError(url string, err error) error {
	return &FetchError{URL: url, Err: err}
}

// NewConsistencyError creates a ConsistencyError for the given directory name.
func NewConsistencyError(name string) error {
	return &ConsistencyError{Name: name}
}

// IsNotFound reports whether err is a catalog lookup miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Wrap wraps an error with additional context.
// This is useful for adding context to errors as they propagate up the call stack.
// If the error is nil, Wrap returns nil.
//
// Example:
//
//	if err := someOperation(); err != nil {
//	    return errutils.Wrap(err, "failed to perform operation")
//	}
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf wraps an error with additional formatted context.
// If the error is nil, Wrapf returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// ErrNoArchitecturesWithName is a helper to create a wrapped error with the repository name.
func ErrNoArchitecturesWithName(name string) error {
	return fmt.Errorf("repository '%s': %w", name, ErrNoArchitectures)
}

// ErrUnsupportedSchemeWithDetails is a helper to create a wrapped error with the offending scheme.
func ErrUnsupportedSchemeWithDetails(scheme string) error {
	return fmt.Errorf("%w: '%s', must be one of: http, https, ftp, file, s3", ErrUnsupportedScheme, scheme)
}

// ErrUnknownDriverWithDetails is a helper to create a wrapped error with the driver name.
func ErrUnknownDriverWithDetails(driver string) error {
	return fmt.Errorf("%w: '%s', must be one of: sqlite3, pgx", ErrUnknownDriver, driver)
}

// ErrInvalidLogLevelWithDetails is a helper to create a wrapped error with the invalid level and valid options.
func ErrInvalidLogLevelWithDetails(level string) error {
	return fmt.Errorf("%w: '%s', must be one of: error, warn, info, debug", ErrInvalidLogLevel, level)
}

// ErrLockedWithPath is a helper to create a wrapped error with the lock file path.
func ErrLockedWithPath(path string) error {
	return fmt.Errorf("%w (lock file %s)", ErrLocked, path)
}
