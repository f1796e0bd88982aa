package sdc

import (
	"github.com/pkg/errors"
)

var (
	// ErrMapsUnavailable is returned when the process memory map can't be read.
	ErrMapsUnavailable = errors.New("memory map unavailable")

	// ErrCategoryEmpty is returned when no segment in the catalog belongs to
	// the requested category.
	ErrCategoryEmpty = errors.New("memory category is empty")

	// ErrPermissionElevation is returned when the page holding the target word
	// can't be made writable. The word is never touched in that case.
	ErrPermissionElevation = errors.New("could not make target page writable")

	// ErrConfigInvalid marks a malformed configuration value. It is only ever
	// reported as a warning; the default for that option is kept.
	ErrConfigInvalid = errors.New("invalid configuration value")

	ErrAlreadyAttached = errors.New("injector already attached")
)
