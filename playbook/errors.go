package playbook

import "errors"

var (
	// ErrBadPattern indicates a normalizer pattern that is not a string or
	// character list, or does not compile.
	ErrBadPattern = errors.New("bad normalizer pattern")

	// ErrDirectoryRequired is returned when a router is created without a
	// playbook directory.
	ErrDirectoryRequired = errors.New("playbook directory required")
)
