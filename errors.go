package nus

import "fmt"

// ResponseStatusError is raised by RequestLayer's status-check policy when
// a response's HTTP status code doesn't satisfy the configured
// StatusCheckMode.
type ResponseStatusError struct {
	URL    string
	Status int
}

func (e *ResponseStatusError) Error() string {
	return fmt.Sprintf("nus: got status code %d for url %s", e.Status, e.URL)
}

// AlreadyLoadedError is raised by TypeLoader.Load when called more than
// once on the same instance.
type AlreadyLoadedError struct {
	Type string
}

func (e *AlreadyLoadedError) Error() string {
	return fmt.Sprintf("nus: %s instance is already loaded", e.Type)
}

// UnsafePathError is raised by the Extractor when a would-be output path
// escapes the target root.
type UnsafePathError struct {
	Path string
	Root string
}

func (e *UnsafePathError) Error() string {
	return fmt.Sprintf("nus: path %q escapes target root %q", e.Path, e.Root)
}

// ErrNotImplemented is returned by operations explicitly out of scope,
// such as 3DS title-key derivation (spec.md §9, Open Questions).
var ErrNotImplemented = fmt.Errorf("nus: not implemented")
