package core

import "fmt"

// DiscoveryError means the page range could not be bounded. It is fatal
// for the whole run.
type DiscoveryError struct {
	Platform Platform
	Step     string
	Err      error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("%s: discovering page range (%s): %v", e.Platform, e.Step, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// FetchError is a terminal, page-local acquisition failure.
type FetchError struct {
	Page int
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching page %d: %v", e.Page, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ConversionError is a page-local conversion failure. It never aborts
// sibling pages.
type ConversionError struct {
	Page int
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("converting page %d: %v", e.Page, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// AssemblyWriteError means the final document could not be written, not
// even under the default name.
type AssemblyWriteError struct {
	Path string
	Err  error
}

func (e *AssemblyWriteError) Error() string {
	return fmt.Sprintf("writing %s: %v", e.Path, e.Err)
}

func (e *AssemblyWriteError) Unwrap() error { return e.Err }
