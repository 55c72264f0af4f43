package bdk

import "fmt"

// DownloadError reports a network or HTTP failure that survived the retry
// budget. The bronze layer never swallows these - an empty dataset caused by
// a failed download must be distinguishable from a genuinely empty source.
type DownloadError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download of %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// ChecksumMismatchError means downloaded content failed its declared
// checksum. The artifact is discarded, never cached.
type ChecksumMismatchError struct {
	URL  string
	Algo string
	Want string
	Got  string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("%s checksum mismatch for %s: want %s, got %s", e.Algo, e.URL, e.Want, e.Got)
}

// UnsupportedFormatError means a declaration names a format this toolkit
// cannot decode (currently only rda). Declaring it is allowed so catalogs can
// document such sources; ingesting it is not.
type UnsupportedFormatError struct {
	Format string
	URL    string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("format %q is declared for %s but not supported; convert the source upstream", e.Format, e.URL)
}

// FormatDriftError means a raw parser could not locate the columns or
// structure the declaration promised.
type FormatDriftError struct {
	Source string
	Detail string
}

func (e *FormatDriftError) Error() string {
	return fmt.Sprintf("format drift in %s: %s", e.Source, e.Detail)
}

// CVResolutionError means a dynamic term lookup found no match and no
// default. Only surfaced in strict mode; tolerant mode drops the record.
type CVResolutionError struct {
	Field string
	Value string
}

func (e *CVResolutionError) Error() string {
	return fmt.Sprintf("no CV term resolves %q (field %q) and no default is declared", e.Value, e.Field)
}

// MappingError means an extraction pipeline failed on a value. Only surfaced
// in strict mode; tolerant mode treats the value as absent.
type MappingError struct {
	Field    string
	Pipeline string
	Value    string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("extract pipeline %q failed on %q (field %q)", e.Pipeline, e.Value, e.Field)
}
