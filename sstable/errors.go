package sstable

import "errors"

// ErrCorrupt indicates a segment file could not be parsed: a short
// read or an implausible length prefix. Per the error-handling design,
// a corrupt segment is surfaced and never installed.
var ErrCorrupt = errors.New("sstable: corrupt segment")
