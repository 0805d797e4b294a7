package lsmkv

import "errors"

var (
	// ErrKeyEmpty is returned by Put, Delete, and Get when passed a
	// zero-length key.
	ErrKeyEmpty = errors.New("lsmkv: key must be non-empty")

	// ErrClosed is returned by Put, Delete, Get, and Flush when called
	// after Close.
	ErrClosed = errors.New("lsmkv: engine is closed")
)
