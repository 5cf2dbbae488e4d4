package core

import "errors"

var (
	// ErrNotFound reports that the requested descriptor or object does not exist.
	ErrNotFound = errors.New("not found")

	// ErrBlobMissing reports a descriptor whose blob is gone from the object store.
	ErrBlobMissing = errors.New("scene blob missing")

	// ErrRejected reports input that failed a precondition.
	ErrRejected = errors.New("rejected")

	// ErrUpstreamWrite reports a write refused by the object or descriptor store.
	ErrUpstreamWrite = errors.New("upstream write failed")

	// ErrDecode reports blob content that does not match the scene schema.
	ErrDecode = errors.New("scene decode failed")
)
