package graph

import "errors"

// Load errors are fatal for the graph object: the file is malformed and no
// queries can be served against it.
var (
	ErrTooSmall           = errors.New("graph: file smaller than header")
	ErrBadMagic           = errors.New("graph: bad magic bytes")
	ErrUnsupportedVersion = errors.New("graph: unsupported version")
	ErrTruncated          = errors.New("graph: truncated section")
	ErrStringTableOverrun = errors.New("graph: string table overrun")
)

// ErrUnknownNode is a lookup error: the caller passed an external id that
// was never seen at load time. It is fatal for the individual query, not
// for the graph object.
var ErrUnknownNode = errors.New("graph: unknown external node id")
