package fragment

import "errors"

// ErrNoTreeSitter is returned when the tree-sitter classifier is requested
// from a build without CGO.
var ErrNoTreeSitter = errors.New("tree-sitter classifier requires CGO")
