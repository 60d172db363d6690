//go:build !cgo

package fragment

// newTreeSitter reports that tree-sitter is not compiled in.
func newTreeSitter() Classifier {
	return nil
}
