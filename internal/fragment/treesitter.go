//go:build cgo

package fragment

import (
	"context"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// TreeSitter classifies keywords from a JavaScript parse of the scan window.
// Keywords show up as anonymous nodes, so strings, comments and property
// names never match.
type TreeSitter struct {
	mu     sync.Mutex
	parser *sitter.Parser
}

func newTreeSitter() Classifier {
	return NewTreeSitter()
}

// NewTreeSitter creates a tree-sitter classifier for JavaScript.
func NewTreeSitter() *TreeSitter {
	p := sitter.NewParser()
	p.SetLanguage(javascript.GetLanguage())
	return &TreeSitter{parser: p}
}

func (c *TreeSitter) KeywordLines(ctx context.Context, lines []string, keywords []string) []bool {
	src := []byte(strings.Join(lines, "\n"))

	c.mu.Lock()
	tree, err := c.parser.ParseCtx(ctx, nil, src)
	c.mu.Unlock()
	if err != nil || tree == nil {
		return Lexer{}.KeywordLines(ctx, lines, keywords)
	}

	set := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		set[k] = true
	}

	out := make([]bool, len(lines))
	var walk func(*sitter.Node)
	walk = func(node *sitter.Node) {
		if node == nil {
			return
		}
		if !node.IsNamed() && set[node.Type()] {
			if row := int(node.StartPoint().Row); row < len(out) {
				out[row] = true
			}
		}
		for i := uint32(0); i < node.ChildCount(); i++ {
			walk(node.Child(int(i)))
		}
	}
	walk(tree.RootNode())
	return out
}
