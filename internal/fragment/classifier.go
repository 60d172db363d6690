package fragment

import (
	"context"
	"fmt"
	"strings"
)

// Classifier finds lines that hold a keyword as a real keyword token, not
// inside a string, comment or property name.
type Classifier interface {
	// KeywordLines returns one flag per input line.
	KeywordLines(ctx context.Context, lines []string, keywords []string) []bool
}

// NewClassifier returns the classifier named by kind: "lexer", "treesitter",
// or "auto" (tree-sitter when the build has it, otherwise the lexer).
func NewClassifier(kind string) (Classifier, error) {
	switch kind {
	case "", "auto":
		if c := newTreeSitter(); c != nil {
			return c, nil
		}
		return Lexer{}, nil
	case "lexer":
		return Lexer{}, nil
	case "treesitter":
		c := newTreeSitter()
		if c == nil {
			return nil, ErrNoTreeSitter
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown classifier %q", kind)
	}
}

// Lexer is a small JavaScript tokenizer. It tracks block comments and
// template literals across lines but does not recognize regex literals.
type Lexer struct{}

func (Lexer) KeywordLines(_ context.Context, lines []string, keywords []string) []bool {
	set := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		set[k] = true
	}

	out := make([]bool, len(lines))
	inBlock, inTemplate := false, false

	for i, line := range lines {
		// previous significant byte on this line, for property access
		var prev byte
		j := 0
		for j < len(line) {
			if inBlock {
				k := strings.Index(line[j:], "*/")
				if k < 0 {
					j = len(line)
					break
				}
				j += k + 2
				inBlock = false
				continue
			}
			if inTemplate {
				k := skipQuoted(line, j, '`')
				if k < 0 {
					j = len(line)
					break
				}
				j = k
				inTemplate = false
				prev = '`'
				continue
			}

			c := line[j]
			switch {
			case c == '/' && j+1 < len(line) && line[j+1] == '/':
				j = len(line)
			case c == '/' && j+1 < len(line) && line[j+1] == '*':
				inBlock = true
				j += 2
			case c == '"' || c == '\'':
				k := skipQuoted(line, j+1, c)
				if k < 0 {
					k = len(line)
				}
				j = k
				prev = c
			case c == '`':
				inTemplate = true
				j++
			case isIdentStart(c):
				k := j + 1
				for k < len(line) && isIdentPart(line[k]) {
					k++
				}
				if set[line[j:k]] && prev != '.' {
					out[i] = true
				}
				j = k
				prev = 'a'
			case c == ' ' || c == '\t':
				j++
			default:
				prev = c
				j++
			}
		}
	}
	return out
}

// skipQuoted returns the index just past the closing quote, or -1 if the
// literal runs off the end of the line.
func skipQuoted(line string, j int, quote byte) int {
	for j < len(line) {
		switch line[j] {
		case '\\':
			j += 2
		case quote:
			return j + 1
		default:
			j++
		}
	}
	return -1
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
