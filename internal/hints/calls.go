package hints

import (
	"strings"

	"codehint/internal/document"
)

// callScanLines bounds how far back an enclosing call is searched for.
const callScanLines = 9

// call is the function call whose argument list encloses a position.
type call struct {
	Callee string
	// Pos is where the callee name starts.
	Pos      document.Position
	ArgIndex int
}

// findCall walks back from pos to the nearest unmatched '(' and reads the
// identifier before it. Parentheses, brackets and commas inside string
// literals on the same line are not distinguished.
func findCall(buf document.Buffer, pos document.Position) (call, bool) {
	depth, args := 0, 0
	stop := pos.Line - callScanLines
	if stop < 0 {
		stop = 0
	}

	for line := pos.Line; line >= stop; line-- {
		text := buf.Line(line)
		ch := len(text)
		if line == pos.Line && pos.Ch < ch {
			ch = pos.Ch
		}
		for i := ch - 1; i >= 0; i-- {
			switch text[i] {
			case ')', ']', '}':
				depth++
			case '[', '{':
				if depth == 0 {
					// inside a literal argument; commas so far belong to it
					args = 0
					continue
				}
				depth--
			case ',':
				if depth == 0 {
					args++
				}
			case '(':
				if depth > 0 {
					depth--
					continue
				}
				return calleeBefore(text, line, i, args)
			}
		}
	}
	return call{}, false
}

func calleeBefore(text string, line, paren, args int) (call, bool) {
	end := paren
	for end > 0 && (text[end-1] == ' ' || text[end-1] == '\t') {
		end--
	}
	start := end
	for start > 0 && isIdent(text[start-1]) {
		start--
	}
	name := text[start:end]
	if name == "" || isKeyword(name) || (name[0] >= '0' && name[0] <= '9') {
		return call{}, false
	}
	return call{Callee: name, Pos: document.Pos(line, start), ArgIndex: args}, true
}

func isIdent(b byte) bool {
	return b == '_' || b == '$' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// Control-flow keywords that take a parenthesized clause but are not calls.
var notCallees = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"function": true, "return": true, "typeof": true, "with": true,
}

func isKeyword(s string) bool {
	return notCallees[s]
}

// Params splits a "fn(a, b) -> ret" type into its parameter list. Nested
// parentheses inside parameter types are kept intact.
func Params(fnType string) []string {
	if !strings.HasPrefix(fnType, "fn(") {
		return nil
	}
	var params []string
	depth, start := 0, 3
	for i := 3; i < len(fnType); i++ {
		switch fnType[i] {
		case '(', '[', '{':
			depth++
		case ']', '}':
			depth--
		case ')':
			if depth == 0 {
				if p := strings.TrimSpace(fnType[start:i]); p != "" {
					params = append(params, p)
				}
				return params
			}
			depth--
		case ',':
			if depth == 0 {
				params = append(params, strings.TrimSpace(fnType[start:i]))
				start = i + 1
			}
		}
	}
	return params
}
