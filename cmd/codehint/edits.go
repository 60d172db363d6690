package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"codehint/internal/document"
	"codehint/internal/textbuf"
)

// editScript is a recorded sequence of buffer edits:
//
//	edits:
//	  - from: {line: 10, ch: 0}
//	    to: {line: 12, ch: 0}
//	    text: "var x = 1;\n"
type editScript struct {
	Edits []scriptEdit `yaml:"edits"`
}

type scriptEdit struct {
	From document.Position `yaml:"from"`
	// To defaults to From, making the edit an insertion.
	To   *document.Position `yaml:"to,omitempty"`
	Text string             `yaml:"text"`
}

func loadEditScript(path string) (*editScript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read edit script: %w", err)
	}
	var s editScript
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse edit script: %w", err)
	}
	return &s, nil
}

// replay applies the edits in order.
func (s *editScript) replay(buf *textbuf.Buffer) []document.Edit {
	applied := make([]document.Edit, 0, len(s.Edits))
	for _, e := range s.Edits {
		to := e.From
		if e.To != nil {
			to = *e.To
		}
		applied = append(applied, buf.Replace(e.From, to, e.Text))
	}
	return applied
}
