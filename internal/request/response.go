package request

import (
	"bytes"
	"encoding/json"
	"fmt"

	"codehint/internal/document"
)

// Location is an engine-reported position: either a character offset or a
// line/ch pair, depending on whether lineCharPositions was honored.
type Location struct {
	Offset int
	Pos    document.Position
	IsPos  bool
}

func (l *Location) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var p document.Position
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		*l = Location{Pos: p, IsPos: true}
		return nil
	}
	var off int
	if err := json.Unmarshal(data, &off); err != nil {
		return fmt.Errorf("location is neither offset nor position: %w", err)
	}
	*l = Location{Offset: off}
	return nil
}

func (l Location) MarshalJSON() ([]byte, error) {
	if l.IsPos {
		return json.Marshal(l.Pos)
	}
	return json.Marshal(l.Offset)
}

// Completion is one completion candidate. The engine sends bare strings
// when types were not requested.
type Completion struct {
	Name   string `json:"name"`
	Type   string `json:"type,omitempty"`
	Depth  int    `json:"depth,omitempty"`
	Doc    string `json:"doc,omitempty"`
	URL    string `json:"url,omitempty"`
	Origin string `json:"origin,omitempty"`
}

func (c *Completion) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*c = Completion{Name: name}
		return nil
	}
	type plain Completion
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = Completion(p)
	return nil
}

// CompletionsResponse is the engine's answer to a completions query.
type CompletionsResponse struct {
	Start       Location
	End         Location
	Completions []Completion
	Guess       bool
	IsProperty  bool
	IsObjectKey bool
}

func (r *CompletionsResponse) UnmarshalJSON(data []byte) error {
	var raw struct {
		Start       *Location    `json:"start"`
		End         *Location    `json:"end"`
		From        *Location    `json:"from"`
		To          *Location    `json:"to"`
		Completions []Completion `json:"completions"`
		Guess       bool         `json:"guess"`
		IsProperty  bool         `json:"isProperty"`
		IsObjectKey bool         `json:"isObjectKey"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	start, end := raw.Start, raw.End
	if start == nil {
		start = raw.From
	}
	if end == nil {
		end = raw.To
	}
	if start == nil || end == nil {
		return fmt.Errorf("completions response has no start/end")
	}

	*r = CompletionsResponse{
		Start:       *start,
		End:         *end,
		Completions: raw.Completions,
		Guess:       raw.Guess,
		IsProperty:  raw.IsProperty,
		IsObjectKey: raw.IsObjectKey,
	}
	return nil
}

// TypeResponse is the engine's answer to a type query.
type TypeResponse struct {
	Type     string `json:"type"`
	Name     string `json:"name,omitempty"`
	ExprName string `json:"exprName,omitempty"`
	Doc      string `json:"doc,omitempty"`
	URL      string `json:"url,omitempty"`
	Origin   string `json:"origin,omitempty"`
	Guess    bool   `json:"guess,omitempty"`
}

// DecodeCompletions parses a completions reply.
func DecodeCompletions(raw json.RawMessage) (*CompletionsResponse, error) {
	var r CompletionsResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode completions: %w", err)
	}
	return &r, nil
}

// DecodeType parses a type reply.
func DecodeType(raw json.RawMessage) (*TypeResponse, error) {
	var r TypeResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode type: %w", err)
	}
	return &r, nil
}
