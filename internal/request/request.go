// Package request decides what each engine request carries: the full
// active document, a fragment of it, or nothing, plus any other documents
// the engine has not seen yet.
package request

import (
	"codehint/internal/errors"
	"codehint/internal/fragment"
)

// Request is the wire payload sent to the engine.
type Request struct {
	Query *Query              `json:"query,omitempty"`
	Files []fragment.Fragment `json:"files"`
}

// Validate checks the file-list invariants: at most one part entry, it
// belongs to the queried document, and a fragment reference points at it.
func (r *Request) Validate() error {
	parts := 0
	for _, f := range r.Files {
		if f.Kind == fragment.Part {
			parts++
		}
	}
	if parts > 1 {
		return errors.Newf(errors.InvalidQuery, "request carries %d part entries", parts)
	}
	if r.Query == nil {
		if parts > 0 {
			return errors.New(errors.InvalidQuery, "part entry without a query", nil)
		}
		return nil
	}
	if r.Query.End == nil {
		return errors.New(errors.InvalidQuery, "query has no end position", nil)
	}

	if i, ok := r.Query.File.Index(); ok {
		if i >= len(r.Files) || r.Files[i].Kind != fragment.Part {
			return errors.Newf(errors.InvalidQuery, "file reference %s does not point at a part entry", r.Query.File)
		}
		return nil
	}
	if parts > 0 {
		return errors.New(errors.InvalidQuery, "part entry present but query refers to a document by name", nil)
	}
	return nil
}
