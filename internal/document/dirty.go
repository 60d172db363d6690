package document

// DirtyRange is the half-open line interval [From, To) of a document that the
// engine has not yet seen, expressed in the document's current line numbering.
type DirtyRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Span is the number of lines covered by the range.
func (r DirtyRange) Span() int {
	return r.To - r.From
}

// Covers reports whether the range contains every line in [fromLine, toLine].
func (r DirtyRange) Covers(fromLine, toLine int) bool {
	return r.From <= fromLine && r.To > toLine
}

// Union returns the smallest range containing both r and o.
func (r DirtyRange) Union(o DirtyRange) DirtyRange {
	if o.From < r.From {
		r.From = o.From
	}
	if o.To > r.To {
		r.To = o.To
	}
	return r
}

// MergeEdit folds e into the dirty range r and returns the result. A nil r
// means the document was clean before the edit.
//
// The upper bound is moved by the edit's line delta when the edit starts above
// it, so lines below the range keep matching what the engine last received.
func MergeEdit(r *DirtyRange, e Edit) DirtyRange {
	var out DirtyRange
	if r == nil {
		out = DirtyRange{From: e.From.Line, To: e.From.Line}
	} else {
		out = *r
	}

	end := e.InsertedEndLine()
	if e.From.Line < out.To {
		out.To -= e.To.Line - end
	}
	if end >= out.To {
		out.To = end + 1
	}
	if out.From > e.From.Line {
		out.From = e.From.Line
	}
	return out
}
