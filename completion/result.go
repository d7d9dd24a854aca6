package completion

import (
	"github.com/quillkernel/quill/wire"
)

// Result is the tagged outcome of one completion request: either a success
// carrying matches with their token bounds, or an error carrying a rendered
// fault. Offsets in CursorStart/CursorEnd are byte offsets into Code; they
// are converted to rune offsets when serialized for the wire.
//
// Invariant: len(Matches) == len(Metadata) always.
type Result struct {
	// Status is wire.StatusOK or wire.StatusError.
	Status string

	// Matches holds the candidate texts, in engine order.
	Matches []string

	// CursorStart and CursorEnd delimit the token the matches replace.
	CursorStart int
	CursorEnd   int

	// Metadata holds the per-candidate type hints, parallel to Matches.
	Metadata []string

	// Code and Cursor echo the request that produced this result.
	Code   string
	Cursor int

	// EName, EValue and Traceback describe the fault when Status is error.
	EName     string
	EValue    string
	Traceback []string
}

// Empty is the success with no matches: bounds collapse to the cursor.
func Empty(code string, cursor int) Result {
	return Result{
		Status:      wire.StatusOK,
		Matches:     []string{},
		CursorStart: cursor,
		CursorEnd:   cursor,
		Metadata:    []string{},
		Code:        code,
		Cursor:      cursor,
	}
}

// OK reports whether the result is a success.
func (r Result) OK() bool {
	return r.Status == wire.StatusOK
}

// ReplyContent serializes the result as complete_reply content. Successful
// results carry matches, rune-offset bounds, and the candidate list under
// the two metadata partitions client conventions expect; both partitions are
// populated from the same candidates. Error results carry the rendered
// fault.
func (r Result) ReplyContent() map[string]any {
	if !r.OK() {
		c := wire.ErrorContent(r.EName, r.EValue, r.Traceback)
		c["matches"] = []any{}
		c["metadata"] = map[string]any{}
		return c
	}

	matches := make([]any, len(r.Matches))
	experimental := make([]any, len(r.Matches))
	extended := make([]any, len(r.Matches))
	start := RuneOffset(r.Code, r.CursorStart)
	end := RuneOffset(r.Code, r.CursorEnd)
	for i, m := range r.Matches {
		matches[i] = m
		experimental[i] = map[string]any{
			"text":  m,
			"type":  r.Metadata[i],
			"start": start,
			"end":   end,
		}
		extended[i] = map[string]any{
			"text": m,
			"type": r.Metadata[i],
		}
	}
	return map[string]any{
		"status":       wire.StatusOK,
		"matches":      matches,
		"cursor_start": start,
		"cursor_end":   end,
		"metadata": map[string]any{
			"_jupyter_types_experimental": experimental,
			"_jupyter_extended_metadata":  extended,
		},
	}
}
