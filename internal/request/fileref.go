package request

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FileRef names the file a query runs against: either a document the engine
// already knows by name, or an entry of the request's own file list.
// On the wire it is "name" or "#N".
type FileRef struct {
	name    string
	index   int
	isIndex bool
}

// ByName refers to a document by its registered name.
func ByName(name string) FileRef {
	return FileRef{name: name}
}

// FragmentIndex refers to files[i] of the same request.
func FragmentIndex(i int) FileRef {
	return FileRef{index: i, isIndex: true}
}

// Name returns the document name, if this is a by-name reference.
func (r FileRef) Name() (string, bool) {
	return r.name, !r.isIndex && r.name != ""
}

// Index returns the file-list index, if this is a fragment reference.
func (r FileRef) Index() (int, bool) {
	return r.index, r.isIndex
}

// IsZero reports whether the reference is unset.
func (r FileRef) IsZero() bool {
	return !r.isIndex && r.name == ""
}

func (r FileRef) String() string {
	if r.isIndex {
		return "#" + strconv.Itoa(r.index)
	}
	return r.name
}

func (r FileRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *FileRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	ref, err := ParseFileRef(s)
	if err != nil {
		return err
	}
	*r = ref
	return nil
}

// ParseFileRef parses the wire form. A leading '#' followed by digits is a
// fragment index; anything else is a name.
func ParseFileRef(s string) (FileRef, error) {
	if rest, ok := strings.CutPrefix(s, "#"); ok {
		i, err := strconv.Atoi(rest)
		if err != nil || i < 0 {
			return FileRef{}, fmt.Errorf("invalid file index %q", s)
		}
		return FragmentIndex(i), nil
	}
	return ByName(s), nil
}
