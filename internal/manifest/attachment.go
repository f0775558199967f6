package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FileAttachment describes one data file travelling alongside a manifest.
type FileAttachment struct {
	Filename    string `json:"Filename"`
	Description string `json:"Description"`
	MIME        string `json:"MIME"`
}

func (f FileAttachment) validate(index int) error {
	field := func(name string) string { return fmt.Sprintf("files[%d].%s", index, name) }
	switch {
	case f.Filename == "":
		return &ValidationError{Field: field("Filename"), Reason: "must not be empty"}
	case f.Description == "":
		return &ValidationError{Field: field("Description"), Reason: "must not be empty"}
	case f.MIME == "":
		return &ValidationError{Field: field("MIME"), Reason: "must not be empty"}
	}
	return nil
}

// FileAttachmentList is an ordered collection of attachments. Order is the
// submission order. Filenames are unique within a list; the zero value is an
// empty list.
type FileAttachmentList struct {
	entries []FileAttachment
}

// NewFileAttachmentList validates files and builds a list from them. The
// input slice is copied, so later mutation by the caller has no effect.
func NewFileAttachmentList(files []FileAttachment) (FileAttachmentList, error) {
	if len(files) == 0 {
		return FileAttachmentList{}, &ValidationError{Field: "files", Reason: "at least one file is required"}
	}
	seen := make(map[string]struct{}, len(files))
	for i, f := range files {
		if err := f.validate(i); err != nil {
			return FileAttachmentList{}, err
		}
		if _, dup := seen[f.Filename]; dup {
			return FileAttachmentList{}, &ValidationError{
				Field:  fmt.Sprintf("files[%d].Filename", i),
				Reason: fmt.Sprintf("duplicate filename %q", f.Filename),
			}
		}
		seen[f.Filename] = struct{}{}
	}
	return FileAttachmentList{entries: append([]FileAttachment(nil), files...)}, nil
}

func (l FileAttachmentList) Len() int { return len(l.entries) }

// Table returns a copy of the attachment records in submission order.
func (l FileAttachmentList) Table() []FileAttachment {
	return append([]FileAttachment(nil), l.entries...)
}

// Files returns the bare filenames in submission order.
func (l FileAttachmentList) Files() []string {
	names := make([]string, len(l.entries))
	for i, f := range l.entries {
		names[i] = f.Filename
	}
	return names
}

func (l FileAttachmentList) Equal(other FileAttachmentList) bool {
	if len(l.entries) != len(other.entries) {
		return false
	}
	for i, f := range l.entries {
		if f != other.entries[i] {
			return false
		}
	}
	return true
}

func (l FileAttachmentList) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.entries)
}

// UnmarshalJSON applies the same validation as NewFileAttachmentList.
// Records with unknown or missing fields are rejected; parsed JSON gets no
// trusted bypass around the constructor rules.
func (l *FileAttachmentList) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var raw []FileAttachment
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	list, err := NewFileAttachmentList(raw)
	if err != nil {
		return err
	}
	*l = list
	return nil
}
