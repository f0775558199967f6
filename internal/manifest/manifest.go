// Package manifest implements the metadata record exchanged between the
// submitting and processing stages of the teamplay pipeline: a subject, a
// collection timepoint, a target performer, a lifecycle status, and the
// described data files. The canonical form is a fixed-order JSON document
// named MANIFEST.json.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Filename is the fixed name of the canonical manifest document, both as a
// standalone file and as the entry inside an archive.
const Filename = "MANIFEST.json"

// Status is the lifecycle state of a manifest. The only transition is
// requested -> done, performed once by MarkDone.
type Status string

const (
	StatusRequested Status = "requested"
	StatusDone      Status = "done"
)

// Manifest describes one bundle of pipeline data files.
//
// Created is set at construction and never changes. OutputFiles is nil while
// the manifest is requested and set exactly once by MarkDone, together with
// Finished.
type Manifest struct {
	PatientID   string
	Encounter   string
	Performer   string
	Status      Status
	Created     time.Time
	Finished    time.Time
	InputFiles  FileAttachmentList
	OutputFiles *FileAttachmentList
}

// New builds a manifest in status requested for the given subject, encounter
// and performer, describing files as its input list.
func New(patientID, encounter, performer string, files []FileAttachment) (*Manifest, error) {
	if err := requireIdentifiers(patientID, encounter, performer); err != nil {
		return nil, err
	}
	input, err := NewFileAttachmentList(files)
	if err != nil {
		return nil, err
	}
	return &Manifest{
		PatientID:  patientID,
		Encounter:  encounter,
		Performer:  performer,
		Status:     StatusRequested,
		Created:    time.Now().Truncate(time.Second),
		InputFiles: input,
	}, nil
}

func requireIdentifiers(patientID, encounter, performer string) error {
	switch {
	case patientID == "":
		return &ValidationError{Field: "patientID", Reason: "must not be empty"}
	case encounter == "":
		return &ValidationError{Field: "encounter", Reason: "must not be empty"}
	case performer == "":
		return &ValidationError{Field: "performer", Reason: "must not be empty"}
	}
	return nil
}

// MarkDone transitions the manifest to done, recording outFiles as its
// output list and the completion time. Calling it on a manifest that is
// already done fails with a StateError; the receiver is left untouched on
// any failure.
func (m *Manifest) MarkDone(outFiles []FileAttachment) error {
	if m.Status == StatusDone {
		return &StateError{Op: "mark done", From: m.Status}
	}
	output, err := NewFileAttachmentList(outFiles)
	if err != nil {
		return err
	}
	m.Status = StatusDone
	m.Finished = time.Now().Truncate(time.Second)
	m.OutputFiles = &output
	return nil
}

// ActiveFiles returns the filenames the manifest currently stands for: the
// output list once done, the input list otherwise.
func (m *Manifest) ActiveFiles() []string {
	if m.Status == StatusDone && m.OutputFiles != nil {
		return m.OutputFiles.Files()
	}
	return m.InputFiles.Files()
}

// manifestJSON is the wire form. Field order here is the canonical key order
// of the serialized document.
type manifestJSON struct {
	PatientID   string              `json:"patientID"`
	Encounter   string              `json:"encounter"`
	Performer   string              `json:"performer"`
	Status      Status              `json:"status"`
	Created     string              `json:"created"`
	Finished    string              `json:"finished,omitempty"`
	InputFiles  FileAttachmentList  `json:"inputFiles"`
	OutputFiles *FileAttachmentList `json:"outputFiles,omitempty"`
}

// ToText serializes the manifest to its canonical JSON text. The output is
// byte-for-byte stable across calls for an unchanged manifest.
func (m *Manifest) ToText() (string, error) {
	wire := manifestJSON{
		PatientID:   m.PatientID,
		Encounter:   m.Encounter,
		Performer:   m.Performer,
		Status:      m.Status,
		Created:     m.Created.Format(time.RFC3339),
		InputFiles:  m.InputFiles,
		OutputFiles: m.OutputFiles,
	}
	if !m.Finished.IsZero() {
		wire.Finished = m.Finished.Format(time.RFC3339)
	}
	payload, err := json.MarshalIndent(wire, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}
	return string(payload), nil
}

// FromText parses canonical manifest text. Malformed JSON fails with a
// ParseError; well-formed JSON that does not satisfy the schema or the
// status/file-list rules fails with a ValidationError.
func FromText(text string) (*Manifest, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.DisallowUnknownFields()
	var wire manifestJSON
	if err := dec.Decode(&wire); err != nil {
		return nil, classifyDecodeError(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &ParseError{Err: errors.New("trailing data after manifest document")}
	}
	return fromWire(wire)
}

// FromFile reads and parses a canonical manifest file.
func FromFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return FromText(string(data))
}

func classifyDecodeError(err error) error {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr
	}
	var syn *json.SyntaxError
	if errors.As(err, &syn) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &ParseError{Err: err}
	}
	// Well-formed JSON with a wrong shape: type mismatches, unknown fields.
	return &ValidationError{Reason: err.Error()}
}

func fromWire(wire manifestJSON) (*Manifest, error) {
	if err := requireIdentifiers(wire.PatientID, wire.Encounter, wire.Performer); err != nil {
		return nil, err
	}

	m := &Manifest{
		PatientID:   wire.PatientID,
		Encounter:   wire.Encounter,
		Performer:   wire.Performer,
		Status:      wire.Status,
		InputFiles:  wire.InputFiles,
		OutputFiles: wire.OutputFiles,
	}

	if wire.InputFiles.Len() == 0 {
		return nil, &ValidationError{Field: "inputFiles", Reason: "missing"}
	}

	created, err := parseTimestamp("created", wire.Created)
	if err != nil {
		return nil, err
	}
	m.Created = created

	switch wire.Status {
	case StatusRequested:
		if wire.OutputFiles != nil {
			return nil, &ValidationError{Field: "outputFiles", Reason: "must be absent while status is requested"}
		}
		if wire.Finished != "" {
			return nil, &ValidationError{Field: "finished", Reason: "must be absent while status is requested"}
		}
	case StatusDone:
		if wire.OutputFiles == nil {
			return nil, &ValidationError{Field: "outputFiles", Reason: "required when status is done"}
		}
		finished, err := parseTimestamp("finished", wire.Finished)
		if err != nil {
			return nil, err
		}
		m.Finished = finished
	default:
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", wire.Status)}
	}

	return m, nil
}

func parseTimestamp(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, &ValidationError{Field: field, Reason: "missing"}
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, &ValidationError{Field: field, Reason: fmt.Sprintf("not an RFC 3339 timestamp: %q", value)}
	}
	return ts, nil
}

// Equal reports whether two manifests describe the same record. Timestamps
// compare as instants, so a round trip through ToText/FromText preserves
// equality even though the zone name is not serialized.
func (m *Manifest) Equal(other *Manifest) bool {
	if m == nil || other == nil {
		return m == other
	}
	if m.PatientID != other.PatientID ||
		m.Encounter != other.Encounter ||
		m.Performer != other.Performer ||
		m.Status != other.Status {
		return false
	}
	if !m.Created.Equal(other.Created) || !m.Finished.Equal(other.Finished) {
		return false
	}
	if !m.InputFiles.Equal(other.InputFiles) {
		return false
	}
	if (m.OutputFiles == nil) != (other.OutputFiles == nil) {
		return false
	}
	if m.OutputFiles != nil && !m.OutputFiles.Equal(*other.OutputFiles) {
		return false
	}
	return true
}
