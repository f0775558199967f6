package manifest

import (
	"errors"
	"strings"
	"testing"
)

func newTestManifest(t *testing.T) *Manifest {
	t.Helper()
	m, err := New("OUS-Patient-0001", "EOT", "OUS0001", sampleFiles())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return m
}

func outFiles() []FileAttachment {
	return []FileAttachment{
		{Filename: "report.pdf", Description: "Risk report", MIME: "application/pdf"},
	}
}

func TestNewManifest(t *testing.T) {
	m := newTestManifest(t)
	if m.Status != StatusRequested {
		t.Fatalf("expected status requested, got %s", m.Status)
	}
	if m.OutputFiles != nil {
		t.Fatalf("fresh manifest must not have output files")
	}
	if m.Created.IsZero() {
		t.Fatalf("created timestamp not set")
	}
	if !m.Finished.IsZero() {
		t.Fatalf("finished must be unset while requested")
	}
}

func TestNewManifestEmptyIdentifier(t *testing.T) {
	_, err := New("", "EOT", "OUS0001", sampleFiles())
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "patientID" {
		t.Fatalf("unexpected field: %s", verr.Field)
	}
}

func TestNewManifestEmptyFiles(t *testing.T) {
	_, err := New("OUS-Patient-0001", "EOT", "OUS0001", nil)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestMarkDone(t *testing.T) {
	m := newTestManifest(t)
	created := m.Created
	if err := m.MarkDone(outFiles()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Status != StatusDone {
		t.Fatalf("expected status done, got %s", m.Status)
	}
	if m.OutputFiles == nil || m.OutputFiles.Files()[0] != "report.pdf" {
		t.Fatalf("output files not recorded: %v", m.OutputFiles)
	}
	if !m.Created.Equal(created) {
		t.Fatalf("created changed on mark done")
	}
	if m.Finished.IsZero() {
		t.Fatalf("finished not set")
	}
	if got := m.InputFiles.Files(); len(got) != 2 {
		t.Fatalf("input files changed: %v", got)
	}
}

func TestMarkDoneTwice(t *testing.T) {
	m := newTestManifest(t)
	if err := m.MarkDone(outFiles()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := m.MarkDone(outFiles())
	var serr *StateError
	if !errors.As(err, &serr) {
		t.Fatalf("expected StateError, got %v", err)
	}
}

func TestMarkDoneInvalidFilesLeavesManifestUntouched(t *testing.T) {
	m := newTestManifest(t)
	err := m.MarkDone([]FileAttachment{{Filename: "report.pdf"}})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if m.Status != StatusRequested || m.OutputFiles != nil {
		t.Fatalf("failed transition mutated the manifest")
	}
}

func TestActiveFiles(t *testing.T) {
	m := newTestManifest(t)
	if got := m.ActiveFiles(); got[0] != "methylation_0001.csv" {
		t.Fatalf("expected input files while requested, got %v", got)
	}
	if err := m.MarkDone(outFiles()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := m.ActiveFiles(); len(got) != 1 || got[0] != "report.pdf" {
		t.Fatalf("expected output files once done, got %v", got)
	}
}

func TestRoundTripRequested(t *testing.T) {
	m := newTestManifest(t)
	text, err := m.ToText()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parsed, err := FromText(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.Equal(parsed) {
		t.Fatalf("round trip lost information:\n%v\nvs\n%v", m, parsed)
	}
}

func TestRoundTripDone(t *testing.T) {
	m := newTestManifest(t)
	if err := m.MarkDone(outFiles()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text, err := m.ToText()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parsed, err := FromText(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.Equal(parsed) {
		t.Fatalf("round trip lost information:\n%v\nvs\n%v", m, parsed)
	}
}

func TestToTextStable(t *testing.T) {
	m := newTestManifest(t)
	first, err := m.ToText()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := m.ToText()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Fatalf("serialization drifted between calls")
	}
}

func TestToTextKeyOrder(t *testing.T) {
	m := newTestManifest(t)
	text, err := m.ToText()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	keys := []string{`"patientID"`, `"encounter"`, `"performer"`, `"status"`, `"created"`, `"inputFiles"`}
	last := -1
	for _, key := range keys {
		idx := strings.Index(text, key)
		if idx < 0 {
			t.Fatalf("missing key %s in:\n%s", key, text)
		}
		if idx < last {
			t.Fatalf("key %s out of canonical order in:\n%s", key, text)
		}
		last = idx
	}
	if strings.Contains(text, `"outputFiles"`) {
		t.Fatalf("requested manifest serialized output files:\n%s", text)
	}
}

func TestFromTextMalformed(t *testing.T) {
	_, err := FromText(`{"patientID": `)
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestFromTextTrailingData(t *testing.T) {
	m := newTestManifest(t)
	text, err := m.ToText()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = FromText(text + "{}")
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestFromTextIllegalCombinations(t *testing.T) {
	m := newTestManifest(t)
	requested, err := m.ToText()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.MarkDone(outFiles()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	done, err := m.ToText()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := map[string]string{
		// The done document carries both lists; flipping the status back makes
		// outputFiles illegal. The requested document has no outputFiles, so
		// flipping it forward lacks a required list.
		"requested with outputFiles": strings.Replace(done, `"status": "done"`, `"status": "requested"`, 1),
		"done without outputFiles":   strings.Replace(requested, `"status": "requested"`, `"status": "done"`, 1),
		"unknown status":             strings.Replace(requested, `"requested"`, `"pending"`, 1),
		"empty performer":            strings.Replace(requested, `"OUS0001"`, `""`, 1),
	}

	for name, text := range cases {
		var verr *ValidationError
		if _, err := FromText(text); !errors.As(err, &verr) {
			t.Fatalf("%s: expected ValidationError, got %v", name, err)
		}
	}
}

func TestFromTextNonStringField(t *testing.T) {
	m := newTestManifest(t)
	text, err := m.ToText()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text = strings.Replace(text, `"OUS-Patient-0001"`, `17`, 1)
	var verr *ValidationError
	if _, err := FromText(text); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
