package manifest

import (
	"encoding/json"
	"fmt"
	"time"
)

// The upstream pipeline speaks HL7 FHIR; a manifest maps onto a Task
// resource with the attachments carried as input/output parameters. This is
// an export format only, the canonical codec stays the flat schema.

type fhirNarrative struct {
	Status string `json:"status"`
	Div    string `json:"div"`
}

type fhirReference struct {
	Reference string `json:"reference"`
}

type fhirCodeable struct {
	Text string `json:"text"`
}

type fhirValueAttachment struct {
	ContentType string `json:"contentType"`
	URL         string `json:"url"`
}

type fhirParameter struct {
	Type            fhirCodeable        `json:"type"`
	ValueAttachment fhirValueAttachment `json:"valueAttachment"`
}

type fhirPerformer struct {
	Reference fhirReference `json:"reference"`
}

type fhirTask struct {
	ResourceType       string          `json:"resourceType"`
	Text               fhirNarrative   `json:"text"`
	Status             string          `json:"status"`
	Intent             string          `json:"intent"`
	AuthoredOn         string          `json:"authoredOn"`
	LastModified       string          `json:"lastModified,omitempty"`
	Focus              fhirReference   `json:"focus"`
	Encounter          fhirReference   `json:"encounter"`
	RequestedPerformer []fhirPerformer `json:"requestedPerformer"`
	Input              []fhirParameter `json:"input,omitempty"`
	Output             []fhirParameter `json:"output,omitempty"`
}

// FHIRTask renders the manifest as an HL7 FHIR Task document. A done
// manifest carries the FHIR status "completed".
func (m *Manifest) FHIRTask() ([]byte, error) {
	status := "requested"
	kind := "Input"
	if m.Status == StatusDone {
		status = "completed"
		kind = "Output"
	}

	task := fhirTask{
		ResourceType: "Task",
		Text: fhirNarrative{
			Status: "generated",
			Div: fmt.Sprintf("<div xmlns='http://www.w3.org/1999/xhtml'>%s task for %s, created %s</div>",
				kind, m.PatientID, m.Created.Format(time.RFC3339)),
		},
		Status:             status,
		Intent:             "order",
		AuthoredOn:         m.Created.Format(time.RFC3339),
		Focus:              fhirReference{Reference: m.PatientID},
		Encounter:          fhirReference{Reference: m.Encounter},
		RequestedPerformer: []fhirPerformer{{Reference: fhirReference{Reference: m.Performer}}},
		Input:              fhirParameters(m.InputFiles),
	}
	if !m.Finished.IsZero() {
		task.LastModified = m.Finished.Format(time.RFC3339)
	}
	if m.OutputFiles != nil {
		task.Output = fhirParameters(*m.OutputFiles)
	}

	return json.MarshalIndent(task, "", "  ")
}

func fhirParameters(list FileAttachmentList) []fhirParameter {
	params := make([]fhirParameter, 0, list.Len())
	for _, f := range list.Table() {
		params = append(params, fhirParameter{
			Type: fhirCodeable{Text: f.Description},
			ValueAttachment: fhirValueAttachment{
				ContentType: f.MIME,
				URL:         "file://" + f.Filename,
			},
		})
	}
	return params
}
