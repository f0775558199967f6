package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"teamplay/internal/manifest"
)

func renderInfo(m *manifest.Manifest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Manifest for [%s] @ [%s] on [%s]\n", m.PatientID, m.Encounter, m.Performer)
	fmt.Fprintf(&b, "Status   %s\n", m.Status)
	fmt.Fprintf(&b, "Created  %s\n", m.Created.Format(time.RFC3339))
	if !m.Finished.IsZero() {
		fmt.Fprintf(&b, "Finished %s\n", m.Finished.Format(time.RFC3339))
	}
	b.WriteString("[ Input ]\n")
	b.WriteString(renderFiles(m.InputFiles))
	if m.OutputFiles != nil {
		b.WriteString("[ Output ]\n")
		b.WriteString(renderFiles(*m.OutputFiles))
	}
	return b.String()
}

func renderFiles(list manifest.FileAttachmentList) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"File", "Description", "MIME"})
	for _, f := range list.Table() {
		tw.AppendRow(table.Row{f.Filename, f.Description, f.MIME})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
	})
	return tw.Render() + "\n"
}
