package archive

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"teamplay/internal/manifest"
)

// Archive names follow PREFIX.patientID.encounter.performer.unixts.zip.
// The prefix tells the receiving stage apart a fresh submission (NEW) from a
// completed result (RES); the pack-time timestamp keeps repeated packagings
// of the same manifest from colliding.
const (
	prefixRequested = "NEW"
	prefixDone      = "RES"
)

var unsafeName = regexp.MustCompile(`[^-_()a-zA-Z0-9]`)

// sanitizeName reduces an identifier to filesystem-safe ASCII. Anything
// outside [-_()a-zA-Z0-9] becomes an underscore.
func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r > unicode.MaxASCII {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	return unsafeName.ReplaceAllString(b.String(), "_")
}

// Name builds the archive filename for a manifest packaged at now.
func Name(m *manifest.Manifest, now time.Time) string {
	prefix := prefixRequested
	if m.Status == manifest.StatusDone {
		prefix = prefixDone
	}
	parts := []string{
		prefix,
		sanitizeName(m.PatientID),
		sanitizeName(m.Encounter),
		sanitizeName(m.Performer),
		strconv.FormatInt(now.Unix(), 10),
		"zip",
	}
	return strings.Join(parts, ".")
}
