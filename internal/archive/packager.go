// Package archive binds a manifest to the data files it describes: it builds
// the zip exchanged between pipeline stages and reads manifests back out of
// archives without touching the data entries.
package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"

	"teamplay/internal/manifest"
)

// MissingEntryError reports referenced files that are absent from the
// working directory at packaging time, or an archive without a manifest
// entry.
type MissingEntryError struct {
	Source  string
	Missing []string
}

func (e *MissingEntryError) Error() string {
	return fmt.Sprintf("%s: missing %s", e.Source, strings.Join(e.Missing, ", "))
}

// Packager builds and reads manifest archives. WorkDir is the directory
// holding the referenced data files; archives are written to OutputDir,
// which defaults to WorkDir.
type Packager struct {
	WorkDir   string
	OutputDir string
	Log       zerolog.Logger

	// now is swapped in tests to pin archive names.
	now func() time.Time
}

func New(workDir, outputDir string, log zerolog.Logger) *Packager {
	if workDir == "" {
		workDir = "."
	}
	if outputDir == "" {
		outputDir = workDir
	}
	return &Packager{WorkDir: workDir, OutputDir: outputDir, Log: log, now: time.Now}
}

// PackageResult describes a successfully written archive.
type PackageResult struct {
	Path    string
	Entries []string
}

// Package writes the manifest and every file of its active list into a new
// archive. Packaging is all-or-nothing: the zip is assembled in a temporary
// file and only renamed into place once every entry has been written, so a
// failure never leaves a partial archive behind.
func (p *Packager) Package(m *manifest.Manifest) (result *PackageResult, err error) {
	files := m.ActiveFiles()

	var missing []string
	for _, name := range files {
		info, statErr := os.Stat(filepath.Join(p.WorkDir, name))
		if statErr != nil || info.IsDir() {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingEntryError{Source: p.WorkDir, Missing: missing}
	}

	text, err := m.ToText()
	if err != nil {
		return nil, err
	}

	name := Name(m, p.now())
	tmp, err := os.CreateTemp(p.OutputDir, ".pkg-*")
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	zw := zip.NewWriter(tmp)
	entries := make([]string, 0, len(files)+1)

	w, err := zw.Create(manifest.Filename)
	if err != nil {
		return nil, fmt.Errorf("add %s: %w", manifest.Filename, err)
	}
	if _, err = io.WriteString(w, text+"\n"); err != nil {
		return nil, fmt.Errorf("add %s: %w", manifest.Filename, err)
	}
	entries = append(entries, manifest.Filename)

	for _, fileName := range files {
		if err = p.addFile(zw, fileName); err != nil {
			return nil, err
		}
		entries = append(entries, fileName)
	}

	if err = zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}

	final := filepath.Join(p.OutputDir, name)
	if err = os.Rename(tmp.Name(), final); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}

	p.Log.Info().Str("archive", name).Int("entries", len(entries)).Msg("archive written")
	return &PackageResult{Path: final, Entries: entries}, nil
}

func (p *Packager) addFile(zw *zip.Writer, name string) error {
	src, err := os.Open(filepath.Join(p.WorkDir, name))
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	defer src.Close()

	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	return nil
}

// ReadManifest loads a manifest from source, which may be either a canonical
// manifest file or an archive. For an archive only the manifest entry is
// read; data files stay packed.
func (p *Packager) ReadManifest(source string) (*manifest.Manifest, error) {
	zr, err := zip.OpenReader(source)
	switch {
	case err == nil:
		defer zr.Close()
		return p.readFromZip(&zr.Reader, source)
	case errors.Is(err, zip.ErrFormat):
		// Not a container, try it as plain manifest text.
		return manifest.FromFile(source)
	default:
		return nil, fmt.Errorf("open %s: %w", source, err)
	}
}

func (p *Packager) readFromZip(zr *zip.Reader, source string) (*manifest.Manifest, error) {
	var candidates []*zip.File
	for _, f := range zr.File {
		if strings.EqualFold(f.Name, manifest.Filename) {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return nil, &MissingEntryError{Source: source, Missing: []string{manifest.Filename}}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Name < candidates[j].Name })
	if len(candidates) > 1 {
		p.Log.Warn().Str("archive", source).Str("using", candidates[0].Name).
			Int("found", len(candidates)).Msg("multiple manifest entries, using the first by name")
	}

	rc, err := candidates[0].Open()
	if err != nil {
		return nil, fmt.Errorf("read %s from %s: %w", candidates[0].Name, source, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s from %s: %w", candidates[0].Name, source, err)
	}
	return manifest.FromText(string(data))
}

// Extract reads the manifest from source and rewrites it as the canonical
// MANIFEST.json in the working directory. The full parse/validate/serialize
// cycle runs, so this both normalizes formatting and rejects invalid
// documents. An existing MANIFEST.json is not overwritten unless force is
// set.
func (p *Packager) Extract(source string, force bool) (*manifest.Manifest, error) {
	m, err := p.ReadManifest(source)
	if err != nil {
		return nil, err
	}

	target := filepath.Join(p.WorkDir, manifest.Filename)
	if !force {
		if _, err := os.Stat(target); err == nil {
			return nil, fmt.Errorf("%s already exists, refusing to overwrite", target)
		}
	}

	text, err := m.ToText()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(target, []byte(text+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", target, err)
	}

	p.Log.Info().Str("source", source).Str("manifest", target).Msg("manifest extracted")
	return m, nil
}
