package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound reports that the manifest file does not exist.
var ErrNotFound = errors.New("manifest not found")

// ErrInvalidFormat reports that the manifest file exists but is not a
// structurally valid manifest in any supported layout.
var ErrInvalidFormat = errors.New("invalid manifest format")

// FormatError carries the individual problems found in a manifest so an
// operator can fix the document without reading source.
type FormatError struct {
	Path     string
	Problems []string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%v: %s: %s", ErrInvalidFormat, e.Path, strings.Join(e.Problems, "; "))
}

func (e *FormatError) Unwrap() error {
	return ErrInvalidFormat
}

// Load reads and decodes the manifest at path. A version-2 document is
// validated against the embedded schema; a version-1 document (or one with
// no version tag at all) goes through the legacy migrating decoder.
func Load(path string) (*RunManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	// A truncated or garbled file (e.g. a crash mid-write under the old
	// non-atomic writer) must surface as InvalidFormat, never a retry loop.
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &FormatError{Path: path, Problems: []string{fmt.Sprintf("JSON parse error: %v", err)}}
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, &FormatError{Path: path, Problems: []string{"top-level value is not an object"}}
	}

	version, _ := obj["schemaVersion"].(string)
	switch version {
	case SchemaVersionCurrent:
		if problems := validateAgainstSchema(doc); len(problems) > 0 {
			return nil, &FormatError{Path: path, Problems: problems}
		}
		var m RunManifest
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, &FormatError{Path: path, Problems: []string{fmt.Sprintf("decoding manifest: %v", err)}}
		}
		return &m, nil

	case SchemaVersionLegacy, "":
		// No version tag is treated as legacy for backward compatibility.
		var lm legacyManifest
		if err := json.Unmarshal(data, &lm); err != nil {
			return nil, &FormatError{Path: path, Problems: []string{fmt.Sprintf("decoding legacy manifest: %v", err)}}
		}
		if problems := lm.requiredProblems(); len(problems) > 0 {
			return nil, &FormatError{Path: path, Problems: problems}
		}
		m := lm.migrate()
		if problems := relativityProblems(m); len(problems) > 0 {
			return nil, &FormatError{Path: path, Problems: problems}
		}
		return m, nil

	default:
		return nil, &FormatError{Path: path, Problems: []string{fmt.Sprintf("unsupported schemaVersion %q", version)}}
	}
}

// Save writes the manifest to path in the current layout, creating parent
// directories as needed. The write goes through a temp file in the same
// directory followed by a rename, so a reader never observes a partially
// written manifest.
func Save(m *RunManifest, path string) error {
	if problems := relativityProblems(m); len(problems) > 0 {
		return &FormatError{Path: path, Problems: problems}
	}

	out := *m
	out.SchemaVersion = SchemaVersionCurrent

	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating manifest directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".run-manifest-*.json")
	if err != nil {
		return fmt.Errorf("creating temp manifest: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()          //nolint:errcheck
		os.Remove(tmpName)   //nolint:errcheck
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return fmt.Errorf("closing temp manifest: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return fmt.Errorf("setting manifest permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return fmt.Errorf("replacing manifest: %w", err)
	}
	return nil
}

// relativityProblems reports every declared path that is absolute. An
// absolute path must never be persisted.
func relativityProblems(m *RunManifest) []string {
	var problems []string
	for _, f := range m.pathFields() {
		if !isRelative(f.Path) {
			problems = append(problems, fmt.Sprintf("/%s: absolute path %q not allowed", f.Name, f.Path))
		}
	}
	return problems
}
