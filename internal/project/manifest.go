// SPDX-License-Identifier: MPL-2.0

package project

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ManifestFileName is the file that marks a project root.
const ManifestFileName = "Gallus.toml"

var (
	// ErrManifestNotFound is returned when no ancestor directory holds a manifest.
	ErrManifestNotFound = errors.New("manifest not found")
	// ErrInvalidManifest is the sentinel wrapped by every manifest content error.
	ErrInvalidManifest = errors.New("invalid manifest")
)

type (
	// Manifest is the decoded project descriptor.
	Manifest struct {
		// Root is the directory holding the manifest.
		Root         string            `json:"root" yaml:"root"`
		Name         string            `json:"name" yaml:"name"`
		Version      string            `json:"version" yaml:"version"`
		Authors      []string          `json:"authors,omitempty" yaml:"authors,omitempty"`
		Dependencies map[string]string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	}

	// ManifestNotFoundError is returned by FindRoot when the walk reaches the
	// filesystem root without finding a manifest.
	ManifestNotFoundError struct {
		Start string
	}

	// MissingKeyError reports a required key absent from the manifest.
	MissingKeyError struct {
		Path string
		Key  string
	}

	// TypeMismatchError reports a key whose value has the wrong TOML type.
	TypeMismatchError struct {
		Path string
		Key  string
		Want string
		Got  string
	}

	// SyntaxError reports a manifest that is not valid TOML.
	SyntaxError struct {
		Path   string
		Line   int
		Column int
		Err    error
	}
)

// Error implements the error interface.
func (e *ManifestNotFoundError) Error() string {
	return fmt.Sprintf("no %s found in %s or any parent directory", ManifestFileName, e.Start)
}

// Unwrap returns ErrManifestNotFound for errors.Is() compatibility.
func (e *ManifestNotFoundError) Unwrap() error { return ErrManifestNotFound }

// Error implements the error interface.
func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("%s: missing required key %q", e.Path, e.Key)
}

// Unwrap returns ErrInvalidManifest for errors.Is() compatibility.
func (e *MissingKeyError) Unwrap() error { return ErrInvalidManifest }

// Error implements the error interface.
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: key %q must be %s, found %s", e.Path, e.Key, e.Want, e.Got)
}

// Unwrap returns ErrInvalidManifest for errors.Is() compatibility.
func (e *TypeMismatchError) Unwrap() error { return ErrInvalidManifest }

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %v", e.Path, e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap returns both ErrInvalidManifest and the decoder error.
func (e *SyntaxError) Unwrap() []error { return []error{ErrInvalidManifest, e.Err} }

// FindRoot walks up from start until it finds a directory holding the manifest.
func FindRoot(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", start, err)
	}
	for dir := abs; ; {
		info, err := os.Stat(filepath.Join(dir, ManifestFileName))
		switch {
		case err == nil && !info.IsDir():
			return dir, nil
		case err != nil && !errors.Is(err, os.ErrNotExist):
			return "", fmt.Errorf("look for manifest in %s: %w", dir, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", &ManifestNotFoundError{Start: abs}
		}
		dir = parent
	}
}

// Load reads and validates the manifest in root.
func Load(root string) (*Manifest, error) {
	path := filepath.Join(root, ManifestFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &ManifestNotFoundError{Start: root}
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := Parse(data, path)
	if err != nil {
		return nil, err
	}
	m.Root = root
	return m, nil
}

// Parse decodes manifest content. path is only used in error messages.
func Parse(data []byte, path string) (*Manifest, error) {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		syntaxErr := &SyntaxError{Path: path, Err: err}
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			syntaxErr.Line, syntaxErr.Column = decodeErr.Position()
		}
		return nil, syntaxErr
	}

	d := decoder{path: path}
	pkg, err := d.table(doc, "package", true)
	if err != nil {
		return nil, err
	}

	m := &Manifest{}
	if m.Name, err = d.str(pkg, "package.name"); err != nil {
		return nil, err
	}
	if m.Version, err = d.str(pkg, "package.version"); err != nil {
		return nil, err
	}
	if m.Authors, err = d.stringList(pkg, "package.authors"); err != nil {
		return nil, err
	}

	deps, err := d.table(doc, "dependencies", false)
	if err != nil {
		return nil, err
	}
	if len(deps) > 0 {
		m.Dependencies = make(map[string]string, len(deps))
		for _, name := range slices.Sorted(maps.Keys(deps)) {
			req, ok := deps[name].(string)
			if !ok {
				return nil, d.mismatch("dependencies."+name, "a string", deps[name])
			}
			m.Dependencies[name] = req
		}
	}
	return m, nil
}

type decoder struct {
	path string
}

func (d decoder) table(parent map[string]any, key string, required bool) (map[string]any, error) {
	raw, ok := parent[key]
	if !ok {
		if required {
			return nil, &MissingKeyError{Path: d.path, Key: key}
		}
		return nil, nil
	}
	t, ok := raw.(map[string]any)
	if !ok {
		return nil, d.mismatch(key, "a table", raw)
	}
	return t, nil
}

// str reads a required string. key is the dotted path; its last segment is looked up in t.
func (d decoder) str(t map[string]any, key string) (string, error) {
	raw, ok := t[leaf(key)]
	if !ok {
		return "", &MissingKeyError{Path: d.path, Key: key}
	}
	s, ok := raw.(string)
	if !ok {
		return "", d.mismatch(key, "a string", raw)
	}
	return s, nil
}

// stringList reads an optional array of strings.
func (d decoder) stringList(t map[string]any, key string) ([]string, error) {
	raw, ok := t[leaf(key)]
	if !ok {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, d.mismatch(key, "an array of strings", raw)
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, d.mismatch(fmt.Sprintf("%s[%d]", key, i), "a string", item)
		}
		out = append(out, s)
	}
	return out, nil
}

func (d decoder) mismatch(key, want string, got any) error {
	return &TypeMismatchError{Path: d.path, Key: key, Want: want, Got: tomlType(got)}
}

func leaf(key string) string {
	return key[strings.LastIndexByte(key, '.')+1:]
}

func tomlType(v any) string {
	switch v.(type) {
	case string:
		return "a string"
	case int64:
		return "an integer"
	case float64:
		return "a float"
	case bool:
		return "a boolean"
	case []any:
		return "an array"
	case map[string]any:
		return "a table"
	default:
		return "a datetime"
	}
}
