// Package manifest reads and updates npm package manifests (package.json).
//
// The manifest is re-read on every lifecycle call; nothing is cached.
// Version updates are byte-level splices so that key order, indentation and
// every unrelated field survive the rewrite untouched.
package manifest

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/npmship/npmship/pkg/errors"
)

// Filename is the manifest file name inside a package root.
const Filename = "package.json"

// DefaultTag is the dist-tag used when publishConfig.tag is absent.
const DefaultTag = "latest"

// Manifest is the subset of package.json npmship consumes.
type Manifest struct {
	Name          string         `json:"name"`
	Version       string         `json:"version"`
	PublishConfig *PublishConfig `json:"publishConfig"`
}

// PublishConfig carries the registry and dist-tag overrides a package may
// declare for publishing.
type PublishConfig struct {
	Registry string `json:"registry"`
	Tag      string `json:"tag"`
}

// Registry returns the manifest-declared registry URL, or empty when none.
func (m *Manifest) Registry() string {
	if m.PublishConfig == nil {
		return ""
	}
	return m.PublishConfig.Registry
}

// Tag returns the manifest-declared dist-tag, defaulting to "latest".
func (m *Manifest) Tag() string {
	if m.PublishConfig == nil || strings.TrimSpace(m.PublishConfig.Tag) == "" {
		return DefaultTag
	}
	return m.PublishConfig.Tag
}

// Scope returns the npm scope segment of the package name
// ("@scope/name" yields "@scope"), or empty for unscoped packages.
func (m *Manifest) Scope() string {
	if !strings.HasPrefix(m.Name, "@") {
		return ""
	}
	if scope, _, ok := strings.Cut(m.Name, "/"); ok {
		return scope
	}
	return ""
}

// Load reads <pkgRoot>/package.json.
func Load(pkgRoot string) (*Manifest, error) {
	path := filepath.Join(pkgRoot, Filename)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "read %s", path)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "parse %s", path)
	}
	return &m, nil
}

// WriteVersion rewrites the top-level version field of
// <pkgRoot>/package.json in place, leaving every other byte of the file
// unchanged.
func WriteVersion(pkgRoot, version string) error {
	path := filepath.Join(pkgRoot, Filename)
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidManifest, err, "read %s", path)
	}

	updated, err := spliceVersion(data, version)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidManifest, err, "update version in %s", path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidManifest, err, "stat %s", path)
	}
	return os.WriteFile(path, updated, info.Mode().Perm())
}

// spliceVersion replaces the value of the top-level "version" key by byte
// range, located via decoder offsets so nested "version" keys are ignored.
func spliceVersion(data []byte, version string) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if tok != json.Delim('{') {
		return nil, errors.New(errors.ErrCodeInvalidManifest, "manifest root is not an object")
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := keyTok.(string)
		keyEnd := dec.InputOffset()

		// Consume the value regardless so the decoder stays aligned.
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		if key != "version" {
			continue
		}
		valueEnd := dec.InputOffset()

		// The value starts after the colon that follows the key token.
		seg := data[keyEnd:valueEnd]
		colon := bytes.IndexByte(seg, ':')
		if colon < 0 {
			return nil, errors.New(errors.ErrCodeInvalidManifest, "malformed version field")
		}
		start := colon + 1
		for start < len(seg) && isJSONSpace(seg[start]) {
			start++
		}
		valueStart := keyEnd + int64(start)

		var out bytes.Buffer
		out.Grow(len(data) + len(version))
		out.Write(data[:valueStart])
		out.WriteByte('"')
		out.WriteString(version)
		out.WriteByte('"')
		out.Write(data[valueEnd:])
		return out.Bytes(), nil
	}

	return nil, errors.New(errors.ErrCodeInvalidManifest, "no version field in manifest")
}

func isJSONSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
