// Package config holds npmship's plugin options and environment snapshot.
//
// Options arrive untyped (a TOML config file merged with CLI flag
// overrides) and are validated for shape before any lifecycle step runs.
// The process environment is captured once at entry into an explicit [Env]
// value; no other package reads ambient environment state.
package config

import (
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/npmship/npmship/pkg/errors"
)

// Option keys accepted in the config file and as flag overrides.
const (
	KeyNpmPublish = "npmPublish"
	KeyTarballDir = "tarballDir"
	KeyPkgRoot    = "pkgRoot"
)

// Options is the typed view of validated plugin options.
// Absent fields mean "use the surrounding defaults": publish enabled,
// no tarball directory, package root is the working directory.
type Options struct {
	NpmPublish *bool  // nil means enabled
	TarballDir string // where to place the packed tarball; empty keeps none
	PkgRoot    string // package directory relative to the working dir
}

// PublishEnabled reports whether publishing is on for this run.
// Publishing is on unless npmPublish is explicitly false.
func (o Options) PublishEnabled() bool {
	return o.NpmPublish == nil || *o.NpmPublish
}

// LoadFile reads a TOML options file into an untyped map.
// A missing file is not an error; it yields an empty map so flag
// overrides can still apply.
func LoadFile(path string) (map[string]any, error) {
	raw := map[string]any{}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return raw, nil
	}
	if err != nil {
		return nil, err
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidOptions, err, "parse options file %s", path)
	}
	return raw, nil
}

// Validate checks the shape of raw options and the manifest name, and
// returns the typed options.
//
// Every violated constraint is collected; nothing fails fast. The
// collection order is fixed: publish toggle, tarball directory, package
// root, missing package name. Downstream automation displays all errors in
// one pass, so the full set must always be reported together.
func Validate(raw map[string]any, manifestName string) (Options, error) {
	var opts Options
	var verrs errors.ValidationErrors

	if v, ok := raw[KeyNpmPublish]; ok {
		if b, ok := v.(bool); ok {
			opts.NpmPublish = &b
		} else {
			verrs = append(verrs, errors.New(errors.ErrCodeInvalidNpmPublish,
				"invalid npmPublish option: expected a boolean, got %T (%v)", v, v))
		}
	}

	if v, ok := raw[KeyTarballDir]; ok {
		if s, ok := v.(string); ok {
			opts.TarballDir = s
		} else {
			verrs = append(verrs, errors.New(errors.ErrCodeInvalidTarballDir,
				"invalid tarballDir option: expected a string, got %T (%v)", v, v))
		}
	}

	if v, ok := raw[KeyPkgRoot]; ok {
		if s, ok := v.(string); ok {
			opts.PkgRoot = s
		} else {
			verrs = append(verrs, errors.New(errors.ErrCodeInvalidPkgRoot,
				"invalid pkgRoot option: expected a string, got %T (%v)", v, v))
		}
	}

	if strings.TrimSpace(manifestName) == "" {
		verrs = append(verrs, errors.New(errors.ErrCodeNoPkgName,
			"missing name property in package.json"))
	}

	if err := verrs.ErrOrNil(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// Env is an explicit snapshot of the environment variables npmship
// consumes. It is assembled once at process entry and passed by value into
// each component.
type Env struct {
	Token           string // NPM_TOKEN: bearer token credential
	Username        string // NPM_USERNAME: legacy credential triple
	Password        string // NPM_PASSWORD
	Email           string // NPM_EMAIL
	ConfigRegistry  string // NPM_CONFIG_REGISTRY: npm CLI registry override
	DefaultRegistry string // NPMSHIP_REGISTRY: fallback when nothing else sets one
}

// FromEnviron builds an Env from an environ list ("KEY=VALUE" pairs),
// typically os.Environ().
func FromEnviron(environ []string) Env {
	vars := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	return Env{
		Token:           vars["NPM_TOKEN"],
		Username:        vars["NPM_USERNAME"],
		Password:        vars["NPM_PASSWORD"],
		Email:           vars["NPM_EMAIL"],
		ConfigRegistry:  vars["NPM_CONFIG_REGISTRY"],
		DefaultRegistry: vars["NPMSHIP_REGISTRY"],
	}
}

// HasTriple reports whether the legacy username/password/email credential
// triple is fully present.
func (e Env) HasTriple() bool {
	return e.Username != "" && e.Password != "" && e.Email != ""
}
