// Package release implements the npmship lifecycle steps consumed by a
// release orchestrator: verify conditions, prepare, and publish.
//
// Each step re-reads the plugin options and the package manifest; no state
// is cached across calls. The only persistent state is the auth entry
// appended to the working-directory .npmrc, which later steps in the same
// run re-use from disk.
//
// Collaborators (command runner, registry client, logger) are injected so
// tests can substitute fakes; the package itself never reads ambient
// environment state.
package release

import (
	"context"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/npmship/npmship/pkg/config"
	"github.com/npmship/npmship/pkg/manifest"
	"github.com/npmship/npmship/pkg/npmcli"
	"github.com/npmship/npmship/pkg/npmreg"
	"github.com/npmship/npmship/pkg/npmrc"
	"github.com/npmship/npmship/pkg/observability"
)

// Step names reported through observability hooks.
const (
	StepVerify  = "verifyConditions"
	StepPrepare = "prepare"
	StepPublish = "publish"
)

// Artifact describes a successful publish for the surrounding
// orchestrator's release notes.
type Artifact struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Verifier probes a registry for the identity behind a credential.
// Satisfied by [npmreg.Client].
type Verifier interface {
	Whoami(ctx context.Context, registryURL string, auth npmreg.Auth) (string, error)
}

// Plugin bundles the injected collaborators for a release run.
type Plugin struct {
	logger   *log.Logger
	npm      *npmcli.NPM
	registry Verifier
	env      config.Env
	cwd      string
}

// New creates a Plugin.
//
// cwd is the release working directory: the .npmrc auth file is written
// there, and relative pkgRoot/tarballDir options resolve against it.
func New(logger *log.Logger, runner npmcli.Runner, reg Verifier, env config.Env, cwd string) *Plugin {
	if logger == nil {
		logger = log.Default()
	}
	return &Plugin{
		logger:   logger,
		npm:      npmcli.New(runner),
		registry: reg,
		env:      env,
		cwd:      cwd,
	}
}

// pkgDir resolves the package root against the working directory.
func (p *Plugin) pkgDir(opts config.Options) string {
	if opts.PkgRoot == "" {
		return p.cwd
	}
	if filepath.IsAbs(opts.PkgRoot) {
		return opts.PkgRoot
	}
	return filepath.Join(p.cwd, opts.PkgRoot)
}

// rcPath is the working-directory auth file written by EnsureAuth.
func (p *Plugin) rcPath() string {
	return filepath.Join(p.cwd, npmrc.Filename)
}

// validate runs option-shape validation against a freshly loaded manifest.
// All violations are raised together; the manifest pointer is nil when the
// manifest itself could not be read (reported as a missing package name).
func (p *Plugin) validate(raw map[string]any) (config.Options, *manifest.Manifest, error) {
	// Package root may itself be an option, so extract it leniently
	// before full validation to know where the manifest lives.
	dir := p.cwd
	if v, ok := raw[config.KeyPkgRoot].(string); ok && v != "" {
		if filepath.IsAbs(v) {
			dir = v
		} else {
			dir = filepath.Join(p.cwd, v)
		}
	}

	name := ""
	man, err := manifest.Load(dir)
	if err == nil {
		name = man.Name
	} else {
		p.logger.Debugf("manifest not readable at %s: %v", dir, err)
		man = nil
	}

	opts, verr := config.Validate(raw, name)
	if verr != nil {
		return config.Options{}, nil, verr
	}
	return opts, man, nil
}

// step wraps a lifecycle step with observability events.
func (p *Plugin) step(ctx context.Context, name string, fn func() error) error {
	hooks := observability.Release()
	hooks.OnStepStart(ctx, name)
	start := time.Now()
	err := fn()
	hooks.OnStepComplete(ctx, name, time.Since(start), err)
	return err
}
