package release

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/npmship/npmship/pkg/config"
	"github.com/npmship/npmship/pkg/manifest"
	"github.com/npmship/npmship/pkg/npmcli"
	"github.com/npmship/npmship/pkg/npmreg"
	"github.com/npmship/npmship/pkg/observability"
	"github.com/npmship/npmship/pkg/registry"
)

// VerifyConditions is the pre-flight check: validate options and manifest
// shape, resolve and persist a registry credential, and probe the default
// registry to confirm the credential is accepted.
//
// The whoami probe runs only against the well-known default registry;
// third-party registries cannot be probed generically. It is also skipped
// when publishing is disabled for the run or when a yarn-managed registry
// override is active.
func (p *Plugin) VerifyConditions(ctx context.Context, raw map[string]any) error {
	return p.step(ctx, StepVerify, func() error {
		opts, man, err := p.validate(raw)
		if err != nil {
			return err
		}

		if !opts.PublishEnabled() {
			p.logger.Infof("npm publish is disabled; skipping credential verification")
			return nil
		}

		regURL, auth, err := p.ensureAuth(opts, man)
		if err != nil {
			return err
		}
		if auth == (npmreg.Auth{}) {
			// Custom registry run without a resolvable credential; the
			// registry itself decides at publish time.
			return nil
		}

		if !registry.IsDefault(regURL) {
			p.logger.Debugf("registry %s is not the default registry; skipping whoami probe", regURL)
			return nil
		}
		if registry.YarnOverride(p.env) {
			p.logger.Debugf("yarn-managed registry override active; skipping whoami probe")
			return nil
		}

		username, err := p.registry.Whoami(ctx, regURL, auth)
		observability.Release().OnRegistryCall(ctx, regURL, "whoami", err)
		if err != nil {
			return err
		}
		p.logger.Infof("verified npm credential for %s as %s", regURL, username)
		return nil
	})
}

// Prepare writes the release version into the package manifest and, when
// a tarball directory is configured, packs the distributable archive into
// it.
func (p *Plugin) Prepare(ctx context.Context, raw map[string]any, version string) error {
	return p.step(ctx, StepPrepare, func() error {
		opts, man, err := p.validate(raw)
		if err != nil {
			return err
		}

		dir := p.pkgDir(opts)
		if err := manifest.WriteVersion(dir, version); err != nil {
			return err
		}
		p.logger.Infof("wrote version %s to %s", version, filepath.Join(dir, manifest.Filename))

		if opts.TarballDir != "" {
			dest := p.resolveDir(opts.TarballDir)
			path, err := p.npm.Pack(ctx, dir, dest, man.Name, version)
			if err != nil {
				return err
			}
			p.logger.Infof("packed tarball %s", path)
		}
		return nil
	})
}

// Publish uploads the package to the resolved registry under the
// manifest's dist-tag and returns the release artifact descriptor, or nil
// when publishing is disabled for this run.
func (p *Plugin) Publish(ctx context.Context, raw map[string]any, version string) (*Artifact, error) {
	var artifact *Artifact
	err := p.step(ctx, StepPublish, func() error {
		opts, man, err := p.validate(raw)
		if err != nil {
			return err
		}

		if !opts.PublishEnabled() {
			p.logger.Infof("npm publish is disabled; nothing published")
			return nil
		}

		regURL, _, err := p.ensureAuth(opts, man)
		if err != nil {
			return err
		}

		dir := p.pkgDir(opts)
		tag := man.Tag()

		tarball, cleanup, err := p.stageTarball(ctx, opts, man, dir, version)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := p.npm.Publish(ctx, dir, tarball, tag, regURL, p.rcPath()); err != nil {
			return err
		}

		artifact = &Artifact{Name: fmt.Sprintf("npm package (@%s dist-tag)", tag)}
		if registry.IsDefault(regURL) {
			artifact.URL = registry.PackageURL(man.Name, version)
		}
		p.logger.Infof("published %s@%s to %s with dist-tag %s", man.Name, version, regURL, tag)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

// stageTarball returns the archive to publish. With a configured tarball
// directory the archive packed during prepare is re-used (or packed now if
// absent). Otherwise the archive is packed into a temp directory and
// removed after publishing, so the package root never accumulates
// tarballs.
func (p *Plugin) stageTarball(ctx context.Context, opts config.Options, man *manifest.Manifest, dir, version string) (string, func(), error) {
	noop := func() {}

	if opts.TarballDir != "" {
		dest := p.resolveDir(opts.TarballDir)
		path := filepath.Join(dest, npmcli.TarballName(man.Name, version))
		if _, err := os.Stat(path); err == nil {
			return path, noop, nil
		}
		path, err := p.npm.Pack(ctx, dir, dest, man.Name, version)
		return path, noop, err
	}

	tmp, err := os.MkdirTemp("", "npmship-")
	if err != nil {
		return "", noop, err
	}
	path, err := p.npm.Pack(ctx, dir, tmp, man.Name, version)
	if err != nil {
		os.RemoveAll(tmp)
		return "", noop, err
	}
	return path, func() { os.RemoveAll(tmp) }, nil
}

// resolveDir resolves a possibly relative option path against the working
// directory.
func (p *Plugin) resolveDir(dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(p.cwd, dir)
}
