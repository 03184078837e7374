package npmcli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/npmship/npmship/pkg/errors"
)

// NPM wraps the npm binary behind a [Runner].
type NPM struct {
	runner Runner
}

// New creates an NPM wrapper. Pass an [ExecRunner] in production.
func New(runner Runner) *NPM {
	return &NPM{runner: runner}
}

// Pack produces a tarball for the package at pkgRoot into dest, creating
// dest if missing, and returns the tarball path.
//
// The filename is taken from npm's own --json report; when that cannot be
// parsed the conventional "<name>-<version>.tgz" (scope flattened) is
// assumed.
func (n *NPM) Pack(ctx context.Context, pkgRoot, dest, name, version string) (string, error) {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "create tarball dir %s", dest)
	}

	out, err := n.runner.Run(ctx, pkgRoot, "npm", "pack", "--json", "--pack-destination", dest)
	if err != nil {
		return "", err
	}

	filename := parsePackOutput(out)
	if filename == "" {
		filename = TarballName(name, version)
	}
	return filepath.Join(dest, filename), nil
}

// Publish uploads a tarball with the given dist-tag and registry. The
// userconfig path points npm at the auth entries already written to the
// working-directory .npmrc.
func (n *NPM) Publish(ctx context.Context, pkgRoot, tarball, tag, registryURL, userconfig string) error {
	args := []string{
		"publish", tarball,
		"--tag", tag,
		"--registry", registryURL,
	}
	if userconfig != "" {
		args = append(args, "--userconfig", userconfig)
	}
	_, err := n.runner.Run(ctx, pkgRoot, "npm", args...)
	return err
}

// TarballName is the conventional npm archive name for a package version:
// "@scope/name" flattens to "scope-name".
func TarballName(name, version string) string {
	flat := strings.TrimPrefix(name, "@")
	flat = strings.ReplaceAll(flat, "/", "-")
	return flat + "-" + version + ".tgz"
}

// parsePackOutput extracts the tarball filename from `npm pack --json`
// output, which is an array with one entry per packed package.
func parsePackOutput(out []byte) string {
	var report []struct {
		Filename string `json:"filename"`
	}
	if err := json.Unmarshal(out, &report); err != nil || len(report) == 0 {
		return ""
	}
	// npm versions differ on whether filename keeps the "@" of a scope.
	return strings.TrimPrefix(strings.ReplaceAll(report[0].Filename, "/", "-"), "@")
}
