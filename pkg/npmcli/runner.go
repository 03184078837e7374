// Package npmcli invokes the external npm binary for pack and publish.
//
// All non-trivial behavior (dependency resolution, tarball format, the
// registry publish protocol) belongs to npm itself; this package only
// builds argument lists, runs the tool, and interprets its output. The
// [Runner] seam exists so tests can substitute a fake npm.
package npmcli

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/npmship/npmship/pkg/errors"
)

// Runner executes an external command in a directory and returns its
// stdout. Implementations must fold stderr into the returned error on
// failure.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec. Extra environment entries are
// appended to the inherited process environment, letting callers point
// npm_config_userconfig at the working-directory .npmrc.
type ExecRunner struct {
	ExtraEnv []string
}

// Run implements [Runner].
func (r *ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), r.ExtraEnv...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		return nil, errors.Wrap(errors.ErrCodeCommandFailed, err,
			"%s %s: %s", name, strings.Join(args, " "), detail)
	}
	return stdout.Bytes(), nil
}
