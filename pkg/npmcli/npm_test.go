package npmcli

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/npmship/npmship/pkg/errors"
)

// fakeRunner records invocations and replays canned output.
type fakeRunner struct {
	calls  [][]string
	dirs   []string
	output []byte
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	f.dirs = append(f.dirs, dir)
	f.calls = append(f.calls, append([]string{name}, args...))
	return f.output, f.err
}

func TestPack(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "tarballs")
	runner := &fakeRunner{output: []byte(`[{"filename":"publish-1.0.0.tgz","files":[]}]`)}
	npm := New(runner)

	path, err := npm.Pack(t.Context(), "/pkg", dest, "publish", "1.0.0")
	if err != nil {
		t.Fatalf("Pack() error: %v", err)
	}
	if path != filepath.Join(dest, "publish-1.0.0.tgz") {
		t.Errorf("Pack() = %q", path)
	}

	if _, err := os.Stat(dest); err != nil {
		t.Errorf("destination dir not created: %v", err)
	}

	want := []string{"npm", "pack", "--json", "--pack-destination", dest}
	if len(runner.calls) != 1 || !slices.Equal(runner.calls[0], want) {
		t.Errorf("npm invocation = %v, want %v", runner.calls, want)
	}
	if runner.dirs[0] != "/pkg" {
		t.Errorf("run dir = %q, want /pkg", runner.dirs[0])
	}
}

func TestPackFilenameFallback(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		pkg     string
		version string
		want    string
	}{
		{"unparseable output", "npm WARN something", "publish", "1.0.0", "publish-1.0.0.tgz"},
		{"empty report", "[]", "publish", "1.0.0", "publish-1.0.0.tgz"},
		{"scoped fallback", "not json", "@acme/widgets", "2.0.0", "acme-widgets-2.0.0.tgz"},
		{"scoped filename in report", `[{"filename":"@acme/widgets-2.0.0.tgz"}]`, "@acme/widgets", "2.0.0", "acme-widgets-2.0.0.tgz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dest := t.TempDir()
			npm := New(&fakeRunner{output: []byte(tt.output)})
			path, err := npm.Pack(t.Context(), "/pkg", dest, tt.pkg, tt.version)
			if err != nil {
				t.Fatalf("Pack() error: %v", err)
			}
			if filepath.Base(path) != tt.want {
				t.Errorf("tarball = %q, want %q", filepath.Base(path), tt.want)
			}
		})
	}
}

func TestPublish(t *testing.T) {
	runner := &fakeRunner{}
	npm := New(runner)

	err := npm.Publish(t.Context(), "/pkg", "/tmp/publish-1.0.0.tgz", "latest",
		"https://registry.npmjs.org/", "/work/.npmrc")
	if err != nil {
		t.Fatalf("Publish() error: %v", err)
	}

	want := []string{
		"npm", "publish", "/tmp/publish-1.0.0.tgz",
		"--tag", "latest",
		"--registry", "https://registry.npmjs.org/",
		"--userconfig", "/work/.npmrc",
	}
	if len(runner.calls) != 1 || !slices.Equal(runner.calls[0], want) {
		t.Errorf("npm invocation = %v, want %v", runner.calls, want)
	}
}

func TestPublishPropagatesCommandFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New(errors.ErrCodeCommandFailed, "npm publish: E403")}
	npm := New(runner)

	err := npm.Publish(t.Context(), "/pkg", "x.tgz", "latest", "https://registry.npmjs.org/", "")
	if !errors.Is(err, errors.ErrCodeCommandFailed) {
		t.Errorf("Publish() error = %v, want COMMAND_FAILED", err)
	}
}

func TestTarballName(t *testing.T) {
	tests := []struct {
		pkg     string
		version string
		want    string
	}{
		{"publish", "0.0.0", "publish-0.0.0.tgz"},
		{"@acme/widgets", "1.2.3", "acme-widgets-1.2.3.tgz"},
	}
	for _, tt := range tests {
		if got := TarballName(tt.pkg, tt.version); got != tt.want {
			t.Errorf("TarballName(%q, %q) = %q, want %q", tt.pkg, tt.version, got, tt.want)
		}
	}
}

func TestExecRunnerFailure(t *testing.T) {
	r := &ExecRunner{}
	_, err := r.Run(t.Context(), t.TempDir(), "sh", "-c", "echo boom >&2; exit 3")
	if !errors.Is(err, errors.ErrCodeCommandFailed) {
		t.Fatalf("Run() error = %v, want COMMAND_FAILED", err)
	}
	if msg := err.Error(); !strings.Contains(msg, "boom") {
		t.Errorf("error %q should carry stderr output", msg)
	}
}

func TestExecRunnerOutput(t *testing.T) {
	r := &ExecRunner{ExtraEnv: []string{"NPMSHIP_TEST_VAR=42"}}
	out, err := r.Run(t.Context(), t.TempDir(), "sh", "-c", "printf %s \"$NPMSHIP_TEST_VAR\"")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if string(out) != "42" {
		t.Errorf("stdout = %q, want %q", string(out), "42")
	}
}
