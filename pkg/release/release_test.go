package release

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/npmship/npmship/pkg/config"
	"github.com/npmship/npmship/pkg/errors"
	"github.com/npmship/npmship/pkg/manifest"
	"github.com/npmship/npmship/pkg/npmreg"
	"github.com/npmship/npmship/pkg/npmrc"
)

type call struct {
	dir  string
	name string
	args []string
}

type fakeRunner struct {
	calls []call
	out   []byte
	err   error
}

func (f *fakeRunner) Run(_ context.Context, dir, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, call{dir: dir, name: name, args: args})
	return f.out, f.err
}

type fakeVerifier struct {
	calls []string
	user  string
	err   error
}

func (f *fakeVerifier) Whoami(_ context.Context, registryURL string, _ npmreg.Auth) (string, error) {
	f.calls = append(f.calls, registryURL)
	if f.err != nil {
		return "", f.err
	}
	return f.user, nil
}

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, manifest.Filename), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newPlugin(t *testing.T, cwd string, env config.Env, runner *fakeRunner, verifier *fakeVerifier) *Plugin {
	t.Helper()
	return New(log.New(io.Discard), runner, verifier, env, cwd)
}

func TestVerifyPublishDisabledNeverRequiresCredentials(t *testing.T) {
	cwd := t.TempDir()
	writeManifest(t, cwd, `{"name":"pkg","version":"0.0.0"}`)

	runner := &fakeRunner{}
	verifier := &fakeVerifier{user: "alice"}
	p := newPlugin(t, cwd, config.Env{}, runner, verifier)

	raw := map[string]any{config.KeyNpmPublish: false}
	if err := p.VerifyConditions(context.Background(), raw); err != nil {
		t.Fatalf("VerifyConditions() error = %v, want nil", err)
	}
	if len(verifier.calls) != 0 {
		t.Errorf("whoami calls = %v, want none", verifier.calls)
	}
	if _, err := os.Stat(filepath.Join(cwd, npmrc.Filename)); !os.IsNotExist(err) {
		t.Error("auth file written for a publish-disabled run")
	}
}

func TestVerifyAggregatesAllViolationsInOrder(t *testing.T) {
	cwd := t.TempDir() // no package.json

	p := newPlugin(t, cwd, config.Env{Token: "npm_tok"}, &fakeRunner{}, &fakeVerifier{})

	raw := map[string]any{
		config.KeyNpmPublish: "yes",
		config.KeyTarballDir: 42,
		config.KeyPkgRoot:    true,
	}
	err := p.VerifyConditions(context.Background(), raw)
	if err == nil {
		t.Fatal("VerifyConditions() error = nil, want validation errors")
	}

	verrs, ok := err.(errors.ValidationErrors)
	if !ok {
		t.Fatalf("error type = %T, want errors.ValidationErrors", err)
	}
	want := []errors.Code{
		errors.ErrCodeInvalidNpmPublish,
		errors.ErrCodeInvalidTarballDir,
		errors.ErrCodeInvalidPkgRoot,
		errors.ErrCodeNoPkgName,
	}
	got := verrs.Codes()
	if len(got) != len(want) {
		t.Fatalf("codes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("codes[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestVerifyMissingCredential(t *testing.T) {
	cwd := t.TempDir()
	writeManifest(t, cwd, `{"name":"pkg","version":"0.0.0"}`)

	verifier := &fakeVerifier{}
	p := newPlugin(t, cwd, config.Env{}, &fakeRunner{}, verifier)

	err := p.VerifyConditions(context.Background(), map[string]any{})
	if errors.GetCode(err) != errors.ErrCodeNoToken {
		t.Fatalf("error = %v, want code %s", err, errors.ErrCodeNoToken)
	}
	if len(verifier.calls) != 0 {
		t.Errorf("whoami calls = %v, want none", verifier.calls)
	}
}

func TestVerifyWritesTokenAndProbesDefaultRegistry(t *testing.T) {
	cwd := t.TempDir()
	writeManifest(t, cwd, `{"name":"pkg","version":"0.0.0"}`)

	verifier := &fakeVerifier{user: "alice"}
	p := newPlugin(t, cwd, config.Env{Token: "npm_secret"}, &fakeRunner{}, verifier)

	if err := p.VerifyConditions(context.Background(), map[string]any{}); err != nil {
		t.Fatalf("VerifyConditions() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(cwd, npmrc.Filename))
	if err != nil {
		t.Fatalf("read auth file: %v", err)
	}
	wantLine := "//registry.npmjs.org/:_authToken = npm_secret"
	if !strings.Contains(string(data), wantLine) {
		t.Errorf("auth file = %q, want line %q", data, wantLine)
	}

	if len(verifier.calls) != 1 || verifier.calls[0] != "https://registry.npmjs.org/" {
		t.Errorf("whoami calls = %v, want one against the default registry", verifier.calls)
	}

	// A second verify re-uses the on-disk entry instead of appending again.
	if err := p.VerifyConditions(context.Background(), map[string]any{}); err != nil {
		t.Fatalf("second VerifyConditions() error = %v", err)
	}
	again, err := os.ReadFile(filepath.Join(cwd, npmrc.Filename))
	if err != nil {
		t.Fatal(err)
	}
	if string(again) != string(data) {
		t.Errorf("auth file changed on second verify:\nbefore %q\nafter  %q", data, again)
	}
}

func TestVerifyRejectedTokenStillWritesAuthFile(t *testing.T) {
	cwd := t.TempDir()
	writeManifest(t, cwd, `{"name":"pkg","version":"0.0.0"}`)

	verifier := &fakeVerifier{err: errors.New(errors.ErrCodeInvalidToken, "rejected")}
	p := newPlugin(t, cwd, config.Env{Token: "npm_bad"}, &fakeRunner{}, verifier)

	err := p.VerifyConditions(context.Background(), map[string]any{})
	if errors.GetCode(err) != errors.ErrCodeInvalidToken {
		t.Fatalf("error = %v, want code %s", err, errors.ErrCodeInvalidToken)
	}
	if _, err := os.Stat(filepath.Join(cwd, npmrc.Filename)); err != nil {
		t.Error("auth file missing; the credential must be persisted before verification")
	}
}

func TestVerifyCustomRegistrySkipsProbe(t *testing.T) {
	cwd := t.TempDir()
	writeManifest(t, cwd, `{
  "name": "pkg",
  "version": "0.0.0",
  "publishConfig": {"registry": "https://npm.corp.example"}
}`)

	verifier := &fakeVerifier{}
	p := newPlugin(t, cwd, config.Env{}, &fakeRunner{}, verifier)

	// Without a credential a custom-registry run still verifies clean.
	if err := p.VerifyConditions(context.Background(), map[string]any{}); err != nil {
		t.Fatalf("VerifyConditions() error = %v, want nil", err)
	}
	if len(verifier.calls) != 0 {
		t.Errorf("whoami calls = %v, want none", verifier.calls)
	}

	// With a credential the entry is written under the custom nerf dart,
	// but the registry is still not probed.
	p = newPlugin(t, cwd, config.Env{Token: "npm_corp"}, &fakeRunner{}, verifier)
	if err := p.VerifyConditions(context.Background(), map[string]any{}); err != nil {
		t.Fatalf("VerifyConditions() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(cwd, npmrc.Filename))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "//npm.corp.example/:_authToken = npm_corp") {
		t.Errorf("auth file = %q, want custom-registry entry", data)
	}
	if len(verifier.calls) != 0 {
		t.Errorf("whoami calls = %v, want none for a custom registry", verifier.calls)
	}
}

func TestVerifyYarnOverrideSkipsProbe(t *testing.T) {
	cwd := t.TempDir()
	writeManifest(t, cwd, `{"name":"pkg","version":"0.0.0"}`)

	verifier := &fakeVerifier{}
	env := config.Env{Token: "npm_secret", ConfigRegistry: "https://registry.yarnpkg.com"}
	p := newPlugin(t, cwd, env, &fakeRunner{}, verifier)

	if err := p.VerifyConditions(context.Background(), map[string]any{}); err != nil {
		t.Fatalf("VerifyConditions() error = %v", err)
	}
	if len(verifier.calls) != 0 {
		t.Errorf("whoami calls = %v, want none under a yarn registry override", verifier.calls)
	}
	// The yarn mirror is ignored during resolution, so the entry targets
	// the default registry.
	data, err := os.ReadFile(filepath.Join(cwd, npmrc.Filename))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "//registry.npmjs.org/") {
		t.Errorf("auth file = %q, want default-registry entry", data)
	}
}

func TestPrepareWritesVersionAndPacks(t *testing.T) {
	cwd := t.TempDir()
	writeManifest(t, cwd, `{"name":"pkg","version":"0.0.0"}`)

	runner := &fakeRunner{out: []byte(`[{"filename":"pkg-1.2.3.tgz"}]`)}
	p := newPlugin(t, cwd, config.Env{Token: "npm_secret"}, runner, &fakeVerifier{})

	raw := map[string]any{config.KeyTarballDir: "dist"}
	if err := p.Prepare(context.Background(), raw, "1.2.3"); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	man, err := manifest.Load(cwd)
	if err != nil {
		t.Fatal(err)
	}
	if man.Version != "1.2.3" {
		t.Errorf("manifest version = %q, want 1.2.3", man.Version)
	}

	if len(runner.calls) != 1 {
		t.Fatalf("runner calls = %d, want 1", len(runner.calls))
	}
	c := runner.calls[0]
	if c.name != "npm" || c.args[0] != "pack" {
		t.Errorf("call = %s %v, want npm pack", c.name, c.args)
	}
	wantDest := filepath.Join(cwd, "dist")
	if c.args[len(c.args)-1] != wantDest {
		t.Errorf("pack destination = %s, want %s", c.args[len(c.args)-1], wantDest)
	}
	if _, err := os.Stat(wantDest); err != nil {
		t.Errorf("tarball dir not created: %v", err)
	}
}

func TestPrepareWithoutTarballDirOnlyUpdatesManifest(t *testing.T) {
	cwd := t.TempDir()
	writeManifest(t, cwd, `{"name":"pkg","version":"0.0.0"}`)

	runner := &fakeRunner{}
	p := newPlugin(t, cwd, config.Env{}, runner, &fakeVerifier{})

	if err := p.Prepare(context.Background(), map[string]any{}, "2.0.0"); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if len(runner.calls) != 0 {
		t.Errorf("runner calls = %v, want none", runner.calls)
	}
}

func TestPublishDefaultRegistry(t *testing.T) {
	cwd := t.TempDir()
	writeManifest(t, cwd, `{"name":"pkg","version":"1.2.3"}`)

	runner := &fakeRunner{}
	p := newPlugin(t, cwd, config.Env{Token: "npm_secret"}, runner, &fakeVerifier{})

	artifact, err := p.Publish(context.Background(), map[string]any{}, "1.2.3")
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if artifact == nil {
		t.Fatal("artifact = nil")
	}
	if artifact.Name != "npm package (@latest dist-tag)" {
		t.Errorf("artifact name = %q", artifact.Name)
	}
	if artifact.URL != "https://www.npmjs.com/package/pkg/v/1.2.3" {
		t.Errorf("artifact url = %q", artifact.URL)
	}

	// pack into a temp dir, then publish.
	if len(runner.calls) != 2 {
		t.Fatalf("runner calls = %d, want pack then publish", len(runner.calls))
	}
	pub := runner.calls[1]
	if pub.args[0] != "publish" {
		t.Fatalf("second call = %v, want publish", pub.args)
	}
	tarball := pub.args[1]
	if filepath.Dir(tarball) == cwd {
		t.Errorf("tarball %s staged in the package root", tarball)
	}
	if _, err := os.Stat(filepath.Dir(tarball)); !os.IsNotExist(err) {
		t.Errorf("temp tarball dir %s not cleaned up", filepath.Dir(tarball))
	}
	joined := strings.Join(pub.args, " ")
	for _, want := range []string{
		"--tag latest",
		"--registry https://registry.npmjs.org/",
		"--userconfig " + filepath.Join(cwd, npmrc.Filename),
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("publish args %q missing %q", joined, want)
		}
	}
	if _, err := os.Stat(filepath.Join(cwd, "pkg-1.2.3.tgz")); !os.IsNotExist(err) {
		t.Error("archive left in the package root")
	}
}

func TestPublishDisabledReturnsNoArtifact(t *testing.T) {
	cwd := t.TempDir()
	writeManifest(t, cwd, `{"name":"pkg","version":"1.2.3"}`)

	runner := &fakeRunner{}
	p := newPlugin(t, cwd, config.Env{}, runner, &fakeVerifier{})

	raw := map[string]any{config.KeyNpmPublish: false}
	artifact, err := p.Publish(context.Background(), raw, "1.2.3")
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if artifact != nil {
		t.Errorf("artifact = %+v, want nil", artifact)
	}
	if len(runner.calls) != 0 {
		t.Errorf("runner calls = %v, want none", runner.calls)
	}
}

func TestPublishCustomRegistryAndTag(t *testing.T) {
	cwd := t.TempDir()
	writeManifest(t, cwd, `{
  "name": "@corp/pkg",
  "version": "1.2.3",
  "publishConfig": {"registry": "https://npm.corp.example", "tag": "next"}
}`)

	runner := &fakeRunner{}
	p := newPlugin(t, cwd, config.Env{Token: "npm_corp"}, runner, &fakeVerifier{})

	artifact, err := p.Publish(context.Background(), map[string]any{}, "1.2.3")
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if artifact.Name != "npm package (@next dist-tag)" {
		t.Errorf("artifact name = %q", artifact.Name)
	}
	if artifact.URL != "" {
		t.Errorf("artifact url = %q, want empty for a custom registry", artifact.URL)
	}
	joined := strings.Join(runner.calls[len(runner.calls)-1].args, " ")
	if !strings.Contains(joined, "--registry https://npm.corp.example/") {
		t.Errorf("publish args %q missing custom registry", joined)
	}
	if !strings.Contains(joined, "--tag next") {
		t.Errorf("publish args %q missing dist-tag", joined)
	}
}

func TestPublishReusesPreparedTarball(t *testing.T) {
	cwd := t.TempDir()
	writeManifest(t, cwd, `{"name":"pkg","version":"1.2.3"}`)

	dist := filepath.Join(cwd, "dist")
	if err := os.MkdirAll(dist, 0o755); err != nil {
		t.Fatal(err)
	}
	staged := filepath.Join(dist, "pkg-1.2.3.tgz")
	if err := os.WriteFile(staged, []byte("tarball"), 0o644); err != nil {
		t.Fatal(err)
	}

	runner := &fakeRunner{}
	p := newPlugin(t, cwd, config.Env{Token: "npm_secret"}, runner, &fakeVerifier{})

	raw := map[string]any{config.KeyTarballDir: "dist"}
	artifact, err := p.Publish(context.Background(), raw, "1.2.3")
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if artifact == nil {
		t.Fatal("artifact = nil")
	}
	if len(runner.calls) != 1 {
		t.Fatalf("runner calls = %d, want publish only", len(runner.calls))
	}
	if got := runner.calls[0].args[1]; got != staged {
		t.Errorf("published tarball = %s, want %s", got, staged)
	}
	if _, err := os.Stat(staged); err != nil {
		t.Errorf("staged tarball removed: %v", err)
	}
}

func TestPublishFailurePropagatesCommandError(t *testing.T) {
	cwd := t.TempDir()
	writeManifest(t, cwd, `{"name":"pkg","version":"1.2.3"}`)

	runner := &fakeRunner{err: errors.New(errors.ErrCodeCommandFailed, "npm publish: exit status 1")}
	p := newPlugin(t, cwd, config.Env{Token: "npm_secret"}, runner, &fakeVerifier{})

	artifact, err := p.Publish(context.Background(), map[string]any{}, "1.2.3")
	if errors.GetCode(err) != errors.ErrCodeCommandFailed {
		t.Fatalf("error = %v, want code %s", err, errors.ErrCodeCommandFailed)
	}
	if artifact != nil {
		t.Errorf("artifact = %+v, want nil on failure", artifact)
	}
}
