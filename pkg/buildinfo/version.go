// Package buildinfo exposes build-time version metadata.
//
// The variables are injected via ldflags at build time:
//
//	go build -ldflags "-X github.com/npmship/npmship/pkg/buildinfo.Version=v1.2.3"
package buildinfo

import "fmt"

// Version is the semantic version of this build (e.g. "v1.2.3").
var Version = "dev"

// Commit is the git commit SHA of this build.
var Commit = "none"

// Date is the build timestamp.
var Date = "unknown"

// String returns the formatted build information.
func String() string {
	return fmt.Sprintf("version: %s\ncommit: %s\nbuilt: %s", Version, Commit, Date)
}

// Template returns the version template string for cobra.
func Template() string {
	return fmt.Sprintf("{{.Name}} version %s\ncommit: %s\nbuilt: %s\n", Version, Commit, Date)
}
