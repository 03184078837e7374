// Package registry resolves the effective npm registry for a release run
// and computes the normalized auth-lookup keys ("nerf darts") used by
// npm-compatible clients.
//
// Resolution is pure: the same manifest registry and environment snapshot
// always yield the same effective registry and lookup key.
package registry

import (
	"net/url"
	"strings"

	"github.com/npmship/npmship/pkg/config"
)

// DefaultRegistry is the well-known public npm registry.
const DefaultRegistry = "https://registry.npmjs.org/"

// yarnRegistryHost is yarn's ambient registry mirror. Yarn sets
// NPM_CONFIG_REGISTRY to it on every invocation, so an override pointing
// there does not express user intent and is ignored during resolution.
const yarnRegistryHost = "registry.yarnpkg.com"

// Resolve picks the effective registry URL for this run.
//
// Precedence: the npm CLI override NPM_CONFIG_REGISTRY (unless it is
// yarn's ambient mirror), then the manifest's publishConfig.registry, then
// the plugin default NPMSHIP_REGISTRY, then [DefaultRegistry]. The result
// is normalized to an absolute URL with a trailing slash.
func Resolve(manifestRegistry string, env config.Env) string {
	if env.ConfigRegistry != "" && !YarnOverride(env) {
		return Normalize(env.ConfigRegistry)
	}
	if manifestRegistry != "" {
		return Normalize(manifestRegistry)
	}
	if env.DefaultRegistry != "" {
		return Normalize(env.DefaultRegistry)
	}
	return DefaultRegistry
}

// YarnOverride reports whether NPM_CONFIG_REGISTRY points at yarn's
// registry mirror. Token verification is skipped for such runs: the mirror
// serves the default registry's packages but rejects its whoami route.
func YarnOverride(env config.Env) bool {
	if env.ConfigRegistry == "" {
		return false
	}
	u, err := url.Parse(withScheme(env.ConfigRegistry))
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Hostname(), yarnRegistryHost)
}

// Normalize converts a registry URL to canonical absolute form: an https
// scheme is assumed when none is present, and the path always ends with a
// slash so equivalent spellings compare equal.
func Normalize(raw string) string {
	u, err := url.Parse(withScheme(strings.TrimSpace(raw)))
	if err != nil || u.Host == "" {
		return raw
	}
	u.Host = strings.ToLower(u.Host)
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// NerfDart reduces a registry URL to its protocol-relative lookup form,
// e.g. "https://registry.npmjs.org" -> "//registry.npmjs.org/". Spellings
// with or without scheme or trailing slash produce the same dart.
func NerfDart(raw string) string {
	u, err := url.Parse(withScheme(strings.TrimSpace(raw)))
	if err != nil || u.Host == "" {
		return raw
	}
	path := u.Path
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return "//" + strings.ToLower(u.Host) + path
}

// AuthKey computes the npmrc lookup key for a registry, optionally
// prefixed with an npm scope ("@scope").
func AuthKey(registryURL, scope string) string {
	dart := NerfDart(registryURL)
	if scope == "" {
		return dart
	}
	return scope + ":" + dart
}

// IsDefault reports whether a registry URL refers to the well-known
// default registry, under nerf-dart normalization.
func IsDefault(registryURL string) bool {
	return NerfDart(registryURL) == NerfDart(DefaultRegistry)
}

// PackageURL returns the public package page for a version on the default
// registry. Non-default registries have no generically resolvable page.
func PackageURL(name, version string) string {
	return "https://www.npmjs.com/package/" + name + "/v/" + version
}

func withScheme(raw string) string {
	if strings.Contains(raw, "://") {
		return raw
	}
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	return "https://" + raw
}
