package release

import (
	"encoding/base64"
	"strings"

	"github.com/npmship/npmship/pkg/config"
	"github.com/npmship/npmship/pkg/errors"
	"github.com/npmship/npmship/pkg/manifest"
	"github.com/npmship/npmship/pkg/npmreg"
	"github.com/npmship/npmship/pkg/npmrc"
	"github.com/npmship/npmship/pkg/registry"
)

// ensureAuth resolves a credential for the effective registry and makes
// sure it is present in the working-directory .npmrc.
//
// Precedence: an entry already on disk for the lookup key wins; otherwise
// the NPM_TOKEN bearer token, then the NPM_USERNAME/NPM_PASSWORD/NPM_EMAIL
// triple, each appended to the file. Appends are additive and idempotent
// across runs sharing a working directory.
//
// When nothing resolves, a MISSING_NPM_TOKEN error is returned only if
// publishing actually requires a credential: publish enabled and the
// manifest does not pin a non-default custom registry. A resolved
// credential is written even for custom registries that skip validation.
func (p *Plugin) ensureAuth(opts config.Options, man *manifest.Manifest) (string, npmreg.Auth, error) {
	regURL := registry.Resolve(man.Registry(), p.env)
	authKey := registry.AuthKey(regURL, man.Scope())

	rc, err := npmrc.Load(p.rcPath())
	if err != nil {
		return regURL, npmreg.Auth{}, errors.Wrap(errors.ErrCodeInternal, err, "read %s", p.rcPath())
	}

	if rc.HasAuth(authKey) {
		p.logger.Debugf("using existing auth entry for %s", authKey)
		return regURL, authFromFile(rc, authKey), nil
	}

	if p.env.Token != "" {
		if err := npmrc.AppendToken(p.rcPath(), authKey, p.env.Token); err != nil {
			return regURL, npmreg.Auth{}, errors.Wrap(errors.ErrCodeInternal, err, "write %s", p.rcPath())
		}
		p.logger.Infof("wrote token auth entry for %s to %s", authKey, p.rcPath())
		return regURL, npmreg.Auth{Token: p.env.Token}, nil
	}

	if p.env.HasTriple() {
		if err := npmrc.AppendBasic(p.rcPath(), authKey, p.env.Username, p.env.Password, p.env.Email); err != nil {
			return regURL, npmreg.Auth{}, errors.Wrap(errors.ErrCodeInternal, err, "write %s", p.rcPath())
		}
		p.logger.Infof("wrote basic auth entry for %s to %s", authKey, p.rcPath())
		return regURL, npmreg.Auth{Username: p.env.Username, Password: p.env.Password}, nil
	}

	if authRequired(opts, man) {
		return regURL, npmreg.Auth{}, errors.New(errors.ErrCodeNoToken,
			"no npm token specified; set the NPM_TOKEN environment variable "+
				"(or NPM_USERNAME, NPM_PASSWORD and NPM_EMAIL) to publish to %s", regURL)
	}

	p.logger.Debugf("no credential resolved for %s; none required for this run", regURL)
	return regURL, npmreg.Auth{}, nil
}

// authRequired reports whether this run must hold a registry credential:
// publishing is enabled and the manifest does not pin a non-default custom
// registry (those are exempt from credential validation).
func authRequired(opts config.Options, man *manifest.Manifest) bool {
	if !opts.PublishEnabled() {
		return false
	}
	if r := man.Registry(); r != "" && !registry.IsDefault(r) {
		return false
	}
	return true
}

// authFromFile reconstructs the credential recorded under authKey so it
// can be re-verified against the registry.
func authFromFile(rc *npmrc.File, authKey string) npmreg.Auth {
	if token, ok := rc.Get(authKey + ":_authToken"); ok && token != "" {
		return npmreg.Auth{Token: token}
	}
	if pair, ok := rc.Get(authKey + ":_auth"); ok && pair != "" {
		if decoded, err := base64.StdEncoding.DecodeString(pair); err == nil {
			if user, pass, ok := strings.Cut(string(decoded), ":"); ok {
				return npmreg.Auth{Username: user, Password: pass}
			}
		}
	}
	return npmreg.Auth{}
}
