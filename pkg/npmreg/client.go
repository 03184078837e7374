// Package npmreg is a minimal HTTP client for npm-compatible registries.
//
// Its only operation is the whoami identity probe used to confirm that a
// resolved credential is actually accepted by the registry. Auth rejections
// and transport failures map to distinct error kinds so callers can tell an
// invalid token from a flaky network.
package npmreg

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/npmship/npmship/pkg/errors"
	"github.com/npmship/npmship/pkg/httputil"
)

const httpTimeout = 10 * time.Second

// Auth is a resolved registry credential: either a bearer token or a
// legacy username/password pair.
type Auth struct {
	Token    string
	Username string
	Password string
}

func (a Auth) header() string {
	if a.Token != "" {
		return "Bearer " + a.Token
	}
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(a.Username+":"+a.Password))
}

// digest is the auth portion of the whoami cache key. The raw credential
// never reaches a filename: cache keys are hashed before hitting disk, but
// keeping the key itself opaque costs nothing.
func (a Auth) digest() string {
	if a.Token != "" {
		return "token:" + a.Token
	}
	return "basic:" + a.Username + ":" + a.Password
}

// Client performs whoami probes against a registry.
//
// Successful verifications are memoized in the cache (when one is set) so
// that repeated verify calls within a release run skip the network.
type Client struct {
	http  *http.Client
	cache *httputil.Cache
}

// NewClient creates a Client. Pass nil to disable whoami memoization.
func NewClient(cache *httputil.Cache) *Client {
	return &Client{
		http:  &http.Client{Timeout: httpTimeout},
		cache: cache,
	}
}

// Whoami fetches the identity behind auth from the registry and returns
// the account username.
//
// Error kinds:
//   - 401/403 responses yield INVALID_NPM_TOKEN, advising the credential
//     be regenerated and re-set.
//   - Transport failures and 5xx responses (after retries) yield
//     NETWORK_ERROR; callers must not confuse these with a rejected token.
func (c *Client) Whoami(ctx context.Context, registryURL string, auth Auth) (string, error) {
	key := "whoami|" + registryURL + "|" + auth.digest()

	var username string
	if c.cache != nil {
		if ok, _ := c.cache.Get(key, &username); ok {
			return username, nil
		}
	}

	err := httputil.RetryWithBackoff(ctx, func() error {
		u, err := c.fetch(ctx, registryURL, auth)
		if err != nil {
			return err
		}
		username = u
		return nil
	})
	if err != nil {
		return "", err
	}

	if c.cache != nil {
		_ = c.cache.Set(key, username)
	}
	return username, nil
}

func (c *Client) fetch(ctx context.Context, registryURL string, auth Auth) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, registryURL+"-/whoami", nil)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "build whoami request")
	}
	req.Header.Set("Authorization", auth.header())
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &httputil.RetryableError{
			Err: errors.Wrap(errors.ErrCodeNetwork, err, "whoami against %s", registryURL),
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var body struct {
			Username string `json:"username"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return "", errors.Wrap(errors.ErrCodeNetwork, err, "decode whoami response")
		}
		return body.Username, nil

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", errors.New(errors.ErrCodeInvalidToken,
			"the npm token configured for %s was rejected (status %d); "+
				"regenerate the token and update the NPM_TOKEN environment variable",
			registryURL, resp.StatusCode)

	case resp.StatusCode >= 500:
		return "", &httputil.RetryableError{
			Err: errors.New(errors.ErrCodeNetwork, "whoami against %s: status %d", registryURL, resp.StatusCode),
		}

	default:
		return "", errors.New(errors.ErrCodeNetwork,
			"whoami against %s: unexpected status %d", registryURL, resp.StatusCode)
	}
}

// String implements fmt.Stringer without leaking the credential.
func (a Auth) String() string {
	if a.Token != "" {
		return "token:" + mask(a.Token)
	}
	if a.Username != "" {
		return fmt.Sprintf("basic:%s", a.Username)
	}
	return "none"
}

func mask(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}
