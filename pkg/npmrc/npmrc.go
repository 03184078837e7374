// Package npmrc reads and appends npm auth configuration files.
//
// The file format is a flat list of "key = value" lines. Keys for auth
// entries are nerf darts (see the registry package), e.g.
//
//	//registry.npmjs.org/:_authToken = s3cr3t
//	@acme://npm.acme.dev/:_auth = dXNlcjpwYXNz
//	@acme://npm.acme.dev/:email = dev@acme.dev
//
// Writes are strictly additive: npmship only ever appends entries to the
// working-directory file, never rewriting or removing pre-existing lines,
// and never touching the user's global configuration.
package npmrc

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
)

// Filename is the per-working-directory auth config file.
const Filename = ".npmrc"

// File is a parsed npmrc: entry lookup plus the raw lines for display.
type File struct {
	path   string
	values map[string]string
}

// Load parses the npmrc at path. A missing file yields an empty File;
// later appends will create it.
func Load(path string) (*File, error) {
	f := &File{path: path, values: map[string]string{}}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return nil, err
	}

	sc := bufio.NewScanner(strings.NewReader(string(raw)))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		// Keys contain "//" and ":", so only the first "=" separates.
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		f.values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return f, sc.Err()
}

// Get returns the value for an exact key, if present.
func (f *File) Get(key string) (string, bool) {
	v, ok := f.values[key]
	return v, ok
}

// HasAuth reports whether the file already carries a credential for the
// given auth key (either a bearer token or a legacy _auth pair).
func (f *File) HasAuth(authKey string) bool {
	if v, ok := f.values[authKey+":_authToken"]; ok && v != "" {
		return true
	}
	if v, ok := f.values[authKey+":_auth"]; ok && v != "" {
		return true
	}
	return false
}

// AppendToken appends a bearer-token entry for authKey to the file at
// path, creating the file if absent. Existing lines are never modified.
func AppendToken(path, authKey, token string) error {
	return appendLines(path, fmt.Sprintf("%s:_authToken = %s\n", authKey, token))
}

// AppendBasic appends a legacy credential entry for authKey: a base64
// "username:password" _auth line plus the account email.
func AppendBasic(path, authKey, username, password, email string) error {
	auth := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	return appendLines(path,
		fmt.Sprintf("%s:_auth = %s\n%s:email = %s\n", authKey, auth, authKey, email))
}

func appendLines(path, lines string) error {
	fh, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return err
	}
	defer fh.Close()

	// Keep the file line-oriented even if the existing content lacks a
	// trailing newline.
	if info, err := fh.Stat(); err == nil && info.Size() > 0 {
		last := make([]byte, 1)
		if _, err := fh.ReadAt(last, info.Size()-1); err == nil && last[0] != '\n' {
			lines = "\n" + lines
		}
	}

	_, err = fh.WriteString(lines)
	return err
}
