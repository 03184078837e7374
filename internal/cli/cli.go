// Package cli implements the npmship command-line interface.
//
// npmship drives an npm package release in three lifecycle steps: verify
// (credential and option checks), prepare (manifest version update and
// tarball packing), and publish (upload to the registry). Options come
// from a TOML config file merged with flag overrides; all commands
// support --verbose (-v) for debug-level logging.
package cli

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/npmship/npmship/pkg/buildinfo"
	"github.com/npmship/npmship/pkg/config"
	"github.com/npmship/npmship/pkg/httputil"
	"github.com/npmship/npmship/pkg/npmcli"
	"github.com/npmship/npmship/pkg/npmreg"
	"github.com/npmship/npmship/pkg/release"
)

const (
	// appName is the application name used for directories and display.
	appName = "npmship"

	// defaultConfigFile is the options file looked up in the working
	// directory when --config is not given.
	defaultConfigFile = ".npmship.toml"

	// whoamiTTL bounds how long a verified credential is trusted without
	// re-probing the registry.
	whoamiTTL = 15 * time.Minute
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger. Every log line
// carries a short run id so interleaved CI output stays attributable.
func New(w io.Writer, level log.Level) *CLI {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
	return &CLI{
		Logger: logger.With("run", uuid.NewString()[:8]),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "npmship publishes npm packages as a release pipeline step",
		Long:         `npmship is a release pipeline plugin for npm-compatible registries: it verifies credentials and options, stamps the release version into package.json, and packs and publishes the tarball.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.verifyCommand())
	root.AddCommand(c.prepareCommand())
	root.AddCommand(c.publishCommand())
	root.AddCommand(c.cacheCommand())

	return root
}

// optionFlags are the plugin options settable from the command line.
// A flag the user did not touch must not mask a config-file value, so
// overlay checks cobra's Changed state per flag.
type optionFlags struct {
	npmPublish bool
	tarballDir string
	pkgRoot    string
}

// register adds the shared option flags to a lifecycle command.
func (f *optionFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.npmPublish, "npm-publish", true, "publish the package (set false to only update and pack)")
	cmd.Flags().StringVar(&f.tarballDir, "tarball-dir", "", "directory to keep the packed tarball in")
	cmd.Flags().StringVar(&f.pkgRoot, "pkg-root", "", "package directory, relative to the working directory")
}

// overlay applies the flags the user actually set on top of raw options.
func (f *optionFlags) overlay(cmd *cobra.Command, raw map[string]any) {
	if cmd.Flags().Changed("npm-publish") {
		raw[config.KeyNpmPublish] = f.npmPublish
	}
	if cmd.Flags().Changed("tarball-dir") {
		raw[config.KeyTarballDir] = f.tarballDir
	}
	if cmd.Flags().Changed("pkg-root") {
		raw[config.KeyPkgRoot] = f.pkgRoot
	}
}

// loadOptions reads the TOML options file and overlays flag overrides.
func loadOptions(cmd *cobra.Command, configPath string, flags *optionFlags) (map[string]any, error) {
	if configPath == "" {
		configPath = defaultConfigFile
	}
	raw, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}
	flags.overlay(cmd, raw)
	return raw, nil
}

// newPlugin assembles a release plugin from ambient process state.
func (c *CLI) newPlugin(noCache bool) (*release.Plugin, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return release.New(
		c.Logger,
		&npmcli.ExecRunner{},
		npmreg.NewClient(c.newWhoamiCache(noCache)),
		config.FromEnviron(os.Environ()),
		cwd,
	), nil
}

// newWhoamiCache returns the verification memo cache, or nil when caching
// is off or the cache directory is unusable. Degrading to no cache is
// fine for a release run, but the reason is logged so a broken directory
// stays diagnosable.
func (c *CLI) newWhoamiCache(noCache bool) *httputil.Cache {
	if noCache {
		return nil
	}
	dir, err := cacheDir()
	if err != nil {
		c.Logger.Debugf("whoami caching disabled: resolve cache dir: %v", err)
		return nil
	}
	cache, err := httputil.NewCache(dir, whoamiTTL)
	if err != nil {
		c.Logger.Debugf("whoami caching disabled: init cache at %s: %v", dir, err)
		return nil
	}
	return cache
}

// cacheDir returns the cache directory using XDG standard (~/.cache/npmship/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
