package cli

import (
	"github.com/spf13/cobra"
)

// publishCommand creates the publish command, which runs the full release
// flight: verify, prepare, publish.
func (c *CLI) publishCommand() *cobra.Command {
	var (
		configPath string
		noCache    bool
		skipVerify bool
	)
	flags := &optionFlags{}

	cmd := &cobra.Command{
		Use:   "publish <version>",
		Short: "Publish the package to the registry",
		Long: `Publish the package to the registry.

Runs the whole release flight for a single version: credentials and
options are verified, the version is written into package.json, and the
packed tarball is uploaded under the manifest's dist-tag. Use
--skip-verify when a verify run already happened in the same working
directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := loadOptions(cmd, configPath, flags)
			if err != nil {
				return err
			}
			plugin, err := c.newPlugin(noCache)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			version := args[0]

			if !skipVerify {
				if err := plugin.VerifyConditions(ctx, raw); err != nil {
					printError("Verification failed")
					return err
				}
			}
			if err := plugin.Prepare(ctx, raw, version); err != nil {
				printError("Prepare failed")
				return err
			}

			spinner := newSpinner(ctx, "Publishing to the registry...")
			spinner.Start()
			artifact, err := plugin.Publish(ctx, raw, version)
			if err != nil {
				spinner.StopWithError("Publish failed")
				return err
			}
			spinner.Stop()

			if artifact == nil {
				printInfo("Publishing is disabled; nothing was uploaded")
				return nil
			}
			printSuccess("Published %s", StyleHighlight.Render(version))
			printKeyValue("artifact", artifact.Name)
			if artifact.URL != "" {
				printLink("url", artifact.URL)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "options file (default .npmship.toml)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable whoami result caching")
	cmd.Flags().BoolVar(&skipVerify, "skip-verify", false, "skip credential verification")
	flags.register(cmd)

	return cmd
}
