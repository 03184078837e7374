package cli

import (
	"github.com/spf13/cobra"
)

// prepareCommand creates the prepare command.
func (c *CLI) prepareCommand() *cobra.Command {
	var configPath string
	flags := &optionFlags{}

	cmd := &cobra.Command{
		Use:   "prepare <version>",
		Short: "Write the release version into package.json and pack the tarball",
		Long: `Write the release version into package.json and pack the tarball.

The version field is updated in place without reformatting the manifest.
When a tarball directory is configured the distributable archive is packed
into it; otherwise packing is deferred to publish.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := loadOptions(cmd, configPath, flags)
			if err != nil {
				return err
			}
			plugin, err := c.newPlugin(true)
			if err != nil {
				return err
			}

			version := args[0]
			if err := plugin.Prepare(cmd.Context(), raw, version); err != nil {
				printError("Prepare failed")
				return err
			}
			printSuccess("Prepared release %s", StyleHighlight.Render(version))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "options file (default .npmship.toml)")
	flags.register(cmd)

	return cmd
}
