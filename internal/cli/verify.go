package cli

import (
	"github.com/spf13/cobra"
)

// verifyCommand creates the verify command.
func (c *CLI) verifyCommand() *cobra.Command {
	var (
		configPath string
		noCache    bool
	)
	flags := &optionFlags{}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify npm credentials and plugin options",
		Long: `Verify npm credentials and plugin options.

Checks the shape of all plugin options and the package manifest, resolves
the effective registry, writes the credential from the environment into
the working-directory .npmrc, and probes the default registry to confirm
the credential is accepted. All option violations are reported together.

Set NPM_TOKEN (or NPM_USERNAME, NPM_PASSWORD and NPM_EMAIL) before
running.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := loadOptions(cmd, configPath, flags)
			if err != nil {
				return err
			}
			plugin, err := c.newPlugin(noCache)
			if err != nil {
				return err
			}

			spinner := newSpinner(cmd.Context(), "Verifying npm credentials...")
			spinner.Start()
			if err := plugin.VerifyConditions(cmd.Context(), raw); err != nil {
				spinner.StopWithError("Verification failed")
				return err
			}
			spinner.StopWithSuccess("npm credentials and options verified")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "options file (default .npmship.toml)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable whoami result caching")
	flags.register(cmd)

	return cmd
}
