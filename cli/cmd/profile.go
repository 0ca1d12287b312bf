package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/leadgate/leadgate/cli/pkg/output"
	"github.com/leadgate/leadgate/common/config"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage connection profiles",
	Long:  "Store the gateway URL and application credentials used to sign requests",
}

var profileSetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Create or update a profile and make it current",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		p, err := cfg.GetProfile(name)
		if err != nil {
			p = &config.CLIProfile{}
		}
		if u, _ := cmd.Flags().GetString("gateway-url"); u != "" {
			p.GatewayURL = u
		}
		if id, _ := cmd.Flags().GetString("client-id"); id != "" {
			p.ClientID = id
		}
		if secret, _ := cmd.Flags().GetString("client-secret"); secret != "" {
			p.ClientSecret = secret
		}

		if err := cfg.SetProfile(name, p); err != nil {
			return fmt.Errorf("failed to save profile: %w", err)
		}
		output.Success("Profile '%s' saved to %s", name, cfg.Path())
		return nil
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show a profile (secrets masked)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := cfg.CurrentProfile
		if len(args) == 1 {
			name = args[0]
		}
		p, err := cfg.GetProfile(name)
		if err != nil {
			return err
		}

		view := map[string]string{
			"name":          name,
			"gateway_url":   cfg.GatewayURL(name),
			"client_id":     p.ClientID,
			"client_secret": mask(p.ClientSecret),
		}
		return output.Render(outputFormat(cmd), view, func() {
			output.Info("Profile:       %s", name)
			output.Info("Gateway URL:   %s", view["gateway_url"])
			output.Info("Client ID:     %s", p.ClientID)
			output.Info("Client secret: %s", view["client_secret"])
		})
	},
}

var profileListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		names := make([]string, 0, len(cfg.Profiles))
		for name := range cfg.Profiles {
			names = append(names, name)
		}
		sort.Strings(names)

		return output.Render(outputFormat(cmd), names, func() {
			table := output.NewTable("CURRENT", "NAME", "GATEWAY URL", "CLIENT ID")
			for _, name := range names {
				current := ""
				if name == cfg.CurrentProfile {
					current = "*"
				}
				table.AddRow(current, name, cfg.GatewayURL(name), cfg.Profiles[name].ClientID)
			}
			table.Render()
		})
	},
}

var profileUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Switch the current profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := cfg.GetProfile(args[0]); err != nil {
			return err
		}
		cfg.CurrentProfile = args[0]
		if err := cfg.Save(); err != nil {
			return err
		}
		output.Success("Now using profile '%s'", args[0])
		return nil
	},
}

var profileRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a profile",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RemoveProfile(args[0]); err != nil {
			return err
		}
		output.Success("Removed profile '%s'", args[0])
		return nil
	},
}

func mask(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:4] + "****"
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileSetCmd, profileShowCmd, profileListCmd, profileUseCmd, profileRemoveCmd)
}
