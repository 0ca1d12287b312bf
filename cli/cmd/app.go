package cmd

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/leadgate/leadgate/cli/internal/client"
	"github.com/leadgate/leadgate/cli/pkg/output"
	"github.com/leadgate/leadgate/common/config"
)

var appCmd = &cobra.Command{
	Use:   "app",
	Short: "Application management",
	Long: `Create applications and rotate their signing keys through the admin API.

The admin token is read from --admin-token or LEADCTL_ADMIN_TOKEN.`,
}

var appCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Register a new application",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		admin, err := adminClient(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		app, err := admin.CreateApplication(ctx, args[0])
		if err != nil {
			return err
		}
		if err := saveKeys(cmd, app); err != nil {
			return err
		}
		return renderApplication(cmd, app, "Created application")
	},
}

var appRotateCmd = &cobra.Command{
	Use:   "rotate <client-id>",
	Short: "Issue a new client id and secret, revoking the old pair",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		admin, err := adminClient(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		app, err := admin.RotateApplication(ctx, args[0])
		if err != nil {
			return err
		}
		if err := saveKeys(cmd, app); err != nil {
			return err
		}
		return renderApplication(cmd, app, "Rotated keys for application")
	},
}

var appListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List applications",
	RunE: func(cmd *cobra.Command, args []string) error {
		admin, err := adminClient(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		apps, err := admin.ListApplications(ctx)
		if err != nil {
			return err
		}
		return output.Render(outputFormat(cmd), apps, func() {
			table := output.NewTable("NAME", "CLIENT ID", "CREATED", "UPDATED")
			for _, a := range apps {
				table.AddRow(a.Name, a.ClientID, a.CreatedAt.Format(time.RFC3339), a.UpdatedAt.Format(time.RFC3339))
			}
			table.Render()
		})
	},
}

func adminClient(cmd *cobra.Command) (*client.AdminClient, error) {
	token, _ := cmd.Flags().GetString("admin-token")
	if token == "" {
		token = os.Getenv("LEADCTL_ADMIN_TOKEN")
	}
	if token == "" {
		return nil, errors.New("admin token required: pass --admin-token or set LEADCTL_ADMIN_TOKEN")
	}
	actor, _ := cmd.Flags().GetString("actor")
	return client.NewAdminClient(gatewayURL(cmd), token, actor), nil
}

// saveKeys stores the application's keys in the profile named by --save-profile.
func saveKeys(cmd *cobra.Command, app *client.Application) error {
	name, _ := cmd.Flags().GetString("save-profile")
	if name == "" {
		return nil
	}
	p, err := cfg.GetProfile(name)
	if err != nil {
		p = &config.CLIProfile{}
	}
	if u, _ := cmd.Flags().GetString("gateway-url"); u != "" {
		p.GatewayURL = u
	}
	p.ClientID = app.ClientID
	p.ClientSecret = app.ClientSecret
	if err := cfg.SetProfile(name, p); err != nil {
		return err
	}
	output.Info("Keys saved to profile '%s'", name)
	return nil
}

func renderApplication(cmd *cobra.Command, app *client.Application, verb string) error {
	return output.Render(outputFormat(cmd), app, func() {
		output.Success("%s '%s'", verb, app.Name)
		output.Info("Client ID:     %s", app.ClientID)
		output.Info("Client secret: %s", app.ClientSecret)
		output.Warn("The secret is shown once; store it now.")
	})
}

func init() {
	rootCmd.AddCommand(appCmd)
	appCmd.AddCommand(appCreateCmd, appRotateCmd, appListCmd)

	appCmd.PersistentFlags().String("admin-token", "", "admin API bearer token")
	appCmd.PersistentFlags().String("actor", currentUser(), "name recorded in the gateway audit trail")
	appCreateCmd.Flags().String("save-profile", "", "store the new keys in this profile")
	appRotateCmd.Flags().String("save-profile", "", "store the new keys in this profile")
}
