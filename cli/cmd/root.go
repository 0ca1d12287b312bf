package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leadgate/leadgate/cli/internal/client"
	"github.com/leadgate/leadgate/cli/pkg/output"
	"github.com/leadgate/leadgate/common/config"
	"github.com/leadgate/leadgate/common/signing"
)

var (
	cfgFile string
	cfg     *config.CLIConfig
)

var rootCmd = &cobra.Command{
	Use:   "leadctl",
	Short: "leadgate CLI",
	Long: `leadctl is the command-line interface for the leadgate lead-routing gateway.

Manage applications and their signing keys, sign and submit leads,
seed test traffic and watch delivery outcomes from your terminal.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		output.Error("%v", err)
		return err
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.leadctl/config.yaml)")
	rootCmd.PersistentFlags().String("profile", "", "profile to use (default: current profile)")
	rootCmd.PersistentFlags().StringP("output", "o", output.FormatTable, "output format: table, json, yaml")
	rootCmd.PersistentFlags().String("gateway-url", "", "gateway URL (default from profile)")
	rootCmd.PersistentFlags().String("client-id", "", "application client id (default from profile)")
	rootCmd.PersistentFlags().String("client-secret", "", "application client secret (default from profile)")
}

func initConfig() {
	var err error
	cfg, err = config.LoadCLI(cfgFile)
	if err != nil {
		output.Warn("Could not load config: %v", err)
		cfg = config.DefaultCLI()
	}
}

func outputFormat(cmd *cobra.Command) string {
	f, _ := cmd.Flags().GetString("output")
	return f
}

func profileName(cmd *cobra.Command) string {
	p, _ := cmd.Flags().GetString("profile")
	return p
}

func gatewayURL(cmd *cobra.Command) string {
	if u, _ := cmd.Flags().GetString("gateway-url"); u != "" {
		return u
	}
	return cfg.GatewayURL(profileName(cmd))
}

// credentials resolves the application keys from flags, then the profile.
func credentials(cmd *cobra.Command) (clientID, clientSecret string, err error) {
	clientID, _ = cmd.Flags().GetString("client-id")
	clientSecret, _ = cmd.Flags().GetString("client-secret")

	if p, perr := cfg.GetProfile(profileName(cmd)); perr == nil {
		if clientID == "" {
			clientID = p.ClientID
		}
		if clientSecret == "" {
			clientSecret = p.ClientSecret
		}
	}
	if clientID == "" || clientSecret == "" {
		return "", "", errors.New("no application credentials: pass --client-id and --client-secret or run 'leadctl profile set'")
	}
	return clientID, clientSecret, nil
}

func gatewayClient(cmd *cobra.Command) (*client.GatewayClient, error) {
	id, secret, err := credentials(cmd)
	if err != nil {
		return nil, err
	}
	return client.NewGatewayClient(gatewayURL(cmd), id, secret), nil
}

// parseFields turns key=value arguments into params, preserving order.
func parseFields(args []string) ([]signing.Param, error) {
	params := make([]signing.Param, 0, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid field %q: expected key=value", arg)
		}
		params = append(params, signing.Param{Key: key, Value: value})
	}
	return params, nil
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "leadctl"
}
