package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leadgate/leadgate/cli/internal/client"
	"github.com/leadgate/leadgate/cli/pkg/output"
)

var signCmd = &cobra.Command{
	Use:   "sign [key=value ...]",
	Short: "Sign parameters without sending them",
	Long: `Append token and sig to the given parameters and print the encoded result.

Values may contain '&' or '='; they are escaped both in the output and in the
signed canonical string. Useful to craft requests for curl or to check a
client's signature:

  leadctl sign email=ada@example.com name=Ada
  curl -d "$(leadctl sign email=ada@example.com)" http://localhost:8080/api/v1/leads`,
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parseFields(args)
		if err != nil {
			return err
		}
		id, secret, err := credentials(cmd)
		if err != nil {
			return err
		}
		values := client.Sign(id, secret, params)

		switch outputFormat(cmd) {
		case output.FormatJSON, output.FormatYAML:
			flat := make(map[string]string, len(values))
			for k := range values {
				flat[k] = values.Get(k)
			}
			return output.Render(outputFormat(cmd), flat, nil)
		default:
			fmt.Fprintln(output.Stdout, values.Encode())
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(signCmd)
}
