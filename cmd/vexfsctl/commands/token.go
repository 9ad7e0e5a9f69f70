package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vexfs/vexfs/cmd/vexfsctl/cmdutil"
	"github.com/vexfs/vexfs/internal/cli/prompt"
	"github.com/vexfs/vexfs/pkg/apiclient"
)

var tokenCmd = &cobra.Command{
	Use:   "token [passphrase]",
	Short: "Exchange the admin passphrase for a bearer token",
	Long: `Exchange the admin passphrase for a bearer token.

The returned token can be passed to other commands via --token or the
VEXFSCTL_TOKEN environment variable. If passphrase is omitted it is
read from a masked terminal prompt instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase := ""
		if len(args) == 1 {
			passphrase = args[0]
		} else {
			p, err := prompt.Password("Admin passphrase")
			if err != nil {
				return fmt.Errorf("read passphrase: %w", err)
			}
			passphrase = p
		}

		client, err := cmdutil.GetClient()
		if err != nil {
			return err
		}
		resp, err := client.Token(passphrase)
		if err != nil {
			return fmt.Errorf("request token: %w", err)
		}
		return cmdutil.PrintResource(os.Stdout, resp, tokenTable{resp})
	},
}

type tokenTable struct {
	resp *apiclient.TokenResponse
}

func (t tokenTable) Headers() []string { return []string{"FIELD", "VALUE"} }
func (t tokenTable) Rows() [][]string {
	return [][]string{
		{"Access Token", t.resp.AccessToken},
		{"Expires At", t.resp.ExpiresAt.Format("2006-01-02T15:04:05Z07:00")},
	}
}
