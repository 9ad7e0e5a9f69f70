package commands

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vexfs/vexfs/cmd/vexfsctl/cmdutil"
	"github.com/vexfs/vexfs/pkg/httpshim"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show daemon health",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetClient()
		if err != nil {
			return err
		}
		h, err := client.Health()
		if err != nil {
			return err
		}
		return cmdutil.PrintResource(os.Stdout, h, healthTable{h})
	},
}

type healthTable struct{ h httpshim.HealthWire }

func (t healthTable) Headers() []string { return []string{"FIELD", "VALUE"} }
func (t healthTable) Rows() [][]string {
	status := "unhealthy"
	if t.h.Healthy {
		status = "healthy"
	}
	return [][]string{
		{"Status", status},
		{"Collections", strconv.Itoa(t.h.Collections)},
	}
}
