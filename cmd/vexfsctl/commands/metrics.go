package commands

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vexfs/vexfs/cmd/vexfsctl/cmdutil"
	"github.com/vexfs/vexfs/pkg/httpshim"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show aggregate daemon metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetClient()
		if err != nil {
			return err
		}
		m, err := client.Metrics()
		if err != nil {
			return err
		}
		return cmdutil.PrintResource(os.Stdout, m, metricsTable{m})
	},
}

type metricsTable struct{ m httpshim.MetricsWire }

func (t metricsTable) Headers() []string { return []string{"FIELD", "VALUE"} }
func (t metricsTable) Rows() [][]string {
	return [][]string{
		{"Collections", strconv.Itoa(t.m.Collections)},
		{"Total Vectors", strconv.Itoa(t.m.TotalVectors)},
		{"Searches Total", strconv.FormatUint(t.m.SearchesTotal, 10)},
		{"Avg Latency (us)", strconv.FormatInt(t.m.AvgLatencyUs, 10)},
	}
}
