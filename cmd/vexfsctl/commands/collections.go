package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vexfs/vexfs/cmd/vexfsctl/cmdutil"
	"github.com/vexfs/vexfs/internal/cli/prompt"
	"github.com/vexfs/vexfs/pkg/httpshim"
)

var collectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "Manage vector collections",
}

func init() {
	collectionCmd.AddCommand(collectionListCmd, collectionCreateCmd, collectionDeleteCmd)
}

var collectionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List collections",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetClient()
		if err != nil {
			return err
		}
		cols, err := client.ListCollections()
		if err != nil {
			return err
		}
		return cmdutil.PrintResource(os.Stdout, cols, collectionList(cols))
	},
}

type collectionList []httpshim.CollectionWire

func (l collectionList) Headers() []string { return []string{"NAME", "DIMENSIONS", "METRIC", "COUNT"} }
func (l collectionList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, c := range l {
		rows = append(rows, []string{c.Name, strconv.FormatUint(uint64(c.Dimensions), 10), c.Metric, strconv.Itoa(c.Count)})
	}
	return rows
}

var (
	createDimensions uint32
	createMetric     string
)

var collectionCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetClient()
		if err != nil {
			return err
		}
		if err := client.CreateCollection(args[0], createDimensions, createMetric); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
		cmdutil.PrintSuccess(fmt.Sprintf("collection %q created", args[0]))
		return nil
	},
}

var deleteForce bool

var collectionDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := prompt.ConfirmWithForce(
			fmt.Sprintf("This permanently deletes collection %q and every vector in it", args[0]),
			args[0], deleteForce)
		if err != nil {
			return fmt.Errorf("confirm delete: %w", err)
		}
		if !ok {
			cmdutil.PrintSuccess("aborted")
			return nil
		}

		client, err := cmdutil.GetClient()
		if err != nil {
			return err
		}
		if err := client.DeleteCollection(args[0]); err != nil {
			return fmt.Errorf("delete collection: %w", err)
		}
		cmdutil.PrintSuccess(fmt.Sprintf("collection %q deleted", args[0]))
		return nil
	},
}

func init() {
	collectionCreateCmd.Flags().Uint32Var(&createDimensions, "dimensions", 768, "vector dimensionality")
	collectionCreateCmd.Flags().StringVar(&createMetric, "metric", "l2", "distance metric (l2|cosine|inner_product)")
	collectionDeleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "skip the confirmation prompt")
}
