package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/vexfs/vexfs/cmd/vexfsctl/cmdutil"
	"github.com/vexfs/vexfs/internal/cli/output"
	"github.com/vexfs/vexfs/pkg/httpshim"
)

var (
	searchVectorJSON string
	searchK          int
	searchQuery      string
)

var searchCmd = &cobra.Command{
	Use:   "search <collection>",
	Short: "Find the nearest neighbors of a query vector",
	Long: `Find the k nearest neighbors of a query vector in a collection.

--query extracts a field from the JSON result using gjson path syntax,
e.g. --query "hits.0.id" or --query "hits.#.distance"; it only applies
when --output is json.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var vec []float32
		if err := json.Unmarshal([]byte(searchVectorJSON), &vec); err != nil {
			return fmt.Errorf("invalid --vector JSON array: %w", err)
		}

		client, err := cmdutil.GetClient()
		if err != nil {
			return err
		}
		hits, err := client.Search(args[0], vec, searchK)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}

		if searchQuery != "" {
			format, err := cmdutil.OutputFormat()
			if err != nil {
				return err
			}
			if format != output.FormatJSON {
				return fmt.Errorf("--query requires --output json")
			}
			return printQueried(httpshim.SearchResponse{Hits: hits}, searchQuery)
		}

		return cmdutil.PrintResource(os.Stdout, hits, hitList(hits))
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchVectorJSON, "vector", "", "query vector as a JSON float array")
	searchCmd.Flags().IntVar(&searchK, "k", 10, "number of neighbors to return")
	searchCmd.Flags().StringVar(&searchQuery, "query", "", "gjson path to extract from the JSON result")
	_ = searchCmd.MarkFlagRequired("vector")
}

func printQueried(v any, path string) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	result := gjson.GetBytes(data, path)
	fmt.Fprintln(os.Stdout, result.String())
	return nil
}

type hitList []httpshim.HitWire

func (l hitList) Headers() []string { return []string{"ID", "DISTANCE", "METADATA"} }
func (l hitList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, h := range l {
		rows = append(rows, []string{
			strconv.FormatUint(h.ID, 10),
			strconv.FormatFloat(float64(h.Distance), 'f', 6, 32),
			fmt.Sprintf("%v", h.Metadata),
		})
	}
	return rows
}
