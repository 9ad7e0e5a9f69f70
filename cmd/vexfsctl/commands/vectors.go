package commands

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vexfs/vexfs/cmd/vexfsctl/cmdutil"
)

var (
	upsertVectorJSON string
	upsertMetadata   []string
)

var upsertCmd = &cobra.Command{
	Use:   "upsert <collection> <id>",
	Short: "Insert or replace one vector",
	Long: `Insert or replace one vector in a collection.

Example:
  vexfsctl upsert docs 42 --vector '[0.1,0.2,0.3]' --metadata source=manual`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid vector id %q: %w", args[1], err)
		}
		var vec []float32
		if err := json.Unmarshal([]byte(upsertVectorJSON), &vec); err != nil {
			return fmt.Errorf("invalid --vector JSON array: %w", err)
		}
		meta, err := parseMetadata(upsertMetadata)
		if err != nil {
			return err
		}

		client, err := cmdutil.GetClient()
		if err != nil {
			return err
		}
		if err := client.Upsert(args[0], id, vec, meta); err != nil {
			return fmt.Errorf("upsert vector: %w", err)
		}
		cmdutil.PrintSuccess(fmt.Sprintf("vector %d upserted into %q", id, args[0]))
		return nil
	},
}

func init() {
	upsertCmd.Flags().StringVar(&upsertVectorJSON, "vector", "", "vector as a JSON float array")
	upsertCmd.Flags().StringSliceVar(&upsertMetadata, "metadata", nil, "key=value metadata pairs")
	_ = upsertCmd.MarkFlagRequired("vector")
}

func parseMetadata(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("invalid metadata pair %q (want key=value)", p)
		}
		out[k] = v
	}
	return out, nil
}
