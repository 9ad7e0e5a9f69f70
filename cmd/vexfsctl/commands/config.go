package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"github.com/vexfs/vexfs/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the daemon configuration format",
}

var configSchemaOutput string

var configSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Generate a JSON schema for the daemon configuration file",
	Long: `Generate a JSON schema for vexfsd's configuration file.

The schema can be used for:
  - IDE autocompletion (VS Code, IntelliJ, etc.)
  - Configuration file validation
  - Documentation generation`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reflector := jsonschema.Reflector{
			AllowAdditionalProperties: false,
			DoNotReference:            true,
		}
		schema := reflector.Reflect(&config.Config{})
		schema.Version = "https://json-schema.org/draft/2020-12/schema"
		schema.Title = "VexFS Daemon Configuration"
		schema.Description = "Configuration schema for the vexfsd server"

		out, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			return fmt.Errorf("generate schema: %w", err)
		}

		if configSchemaOutput != "" {
			if err := os.WriteFile(configSchemaOutput, out, 0o644); err != nil {
				return fmt.Errorf("write schema file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "JSON schema written to %s\n", configSchemaOutput)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	configSchemaCmd.Flags().StringVarP(&configSchemaOutput, "output", "o", "", "output file (default: stdout)")
	configCmd.AddCommand(configSchemaCmd)
}
