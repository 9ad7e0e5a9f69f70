// Package cmdutil provides shared utilities for vexfsctl subcommands:
// global flag storage and output-format-aware printing atop
// internal/cli/output, grounded on dittofsctl's cmdutil package but
// simplified for a single local daemon with no multi-tenant login
// context store.
package cmdutil

import (
	"fmt"
	"io"
	"os"

	"github.com/vexfs/vexfs/internal/cli/output"
	"github.com/vexfs/vexfs/pkg/apiclient"
)

// Flags stores global flag values accessible by every subcommand.
var Flags = &GlobalFlags{}

// GlobalFlags holds the values bound to vexfsctl's persistent flags.
type GlobalFlags struct {
	ServerURL string
	Token     string
	Output    string
	NoColor   bool
}

// GetClient builds an API client from --server/--token, falling back
// to the VEXFSCTL_SERVER/VEXFSCTL_TOKEN environment variables.
func GetClient() (*apiclient.Client, error) {
	server := Flags.ServerURL
	if server == "" {
		server = os.Getenv("VEXFSCTL_SERVER")
	}
	if server == "" {
		server = "http://localhost:8080"
	}

	token := Flags.Token
	if token == "" {
		token = os.Getenv("VEXFSCTL_TOKEN")
	}

	client := apiclient.New(server)
	if token != "" {
		client = client.WithToken(token)
	}
	return client, nil
}

// OutputFormat returns the parsed --output format.
func OutputFormat() (output.Format, error) {
	return output.ParseFormat(Flags.Output)
}

// PrintResource prints data as a table (via renderer), JSON, or YAML
// depending on the configured output format.
func PrintResource(w io.Writer, data any, renderer output.TableRenderer) error {
	format, err := OutputFormat()
	if err != nil {
		return err
	}
	switch format {
	case output.FormatJSON:
		return output.PrintJSON(w, data)
	case output.FormatYAML:
		return output.PrintYAML(w, data)
	default:
		return output.PrintTable(w, renderer)
	}
}

// PrintSuccess prints msg in table mode only; JSON/YAML callers print
// the resource itself instead.
func PrintSuccess(msg string) {
	format, err := OutputFormat()
	if err != nil || format != output.FormatTable {
		return
	}
	output.NewPrinter(os.Stdout, format, !Flags.NoColor).Success(msg)
}

// PrintError prints an error consistently across subcommands.
func PrintError(err error) {
	format, parseErr := OutputFormat()
	if parseErr != nil {
		format = output.FormatTable
	}
	output.NewPrinter(os.Stderr, format, !Flags.NoColor).Error(fmt.Sprintf("%v", err))
}
