// Command vexfsctl is the command-line client for a running vexfsd
// daemon's admin REST API.
package main

import (
	"github.com/vexfs/vexfs/cmd/vexfsctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		commands.Exit(err)
	}
}
