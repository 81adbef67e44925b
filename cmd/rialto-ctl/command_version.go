package main

import (
	"fmt"

	"github.com/mitchellh/cli"

	rialto "github.com/rdkcentral/rialto-client-go"
)

// VersionCommand implements `rialto-ctl version`: prints the rialto-ctl
// build version and the client schema version it negotiates with servers.
type VersionCommand struct {
	Ui         cli.Ui
	CLIVersion string
}

func (c *VersionCommand) Help() string {
	return "Usage: rialto-ctl version"
}

func (c *VersionCommand) Synopsis() string {
	return "Print rialto-ctl and client schema versions"
}

func (c *VersionCommand) Run(args []string) int {
	c.Ui.Output(fmt.Sprintf("rialto-ctl %s", c.CLIVersion))
	c.Ui.Output(fmt.Sprintf("client schema version %s", rialto.CurrentSchemaVersion))
	return 0
}
