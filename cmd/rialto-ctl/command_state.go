package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/mitchellh/cli"

	rialto "github.com/rdkcentral/rialto-client-go"
)

// StateCommand implements `rialto-ctl state`: register (if not already
// registered) and print the current application state snapshot.
type StateCommand struct {
	Ui cli.Ui
}

func (c *StateCommand) Help() string {
	return strings.TrimSpace(`
Usage: rialto-ctl state [options]

  Connects to a Rialto control-plane server and prints its current
  application state (UNKNOWN, INACTIVE, or RUNNING).

Options:

  -socket=PATH   Unix-domain socket path of the server (default /tmp/rialto)
  -timeout=DUR   RPC timeout (default 10s)
`)
}

func (c *StateCommand) Synopsis() string {
	return "Show the server's current application state"
}

func (c *StateCommand) Run(args []string) int {
	cf := newConnectFlags("state")
	if err := cf.parse(args); err != nil {
		return 1
	}

	factory := rialto.NewFactory(cf.config())
	defer factory.Close()

	control, err := factory.NewControl(noopListener{})
	if err != nil {
		c.Ui.Error(fmt.Sprintf("failed to initialise control: %s", err))
		return 1
	}
	defer control.Close()

	state, ok := control.RegisterClient()
	if !ok {
		c.Ui.Error("registerClient failed; server may be unreachable")
		return 1
	}

	line := fmt.Sprintf("state: %s", state)
	switch state {
	case rialto.ApplicationStateRunning:
		c.Ui.Output(color.GreenString(line))
	case rialto.ApplicationStateInactive:
		c.Ui.Output(color.YellowString(line))
	default:
		c.Ui.Output(color.RedString(line))
	}

	if shm := control.SharedMemoryHandle(); shm != nil {
		c.Ui.Info(fmt.Sprintf("shared memory: %d bytes mapped", shm.Length()))
	}
	return 0
}
