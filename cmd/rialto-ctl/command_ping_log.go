package main

import (
	"fmt"
	"strings"

	"github.com/mitchellh/cli"
	"github.com/ryanuber/columnize"

	rialto "github.com/rdkcentral/rialto-client-go"
)

// PingLogCommand implements `rialto-ctl ping-log`: replays the bounded
// ring of recent state-change/ping diagnostic lines kept by the client.
type PingLogCommand struct {
	Ui cli.Ui
}

func (c *PingLogCommand) Help() string {
	return strings.TrimSpace(`
Usage: rialto-ctl ping-log [options]

  Prints the recent state-change and ping events observed by this client's
  control-plane session, oldest first. The log is a bounded in-process ring
  buffer; it is reset every time rialto-ctl reconnects.

Options:

  -socket=PATH   Unix-domain socket path of the server (default /tmp/rialto)
  -timeout=DUR   RPC timeout (default 10s)
`)
}

func (c *PingLogCommand) Synopsis() string {
	return "Replay recent state-change and ping diagnostics"
}

func (c *PingLogCommand) Run(args []string) int {
	cf := newConnectFlags("ping-log")
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

	if _, ok := control.RegisterClient(); !ok {
		c.Ui.Error("registerClient failed; server may be unreachable")
		return 1
	}

	lines := control.DiagnosticsLines()
	if len(lines) == 0 {
		c.Ui.Info("no diagnostic events observed yet")
		return 0
	}

	rows := make([]string, 0, len(lines)+1)
	rows = append(rows, "TIME | EVENT")
	for _, line := range lines {
		parts := strings.SplitN(line, " ", 2)
		if len(parts) != 2 {
			rows = append(rows, line+" | ")
			continue
		}
		rows = append(rows, parts[0]+" | "+parts[1])
	}

	c.Ui.Output(columnize.SimpleFormat(rows))
	return 0
}
