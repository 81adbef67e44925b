// Command rialto-ctl is a small diagnostic client for a Rialto control
// plane server: it reports application state, replays the recent
// state/ping log, and prints the schema version this build negotiates.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/mitchellh/cli"
)

// version is the rialto-ctl build version, independent of the wire schema
// version reported by the version subcommand.
const version = "0.1.0"

func main() {
	os.Exit(realMain())
}

func realMain() int {
	stdout := colorable.NewColorableStdout()
	stderr := colorable.NewColorableStderr()

	// fatih/color auto-detects NO_COLOR and non-TTY output on its own, but
	// rialto-ctl is piped into log collectors often enough to make the
	// check explicit rather than relying on the package default.
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}

	c := cli.NewCLI("rialto-ctl", version)
	c.Args = os.Args[1:]
	c.Commands = map[string]cli.CommandFactory{
		"state": func() (cli.Command, error) {
			return &StateCommand{Ui: baseUi(stdout, stderr)}, nil
		},
		"ping-log": func() (cli.Command, error) {
			return &PingLogCommand{Ui: baseUi(stdout, stderr)}, nil
		},
		"version": func() (cli.Command, error) {
			return &VersionCommand{Ui: baseUi(stdout, stderr), CLIVersion: version}, nil
		},
	}

	exitStatus, err := c.Run()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return exitStatus
}

func baseUi(stdout, stderr io.Writer) *cli.ColoredUi {
	basic := &cli.BasicUi{Writer: stdout, ErrorWriter: stderr, Reader: os.Stdin}
	return &cli.ColoredUi{
		Ui:          basic,
		OutputColor: cli.UiColorNone,
		InfoColor:   cli.UiColorNone,
		ErrorColor:  cli.UiColorRed,
		WarnColor:   cli.UiColorYellow,
	}
}
