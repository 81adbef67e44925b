package main

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bgentry/speakeasy"
	"github.com/mitchellh/go-homedir"

	rialto "github.com/rdkcentral/rialto-client-go"
)

// tokenFileName is read from the user's home directory for an optional
// operator label. The label is prefixed to the client instance id sent with
// registerClient; the control protocol has no authentication step.
const tokenFileName = ".rialto-ctl"

// connectFlags is the flag set shared by every subcommand that talks to a
// server: -socket, -timeout, and -token.
type connectFlags struct {
	fs      *flag.FlagSet
	socket  string
	timeout time.Duration
	token   string
	prompt  bool
}

func newConnectFlags(name string) *connectFlags {
	cf := &connectFlags{fs: flag.NewFlagSet(name, flag.ContinueOnError)}
	cf.fs.StringVar(&cf.socket, "socket", "/tmp/rialto", "unix-domain socket path of the server")
	cf.fs.DurationVar(&cf.timeout, "timeout", rialto.DefaultTimeout, "RPC timeout")
	cf.fs.StringVar(&cf.token, "token", "", "operator label for diagnostics (default: read from ~/.rialto-ctl, prompting once if absent)")
	cf.fs.BoolVar(&cf.prompt, "prompt-token", false, "prompt for a token even if ~/.rialto-ctl already has one")
	return cf
}

func (cf *connectFlags) parse(args []string) error {
	return cf.fs.Parse(args)
}

// resolveToken returns the operator label to use: the -token flag if given,
// else the contents of ~/.rialto-ctl, else an interactive (non-echoing)
// prompt whose answer is saved back to ~/.rialto-ctl for next time.
func (cf *connectFlags) resolveToken() string {
	if cf.token != "" {
		return cf.token
	}

	path, err := tokenPath()
	if err != nil {
		return ""
	}

	if !cf.prompt {
		if data, err := os.ReadFile(path); err == nil {
			if label := strings.TrimSpace(string(data)); label != "" {
				return label
			}
		}
	}

	label, err := speakeasy.Ask("operator label (stored in ~/.rialto-ctl, sent to the server in the client instance id): ")
	if err != nil || label == "" {
		return ""
	}
	_ = os.WriteFile(path, []byte(label), 0o600)
	return label
}

func tokenPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, tokenFileName), nil
}

func (cf *connectFlags) config() *rialto.Config {
	return &rialto.Config{
		SocketPath:  cf.socket,
		Timeout:     cf.timeout,
		ClientLabel: cf.resolveToken(),
	}
}

// noopListener discards state notifications; rialto-ctl only polls the
// current snapshot, it doesn't stream.
type noopListener struct{}

func (noopListener) NotifyApplicationState(rialto.ApplicationState) {}
