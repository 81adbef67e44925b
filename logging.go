package client

import (
	"io"
	"log"
	"os"

	gsyslog "github.com/hashicorp/go-syslog"
	"github.com/hashicorp/logutils"
)

// defaultLogLevel is used when Config.LogLevel is empty.
const defaultLogLevel = "INFO"

var logLevels = []logutils.LogLevel{"DEBUG", "INFO", "WARN", "ERROR"}

// newLogger builds a leveled *log.Logger the way the teacher's sibling
// serf/consul agents do: a logutils.LevelFilter wrapping stderr, optionally
// tee'd to syslog when a facility is configured.
func newLogger(cfg *Config) *log.Logger {
	if cfg.Logger != nil {
		return cfg.Logger
	}

	level := cfg.LogLevel
	if level == "" {
		level = defaultLogLevel
	}

	var writer io.Writer = os.Stderr
	if cfg.SyslogFacility != "" {
		sink, err := gsyslog.NewLogger(gsyslog.LOG_NOTICE, cfg.SyslogFacility, "rialto-client")
		if err == nil {
			writer = io.MultiWriter(os.Stderr, sink)
		}
	}

	filter := &logutils.LevelFilter{
		Levels:   logLevels,
		MinLevel: logutils.LogLevel(level),
		Writer:   writer,
	}

	return log.New(filter, "", log.LstdFlags)
}
