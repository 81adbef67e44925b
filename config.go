package client

import (
	"log"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

// DefaultTimeout is the default IO deadline for outbound RPCs, mirroring the
// teacher's DefaultTimeout for agent RPC calls.
const DefaultTimeout = 10 * time.Second

// Config configures a Control facade / underlying Controller + Session +
// Channel stack.
type Config struct {
	// SocketPath is the unix-domain socket path of the server. The core
	// never discovers this; it is always supplied by the caller.
	SocketPath string

	// Timeout bounds individual outbound RPCs. Defaults to DefaultTimeout.
	Timeout time.Duration

	// SchemaVersion overrides CurrentSchemaVersion for this session. Zero
	// value means "use the package-level CurrentSchemaVersion".
	SchemaVersion SchemaVersion

	// Logger is a custom logger. If nil, one is built from LogLevel /
	// SyslogFacility.
	Logger *log.Logger

	// LogLevel is one of DEBUG, INFO, WARN, ERROR. Defaults to INFO.
	LogLevel string

	// SyslogFacility, if set, additionally sends log output to syslog at
	// this facility (e.g. "LOCAL0").
	SyslogFacility string

	// ClientLabel is an optional operator-supplied tag prefixed to the
	// session's instance id, which is sent with every registerClient request
	// (e.g. rialto-ctl's operator token, read from ~/.rialto-ctl). Purely
	// cosmetic: the wire protocol carries no authentication of its own.
	ClientLabel string
}

// DecodeConfig decodes a loosely-typed map (e.g. parsed from a JSON/HCL
// config file by the caller) into a Config, the way mapstructure is used
// throughout the hashicorp/mitchellh ecosystem for config decoding.
func DecodeConfig(raw map[string]interface{}) (*Config, error) {
	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		DecodeHook:       stringToDurationHook,
		Result:           &cfg,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// stringToDurationHook lets callers write "5s"-style durations in the
// loosely-typed map DecodeConfig accepts; mapstructure's own
// WeaklyTypedInput only handles numeric conversions, not time.ParseDuration.
func stringToDurationHook(from, to reflect.Kind, data interface{}) (interface{}, error) {
	if from != reflect.String || to != reflect.Int64 {
		return data, nil
	}
	s, ok := data.(string)
	if !ok {
		return data, nil
	}
	return time.ParseDuration(s)
}

func (c *Config) schemaVersion() SchemaVersion {
	if c.SchemaVersion == (SchemaVersion{}) {
		return CurrentSchemaVersion
	}
	return c.SchemaVersion
}

func (c *Config) timeout() time.Duration {
	if c.Timeout == 0 {
		return DefaultTimeout
	}
	return c.Timeout
}
