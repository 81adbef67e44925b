package client

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/armon/circbuf"
)

// diagnosticsRingSize bounds the in-memory log the diagnostics ring keeps;
// older lines are dropped as the buffer fills.
const diagnosticsRingSize = 64 * 1024

// diagnosticsRing is a bounded ring buffer of recent control-plane log
// lines (state changes, pings), exposed to the rialto-ctl ping-log
// subcommand. The core itself never registers an external log handler
// (spec.md §1: "Log handler registration ... out of scope"); this is purely
// a local, in-process diagnostic aid over what the controller already logs.
type diagnosticsRing struct {
	mu  sync.Mutex
	buf *circbuf.Buffer
}

func newDiagnosticsRing() *diagnosticsRing {
	buf, _ := circbuf.NewBuffer(diagnosticsRingSize)
	return &diagnosticsRing{buf: buf}
}

func (d *diagnosticsRing) record(format string, args ...interface{}) {
	line := fmt.Sprintf("%s %s\n", time.Now().UTC().Format(time.RFC3339Nano), fmt.Sprintf(format, args...))
	d.mu.Lock()
	d.buf.Write([]byte(line))
	d.mu.Unlock()
}

// Lines returns the currently buffered lines, oldest first.
func (d *diagnosticsRing) Lines() []string {
	d.mu.Lock()
	data := append([]byte(nil), d.buf.Bytes()...)
	d.mu.Unlock()

	if len(data) == 0 {
		return nil
	}
	return splitNonEmptyLines(data)
}

func splitNonEmptyLines(data []byte) []string {
	var lines []string
	for _, chunk := range bytes.Split(data, []byte("\n")) {
		if len(chunk) > 0 {
			lines = append(lines, string(chunk))
		}
	}
	return lines
}
