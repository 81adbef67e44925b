package client

import (
	"github.com/hashicorp/go-msgpack/codec"
)

// requestHeader precedes every outbound frame. Command is the RPC method
// name ("registerClient", "getSharedMemory", "ack"). Server->client event
// names ("applicationStateChange", "ping") travel in responseHeader.Command.
type requestHeader struct {
	Command string
	Seq     uint64
}

// responseHeader precedes every inbound frame: it answers a Seq'd request,
// or (Seq == 0) carries an unsolicited event.
type responseHeader struct {
	Command string
	Seq     uint64
	Error   string
}

// msgpackHandle is shared by every encoder/decoder pair this package
// constructs, matching the teacher's MsgpackHandle configuration exactly.
var msgpackHandle = &codec.MsgpackHandle{RawToString: true, WriteExt: true}
