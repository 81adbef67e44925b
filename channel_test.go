package client

import (
	"bufio"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/armon/go-radix"
	"github.com/hashicorp/go-msgpack/codec"
)

// pipeServer is a minimal fake server over one side of a net.Pipe: it reads
// requestHeader/body frames and replies however the test script says to.
type pipeServer struct {
	conn net.Conn
	dec  *codec.Decoder
	enc  *codec.Encoder
	w    *bufio.Writer
}

func newPipeServer(conn net.Conn) *pipeServer {
	w := bufio.NewWriter(conn)
	return &pipeServer{
		conn: conn,
		dec:  codec.NewDecoder(bufio.NewReader(conn), msgpackHandle),
		enc:  codec.NewEncoder(w, msgpackHandle),
		w:    w,
	}
}

func (p *pipeServer) readRequest(body interface{}) requestHeader {
	var hdr requestHeader
	if err := p.dec.Decode(&hdr); err != nil {
		panic(err)
	}
	if body != nil {
		if err := p.dec.Decode(body); err != nil {
			panic(err)
		}
	}
	return hdr
}

func (p *pipeServer) respond(hdr requestHeader, errStr string, resp interface{}) {
	respHdr := responseHeader{Command: hdr.Command, Seq: hdr.Seq, Error: errStr}
	if err := p.enc.Encode(&respHdr); err != nil {
		panic(err)
	}
	if resp != nil {
		if err := p.enc.Encode(resp); err != nil {
			panic(err)
		}
	}
	p.w.Flush()
}

func (p *pipeServer) sendEvent(eventName string, payload interface{}) {
	hdr := responseHeader{Command: eventName, Seq: 0}
	if err := p.enc.Encode(&hdr); err != nil {
		panic(err)
	}
	if err := p.enc.Encode(payload); err != nil {
		panic(err)
	}
	p.w.Flush()
}

func newPipeChannel(t *testing.T, timeout time.Duration) (*socketChannel, *pipeServer) {
	t.Helper()
	clientConn, serverConn := net.Pipe()

	first := true
	ch := &socketChannel{
		dial: func() (net.Conn, error) {
			if !first {
				return nil, errors.New("pipe channel only dials once in this test")
			}
			first = false
			return clientConn, nil
		},
		timeout:   timeout,
		dispatch:  make(map[uint64]*pendingCall),
		subsByID:  make(map[int64]*subscription),
		subEvents: radix.New(),
		closeCh:   make(chan struct{}),
	}
	if err := ch.connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return ch, newPipeServer(serverConn)
}

type registerReq struct {
	ClientInstanceID string
}
type registerResp struct {
	ControlHandle int32
}

func TestSocketChannelCallRoundTrip(t *testing.T) {
	ch, srv := newPipeChannel(t, 2*time.Second)
	defer ch.Close()

	go func() {
		var req registerReq
		hdr := srv.readRequest(&req)
		srv.respond(hdr, "", &registerResp{ControlHandle: 7})
	}()

	var resp registerResp
	if err := ch.Call("registerClient", &registerReq{ClientInstanceID: "x"}, &resp); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if resp.ControlHandle != 7 {
		t.Fatalf("ControlHandle = %d, want 7", resp.ControlHandle)
	}
}

func TestSocketChannelCallServerError(t *testing.T) {
	ch, srv := newPipeChannel(t, 2*time.Second)
	defer ch.Close()

	go func() {
		hdr := srv.readRequest(nil)
		srv.respond(hdr, "no such method", nil)
	}()

	err := ch.Call("bogus", nil, nil)
	if err == nil || !errors.Is(err, ErrRPCFailure) {
		t.Fatalf("Call = %v, want ErrRPCFailure", err)
	}
}

func TestSocketChannelSubscribeDeliversEvent(t *testing.T) {
	ch, srv := newPipeChannel(t, 2*time.Second)
	defer ch.Close()

	received := make(chan pingWire, 1)
	id := ch.Subscribe("ping", func(msg Message) {
		var w pingWire
		if err := decodeEventPayload(msg, &w); err != nil {
			t.Errorf("decodeEventPayload: %v", err)
			return
		}
		received <- w
	})
	if id < 0 {
		t.Fatal("Subscribe failed")
	}

	srv.sendEvent("ping", &pingWire{ControlHandle: 7, ID: 42})

	select {
	case w := <-received:
		if w.ID != 42 || w.ControlHandle != 7 {
			t.Fatalf("unexpected payload: %+v", w)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event delivery")
	}
}

func TestSocketChannelUnsubscribeStopsDelivery(t *testing.T) {
	ch, srv := newPipeChannel(t, 2*time.Second)
	defer ch.Close()

	received := make(chan struct{}, 1)
	id := ch.Subscribe("ping", func(Message) { received <- struct{}{} })
	if !ch.Unsubscribe(id) {
		t.Fatal("Unsubscribe reported not-found for a live subscription")
	}

	srv.sendEvent("ping", &pingWire{ControlHandle: 1, ID: 1})

	select {
	case <-received:
		t.Fatal("handler ran after Unsubscribe")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSocketChannelDisconnectFailsPendingCalls(t *testing.T) {
	ch, srv := newPipeChannel(t, 2*time.Second)
	defer ch.Close()

	// The server reads the request and then drops the connection without
	// replying. Closing the server side triggers a decode error in listen(),
	// which marks the channel disconnected and fails the Call still waiting
	// for its response with ErrDisconnected, well before the RPC timeout.
	go func() {
		srv.readRequest(nil)
		srv.conn.Close()
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- ch.Call("registerClient", nil, nil)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrDisconnected) {
			t.Fatalf("Call = %v, want ErrDisconnected", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Call still pending after the server dropped the connection")
	}
	if ch.IsConnected() {
		t.Fatal("expected channel to observe disconnection")
	}
}
