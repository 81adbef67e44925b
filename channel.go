package client

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/armon/go-radix"
	"github.com/hashicorp/go-msgpack/codec"
)

// Message is a shared reference to an inbound event's raw payload, handed to
// every subscriber of that event's name. Handlers must not mutate it.
type Message = []byte

// EventHandler receives event payloads in per-event-type FIFO order.
type EventHandler func(Message)

// Channel is a duplex connection: it issues unary RPCs, delivers
// subscribed server events, and reports connection loss. Concrete
// implementations need not be unix-socket based; socketChannel is the one
// this module ships.
type Channel interface {
	// Call issues a blocking unary RPC. It returns ErrDisconnected if the
	// channel is not connected; session.call is responsible for invoking
	// Reconnect itself, Call never reconnects implicitly.
	Call(method string, req, resp interface{}) error

	// Subscribe registers handler for eventName and returns a positive
	// subscription id, or a negative id on failure.
	Subscribe(eventName string, handler EventHandler) int64

	// Unsubscribe is idempotent; it returns whether a subscription was
	// actually removed.
	Unsubscribe(id int64) bool

	IsConnected() bool

	// Reconnect attempts to re-establish the connection. On success, all
	// previously issued subscription ids are invalidated; callers must
	// re-subscribe.
	Reconnect() bool

	Close() error
}

type subscription struct {
	id      int64
	event   string
	handler EventHandler
}

// pendingCall is the seq-keyed entry a Call waits on, decoding its own
// response body synchronously from within the listen goroutine -- exactly
// the teacher's genericRPC handler pattern, which keeps exactly one
// goroutine ever touching the shared decoder.
type pendingCall struct {
	resp interface{}
	done chan error
}

// socketChannel is a Channel over a long-lived net.Conn (typically a
// net.UnixConn), adapted from the teacher's RPCClient: sequence-numbered
// dispatch table for RPC replies, and a radix-tree event-name routing table
// for the event path.
type socketChannel struct {
	dial func() (net.Conn, error)

	timeout time.Duration
	logger  *log.Logger

	mu        sync.Mutex // guards conn, writer, enc, connected
	conn      net.Conn
	writer    *bufio.Writer
	enc       *codec.Encoder
	connected bool

	seq uint64

	dispatchLock sync.Mutex
	dispatch     map[uint64]*pendingCall

	subLock   sync.Mutex
	subSeq    int64
	subsByID  map[int64]*subscription
	subEvents *radix.Tree // event name -> []*subscription

	closeOnce sync.Once
	closeCh   chan struct{}
}

// NewSocketChannel constructs a Channel bound to the given unix-domain
// socket path. It dials immediately; a failure to dial is returned as-is to
// the caller (session construction is expected to fail in that case).
func NewSocketChannel(socketPath string, timeout time.Duration, logger *log.Logger) (Channel, error) {
	dial := func() (net.Conn, error) {
		return net.DialTimeout("unix", socketPath, timeout)
	}
	ch := &socketChannel{
		dial:      dial,
		timeout:   timeout,
		logger:    logger,
		dispatch:  make(map[uint64]*pendingCall),
		subsByID:  make(map[int64]*subscription),
		subEvents: radix.New(),
		closeCh:   make(chan struct{}),
	}
	if err := ch.connect(); err != nil {
		return nil, err
	}
	return ch, nil
}

func (c *socketChannel) connect() error {
	conn, err := c.dial()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.writer = bufio.NewWriter(conn)
	c.enc = codec.NewEncoder(c.writer, msgpackHandle)
	c.connected = true
	c.mu.Unlock()

	go c.listen(conn)
	return nil
}

func (c *socketChannel) getSeq() uint64 {
	return atomic.AddUint64(&c.seq, 1)
}

func (c *socketChannel) Call(method string, req, resp interface{}) error {
	if !c.IsConnected() {
		return ErrDisconnected
	}

	seq := c.getSeq()
	call := &pendingCall{resp: resp, done: make(chan error, 1)}

	c.dispatchLock.Lock()
	c.dispatch[seq] = call
	c.dispatchLock.Unlock()
	defer func() {
		c.dispatchLock.Lock()
		delete(c.dispatch, seq)
		c.dispatchLock.Unlock()
	}()

	header := &requestHeader{Command: method, Seq: seq}
	if err := c.send(header, req); err != nil {
		return err
	}

	select {
	case err := <-call.done:
		return err
	case <-time.After(c.timeout):
		return fmt.Errorf("%w: rpc %q timed out", ErrRPCFailure, method)
	case <-c.closeCh:
		return ErrDisconnected
	}
}

func (c *socketChannel) send(header *requestHeader, obj interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return ErrDisconnected
	}
	if err := c.enc.Encode(header); err != nil {
		return err
	}
	if obj != nil {
		if err := c.enc.Encode(obj); err != nil {
			return err
		}
	}
	return c.writer.Flush()
}

func (c *socketChannel) Subscribe(eventName string, handler EventHandler) int64 {
	if !c.IsConnected() {
		return -1
	}

	c.subLock.Lock()
	c.subSeq++
	id := c.subSeq
	sub := &subscription{id: id, event: eventName, handler: handler}
	c.subsByID[id] = sub

	var subs []*subscription
	if v, ok := c.subEvents.Get(eventName); ok {
		subs = v.([]*subscription)
	}
	subs = append(subs, sub)
	c.subEvents.Insert(eventName, subs)
	c.subLock.Unlock()

	return id
}

func (c *socketChannel) Unsubscribe(id int64) bool {
	c.subLock.Lock()
	defer c.subLock.Unlock()

	sub, ok := c.subsByID[id]
	if !ok {
		return false
	}
	delete(c.subsByID, id)

	if v, ok := c.subEvents.Get(sub.event); ok {
		subs := v.([]*subscription)
		for i, s := range subs {
			if s.id == id {
				subs = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(subs) == 0 {
			c.subEvents.Delete(sub.event)
		} else {
			c.subEvents.Insert(sub.event, subs)
		}
	}
	return true
}

func (c *socketChannel) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *socketChannel) Reconnect() bool {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.connected = false
	c.mu.Unlock()

	// Every previously issued subscription id is invalidated: callers must
	// re-subscribe, per the Channel contract.
	c.subLock.Lock()
	c.subsByID = make(map[int64]*subscription)
	c.subEvents = radix.New()
	c.subLock.Unlock()

	c.dispatchLock.Lock()
	for _, call := range c.dispatch {
		call.done <- ErrDisconnected
	}
	c.dispatch = make(map[uint64]*pendingCall)
	c.dispatchLock.Unlock()

	if err := c.connect(); err != nil {
		if c.logger != nil {
			c.logger.Printf("[ERR] rialto.channel: reconnect failed: %v", err)
		}
		return false
	}
	return true
}

func (c *socketChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		c.mu.Lock()
		c.connected = false
		if c.conn != nil {
			err = c.conn.Close()
		}
		c.mu.Unlock()
	})
	return err
}

// listen drains inbound frames on a single goroutine and routes them either
// to a waiting Call (by Seq, decoding the response body inline) or to
// subscribed event handlers (by Command), mirroring the teacher's
// listen()/respondSeq split -- the one place that touches the decoder.
func (c *socketChannel) listen(conn net.Conn) {
	dec := codec.NewDecoder(bufio.NewReader(conn), msgpackHandle)
	for {
		var hdr responseHeader
		if err := dec.Decode(&hdr); err != nil {
			c.mu.Lock()
			stillCurrent := c.conn == conn
			if stillCurrent {
				c.connected = false
			}
			c.mu.Unlock()
			if stillCurrent && c.logger != nil {
				c.logger.Printf("[ERR] rialto.channel: decode failed, marking disconnected: %v", err)
			}
			if stillCurrent {
				// Fail every Call still waiting on this connection now instead
				// of leaving it to its timeout.
				c.dispatchLock.Lock()
				for seq, call := range c.dispatch {
					delete(c.dispatch, seq)
					select {
					case call.done <- ErrDisconnected:
					default:
					}
				}
				c.dispatchLock.Unlock()
			}
			return
		}

		if hdr.Seq != 0 {
			c.dispatchLock.Lock()
			call, ok := c.dispatch[hdr.Seq]
			c.dispatchLock.Unlock()
			if !ok {
				continue
			}
			if hdr.Error != "" {
				call.done <- rpcError(hdr.Error)
				continue
			}
			var err error
			if call.resp != nil {
				err = dec.Decode(call.resp)
			}
			call.done <- err
			continue
		}

		// Decode as codec.Raw, not a plain []byte: Raw is special-cased by
		// the msgpack decoder to capture the next value's raw encoded
		// bytes verbatim (whatever struct the server encoded), deferring
		// the actual struct decode to the event handler. A plain []byte
		// target would instead expect the wire value itself to be a
		// msgpack bin/str, which event payloads are not.
		var raw codec.Raw
		if err := dec.Decode(&raw); err != nil {
			if c.logger != nil {
				c.logger.Printf("[ERR] rialto.channel: failed to decode event payload: %v", err)
			}
			continue
		}
		payload := Message(raw)

		c.subLock.Lock()
		var subs []*subscription
		if v, ok := c.subEvents.Get(hdr.Command); ok {
			subs = append(subs, v.([]*subscription)...)
		}
		c.subLock.Unlock()

		for _, sub := range subs {
			sub.handler(payload)
		}
	}
}
