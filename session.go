package client

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/hashicorp/go-msgpack/codec"
	"github.com/hashicorp/go-uuid"
)

const (
	eventApplicationStateChange = "applicationStateChange"
	eventPing                   = "ping"

	methodRegisterClient  = "registerClient"
	methodGetSharedMemory = "getSharedMemory"
	methodAck             = "ack"
)

// Wire request/response bodies for the RPC surface of spec.md §6.

type registerClientRequest struct {
	ClientInstanceID  string
	ClientSchemaMajor uint32
	ClientSchemaMinor uint32
	ClientSchemaPatch uint32
}

type registerClientResponse struct {
	ControlHandle     int32
	HasServerSchema   bool
	ServerSchemaMajor uint32
	ServerSchemaMinor uint32
	ServerSchemaPatch uint32
}

type getSharedMemoryResponse struct {
	Fd   int32
	Size uint32
}

type ackRequest struct {
	ControlHandle int32
	ID            uint32
}

type applicationStateChangeWire struct {
	ApplicationState string
}

type pingWire struct {
	ControlHandle int32
	ID            uint32
}

// sessionListener is the subset of Controller that session calls back into.
// session holds this as a non-owning reference: the Controller owns the
// session, and the Controller outlives it, so the cycle never leaks
// (Design Notes §9).
type sessionListener interface {
	notifyApplicationState(ApplicationState)
	notifyPing(id uint32)
}

// session is the Control-IPC Session (component D): it owns the server-side
// control handle, the event subscriptions, and the RPC stubs. It is
// constructed with a reference to the transport channel, an event
// dispatcher, and a listener (the Client Controller).
type session struct {
	channel    Channel
	dispatcher *eventDispatcher
	listener   sessionListener
	logger     *log.Logger
	version    SchemaVersion
	instanceID string

	mu            sync.Mutex
	controlHandle int32
	stateChangeSub int64
	pingSub        int64
}

// newSession constructs a session bound to channel. Per spec.md §4.D, the
// constructor subscribes to ApplicationStateChangeEvent and PingEvent; if
// either subscription fails, already-acquired subscriptions are released
// and construction fails with ErrSubscriptionFailure.
func newSession(channel Channel, dispatcher *eventDispatcher, listener sessionListener, version SchemaVersion, logger *log.Logger, label string) (*session, error) {
	instanceID, err := uuid.GenerateUUID()
	if err != nil {
		// A diagnostic id only; fall back rather than fail construction.
		instanceID = "unknown"
	}
	if label != "" {
		instanceID = label + "/" + instanceID
	}

	s := &session{
		channel:    channel,
		dispatcher: dispatcher,
		listener:   listener,
		logger:     logger,
		version:    version,
		instanceID: instanceID,
	}

	if err := s.subscribeEvents(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *session) subscribeEvents() error {
	stateSub := s.channel.Subscribe(eventApplicationStateChange, s.onApplicationStateChanged)
	if stateSub < 0 {
		return fmt.Errorf("%w: applicationStateChange", ErrSubscriptionFailure)
	}

	pingSub := s.channel.Subscribe(eventPing, s.onPing)
	if pingSub < 0 {
		s.channel.Unsubscribe(stateSub)
		return fmt.Errorf("%w: ping", ErrSubscriptionFailure)
	}

	s.mu.Lock()
	s.stateChangeSub = stateSub
	s.pingSub = pingSub
	s.mu.Unlock()
	return nil
}

func (s *session) releaseSubscriptions() error {
	s.mu.Lock()
	stateSub, pingSub := s.stateChangeSub, s.pingSub
	s.mu.Unlock()

	var stateErr, pingErr error
	if !s.channel.Unsubscribe(stateSub) {
		stateErr = fmt.Errorf("unsubscribe applicationStateChange failed")
	}
	if !s.channel.Unsubscribe(pingSub) {
		pingErr = fmt.Errorf("unsubscribe ping failed")
	}
	return joinErrors(stateErr, pingErr)
}

// call is the single chokepoint every outbound RPC method funnels through.
// It first verifies connectivity; if disconnected, it attempts a single
// reconnect, releasing and re-establishing subscriptions on success. If
// reconnect fails, the RPC fails with ErrDisconnected without touching the
// wire.
func (s *session) call(method string, req, resp interface{}) error {
	if !s.channel.IsConnected() {
		if !s.channel.Reconnect() {
			return ErrDisconnected
		}
		incrCounter(metricKeyReconnect)
		if err := s.releaseSubscriptions(); err != nil && s.logger != nil {
			s.logger.Printf("[WARN] rialto.session: releaseSubscriptions before resubscribe: %v", err)
		}
		if err := s.subscribeEvents(); err != nil {
			return err
		}
	}
	return s.channel.Call(method, req, resp)
}

// registerClient sends the client's current schema version, records the
// server's control handle, and rejects the session if versions are not
// compatible.
func (s *session) registerClient() (bool, error) {
	req := &registerClientRequest{
		ClientInstanceID:  s.instanceID,
		ClientSchemaMajor: s.version.Major,
		ClientSchemaMinor: s.version.Minor,
		ClientSchemaPatch: s.version.Patch,
	}
	var resp registerClientResponse
	if err := s.call(methodRegisterClient, req, &resp); err != nil {
		if s.logger != nil {
			s.logger.Printf("[ERR] rialto.session: registerClient failed: %v", err)
		}
		return false, err
	}

	s.mu.Lock()
	s.controlHandle = resp.ControlHandle
	s.mu.Unlock()

	var serverVersion *SchemaVersion
	if resp.HasServerSchema {
		v := SchemaVersion{Major: resp.ServerSchemaMajor, Minor: resp.ServerSchemaMinor, Patch: resp.ServerSchemaPatch}
		serverVersion = &v
	}

	ok, note := negotiateVersion(s.version, serverVersion)
	if note != "" && s.logger != nil {
		s.logger.Printf("[WARN] rialto.session: %s", note)
	}
	return ok, nil
}

// getSharedMemory populates fd and size from the server response.
func (s *session) getSharedMemory() (int32, uint32, error) {
	var resp getSharedMemoryResponse
	if err := s.call(methodGetSharedMemory, nil, &resp); err != nil {
		return 0, 0, err
	}
	return resp.Fd, resp.Size, nil
}

// ack is sent in response to PingEvent; it echoes the stored control
// handle.
func (s *session) ack(id uint32) error {
	s.mu.Lock()
	handle := s.controlHandle
	s.mu.Unlock()

	req := &ackRequest{ControlHandle: handle, ID: id}
	return s.call(methodAck, req, nil)
}

// onApplicationStateChanged translates the wire event into ApplicationState
// and dispatches notifyApplicationState through the event dispatcher. Per
// spec.md §4.D, state-change events are not gated by the control handle:
// they may arrive before the registration response.
func (s *session) onApplicationStateChanged(msg Message) {
	var wire applicationStateChangeWire
	if err := decodeEventPayload(msg, &wire); err != nil {
		if s.logger != nil {
			s.logger.Printf("[ERR] rialto.session: failed to decode ApplicationStateChangeEvent: %v", err)
		}
		return
	}

	state := convertApplicationState(wire.ApplicationState)
	s.dispatcher.add(func() {
		s.listener.notifyApplicationState(state)
	})
}

// onPing drops the event with a warning if the control handle does not
// match the session's stored handle; otherwise it invokes ack(id) via the
// dispatcher, the way every other event handler runs on the dispatcher's
// single worker.
func (s *session) onPing(msg Message) {
	var wire pingWire
	if err := decodeEventPayload(msg, &wire); err != nil {
		if s.logger != nil {
			s.logger.Printf("[ERR] rialto.session: failed to decode PingEvent: %v", err)
		}
		return
	}

	s.mu.Lock()
	handle := s.controlHandle
	s.mu.Unlock()

	if wire.ControlHandle != handle {
		if s.logger != nil {
			s.logger.Printf("[WARN] rialto.session: PingEvent received with wrong handle (got %d, want %d)", wire.ControlHandle, handle)
		}
		return
	}

	s.dispatcher.add(func() {
		s.listener.notifyPing(wire.ID)
		start := time.Now()
		err := s.ack(wire.ID)
		measureSince(metricKeyPingAck, start)
		if err != nil && s.logger != nil {
			s.logger.Printf("[ERR] rialto.session: ack failed: %v", err)
		}
	})
}

func convertApplicationState(wire string) ApplicationState {
	switch wire {
	case "RUNNING":
		return ApplicationStateRunning
	case "INACTIVE":
		return ApplicationStateInactive
	default:
		return ApplicationStateUnknown
	}
}

// decodeEventPayload decodes a raw msgpack event payload into v.
func decodeEventPayload(msg Message, v interface{}) error {
	dec := codec.NewDecoderBytes(msg, msgpackHandle)
	return dec.Decode(v)
}
