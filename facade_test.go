package client

import "testing"

func TestControlRegisterClientAndClose(t *testing.T) {
	c, fc := newTestController(t)
	fc.handler = func(method string, req, resp interface{}) error {
		if method == methodRegisterClient {
			*resp.(*registerClientResponse) = registerClientResponse{ControlHandle: 3}
		}
		return nil
	}

	l := newTestListener()
	control := &Control{controller: c, listener: l}

	state, ok := control.RegisterClient()
	if !ok {
		t.Fatal("RegisterClient failed")
	}
	if state != ApplicationStateUnknown {
		t.Fatalf("state = %v, want UNKNOWN before any transition", state)
	}

	// Scenario 6 (lazy registration): calling RegisterClient again is a
	// no-op that reuses the same weakListener, not a second RPC.
	registerCalls := 0
	fc.handler = func(method string, req, resp interface{}) error {
		if method == methodRegisterClient {
			registerCalls++
		}
		return nil
	}
	if _, ok := control.RegisterClient(); !ok {
		t.Fatal("second RegisterClient failed")
	}
	if registerCalls != 0 {
		t.Fatalf("expected no further registerClient RPCs, got %d", registerCalls)
	}

	if err := control.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	c.mu.Lock()
	n := len(c.subscribers)
	c.mu.Unlock()
	if n != 0 {
		t.Fatalf("subscriber count after Close = %d, want 0", n)
	}
}

func TestControlDiagnosticsLinesRecordPing(t *testing.T) {
	c, _ := newTestController(t)
	control := &Control{controller: c, listener: newTestListener()}

	if _, ok := control.RegisterClient(); !ok {
		t.Fatal("RegisterClient failed")
	}

	c.notifyPing(11)

	lines := control.DiagnosticsLines()
	if len(lines) == 0 {
		t.Fatal("expected at least one diagnostic line after a ping")
	}
}
