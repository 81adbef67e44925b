package client

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Sentinel error kinds surfaced by the control plane core. RPC-level and
// resource-level failures below the controller boundary are recovered
// locally and never reach a Listener; these are only ever returned from
// calls such as Factory.NewControl and Channel.Call.
var (
	ErrDisconnected        = errors.New("rialto: channel disconnected")
	ErrVersionIncompatible = errors.New("rialto: schema version incompatible")
	ErrRPCFailure          = errors.New("rialto: rpc failure")
	ErrInvalidResource     = errors.New("rialto: invalid shared memory resource")
	ErrMappingFailure      = errors.New("rialto: shared memory mapping failed")
	ErrSubscriptionFailure = errors.New("rialto: event subscription failed")
)

// rpcError turns a wire-carried error string into a Go error, or nil for an
// empty string. Mirrors the teacher's strToError.
func rpcError(s string) error {
	if s == "" {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrRPCFailure, s)
}

// joinErrors aggregates zero or more errors into a single inspectable error,
// used by session.releaseSubscriptions to report both unsubscribe outcomes
// at once.
func joinErrors(errs ...error) error {
	var result *multierror.Error
	for _, e := range errs {
		if e != nil {
			result = multierror.Append(result, e)
		}
	}
	return result.ErrorOrNil()
}
